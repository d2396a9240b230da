package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/permission"
	"github.com/nerrad567/btscanner/internal/radio/fake"
)

var testCaps = permission.DefaultPolicy().Required(31)

type harness struct {
	sess    *Session
	radio   *fake.Radio
	store   Store
	updates <-chan Update
}

func newHarness(t *testing.T, radioOpts fake.Options, grant bool, store Store) *harness {
	t.Helper()
	r := fake.New(radioOpts)
	gate, err := permission.NewGate(permission.NewStaticPlatform(nil, permission.AutoPrompter{Grant: grant}))
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	if store == nil {
		store = NewMemoryStore()
	}
	sess, err := New(Options{
		ID:           "test",
		Radio:        r,
		Gate:         gate,
		Capabilities: testCaps,
		Store:        store,
		About:        About{Name: "BluetoothScanner", Message: "Scans for nearby devices."},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	updates, _ := sess.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		r.Close()
	})
	return &harness{sess: sess, radio: r, store: store, updates: updates}
}

// waitFor consumes updates until match returns true.
func (h *harness) waitFor(t *testing.T, match func(Update) bool) Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-h.updates:
			if !ok {
				t.Fatal("update channel closed")
			}
			if match(u) {
				return u
			}
		case <-timeout:
			t.Fatal("timed out waiting for update")
			return Update{}
		}
	}
}

func (h *harness) eventually(t *testing.T, cond func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := h.sess.Status(context.Background())
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last status %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func isNotice(kind NoticeKind) func(Update) bool {
	return func(u Update) bool { return u.Kind == UpdateNotice && u.Notice.Kind == kind }
}

var twoDevices = []discovery.DeviceRecord{
	discovery.NewDeviceRecord("A1", "Phone", false),
	discovery.NewDeviceRecord("A2", "", true),
	discovery.NewDeviceRecord("A1", "Phone", false),
}

func TestNew_RequiresDependencies(t *testing.T) {
	gate, _ := permission.NewGate(permission.NewStaticPlatform(nil, nil))
	tests := []struct {
		name string
		opts Options
	}{
		{"no radio", Options{Gate: gate, Store: NewMemoryStore()}},
		{"no gate", Options{Radio: fake.Unavailable(), Store: NewMemoryStore()}},
		{"no store", Options{Radio: fake.Unavailable(), Gate: gate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, ErrMissingDependency) {
				t.Errorf("New() error = %v, want ErrMissingDependency", err)
			}
		})
	}
}

func TestSession_RadioUnavailableEnds(t *testing.T) {
	h := newHarness(t, fake.Options{}, true, nil)
	ctx := context.Background()

	if err := h.sess.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	u := h.waitFor(t, isNotice(NoticeRadioUnavailable))
	if !u.Notice.Fatal || u.Notice.Message != "Bluetooth is not available" {
		t.Errorf("notice = %+v", u.Notice)
	}
	h.waitFor(t, func(u Update) bool { return u.Kind == UpdateEnded })

	if err := h.sess.Scan(ctx); !errors.Is(err, ErrEnded) {
		t.Errorf("Scan() after end error = %v, want ErrEnded", err)
	}
}

func TestSession_EnableRefusedIsInert(t *testing.T) {
	h := newHarness(t, fake.Options{Available: true}, true, nil)
	ctx := context.Background()

	if err := h.sess.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	u := h.waitFor(t, isNotice(NoticeRadioDisabledRefused))
	if u.Notice.Message != "Bluetooth must be enabled" {
		t.Errorf("message = %q", u.Notice.Message)
	}

	st := h.eventually(t, func(Status) bool { return true })
	if st.Ended {
		t.Error("refused enable ended the session")
	}

	// Retrying through scan asks again.
	if err := h.sess.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	h.waitFor(t, isNotice(NoticeRadioDisabledRefused))
}

func TestSession_PermissionDeniedNotices(t *testing.T) {
	h := newHarness(t, fake.Options{Available: true, Enabled: true}, false, nil)
	ctx := context.Background()

	if err := h.sess.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var got []string
	for range testCaps {
		u := h.waitFor(t, isNotice(NoticePermissionDenied))
		got = append(got, u.Notice.Capability)
	}
	for i, id := range testCaps {
		if got[i] != string(id) {
			t.Errorf("notice %d capability = %q, want %q", i, got[i], id)
		}
	}

	menu, err := h.sess.Menu(ctx)
	if err != nil {
		t.Fatalf("Menu() error = %v", err)
	}
	if menu.Scan || menu.Stop || !menu.About {
		t.Errorf("Menu() = %+v, want only About", menu)
	}
}

func TestSession_ScanLifecycle(t *testing.T) {
	h := newHarness(t, fake.Options{
		Available: true,
		Enabled:   true,
		Devices:   twoDevices,
		Duration:  30 * time.Millisecond,
	}, true, nil)
	ctx := context.Background()

	if err := h.sess.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := h.sess.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	h.eventually(t, func(st Status) bool { return st.PermissionsGranted && st.Menu.Scan })

	if err := h.sess.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	first := h.waitFor(t, func(u Update) bool { return u.Kind == UpdateDeviceAdded })
	second := h.waitFor(t, func(u Update) bool { return u.Kind == UpdateDeviceAdded })
	if first.Device.Address != "A1" || first.Reveal != 1 {
		t.Errorf("first device = %+v reveal %d", first.Device, first.Reveal)
	}
	if second.Device.Title != "(no name) *" || second.Reveal != 2 {
		t.Errorf("second device = %+v reveal %d", second.Device, second.Reveal)
	}

	h.waitFor(t, func(u Update) bool { return u.Kind == UpdateState && u.State == discovery.StateIdle })

	rows, err := h.sess.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Devices() = %v, want 2 rows", rows)
	}

	dlg, err := h.sess.Detail(ctx, "A1")
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if dlg.Title != "Phone" || dlg.Message != "A1" {
		t.Errorf("Detail() = %+v", dlg)
	}
	if _, err := h.sess.Detail(ctx, "ZZ"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Detail(ZZ) error = %v", err)
	}
}

func TestSession_StopKeepsDevices(t *testing.T) {
	h := newHarness(t, fake.Options{
		Available: true,
		Enabled:   true,
		Devices:   twoDevices[:1],
	}, true, nil)
	ctx := context.Background()

	_ = h.sess.Create(ctx)
	_ = h.sess.Resume(ctx)
	h.eventually(t, func(st Status) bool { return st.PermissionsGranted })

	if err := h.sess.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	h.waitFor(t, func(u Update) bool { return u.Kind == UpdateDeviceAdded })

	if err := h.sess.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	st := h.eventually(t, func(st Status) bool { return st.State == discovery.StateIdle })
	if st.Devices != 1 {
		t.Errorf("devices after stop = %d, want 1", st.Devices)
	}
	if !st.Menu.Scan || st.Menu.Stop {
		t.Errorf("menu after stop = %+v", st.Menu)
	}
}

func TestSession_ScanRequestsMissingPermissionsFirst(t *testing.T) {
	h := newHarness(t, fake.Options{Available: true, Enabled: true}, true, nil)
	ctx := context.Background()

	// No Create: the scan action must run the permission request itself.
	_ = h.sess.Resume(ctx)
	if err := h.sess.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	h.waitFor(t, func(u Update) bool { return u.Kind == UpdateState && u.State == discovery.StateScanning })
}

func TestSession_StartFailureNotice(t *testing.T) {
	h := newHarness(t, fake.Options{
		Available: true,
		Enabled:   true,
		StartErr:  errors.New("busy"),
	}, true, nil)
	ctx := context.Background()

	_ = h.sess.Create(ctx)
	h.eventually(t, func(st Status) bool { return st.PermissionsGranted })
	if err := h.sess.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	h.waitFor(t, isNotice(NoticeDiscoveryStartFailed))

	st := h.eventually(t, func(Status) bool { return true })
	if st.State != discovery.StateIdle || st.Ended {
		t.Errorf("status after start failure = %+v", st)
	}
}

func TestSession_SuspendAndRestore(t *testing.T) {
	store := NewMemoryStore()
	opts := fake.Options{Available: true, Enabled: true, Devices: twoDevices}
	ctx := context.Background()

	h := newHarness(t, opts, true, store)
	_ = h.sess.Create(ctx)
	_ = h.sess.Resume(ctx)
	h.eventually(t, func(st Status) bool { return st.PermissionsGranted })
	_ = h.sess.Scan(ctx)
	h.eventually(t, func(st Status) bool { return st.Devices == 2 })
	_ = h.sess.Pause(ctx)
	if err := h.sess.Suspend(ctx); err != nil {
		t.Fatalf("Suspend() error = %v", err)
	}

	restored := newHarness(t, fake.Options{Available: true, Enabled: true}, true, store)
	if err := restored.sess.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rows, err := restored.sess.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(rows) != 2 || rows[0].Address != "A1" || rows[1].Address != "A2" {
		t.Fatalf("restored rows = %+v", rows)
	}
	st, _ := restored.sess.Status(ctx)
	if st.State != discovery.StateIdle {
		t.Errorf("restored state = %s, want idle", st.State)
	}

	if err := restored.sess.Finish(ctx); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if _, err := store.Load(ctx, "test"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("snapshot after Finish: %v", err)
	}
}

func TestSession_UnreadableSnapshotIgnored(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), "test", []byte("garbage"))

	h := newHarness(t, fake.Options{Available: true, Enabled: true}, true, store)
	if err := h.sess.Create(context.Background()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rows, _ := h.sess.Devices(context.Background())
	if len(rows) != 0 {
		t.Errorf("rows = %v, want empty", rows)
	}
}

func TestSession_PausedEventsAreDiscarded(t *testing.T) {
	h := newHarness(t, fake.Options{Available: true, Enabled: true}, true, nil)
	ctx := context.Background()
	_ = h.sess.Create(ctx)

	h.radio.Emit(discovery.Found(discovery.NewDeviceRecord("X", "", false)))
	// A round trip through the loop after the emit lets the pump deliver it.
	time.Sleep(20 * time.Millisecond)
	st, _ := h.sess.Status(ctx)
	if st.Devices != 0 {
		t.Errorf("event applied while not listening: %d devices", st.Devices)
	}

	_ = h.sess.Resume(ctx)
	h.radio.Emit(discovery.Found(discovery.NewDeviceRecord("X", "", false)))
	h.eventually(t, func(st Status) bool { return st.Devices == 1 })
}

func TestSession_About(t *testing.T) {
	h := newHarness(t, fake.Options{}, true, nil)
	if got := h.sess.About(); got.Title != "BluetoothScanner" || got.Message == "" {
		t.Errorf("About() = %+v", got)
	}
}
