package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/permission"
)

// subscriberBuffer is the per-subscriber queue length. A subscriber that
// falls this far behind misses updates.
const subscriberBuffer = 64

// DefaultID is used when Options.ID is empty.
const DefaultID = "default"

// Logger defines the logging interface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Session.
type Options struct {
	// ID keys the stored snapshot. Defaults to DefaultID.
	ID string

	// Radio is the platform radio. Required.
	Radio discovery.Radio

	// Gate inspects and requests capabilities. Required.
	Gate *permission.Gate

	// Capabilities is the set a scan needs, usually from permission.Policy.
	Capabilities []permission.ID

	// Store holds the suspend snapshot. Required.
	Store Store

	// About is shown by the About action.
	About About

	// Logger is optional.
	Logger Logger
}

// Session is one discovery screen.
type Session struct {
	id     string
	radio  discovery.Radio
	gate   *permission.Gate
	caps   []permission.ID
	store  Store
	about  About
	logger Logger

	loop *Loop
	ctrl *discovery.Controller

	// ctx bounds background requests started by the session.
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-confined state.
	listening  bool
	ended      bool
	enabling   bool
	requesting bool

	subMu sync.Mutex
	subs  map[chan Update]struct{}

	pumpWG sync.WaitGroup
}

// New creates a session. Run must be started before any other method.
func New(opts Options) (*Session, error) {
	switch {
	case opts.Radio == nil:
		return nil, fmt.Errorf("%w: radio", ErrMissingDependency)
	case opts.Gate == nil:
		return nil, fmt.Errorf("%w: permission gate", ErrMissingDependency)
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: snapshot store", ErrMissingDependency)
	}
	if opts.ID == "" {
		opts.ID = DefaultID
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     opts.ID,
		radio:  opts.Radio,
		gate:   opts.Gate,
		caps:   append([]permission.ID(nil), opts.Capabilities...),
		store:  opts.Store,
		about:  opts.About,
		logger: opts.Logger,
		loop:   NewLoop(),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[chan Update]struct{}),
	}

	s.ctrl = discovery.NewController(opts.Radio, discovery.PermissionsFunc(func() []string {
		return permission.Strings(s.gate.Missing(s.caps))
	}))
	s.ctrl.SetLogger(opts.Logger)
	s.ctrl.AddObserver(s)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run drives the dispatch loop and the radio event pump until ctx is done.
// Subscriber channels are closed when Run returns.
func (s *Session) Run(ctx context.Context) {
	s.pumpWG.Add(1)
	go s.pump(ctx)

	s.loop.Run(ctx)
	s.cancel()
	s.pumpWG.Wait()

	s.subMu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.subMu.Unlock()
}

// pump forwards radio events to the loop. Events that arrive while the
// session is paused are drained and discarded.
func (s *Session) pump(ctx context.Context) {
	defer s.pumpWG.Done()
	events := s.radio.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.loop.Post(func() {
				if s.listening && !s.ended {
					s.ctrl.Handle(ev)
				}
			})
		}
	}
}

// Subscribe returns a channel of updates and a function to stop receiving.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- u:
		default:
			s.logger.Debug("subscriber full, dropping update", "kind", u.Kind)
		}
	}
}

// StateChanged implements discovery.Observer.
func (s *Session) StateChanged(state discovery.State) {
	s.publish(Update{Kind: UpdateState, State: state})
	s.publishMenu()
}

// ProgressChanged implements discovery.Observer.
func (s *Session) ProgressChanged(active bool) {
	s.publish(Update{Kind: UpdateProgress, Progress: active})
}

// DeviceAdded implements discovery.Observer.
func (s *Session) DeviceAdded(rec discovery.DeviceRecord, reveal int) {
	row := discovery.RowFor(rec)
	s.publish(Update{Kind: UpdateDeviceAdded, Device: &row, Record: &rec, Reveal: reveal})
}

func (s *Session) publishMenu() {
	menu := s.menu()
	s.publish(Update{Kind: UpdateMenu, Menu: &menu})
}

func (s *Session) notify(n Notice) {
	s.logger.Info("notice", "kind", n.Kind, "message", n.Message)
	s.publish(Update{Kind: UpdateNotice, Notice: &n})
}

func (s *Session) menu() discovery.Menu {
	return discovery.MenuFor(s.gate.Granted(s.caps), s.ctrl.State())
}

// Create restores a saved snapshot, then checks the preconditions: a missing
// radio ends the session; a powered-off radio is offered for enabling; the
// capability request follows once the radio is on.
func (s *Session) Create(ctx context.Context) error {
	blob, err := s.store.Load(ctx, s.id)
	var restored []discovery.DeviceRecord
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
	case err != nil:
		s.logger.Warn("loading snapshot failed", "session", s.id, "error", err)
	default:
		restored, err = discovery.DecodeSnapshot(blob)
		if err != nil {
			s.logger.Warn("discarding unreadable snapshot", "session", s.id, "error", err)
			restored = nil
		}
	}

	return s.do(ctx, func() {
		if restored != nil {
			s.ctrl.Restore(restored)
		}
		if !s.radio.Available() {
			s.notify(noticeRadioUnavailable())
			s.end()
			return
		}
		if s.radio.Enabled() {
			s.requestPermissions(nil)
			return
		}
		s.requestEnable(func() { s.requestPermissions(nil) })
	})
}

// Resume starts applying radio events and re-derives the scan state.
func (s *Session) Resume(ctx context.Context) error {
	return s.do(ctx, func() {
		s.listening = true
		s.ctrl.Reconcile()
		s.publishMenu()
	})
}

// Pause cancels a running discovery and stops applying radio events.
func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, func() {
		s.ctrl.Pause()
		s.listening = false
	})
}

// Suspend writes the device list to the store so a later Create can restore it.
func (s *Session) Suspend(ctx context.Context) error {
	var devices []discovery.DeviceRecord
	if err := s.loop.Call(ctx, func() { devices = s.ctrl.Devices() }); err != nil {
		return err
	}
	blob, err := discovery.EncodeSnapshot(devices)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.id, blob); err != nil {
		return err
	}
	s.logger.Info("session suspended", "session", s.id, "devices", len(devices))
	return nil
}

// Finish ends the session for good and drops its snapshot.
func (s *Session) Finish(ctx context.Context) error {
	if err := s.do(ctx, func() {
		s.ctrl.Pause()
		s.listening = false
		s.end()
	}); err != nil && !errors.Is(err, ErrEnded) {
		return err
	}
	return s.store.Delete(ctx, s.id)
}

// Scan starts a new scan. Unmet preconditions are requested first and the
// scan goes ahead once they are satisfied. Outcomes arrive as Updates.
func (s *Session) Scan(ctx context.Context) error {
	return s.do(ctx, s.scan)
}

// Stop ends the running scan, keeping the devices found so far.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, s.ctrl.Stop)
}

// About returns the About dialog.
func (s *Session) About() Dialog {
	return Dialog{Title: s.about.Name, Message: s.about.Message}
}

// Detail returns the item dialog for the device with address.
func (s *Session) Detail(ctx context.Context, address string) (Dialog, error) {
	var (
		rec   discovery.DeviceRecord
		found bool
	)
	if err := s.loop.Call(ctx, func() { rec, found = s.ctrl.Lookup(address) }); err != nil {
		return Dialog{}, err
	}
	if !found {
		return Dialog{}, ErrDeviceNotFound
	}
	return Dialog{Title: discovery.Caption(rec), Message: rec.Address}, nil
}

// Devices returns the list rows in first-seen order.
func (s *Session) Devices(ctx context.Context) ([]discovery.Row, error) {
	var rows []discovery.Row
	err := s.loop.Call(ctx, func() { rows = discovery.Rows(s.ctrl.Devices()) })
	return rows, err
}

// Menu returns the currently offered actions.
func (s *Session) Menu(ctx context.Context) (discovery.Menu, error) {
	var m discovery.Menu
	err := s.loop.Call(ctx, func() { m = s.menu() })
	return m, err
}

// Status returns a snapshot of the session state.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.loop.Call(ctx, func() {
		missing := s.gate.Missing(s.caps)
		st = Status{
			ID:                 s.id,
			State:              s.ctrl.State(),
			Progress:           s.ctrl.Progress(),
			Devices:            len(s.ctrl.Devices()),
			Menu:               s.menu(),
			RadioAvailable:     s.radio.Available(),
			RadioEnabled:       s.radio.Available() && s.radio.Enabled(),
			PermissionsGranted: len(missing) == 0,
			Missing:            permission.Strings(missing),
			Listening:          s.listening,
			Ended:              s.ended,
		}
	})
	return st, err
}

// do runs fn on the loop unless the session has ended.
func (s *Session) do(ctx context.Context, fn func()) error {
	var ended bool
	err := s.loop.Call(ctx, func() {
		if s.ended {
			ended = true
			return
		}
		fn()
	})
	if err != nil {
		return err
	}
	if ended {
		return ErrEnded
	}
	return nil
}

func (s *Session) scan() {
	switch {
	case !s.radio.Available():
		s.report(discovery.ErrRadioUnavailable)
	case !s.radio.Enabled():
		s.requestEnable(s.scan)
	case !s.gate.Granted(s.caps):
		s.requestPermissions(s.scan)
	default:
		s.report(s.ctrl.Start())
	}
}

// report turns a Start outcome into notices.
func (s *Session) report(err error) {
	if err == nil {
		return
	}
	var denied *discovery.PermissionDeniedError
	switch {
	case errors.Is(err, discovery.ErrRadioUnavailable):
		s.notify(noticeRadioUnavailable())
		s.end()
	case errors.As(err, &denied):
		for _, id := range denied.Missing {
			s.notify(noticePermissionDenied(id))
		}
		s.publishMenu()
	case errors.Is(err, discovery.ErrRadioDisabled):
		s.notify(noticeRadioDisabledRefused())
	case errors.Is(err, discovery.ErrDiscoveryStartFailed):
		s.logger.Warn("discovery did not start", "error", err)
		s.notify(noticeDiscoveryStartFailed())
	default:
		s.logger.Error("unexpected scan error", "error", err)
	}
}

// requestEnable asks the radio to power on off the loop, then runs next on
// the loop if it was enabled. A refusal leaves the session inert until the
// user tries to scan again.
func (s *Session) requestEnable(next func()) {
	if s.enabling {
		return
	}
	s.enabling = true
	s.logger.Info("requesting radio enable")

	go func() {
		ok, err := s.radio.RequestEnable(s.ctx)
		s.loop.Post(func() {
			s.enabling = false
			if s.ended {
				return
			}
			if err != nil {
				s.logger.Warn("radio enable request failed", "error", err)
			}
			if err != nil || !ok {
				s.notify(noticeRadioDisabledRefused())
				return
			}
			if next != nil {
				next()
			}
		})
	}()
}

// requestPermissions asks the gate for the missing capabilities, emitting
// one notice per denial. next runs on the loop only when all are granted.
func (s *Session) requestPermissions(next func()) {
	if s.requesting {
		return
	}
	s.requesting = true
	results := s.gate.CheckAndRequest(s.ctx, s.caps)

	go func() {
		res := <-results
		s.loop.Post(func() {
			s.requesting = false
			if s.ended {
				return
			}
			if res.Err != nil {
				s.logger.Warn("permission request failed", "error", res.Err)
			}
			for _, id := range res.Missing {
				s.notify(noticePermissionDenied(string(id)))
			}
			s.publishMenu()
			if res.Granted() && next != nil {
				next()
			}
		})
	}()
}

func (s *Session) end() {
	if s.ended {
		return
	}
	s.ended = true
	s.logger.Info("session ended", "session", s.id)
	s.publish(Update{Kind: UpdateEnded})
	s.cancel()
}
