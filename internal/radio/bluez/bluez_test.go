package bluez

import (
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/radio"
)

const testAdapter = dbus.ObjectPath("/org/bluez/hci0")

func TestAddrFromPath(t *testing.T) {
	tests := []struct {
		path dbus.ObjectPath
		want string
	}{
		{"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", "AA:BB:CC:DD:EE:FF"},
		{"/org/bluez/hci0/dev_aa_bb_cc_dd_ee_ff", "AA:BB:CC:DD:EE:FF"},
		{"/org/bluez/hci0", ""},
		{"/org/bluez/hci0/dev_AA_BB", ""},
	}
	for _, tt := range tests {
		if got := AddrFromPath(tt.path); got != tt.want {
			t.Errorf("AddrFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRecordFromProps(t *testing.T) {
	path := dbus.ObjectPath("/org/bluez/hci0/dev_00_11_22_33_44_55")
	tests := []struct {
		name       string
		props      map[string]dbus.Variant
		wantTitle  string
		wantBonded bool
	}{
		{
			name: "named and paired",
			props: map[string]dbus.Variant{
				"Address": dbus.MakeVariant("00:11:22:33:44:55"),
				"Name":    dbus.MakeVariant("Headset"),
				"Alias":   dbus.MakeVariant("My Headset"),
				"Paired":  dbus.MakeVariant(true),
			},
			wantTitle:  "Headset *",
			wantBonded: true,
		},
		{
			name: "alias only is treated as no name",
			props: map[string]dbus.Variant{
				"Address": dbus.MakeVariant("00:11:22:33:44:55"),
				"Alias":   dbus.MakeVariant("00-11-22-33-44-55"),
			},
			wantTitle: "(no name)  ",
		},
		{
			name:      "address from path",
			props:     map[string]dbus.Variant{},
			wantTitle: "(no name)  ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := recordFromProps(path, tt.props)
			if !ok {
				t.Fatal("recordFromProps() ok = false")
			}
			if rec.Address != "00:11:22:33:44:55" {
				t.Errorf("Address = %q", rec.Address)
			}
			if got := discovery.Title(rec); got != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got, tt.wantTitle)
			}
			if rec.Bonded != tt.wantBonded {
				t.Errorf("Bonded = %v, want %v", rec.Bonded, tt.wantBonded)
			}
		})
	}

	if _, ok := recordFromProps("/org/bluez/hci0", nil); ok {
		t.Error("recordFromProps() accepted a path with no address")
	}
}

func propsChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: propertiesIface + ".PropertiesChanged",
		Body: []interface{}{iface, changed, []string{}},
	}
}

func TestTranslate_AdapterDiscovering(t *testing.T) {
	cache := newDeviceCache()
	tests := []struct {
		name     string
		sig      *dbus.Signal
		wantKind discovery.EventKind
		wantOK   bool
	}{
		{
			name:     "started",
			sig:      propsChanged(testAdapter, adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)}),
			wantKind: discovery.EventDiscoveryStarted,
			wantOK:   true,
		},
		{
			name:     "finished",
			sig:      propsChanged(testAdapter, adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(false)}),
			wantKind: discovery.EventDiscoveryFinished,
			wantOK:   true,
		},
		{
			name: "other adapter property",
			sig:  propsChanged(testAdapter, adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}),
		},
		{
			name: "other adapter",
			sig:  propsChanged("/org/bluez/hci1", adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := translate(testAdapter, cache, tt.sig)
			if ok != tt.wantOK {
				t.Fatalf("translate() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && ev.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", ev.Kind, tt.wantKind)
			}
		})
	}
}

func TestTranslate_DeviceSightings(t *testing.T) {
	cache := newDeviceCache()
	devPath := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")

	added := &dbus.Signal{
		Path: "/",
		Name: objectManagerIfc + ".InterfacesAdded",
		Body: []interface{}{
			devPath,
			map[string]map[string]dbus.Variant{
				deviceIface: {
					"Address": dbus.MakeVariant("AA:BB:CC:DD:EE:FF"),
					"Name":    dbus.MakeVariant("Watch"),
					"Paired":  dbus.MakeVariant(false),
				},
			},
		},
	}
	ev, ok := translate(testAdapter, cache, added)
	if !ok || ev.Kind != discovery.EventDeviceFound {
		t.Fatalf("InterfacesAdded -> %+v, %v", ev, ok)
	}
	if discovery.Caption(ev.Device) != "Watch" {
		t.Errorf("Caption = %q", discovery.Caption(ev.Device))
	}

	// A change without RSSI updates the cache but is not a sighting.
	if _, ok := translate(testAdapter, cache, propsChanged(devPath, deviceIface, map[string]dbus.Variant{
		"Paired": dbus.MakeVariant(true),
	})); ok {
		t.Error("Paired change reported as a sighting")
	}

	ev, ok = translate(testAdapter, cache, propsChanged(devPath, deviceIface, map[string]dbus.Variant{
		"RSSI": dbus.MakeVariant(int16(-60)),
	}))
	if !ok || ev.Kind != discovery.EventDeviceFound {
		t.Fatalf("RSSI change -> %+v, %v", ev, ok)
	}
	if !ev.Device.Bonded || discovery.Caption(ev.Device) != "Watch" {
		t.Errorf("cached properties not merged: %+v", ev.Device)
	}

	removed := &dbus.Signal{
		Path: "/",
		Name: objectManagerIfc + ".InterfacesRemoved",
		Body: []interface{}{devPath, []string{deviceIface}},
	}
	if _, ok := translate(testAdapter, cache, removed); ok {
		t.Error("InterfacesRemoved produced an event")
	}
	if cache.len() != 0 {
		t.Errorf("cache len = %d after removal", cache.len())
	}
}

func TestTranslate_IgnoresForeignDevices(t *testing.T) {
	cache := newDeviceCache()
	sig := &dbus.Signal{
		Name: objectManagerIfc + ".InterfacesAdded",
		Body: []interface{}{
			dbus.ObjectPath("/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF"),
			map[string]map[string]dbus.Variant{deviceIface: {}},
		},
	}
	if _, ok := translate(testAdapter, cache, sig); ok {
		t.Error("device under another adapter was reported")
	}
}

func TestIsNotReady(t *testing.T) {
	if !isNotReady(dbus.Error{Name: "org.bluez.Error.NotReady"}) {
		t.Error("NotReady not matched")
	}
	if isNotReady(errors.New("plain")) {
		t.Error("plain error matched")
	}
}

// fakeAdapter stands in for the Adapter1 object. Methods it does not
// override panic through the nil embedded interface.
type fakeAdapter struct {
	dbus.BusObject

	discovering bool
	otherClient bool
	stopErr     error
	calls       []string
}

func (a *fakeAdapter) Call(method string, _ dbus.Flags, _ ...interface{}) *dbus.Call {
	a.calls = append(a.calls, method)
	switch method {
	case adapterIface + ".StartDiscovery":
		a.discovering = true
	case adapterIface + ".StopDiscovery":
		if a.stopErr != nil {
			return &dbus.Call{Err: a.stopErr}
		}
		if !a.otherClient {
			a.discovering = false
		}
	}
	return &dbus.Call{}
}

func (a *fakeAdapter) GetProperty(p string) (dbus.Variant, error) {
	if p == adapterIface+".Discovering" {
		return dbus.MakeVariant(a.discovering), nil
	}
	return dbus.Variant{}, errors.New("unknown property " + p)
}

func newTestRadio(adapter *fakeAdapter) *Radio {
	return &Radio{
		cfg:       Config{Adapter: "hci0", DiscoveryTimeout: time.Hour},
		path:      testAdapter,
		adapter:   adapter,
		available: true,
		cache:     newDeviceCache(),
		logger:    radio.NopLogger{},
		events:    make(chan discovery.Event, 8),
		done:      make(chan struct{}),
	}
}

func pending(r *Radio) []discovery.EventKind {
	var kinds []discovery.EventKind
	for {
		select {
		case ev := <-r.events:
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestRadio_SharedDiscoveryEmitsLocally(t *testing.T) {
	adapter := &fakeAdapter{discovering: true, otherClient: true}
	r := newTestRadio(adapter)

	if err := r.StartDiscovery(); err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}
	if got := pending(r); len(got) != 1 || got[0] != discovery.EventDiscoveryStarted {
		t.Errorf("events after start = %v, want [discovery_started]", got)
	}

	if err := r.CancelDiscovery(); err != nil {
		t.Fatalf("CancelDiscovery() error = %v", err)
	}
	if got := pending(r); len(got) != 1 || got[0] != discovery.EventDiscoveryFinished {
		t.Errorf("events after cancel = %v, want [discovery_finished]", got)
	}

	// A second cancel has nothing of ours to end.
	if err := r.CancelDiscovery(); err != nil {
		t.Fatalf("second CancelDiscovery() error = %v", err)
	}
	if got := pending(r); len(got) != 0 {
		t.Errorf("events after second cancel = %v, want none", got)
	}
}

func TestRadio_OwnDiscoveryLeavesEventsToSignals(t *testing.T) {
	adapter := &fakeAdapter{}
	r := newTestRadio(adapter)

	if err := r.StartDiscovery(); err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}
	if err := r.CancelDiscovery(); err != nil {
		t.Fatalf("CancelDiscovery() error = %v", err)
	}
	if got := pending(r); len(got) != 0 {
		t.Errorf("local events = %v, want none", got)
	}
	if adapter.discovering {
		t.Error("adapter still discovering after cancel")
	}
}

func TestRadio_StopErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"not ready is ignored", dbus.Error{Name: "org.bluez.Error.NotReady"}, false},
		{"bus failure is returned", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRadio(&fakeAdapter{stopErr: tt.err})
			err := r.CancelDiscovery()
			if (err != nil) != tt.wantErr {
				t.Errorf("CancelDiscovery() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
