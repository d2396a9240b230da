// Package bluez implements discovery.Radio on top of BlueZ over the system D-Bus.
//
// Adapter state comes from org.bluez.Adapter1 (Powered, Discovering) and
// sightings from org.bluez.Device1 objects. Signals are mapped to events:
//
//	Adapter1 Discovering true   -> DiscoveryStarted
//	Adapter1 Discovering false  -> DiscoveryFinished
//	InterfacesAdded (Device1)   -> DeviceFound
//	Device1 RSSI changed        -> DeviceFound (known device seen again)
//
// BlueZ keeps discovering until told to stop, so the radio ends each
// discovery itself after Config.DiscoveryTimeout. When another client already
// holds the adapter in discovery the Discovering property does not move, and
// the radio emits DiscoveryStarted and DiscoveryFinished itself.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/radio"
)

// D-Bus names used by BlueZ.
const (
	service          = "org.bluez"
	adapterIface     = "org.bluez.Adapter1"
	deviceIface      = "org.bluez.Device1"
	propertiesIface  = "org.freedesktop.DBus.Properties"
	objectManagerIfc = "org.freedesktop.DBus.ObjectManager"
)

// DefaultDiscoveryTimeout matches the length of a classic inquiry on phones.
const DefaultDiscoveryTimeout = 12 * time.Second

// Config configures the BlueZ radio.
type Config struct {
	// Adapter is the controller name, e.g. "hci0".
	Adapter string

	// AllowEnable lets RequestEnable power the adapter on.
	AllowEnable bool

	// DiscoveryTimeout ends a discovery that nobody cancelled.
	DiscoveryTimeout time.Duration
}

// Radio is a BlueZ-backed discovery.Radio.
type Radio struct {
	cfg       Config
	conn      *dbus.Conn
	path      dbus.ObjectPath
	adapter   dbus.BusObject
	available bool
	cache     *deviceCache
	logger    radio.Logger

	signals chan *dbus.Signal
	events  chan discovery.Event

	mu    sync.Mutex
	timer *time.Timer
	owned bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open connects to the system bus and binds to the configured adapter.
//
// A missing adapter is not an error: the radio reports Available() false so
// the session can tell the user. Failure to reach the bus is returned.
func Open(ctx context.Context, cfg Config) (*Radio, error) {
	if cfg.Adapter == "" {
		cfg.Adapter = "hci0"
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}

	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}

	path := dbus.ObjectPath("/org/bluez/" + cfg.Adapter)
	r := &Radio{
		cfg:     cfg,
		conn:    conn,
		path:    path,
		adapter: conn.Object(service, path),
		cache:   newDeviceCache(),
		logger:  radio.NopLogger{},
		signals: make(chan *dbus.Signal, 64),
		events:  make(chan discovery.Event, 64),
		done:    make(chan struct{}),
	}

	objects, err := r.managedObjects()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("listing bluez objects: %w", err)
	}
	for objPath, ifaces := range objects {
		if objPath == path {
			_, r.available = ifaces[adapterIface]
			continue
		}
		if props, ok := ifaces[deviceIface]; ok && underAdapter(path, objPath) {
			r.cache.merge(objPath, props)
		}
	}

	if err := r.subscribe(); err != nil {
		conn.Close()
		return nil, err
	}

	r.wg.Add(1)
	go r.pump()
	return r, nil
}

// SetLogger sets the logger for the radio.
func (r *Radio) SetLogger(logger radio.Logger) {
	r.logger = logger
}

// Available implements discovery.Radio.
func (r *Radio) Available() bool {
	return r.available
}

// Enabled implements discovery.Radio.
func (r *Radio) Enabled() bool {
	on, err := r.adapterBool("Powered")
	if err != nil {
		r.logger.Warn("reading Powered failed", "adapter", r.cfg.Adapter, "error", err)
	}
	return on
}

// RequestEnable implements discovery.Radio. When enabling is not allowed by
// configuration the request counts as refused.
func (r *Radio) RequestEnable(ctx context.Context) (bool, error) {
	if !r.available {
		return false, radio.ErrNotAvailable
	}
	if !r.cfg.AllowEnable {
		r.logger.Info("adapter enable refused by configuration", "adapter", r.cfg.Adapter)
		return false, nil
	}
	call := r.adapter.CallWithContext(ctx, propertiesIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(true))
	if call.Err != nil {
		return false, fmt.Errorf("powering on %s: %w", r.cfg.Adapter, call.Err)
	}
	return r.Enabled(), nil
}

// Discovering implements discovery.Radio.
func (r *Radio) Discovering() bool {
	if !r.available {
		return false
	}
	on, err := r.adapterBool("Discovering")
	if err != nil {
		r.logger.Warn("reading Discovering failed", "adapter", r.cfg.Adapter, "error", err)
	}
	return on
}

// StartDiscovery implements discovery.Radio.
func (r *Radio) StartDiscovery() error {
	if !r.available {
		return radio.ErrNotAvailable
	}
	shared := r.Discovering()
	if err := r.adapter.Call(adapterIface+".StartDiscovery", 0).Err; err != nil {
		return fmt.Errorf("StartDiscovery: %w", err)
	}

	r.mu.Lock()
	r.owned = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.cfg.DiscoveryTimeout, func() {
		r.logger.Debug("discovery timeout reached", "adapter", r.cfg.Adapter)
		if err := r.stopDiscovery(); err != nil {
			r.logger.Warn("stopping discovery after timeout failed", "error", err)
		}
	})
	r.mu.Unlock()

	if shared {
		r.logger.Debug("adapter already discovering for another client", "adapter", r.cfg.Adapter)
		r.emit(discovery.Started())
	}
	return nil
}

// CancelDiscovery implements discovery.Radio.
func (r *Radio) CancelDiscovery() error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	return r.stopDiscovery()
}

// Events implements discovery.Radio.
func (r *Radio) Events() <-chan discovery.Event {
	return r.events
}

// Close stops discovery, drops the signal subscription and closes the bus
// connection. The event channel is closed once the pump has exited.
func (r *Radio) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.Discovering() {
			_ = r.CancelDiscovery()
		}
		close(r.done)
		r.conn.RemoveSignal(r.signals)
		r.wg.Wait()
		close(r.events)
		err = r.conn.Close()
	})
	return err
}

// stopDiscovery ends this client's discovery. If the adapter keeps
// discovering for another client, DiscoveryFinished is emitted here since no
// property change will report it.
func (r *Radio) stopDiscovery() error {
	if !r.available {
		return nil
	}
	r.mu.Lock()
	owned := r.owned
	r.owned = false
	r.mu.Unlock()

	if err := r.adapter.Call(adapterIface+".StopDiscovery", 0).Err; err != nil && !isNotReady(err) {
		return fmt.Errorf("StopDiscovery: %w", err)
	}
	if owned && r.Discovering() {
		r.logger.Debug("adapter still discovering for another client", "adapter", r.cfg.Adapter)
		r.emit(discovery.Finished())
	}
	return nil
}

// emit queues a locally generated event without blocking the caller.
func (r *Radio) emit(ev discovery.Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	default:
		r.logger.Warn("event buffer full, dropping event", "kind", ev.Kind)
	}
}

func (r *Radio) pump() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case sig, ok := <-r.signals:
			if !ok {
				return
			}
			ev, ok := translate(r.path, r.cache, sig)
			if !ok {
				continue
			}
			if ev.Kind == discovery.EventDiscoveryFinished {
				r.mu.Lock()
				r.owned = false
				if r.timer != nil {
					r.timer.Stop()
					r.timer = nil
				}
				r.mu.Unlock()
			}
			select {
			case r.events <- ev:
			case <-r.done:
				return
			}
		}
	}
}

func (r *Radio) adapterBool(name string) (bool, error) {
	v, err := r.adapter.GetProperty(adapterIface + "." + name)
	if err != nil {
		return false, err
	}
	b, _ := v.Value().(bool)
	return b, nil
}

func (r *Radio) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	root := r.conn.Object(service, "/")
	if err := root.Call(objectManagerIfc+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, err
	}
	return objects, nil
}

// translate maps one BlueZ signal to a discovery event for the adapter at
// adapterPath, keeping cache current on the way.
func translate(adapterPath dbus.ObjectPath, cache *deviceCache, sig *dbus.Signal) (discovery.Event, bool) {
	switch sig.Name {
	case objectManagerIfc + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			return discovery.Event{}, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok || !underAdapter(adapterPath, path) {
			return discovery.Event{}, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return discovery.Event{}, false
		}
		props, ok := ifaces[deviceIface]
		if !ok {
			return discovery.Event{}, false
		}
		rec, ok := cache.merge(path, props)
		if !ok {
			return discovery.Event{}, false
		}
		return discovery.Found(rec), true

	case objectManagerIfc + ".InterfacesRemoved":
		if len(sig.Body) < 1 {
			return discovery.Event{}, false
		}
		if path, ok := sig.Body[0].(dbus.ObjectPath); ok {
			cache.remove(path)
		}
		return discovery.Event{}, false

	case propertiesIface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return discovery.Event{}, false
		}
		iface, _ := sig.Body[0].(string)
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return discovery.Event{}, false
		}
		switch {
		case iface == adapterIface && sig.Path == adapterPath:
			on, ok := boolProp(changed, "Discovering")
			if !ok {
				return discovery.Event{}, false
			}
			if on {
				return discovery.Started(), true
			}
			return discovery.Finished(), true

		case iface == deviceIface && underAdapter(adapterPath, sig.Path):
			rec, ok := cache.merge(sig.Path, changed)
			if _, sighted := changed["RSSI"]; !ok || !sighted {
				return discovery.Event{}, false
			}
			return discovery.Found(rec), true
		}
	}
	return discovery.Event{}, false
}

func underAdapter(adapterPath, path dbus.ObjectPath) bool {
	return strings.HasPrefix(string(path), string(adapterPath)+"/")
}

// isNotReady matches the error BlueZ returns when stopping a discovery this
// client did not start or that already ended.
func isNotReady(err error) bool {
	var de dbus.Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Name == "org.bluez.Error.NotReady" || de.Name == "org.bluez.Error.Failed"
}
