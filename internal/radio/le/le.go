// Package le implements discovery.Radio with Bluetooth LE scanning through
// tinygo.org/x/bluetooth.
//
// LE advertisements carry no bond state, so every record reports Bonded false.
package le

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/radio"
)

// DefaultScanTimeout bounds one scan when Config leaves it unset.
const DefaultScanTimeout = 12 * time.Second

// stopWait bounds how long CancelDiscovery waits for the stack's scan to return.
const stopWait = 5 * time.Second

// ErrStopTimeout is returned when the stack keeps scanning after StopScan.
var ErrStopTimeout = errors.New("le: scan did not stop")

// Config configures the LE radio.
type Config struct {
	ScanTimeout time.Duration
}

// stack is the slice of the LE stack the radio drives.
type stack interface {
	Enable() error
	Scan(found func(address, name string)) error
	StopScan() error
}

type tinygoStack struct {
	adapter *bluetooth.Adapter
}

func (s tinygoStack) Enable() error { return s.adapter.Enable() }

func (s tinygoStack) Scan(found func(address, name string)) error {
	return s.adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
		found(res.Address.String(), res.LocalName())
	})
}

func (s tinygoStack) StopScan() error { return s.adapter.StopScan() }

// Radio is an LE-only discovery.Radio.
type Radio struct {
	cfg    Config
	stack  stack
	events chan discovery.Event
	logger radio.Logger

	mu          sync.Mutex
	enabled     bool
	available   bool
	discovering bool
	closed      bool
	timer       *time.Timer
	stop        chan struct{}
	exited      chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// Open enables the host's default LE adapter. An adapter that cannot be
// enabled is reported through Available() false rather than an error.
func Open(cfg Config) *Radio {
	return newRadio(cfg, tinygoStack{adapter: bluetooth.DefaultAdapter})
}

func newRadio(cfg Config, s stack) *Radio {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	r := &Radio{
		cfg:    cfg,
		stack:  s,
		events: make(chan discovery.Event, 64),
		logger: radio.NopLogger{},
		done:   make(chan struct{}),
	}
	if err := s.Enable(); err == nil {
		r.available = true
		r.enabled = true
	}
	return r
}

// SetLogger sets the logger for the radio.
func (r *Radio) SetLogger(logger radio.Logger) {
	r.logger = logger
}

// Available implements discovery.Radio.
func (r *Radio) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// Enabled implements discovery.Radio.
func (r *Radio) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// RequestEnable implements discovery.Radio by retrying the stack enable.
func (r *Radio) RequestEnable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := r.stack.Enable(); err != nil {
		r.logger.Warn("enabling LE adapter failed", "error", err)
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = true
	r.enabled = true
	return true, nil
}

// Discovering implements discovery.Radio.
func (r *Radio) Discovering() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discovering
}

// StartDiscovery implements discovery.Radio. The stack's blocking scan runs
// on its own goroutine until StopScan or the timeout.
func (r *Radio) StartDiscovery() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return radio.ErrClosed
	case !r.available:
		return radio.ErrNotAvailable
	case !r.enabled:
		return radio.ErrPoweredOff
	case r.discovering:
		return nil
	}

	r.discovering = true
	stop, exited := make(chan struct{}), make(chan struct{})
	r.stop, r.exited = stop, exited
	r.timer = time.AfterFunc(r.cfg.ScanTimeout, func() {
		r.mu.Lock()
		current := r.exited == exited
		r.mu.Unlock()
		if current {
			r.logger.Debug("LE scan timeout reached")
			_ = r.CancelDiscovery()
		}
	})

	r.wg.Add(1)
	go r.scan(stop, exited)
	return nil
}

// CancelDiscovery implements discovery.Radio. It returns once the running
// scan has exited and queued its DiscoveryFinished event, so a following
// StartDiscovery always begins a fresh scan.
func (r *Radio) CancelDiscovery() error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if !r.discovering {
		r.mu.Unlock()
		return nil
	}
	stop, exited := r.stop, r.exited
	if stop != nil {
		close(stop)
		r.stop = nil
	}
	r.mu.Unlock()

	err := r.stack.StopScan()
	select {
	case <-exited:
	case <-time.After(stopWait):
		r.logger.Warn("LE scan still running after StopScan")
		return ErrStopTimeout
	}
	return err
}

// Events implements discovery.Radio.
func (r *Radio) Events() <-chan discovery.Event {
	return r.events
}

// Close stops scanning and closes the event channel.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	_ = r.CancelDiscovery()
	r.wg.Wait()
	close(r.events)
	return nil
}

func (r *Radio) scan(stop, exited chan struct{}) {
	defer r.wg.Done()
	defer close(exited)

	r.send(discovery.Started(), stop)
	err := r.stack.Scan(func(address, name string) {
		r.send(discovery.Found(discovery.NewDeviceRecord(strings.ToUpper(address), name, false)), stop)
	})
	if err != nil {
		r.logger.Warn("LE scan ended with error", "error", err)
	}

	r.mu.Lock()
	r.discovering = false
	r.stop = nil
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()

	select {
	case r.events <- discovery.Finished():
	case <-r.done:
	default:
		r.logger.Warn("event buffer full, DiscoveryFinished dropped")
	}
}

// send delivers ev unless the scan is cancelled or the radio closed first.
func (r *Radio) send(ev discovery.Event, stop <-chan struct{}) {
	select {
	case r.events <- ev:
	case <-stop:
	case <-r.done:
	}
}
