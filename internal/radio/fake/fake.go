// Package fake provides a scripted radio for demos and testing.
//
// StartDiscovery replays the configured devices, one per Interval, then waits
// out the rest of Duration before reporting the discovery finished. A zero
// Duration keeps discovery open until CancelDiscovery.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/radio"
)

// Options configures a fake radio.
type Options struct {
	// Available reports an adapter as present.
	Available bool

	// Enabled is the initial powered state.
	Enabled bool

	// AllowEnable decides how RequestEnable is answered.
	AllowEnable bool

	// Devices are replayed in order on every discovery.
	Devices []discovery.DeviceRecord

	// Interval is the pause before each device sighting.
	Interval time.Duration

	// Duration bounds one discovery. Zero means until cancelled.
	Duration time.Duration

	// StartErr, when set, is returned by every StartDiscovery call.
	StartErr error
}

// Radio is a scripted discovery.Radio.
type Radio struct {
	opts   Options
	events chan discovery.Event

	mu          sync.Mutex
	enabled     bool
	discovering bool
	stop        chan struct{}
	exited      chan struct{}
	closed      bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a fake radio.
func New(opts Options) *Radio {
	return &Radio{
		opts:    opts,
		events:  make(chan discovery.Event, 64),
		enabled: opts.Enabled,
		done:    make(chan struct{}),
	}
}

// Unavailable returns a radio that reports no adapter, used when no real
// backend could be opened.
func Unavailable() *Radio {
	return New(Options{})
}

// Available implements discovery.Radio.
func (r *Radio) Available() bool {
	return r.opts.Available
}

// Enabled implements discovery.Radio.
func (r *Radio) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled changes the powered state, as if toggled outside the session.
func (r *Radio) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// RequestEnable implements discovery.Radio.
func (r *Radio) RequestEnable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !r.opts.Available {
		return false, radio.ErrNotAvailable
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.AllowEnable {
		r.enabled = true
	}
	return r.enabled, nil
}

// Discovering implements discovery.Radio.
func (r *Radio) Discovering() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discovering
}

// StartDiscovery implements discovery.Radio.
func (r *Radio) StartDiscovery() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return radio.ErrClosed
	case !r.opts.Available:
		return radio.ErrNotAvailable
	case !r.enabled:
		return radio.ErrPoweredOff
	case r.opts.StartErr != nil:
		return r.opts.StartErr
	case r.discovering:
		return nil
	}

	r.discovering = true
	r.stop = make(chan struct{})
	r.exited = make(chan struct{})
	r.wg.Add(1)
	go r.run(r.stop, r.exited)
	return nil
}

// CancelDiscovery implements discovery.Radio. It returns once the running
// discovery has queued its DiscoveryFinished event, so a following
// StartDiscovery never interleaves with it.
func (r *Radio) CancelDiscovery() error {
	r.mu.Lock()
	if !r.discovering {
		r.mu.Unlock()
		return nil
	}
	close(r.stop)
	exited := r.exited
	r.mu.Unlock()

	<-exited
	return nil
}

// Events implements discovery.Radio.
func (r *Radio) Events() <-chan discovery.Event {
	return r.events
}

// Emit injects an event as if the platform had sent it. It must not be
// called after Close.
func (r *Radio) Emit(ev discovery.Event) {
	r.send(ev, nil)
}

// Close stops any discovery and closes the event channel.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	close(r.events)
	return nil
}

func (r *Radio) run(stop, exited chan struct{}) {
	defer r.wg.Done()
	defer close(exited)
	defer r.finish()

	r.send(discovery.Started(), nil)

	var deadline <-chan time.Time
	if r.opts.Duration > 0 {
		timer := time.NewTimer(r.opts.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for _, dev := range r.opts.Devices {
		if !r.wait(r.opts.Interval, stop, deadline) {
			return
		}
		r.send(discovery.Found(dev), stop)
	}

	select {
	case <-stop:
	case <-deadline:
	case <-r.done:
	}
}

// wait sleeps for d and reports whether discovery is still running.
func (r *Radio) wait(d time.Duration, stop <-chan struct{}, deadline <-chan time.Time) bool {
	var tick <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		tick = t.C
	} else {
		closed := make(chan time.Time)
		close(closed)
		tick = closed
	}
	select {
	case <-stop:
		return false
	case <-r.done:
		return false
	default:
	}
	select {
	case <-tick:
		return true
	case <-stop:
	case <-deadline:
	case <-r.done:
	}
	return false
}

func (r *Radio) finish() {
	r.mu.Lock()
	r.discovering = false
	r.stop = nil
	r.mu.Unlock()

	select {
	case r.events <- discovery.Finished():
	case <-r.done:
	default:
	}
}

// send delivers ev unless stop or Close intervenes first.
func (r *Radio) send(ev discovery.Event, stop <-chan struct{}) {
	select {
	case r.events <- ev:
	case <-stop:
	case <-r.done:
	}
}
