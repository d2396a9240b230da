package discovery

import (
	"fmt"
)

// State is the scan state of a Controller.
type State string

// Scan states. The machine is cyclic; there is no terminal state.
const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
)

// Logger defines the logging interface used by the Controller.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Permissions reports the capabilities a scan requires that are not granted.
// It must answer synchronously; requesting grants is the caller's job.
type Permissions interface {
	Missing() []string
}

// PermissionsFunc adapts an ordinary function to Permissions.
type PermissionsFunc func() []string

// Missing implements Permissions.
func (f PermissionsFunc) Missing() []string { return f() }

// Observer receives Controller notifications on the dispatch goroutine.
type Observer interface {
	// StateChanged is called whenever the scan state changes.
	StateChanged(state State)

	// ProgressChanged toggles the indeterminate progress indicator.
	ProgressChanged(active bool)

	// DeviceAdded is called for each newly inserted record. reveal is the
	// list position the view should scroll to, one past the last row.
	DeviceAdded(rec DeviceRecord, reveal int)
}

// Controller is the scan state machine.
//
// It owns the scan State and the Registry, and mediates with the Radio:
//
//	Idle ──Start()──────────────▶ Scanning
//	Scanning ──DeviceFound──────▶ Scanning  (AddIfNew)
//	Scanning ──DiscoveryFinished▶ Idle
//	Scanning ──Stop()───────────▶ Idle      (registry kept)
//
// Thread Safety: not safe for concurrent use, see the package documentation.
type Controller struct {
	radio       Radio
	permissions Permissions
	registry    *Registry
	state       State
	progress    bool
	observers   []Observer
	logger      Logger
}

// NewController creates a controller in the Idle state with an empty registry.
func NewController(radio Radio, permissions Permissions) *Controller {
	return &Controller{
		radio:       radio,
		permissions: permissions,
		registry:    NewRegistry(),
		state:       StateIdle,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// AddObserver registers an observer for state, progress and device notifications.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// State returns the current scan state.
func (c *Controller) State() State {
	return c.state
}

// Progress reports whether the progress indicator is on.
func (c *Controller) Progress() bool {
	return c.progress
}

// Devices returns a copy of the registry in first-seen order.
func (c *Controller) Devices() []DeviceRecord {
	return c.registry.Snapshot()
}

// Lookup returns the registry entry for address.
func (c *Controller) Lookup(address string) (DeviceRecord, bool) {
	return c.registry.Lookup(address)
}

// Start begins a new scan.
//
// Preconditions are checked in order: radio present, permissions granted,
// radio enabled. A failed precondition leaves the state untouched and returns
// ErrRadioUnavailable, a *PermissionDeniedError or ErrRadioDisabled.
//
// On success the registry is cleared and the radio is asked to discover. A
// discovery already in progress on the radio is cancelled first so two are
// never running at once. If the radio refuses to start, the error wraps
// ErrDiscoveryStartFailed and the state stays Idle.
//
// Start while Scanning is a no-op: the running scan and its devices are kept.
func (c *Controller) Start() error {
	if c.state == StateScanning {
		c.logger.Debug("scan already running")
		return nil
	}
	if !c.radio.Available() {
		return ErrRadioUnavailable
	}
	if missing := c.permissions.Missing(); len(missing) > 0 {
		return &PermissionDeniedError{Missing: missing}
	}
	if !c.radio.Enabled() {
		return ErrRadioDisabled
	}

	c.logger.Debug("starting scan", "previous_devices", c.registry.Len())
	c.registry.Clear()

	if c.radio.Discovering() {
		c.logger.Debug("cancelling discovery already in progress")
		if err := c.radio.CancelDiscovery(); err != nil {
			c.logger.Warn("cancel before start failed", "error", err)
		}
	}

	if err := c.radio.StartDiscovery(); err != nil {
		c.logger.Warn("radio refused to start discovery", "error", err)
		c.setState(StateIdle)
		return fmt.Errorf("%w: %w", ErrDiscoveryStartFailed, err)
	}

	c.setState(StateScanning)
	c.logger.Info("scan started")
	return nil
}

// Stop ends a scan at the user's request. Found devices stay in the registry.
// It is a no-op when Idle.
func (c *Controller) Stop() {
	if c.state != StateScanning {
		return
	}
	if err := c.radio.CancelDiscovery(); err != nil {
		c.logger.Warn("cancel discovery failed", "error", err)
	}
	c.setState(StateIdle)
	c.logger.Info("scan stopped", "devices", c.registry.Len())
}

// Pause is called when the screen goes to the background. A running
// discovery is cancelled, but the state is left for the next
// DiscoveryFinished event or Reconcile to settle.
func (c *Controller) Pause() {
	if c.state != StateScanning {
		return
	}
	if err := c.radio.CancelDiscovery(); err != nil {
		c.logger.Warn("cancel discovery on pause failed", "error", err)
	}
}

// Reconcile re-derives state and progress from the radio's live discovery flag.
func (c *Controller) Reconcile() {
	discovering := c.radio.Available() && c.radio.Discovering()
	if discovering {
		c.setState(StateScanning)
	} else {
		c.setState(StateIdle)
	}
	c.setProgress(discovering)
}

// Restore rebuilds the registry from a saved snapshot and reconciles the state.
// Scan state is never restored from the snapshot.
func (c *Controller) Restore(records []DeviceRecord) {
	c.registry.Restore(records)
	c.logger.Info("device list restored", "devices", c.registry.Len())
	c.Reconcile()
}

// Handle applies one radio event.
//
// DeviceFound is processed in every state: a cancel is only a request, and
// sightings that arrive after it are still merged.
func (c *Controller) Handle(ev Event) {
	switch ev.Kind {
	case EventDiscoveryStarted:
		c.logger.Debug("discovery started")
		c.setState(StateScanning)
		c.setProgress(true)

	case EventDiscoveryFinished:
		c.logger.Debug("discovery finished", "devices", c.registry.Len())
		c.setState(StateIdle)
		c.setProgress(false)

	case EventDeviceFound:
		if !c.registry.AddIfNew(ev.Device) {
			return
		}
		c.logger.Debug("device found", "address", ev.Device.Address, "bonded", ev.Device.Bonded)
		reveal := c.registry.Len()
		for _, o := range c.observers {
			o.DeviceAdded(ev.Device.clone(), reveal)
		}

	default:
		c.logger.Warn("ignoring unknown radio event", "kind", ev.Kind)
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	for _, o := range c.observers {
		o.StateChanged(s)
	}
}

func (c *Controller) setProgress(active bool) {
	if c.progress == active {
		return
	}
	c.progress = active
	for _, o := range c.observers {
		o.ProgressChanged(active)
	}
}
