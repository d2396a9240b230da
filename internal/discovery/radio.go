package discovery

import "context"

// EventKind identifies a discovery event delivered by a Radio.
type EventKind string

// Discovery event kinds.
const (
	// EventDiscoveryStarted confirms the radio began discovering.
	EventDiscoveryStarted EventKind = "discovery_started"

	// EventDiscoveryFinished reports that discovery ended, either naturally
	// (platform timeout) or after a cancel request.
	EventDiscoveryFinished EventKind = "discovery_finished"

	// EventDeviceFound carries one sighting of a peripheral.
	EventDeviceFound EventKind = "device_found"
)

// Event is a single asynchronous notification from a Radio.
type Event struct {
	Kind EventKind

	// Device is set for EventDeviceFound only.
	Device DeviceRecord
}

// Started returns a DiscoveryStarted event.
func Started() Event { return Event{Kind: EventDiscoveryStarted} }

// Finished returns a DiscoveryFinished event.
func Finished() Event { return Event{Kind: EventDiscoveryFinished} }

// Found returns a DeviceFound event for rec.
func Found(rec DeviceRecord) Event { return Event{Kind: EventDeviceFound, Device: rec} }

// Radio is the platform radio capability consumed by the Controller.
//
// Implementations live under internal/radio (BlueZ over D-Bus, the LE stack,
// and a scripted fake). Discovery is asynchronous: StartDiscovery only asks
// the platform to begin, and the outcome arrives on Events().
type Radio interface {
	// Available reports whether the host has a radio adapter at all.
	Available() bool

	// Enabled reports whether the adapter is powered on.
	Enabled() bool

	// RequestEnable asks the platform to power the adapter on and blocks until
	// the request is answered. It returns false when enabling was refused.
	RequestEnable(ctx context.Context) (bool, error)

	// Discovering reports whether a discovery is in progress right now.
	Discovering() bool

	// StartDiscovery asks the platform to begin discovery.
	StartDiscovery() error

	// CancelDiscovery asks the platform to stop discovery. It is a request;
	// DeviceFound events may still arrive afterwards.
	CancelDiscovery() error

	// Events returns the channel on which discovery events are delivered.
	// The channel is closed when the radio is closed.
	Events() <-chan Event
}
