package session

import (
	"fmt"

	"github.com/nerrad567/btscanner/internal/discovery"
)

// UpdateKind identifies what changed.
type UpdateKind string

// Update kinds.
const (
	UpdateState       UpdateKind = "state"
	UpdateProgress    UpdateKind = "progress"
	UpdateDeviceAdded UpdateKind = "device_added"
	UpdateNotice      UpdateKind = "notice"
	UpdateMenu        UpdateKind = "menu"
	UpdateEnded       UpdateKind = "ended"
)

// Update is one change pushed to subscribers.
type Update struct {
	Kind UpdateKind `json:"kind"`

	State    discovery.State `json:"state,omitempty"`
	Progress bool            `json:"progress,omitempty"`

	// Device, Record and Reveal are set for UpdateDeviceAdded. Reveal is the
	// list position to scroll to.
	Device *discovery.Row          `json:"device,omitempty"`
	Record *discovery.DeviceRecord `json:"record,omitempty"`
	Reveal int                     `json:"reveal,omitempty"`

	Notice *Notice         `json:"notice,omitempty"`
	Menu   *discovery.Menu `json:"menu,omitempty"`
}

// NoticeKind classifies a user-visible notice.
type NoticeKind string

// Notice kinds, one per failure the session reports.
const (
	NoticeRadioUnavailable     NoticeKind = "radio_unavailable"
	NoticeRadioDisabledRefused NoticeKind = "radio_disabled_refused"
	NoticePermissionDenied     NoticeKind = "permission_denied"
	NoticeDiscoveryStartFailed NoticeKind = "discovery_start_failed"
)

// Notice is a short message for the user, shown as a toast.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`

	// Capability names the missing capability for NoticePermissionDenied.
	Capability string `json:"capability,omitempty"`

	// Fatal notices end the session.
	Fatal bool `json:"fatal,omitempty"`
}

func noticeRadioUnavailable() Notice {
	return Notice{Kind: NoticeRadioUnavailable, Message: "Bluetooth is not available", Fatal: true}
}

func noticeRadioDisabledRefused() Notice {
	return Notice{Kind: NoticeRadioDisabledRefused, Message: "Bluetooth must be enabled"}
}

func noticePermissionDenied(capability string) Notice {
	return Notice{
		Kind:       NoticePermissionDenied,
		Message:    fmt.Sprintf("Scanning requires permission %s", capability),
		Capability: capability,
	}
}

func noticeDiscoveryStartFailed() Notice {
	return Notice{Kind: NoticeDiscoveryStartFailed, Message: "Could not start scanning"}
}

// Dialog is a modal title and message, used for item details and About.
type Dialog struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// About is the product identity shown by the About action.
type About struct {
	Name    string
	Message string
}

// Status is a point-in-time view of the session.
type Status struct {
	ID                 string          `json:"id"`
	State              discovery.State `json:"state"`
	Progress           bool            `json:"progress"`
	Devices            int             `json:"devices"`
	Menu               discovery.Menu  `json:"menu"`
	RadioAvailable     bool            `json:"radio_available"`
	RadioEnabled       bool            `json:"radio_enabled"`
	PermissionsGranted bool            `json:"permissions_granted"`
	Missing            []string        `json:"missing,omitempty"`
	Listening          bool            `json:"listening"`
	Ended              bool            `json:"ended"`
}
