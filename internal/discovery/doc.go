// Package discovery provides the scan lifecycle and device list for btscanner.
//
// A discovery session finds nearby Bluetooth peripherals through a Radio,
// merges the asynchronous discovery events into a deduplicated, first-seen
// ordered Registry, and derives the presentation of each entry.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         Controller                               │
//	│                                                                  │
//	│   Start / Stop / Pause / Reconcile        Handle(Event)          │
//	│          │                                     ▲                 │
//	│          ▼                                     │                 │
//	│   ┌──────────────┐                     ┌──────────────┐          │
//	│   │    Radio     │── Events() ────────▶│   Registry   │          │
//	│   │ (injected)   │                     │ (AddIfNew)   │          │
//	│   └──────────────┘                     └──────────────┘          │
//	│                                               │                  │
//	└───────────────────────────────────────────────│──────────────────┘
//	                                                ▼
//	                                   Caption / BondMarker / Row
//
// # Key Types
//
//   - DeviceRecord: identity (address) and display attributes of one peripheral
//   - Registry: ordered, deduplicated collection of DeviceRecord
//   - Controller: Idle/Scanning state machine mediating with the Radio
//   - Radio: the platform capability (BlueZ, LE stack, fake)
//   - Menu: Scan/Stop/About visibility derived from permissions and state
//
// # Thread Safety
//
// Controller and Registry are NOT safe for concurrent use. They are confined
// to a single dispatch goroutine (see internal/session), which also drains
// the Radio event channel. Observers are called on that goroutine.
package discovery
