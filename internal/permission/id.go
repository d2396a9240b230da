package permission

import (
	"fmt"
	"slices"
)

// ID names one platform capability.
type ID string

// Capabilities known to the policy table.
const (
	LocationCoarse     ID = "location.coarse"
	LocationFine       ID = "location.fine"
	BluetoothScan      ID = "bluetooth.scan"
	BluetoothConnect   ID = "bluetooth.connect"
	BluetoothAdvertise ID = "bluetooth.advertise"
)

var knownIDs = []ID{
	LocationCoarse,
	LocationFine,
	BluetoothScan,
	BluetoothConnect,
	BluetoothAdvertise,
}

// ParseID validates a capability name from configuration.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if !slices.Contains(knownIDs, id) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, s)
	}
	return id, nil
}

// Strings converts ids for places that speak plain strings.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
