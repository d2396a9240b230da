package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotVersion is the blob format written by EncodeSnapshot.
const SnapshotVersion = 1

// ErrUnsupportedSnapshot is returned when a blob has an unknown version.
var ErrUnsupportedSnapshot = errors.New("discovery: unsupported snapshot version")

type snapshotBlob struct {
	Version int            `json:"version"`
	Devices []DeviceRecord `json:"devices"`
}

// EncodeSnapshot serialises the ordered device list for suspend.
// Scan state is not stored.
func EncodeSnapshot(records []DeviceRecord) ([]byte, error) {
	if records == nil {
		records = []DeviceRecord{}
	}
	data, err := json.Marshal(snapshotBlob{Version: SnapshotVersion, Devices: records})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a blob written by EncodeSnapshot.
func DecodeSnapshot(data []byte) ([]DeviceRecord, error) {
	var blob snapshotBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if blob.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, blob.Version)
	}
	for i, rec := range blob.Devices {
		if rec.Address == "" {
			return nil, fmt.Errorf("decoding snapshot: device %d has no address", i)
		}
	}
	return blob.Devices, nil
}
