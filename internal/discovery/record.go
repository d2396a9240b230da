package discovery

// DeviceRecord is the identity and display attributes of one discovered peripheral.
//
// Two records with equal Address are the same logical device. Name and Bonded
// may differ between sightings without changing identity.
type DeviceRecord struct {
	// Address is the hardware identifier (e.g. "00:11:22:AA:BB:CC").
	Address string `json:"address"`

	// Name is the remote name, nil when the peripheral did not report one.
	Name *string `json:"name,omitempty"`

	// Bonded reports whether the device is already paired with this host.
	Bonded bool `json:"bonded"`
}

// NewDeviceRecord builds a record. An empty name is stored as absent.
func NewDeviceRecord(address, name string, bonded bool) DeviceRecord {
	rec := DeviceRecord{Address: address, Bonded: bonded}
	if name != "" {
		rec.Name = &name
	}
	return rec
}

// HasName reports whether the record carries a present, non-empty name.
func (r DeviceRecord) HasName() bool {
	return r.Name != nil && *r.Name != ""
}

// clone returns a copy that shares no pointers with r.
func (r DeviceRecord) clone() DeviceRecord {
	cpy := r
	if r.Name != nil {
		name := *r.Name
		cpy.Name = &name
	}
	return cpy
}
