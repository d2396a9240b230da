package discovery

// Registry is the ordered, deduplicated device collection of one session.
//
// Entries keep first-seen order and addresses are unique. The registry is
// owned by the Controller; the presentation layer only ever sees copies.
//
// Thread Safety: not safe for concurrent use, see the package documentation.
type Registry struct {
	records []DeviceRecord
	index   map[string]int // address -> position in records
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// AddIfNew appends rec when no entry shares its address.
// It returns true if an insertion happened. A known address is left as it
// was first seen; a later name or bond state is not applied.
func (r *Registry) AddIfNew(rec DeviceRecord) bool {
	if _, exists := r.index[rec.Address]; exists {
		return false
	}
	r.index[rec.Address] = len(r.records)
	r.records = append(r.records, rec.clone())
	return true
}

// Clear removes all entries.
func (r *Registry) Clear() {
	r.records = nil
	r.index = make(map[string]int)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.records)
}

// At returns the entry at position i in first-seen order.
func (r *Registry) At(i int) (DeviceRecord, bool) {
	if i < 0 || i >= len(r.records) {
		return DeviceRecord{}, false
	}
	return r.records[i].clone(), true
}

// Lookup returns the entry with the given address.
func (r *Registry) Lookup(address string) (DeviceRecord, bool) {
	i, ok := r.index[address]
	if !ok {
		return DeviceRecord{}, false
	}
	return r.records[i].clone(), true
}

// Snapshot returns a copy of all entries in first-seen order.
// The returned slice is safe to retain and modify.
func (r *Registry) Snapshot() []DeviceRecord {
	out := make([]DeviceRecord, len(r.records))
	for i := range r.records {
		out[i] = r.records[i].clone()
	}
	return out
}

// Restore replaces the contents with records, keeping their order.
// If records repeats an address only the first occurrence is kept.
func (r *Registry) Restore(records []DeviceRecord) {
	r.Clear()
	for _, rec := range records {
		r.AddIfNew(rec)
	}
}
