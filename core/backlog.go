package core

import "pkt.systems/sessiond/schema"

// backlog retains the most recent output records of a session for replay to
// late subscribers. When full, the oldest records are evicted. Callers
// synchronize access.
type backlog struct {
	capacity int
	records  []schema.OutputRecord
}

func newBacklog(capacity int) *backlog {
	if capacity <= 0 {
		capacity = schema.DefaultBacklogCapacity
	}
	return &backlog{capacity: capacity}
}

// Append adds one record, evicting from the front when over capacity.
func (b *backlog) Append(record schema.OutputRecord) {
	b.records = append(b.records, record)
	if len(b.records) > b.capacity {
		trim := len(b.records) - b.capacity
		b.records = append([]schema.OutputRecord(nil), b.records[trim:]...)
	}
}

// Snapshot returns a copy of the retained records in order.
func (b *backlog) Snapshot() []schema.OutputRecord {
	out := make([]schema.OutputRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Len reports the number of retained records.
func (b *backlog) Len() int {
	return len(b.records)
}
