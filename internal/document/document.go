// Package document defines the collection document shape shared by every
// dataset the store manages, and the codec that moves it in and out of the
// raw blob payload.
package document

import "time"

// SchemaVersion is the version label written into every document's metadata.
const SchemaVersion = "1.0"

// Record is the capability set every stored record must provide. The
// collection only ever addresses records by id; tombstoned records stay in
// the array but are excluded from the live count.
type Record interface {
	RecordID() string
	Tombstoned() bool
}

// Metadata is the header block of a collection document. TotalCount is
// derived at encode time and never trusted as input.
type Metadata struct {
	LastUpdated time.Time `json:"last_updated"`
	TotalCount  int       `json:"total_count"`
	Version     string    `json:"version"`
}

// Collection is a decoded document: a metadata header plus an ordered
// sequence of records. Insertion order is preserved but carries no meaning.
type Collection[R Record] struct {
	Metadata Metadata `json:"metadata"`
	Records  []R      `json:"records"`
}

// Empty returns the bootstrap document used when the backing blob does not
// exist yet.
func Empty[R Record]() *Collection[R] {
	return &Collection[R]{
		Metadata: Metadata{Version: SchemaVersion},
		Records:  []R{},
	}
}

// Find returns the index of the record with the given id, or false when no
// record matches. Lookup is a linear scan; documents are small by design.
func (c *Collection[R]) Find(id string) (int, bool) {
	for i := range c.Records {
		if c.Records[i].RecordID() == id {
			return i, true
		}
	}
	return 0, false
}

// Append adds a record to the end of the sequence.
func (c *Collection[R]) Append(rec R) {
	c.Records = append(c.Records, rec)
}

// RemoveAt physically splices a record out of the sequence. This is the
// hard-delete path; ordinary deletion tombstones the record instead.
func (c *Collection[R]) RemoveAt(i int) {
	c.Records = append(c.Records[:i], c.Records[i+1:]...)
}

// LiveCount counts records that are not tombstoned.
func (c *Collection[R]) LiveCount() int {
	n := 0
	for i := range c.Records {
		if !c.Records[i].Tombstoned() {
			n++
		}
	}
	return n
}
