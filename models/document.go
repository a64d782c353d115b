package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is the record type the syncd daemon manages: a titled note
// with an optional free-form annotation. It doubles as the reference
// Entity implementation for the engine's tests.
type Document struct {
	ID       RecordID
	Title    string
	Body     string
	Notes    *string
	Modified time.Time

	// Tag is the last-known server change tag, carried across the
	// codec round trip for optimistic concurrency.
	Tag ChangeTag
}

// NewDocument creates a Document with a fresh identifier.
func NewDocument(title, body string) *Document {
	return &Document{
		ID:       RecordID(uuid.NewString()),
		Title:    title,
		Body:     body,
		Modified: time.Now().UTC(),
	}
}

// EntityID implements Entity.
func (d *Document) EntityID() RecordID { return d.ID }

// Resolve implements Entity with last-writer-wins semantics: the
// version with the later Modified timestamp survives, the server's
// version winning ties.
func (d *Document) Resolve(other Entity) Entity {
	o, ok := other.(*Document)
	if !ok {
		return nil
	}

	if d.Modified.After(o.Modified) {
		merged := *d
		return &merged
	}
	merged := *o
	return &merged
}
