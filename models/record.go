package models

import (
	"bytes"
	"encoding/json"
)

// RecordID identifies a record in the remote store. It is stable across
// devices: the same logical entity always maps to the same RecordID.
type RecordID string

// ChangeTag is the opaque optimistic-concurrency token the remote store
// assigns to every record revision. A modify request carrying a stale tag
// is rejected with a conflict.
type ChangeTag string

// FieldValue is one field of a RemoteRecord. Absent marks a field the
// last write explicitly cleared; it is distinct from the field missing
// from the map entirely, so a merge that removes a value round-trips
// instead of silently preserving the stale remote one.
type FieldValue struct {
	Value  json.RawMessage `json:"value,omitempty"`
	Absent bool            `json:"absent,omitempty"`
}

// Equal reports whether two field values carry the same content.
func (f FieldValue) Equal(other FieldValue) bool {
	if f.Absent != other.Absent {
		return false
	}
	return bytes.Equal(f.Value, other.Value)
}

// RemoteRecord is the wire form of an entity as known to the remote
// store. The reconcilers treat the field set as opaque; only the ID and
// the ChangeTag are inspected by the sync core.
type RemoteRecord struct {
	ID        RecordID              `json:"id"`
	Type      string                `json:"type"`
	ChangeTag ChangeTag             `json:"change_tag"`
	Fields    map[string]FieldValue `json:"fields"`
}

// IsZero reports whether the record carries no identity, which is how an
// empty ancestor is represented in a degenerate "already exists" conflict.
func (r RemoteRecord) IsZero() bool {
	return r.ID == "" && len(r.Fields) == 0
}

// ChangedFields returns the names of fields whose value differs from
// base, including fields present only on one side. This is the field
// diff used when a resolved record is resubmitted with
// SaveChangedFields.
func (r RemoteRecord) ChangedFields(base RemoteRecord) []string {
	var changed []string
	for name, fv := range r.Fields {
		bv, ok := base.Fields[name]
		if !ok || !fv.Equal(bv) {
			changed = append(changed, name)
		}
	}
	for name := range base.Fields {
		if _, ok := r.Fields[name]; !ok {
			changed = append(changed, name)
		}
	}
	return changed
}

// Clone returns a deep copy of the record. Buffers hand out clones so a
// caller mutating a drained record cannot corrupt the persisted state.
func (r RemoteRecord) Clone() RemoteRecord {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]FieldValue, len(r.Fields))
		for name, fv := range r.Fields {
			if fv.Value != nil {
				fv.Value = append(json.RawMessage(nil), fv.Value...)
			}
			out.Fields[name] = fv
		}
	}
	return out
}

// SavePolicy controls how the remote store applies a modify request.
type SavePolicy int

const (
	// SaveIfUnchanged rejects the write with a conflict when the stored
	// change tag differs from the submitted one. Default for all pushes.
	SaveIfUnchanged SavePolicy = iota

	// SaveChangedFields overwrites only the fields that differ from the
	// submitted base revision. Used when resubmitting a resolved
	// conflict so unrelated concurrent edits survive.
	SaveChangedFields

	// SaveAll unconditionally replaces the stored record.
	SaveAll
)

func (p SavePolicy) String() string {
	switch p {
	case SaveIfUnchanged:
		return "if_unchanged"
	case SaveChangedFields:
		return "changed_fields"
	case SaveAll:
		return "all"
	default:
		return "unknown"
	}
}
