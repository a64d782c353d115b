package codec

import (
	"encoding/json"
	"fmt"

	"github.com/MKhiriev/cloudsync/models"
)

// FieldSpec describes one field of an entity type: how to read it for
// encoding and how to write it back on decode. Encode returning a nil
// value marks the field explicitly absent; Decode receives nil for an
// absent field. This explicit table replaces runtime introspection —
// every syncable field is enumerated exactly once per type.
type FieldSpec struct {
	Name   string
	Encode func(e models.Entity) (json.RawMessage, error)
	Decode func(e models.Entity, value json.RawMessage) error
}

// Type describes one entity type to the JSON codec.
type Type struct {
	// Name is the remote record type the entities map to.
	Name string

	// New constructs an empty entity carrying the given identifier,
	// ready for field decoding.
	New func(id models.RecordID) models.Entity

	// Tag and SetTag carry the last-known server change tag across the
	// round trip so a resubmission presents the tag the store expects.
	Tag    func(e models.Entity) models.ChangeTag
	SetTag func(e models.Entity, tag models.ChangeTag)

	// Fields is the complete field table of the type.
	Fields []FieldSpec
}

type jsonCodec struct {
	typ Type
}

// NewJSON returns a Codec driven by the given type's field table.
func NewJSON(typ Type) Codec {
	return &jsonCodec{typ: typ}
}

func (c *jsonCodec) RecordType() string { return c.typ.Name }

func (c *jsonCodec) Encode(e models.Entity) (models.RemoteRecord, error) {
	rec := models.RemoteRecord{
		ID:     e.EntityID(),
		Type:   c.typ.Name,
		Fields: make(map[string]models.FieldValue, len(c.typ.Fields)),
	}
	if c.typ.Tag != nil {
		rec.ChangeTag = c.typ.Tag(e)
	}

	for _, spec := range c.typ.Fields {
		value, err := spec.Encode(e)
		if err != nil {
			return models.RemoteRecord{}, fmt.Errorf("%w %s: field %s: %v", ErrEncode, e.EntityID(), spec.Name, err)
		}
		if value == nil {
			rec.Fields[spec.Name] = models.FieldValue{Absent: true}
			continue
		}
		rec.Fields[spec.Name] = models.FieldValue{Value: value}
	}
	return rec, nil
}

func (c *jsonCodec) Decode(rec models.RemoteRecord) (models.Entity, error) {
	e := c.typ.New(rec.ID)

	for _, spec := range c.typ.Fields {
		fv, ok := rec.Fields[spec.Name]
		if !ok || fv.Absent {
			if err := spec.Decode(e, nil); err != nil {
				return nil, fmt.Errorf("%w %s: field %s: %v", ErrDecode, rec.ID, spec.Name, err)
			}
			continue
		}
		if err := spec.Decode(e, fv.Value); err != nil {
			return nil, fmt.Errorf("%w %s: field %s: %v", ErrDecode, rec.ID, spec.Name, err)
		}
	}

	if c.typ.SetTag != nil {
		c.typ.SetTag(e, rec.ChangeTag)
	}
	return e, nil
}
