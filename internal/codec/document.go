package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MKhiriev/cloudsync/models"
)

// document guards the field table against foreign entity types: a
// mistyped entity encodes to an error, never a panic.
func document(e models.Entity) (*models.Document, error) {
	doc, ok := e.(*models.Document)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a document", e.EntityID())
	}
	return doc, nil
}

// DocumentType is the field table for models.Document. Notes encodes a
// nil pointer as explicit absence, so clearing the annotation on one
// device propagates instead of leaving the old value on the server.
func DocumentType() Type {
	return Type{
		Name: "document",
		New: func(id models.RecordID) models.Entity {
			return &models.Document{ID: id}
		},
		Tag: func(e models.Entity) models.ChangeTag {
			if doc, ok := e.(*models.Document); ok {
				return doc.Tag
			}
			return ""
		},
		SetTag: func(e models.Entity, tag models.ChangeTag) {
			if doc, ok := e.(*models.Document); ok {
				doc.Tag = tag
			}
		},
		Fields: []FieldSpec{
			{
				Name: "title",
				Encode: func(e models.Entity) (json.RawMessage, error) {
					doc, err := document(e)
					if err != nil {
						return nil, err
					}
					return json.Marshal(doc.Title)
				},
				Decode: func(e models.Entity, value json.RawMessage) error {
					if value == nil {
						e.(*models.Document).Title = ""
						return nil
					}
					return json.Unmarshal(value, &e.(*models.Document).Title)
				},
			},
			{
				Name: "body",
				Encode: func(e models.Entity) (json.RawMessage, error) {
					doc, err := document(e)
					if err != nil {
						return nil, err
					}
					return json.Marshal(doc.Body)
				},
				Decode: func(e models.Entity, value json.RawMessage) error {
					if value == nil {
						e.(*models.Document).Body = ""
						return nil
					}
					return json.Unmarshal(value, &e.(*models.Document).Body)
				},
			},
			{
				Name: "notes",
				Encode: func(e models.Entity) (json.RawMessage, error) {
					doc, err := document(e)
					if err != nil {
						return nil, err
					}
					if doc.Notes == nil {
						return nil, nil
					}
					return json.Marshal(*doc.Notes)
				},
				Decode: func(e models.Entity, value json.RawMessage) error {
					doc := e.(*models.Document)
					if value == nil {
						doc.Notes = nil
						return nil
					}
					var notes string
					if err := json.Unmarshal(value, &notes); err != nil {
						return err
					}
					doc.Notes = &notes
					return nil
				},
			},
			{
				Name: "modified",
				Encode: func(e models.Entity) (json.RawMessage, error) {
					doc, err := document(e)
					if err != nil {
						return nil, err
					}
					return json.Marshal(doc.Modified.UTC().Format(time.RFC3339Nano))
				},
				Decode: func(e models.Entity, value json.RawMessage) error {
					doc := e.(*models.Document)
					if value == nil {
						doc.Modified = time.Time{}
						return nil
					}
					var text string
					if err := json.Unmarshal(value, &text); err != nil {
						return err
					}
					parsed, err := time.Parse(time.RFC3339Nano, text)
					if err != nil {
						return err
					}
					doc.Modified = parsed
					return nil
				},
			},
		},
	}
}
