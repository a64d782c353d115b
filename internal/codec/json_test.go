package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/cloudsync/models"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	c := NewJSON(DocumentType())

	notes := "remember the milk"
	doc := &models.Document{
		ID:       "doc-1",
		Title:    "groceries",
		Body:     "eggs, flour",
		Notes:    &notes,
		Modified: time.Date(2025, 11, 3, 10, 30, 0, 0, time.UTC),
		Tag:      "tag-7",
	}

	rec, err := c.Encode(doc)
	require.NoError(t, err)
	assert.Equal(t, models.RecordID("doc-1"), rec.ID)
	assert.Equal(t, "document", rec.Type)
	assert.Equal(t, models.ChangeTag("tag-7"), rec.ChangeTag)

	decoded, err := c.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestJSONCodec_ExplicitAbsenceRoundTrips(t *testing.T) {
	c := NewJSON(DocumentType())

	doc := &models.Document{ID: "doc-2", Title: "untitled"}
	rec, err := c.Encode(doc)
	require.NoError(t, err)

	// a cleared optional field encodes as explicit absence, not as a
	// missing field
	require.Contains(t, rec.Fields, "notes")
	assert.True(t, rec.Fields["notes"].Absent)

	decoded, err := c.Decode(rec)
	require.NoError(t, err)
	assert.Nil(t, decoded.(*models.Document).Notes)
}

func TestJSONCodec_DecodeBadField(t *testing.T) {
	c := NewJSON(DocumentType())

	rec := models.RemoteRecord{
		ID:   "doc-3",
		Type: "document",
		Fields: map[string]models.FieldValue{
			"title": {Value: []byte(`42`)}, // not a string
		},
	}

	_, err := c.Decode(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestJSONCodec_RecordType(t *testing.T) {
	assert.Equal(t, "document", NewJSON(DocumentType()).RecordType())
}
