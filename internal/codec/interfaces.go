// Package codec translates between typed local entities and the wire
// records the remote store holds. The engine depends only on the Codec
// interface; the JSON field-table implementation in this package is the
// reference translation used by the daemon and the tests.
package codec

import (
	"errors"

	"github.com/MKhiriev/cloudsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/codec_mock.go -package=mock

var (
	ErrEncode = errors.New("encode entity")
	ErrDecode = errors.New("decode record")
)

// Codec is a lossless round-trip between entities and remote records.
// decode(encode(e)) must reproduce every field the merge function can
// produce, including explicit absence; the engine's conflict resolution
// depends on it.
type Codec interface {
	// Encode converts an entity to its wire record, carrying the
	// entity's identifier and last-known change tag.
	Encode(e models.Entity) (models.RemoteRecord, error)

	// Decode converts a wire record back into a typed entity.
	Decode(rec models.RemoteRecord) (models.Entity, error)

	// RecordType names the managed record type. Pull reconciliation
	// filters deletions of foreign types with it.
	RecordType() string
}
