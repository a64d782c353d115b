// Package resolve merges a rejected client record with the remote
// store's current version so the push reconciler can resubmit it.
package resolve

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/cloudsync/internal/codec"
	"github.com/MKhiriev/cloudsync/models"
)

// ErrUnresolvedConflict means the entity's merge function declined to
// produce a merged version. Fatal: the push surfaces it to the caller.
var ErrUnresolvedConflict = errors.New("conflict could not be resolved")

// Resolver turns a conflict into a resubmittable record via the
// entity's own merge function.
type Resolver struct {
	codec codec.Codec
}

// NewResolver constructs a Resolver using the given codec for both
// sides of the merge.
func NewResolver(c codec.Codec) *Resolver {
	return &Resolver{codec: c}
}

// Resolve decodes both versions, invokes the client entity's merge
// function against the server version, and re-encodes the result.
//
// The returned record always carries the SERVER's identifier and change
// tag: resubmitting with the client's stale tag would conflict again on
// every attempt. When serverRec is zero (the store has no prior state,
// the degenerate "already exists" case) the client version is the merge
// base directly. The result includes every field the merge produced,
// including fields that became absent, so resubmission cannot silently
// preserve a stale remote value.
func (r *Resolver) Resolve(clientRec, serverRec models.RemoteRecord) (models.RemoteRecord, error) {
	clientEntity, err := r.codec.Decode(clientRec)
	if err != nil {
		return models.RemoteRecord{}, fmt.Errorf("decode client version: %w", err)
	}

	merged := clientEntity
	if !serverRec.IsZero() {
		serverEntity, err := r.codec.Decode(serverRec)
		if err != nil {
			return models.RemoteRecord{}, fmt.Errorf("decode server version: %w", err)
		}
		merged = clientEntity.Resolve(serverEntity)
		if merged == nil {
			return models.RemoteRecord{}, fmt.Errorf("%w: record %s", ErrUnresolvedConflict, clientRec.ID)
		}
	}

	resolved, err := r.codec.Encode(merged)
	if err != nil {
		return models.RemoteRecord{}, fmt.Errorf("encode merged version: %w", err)
	}

	if !serverRec.IsZero() {
		resolved.ID = serverRec.ID
		resolved.ChangeTag = serverRec.ChangeTag
	}
	return resolved, nil
}
