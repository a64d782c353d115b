// Package buffer implements the durable pending-change buffers: keyed
// queues of records awaiting upload and identifiers awaiting deletion.
//
// Every mutation persists the full buffer synchronously before
// returning, so a crash immediately after a call leaves the buffer in
// the post-call state, never a partially written one. Entries are
// removed only after the remote store confirms the corresponding
// operation succeeded or definitively rejected the item as unknown.
package buffer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MKhiriev/cloudsync/internal/statestore"
	"github.com/MKhiriev/cloudsync/models"
)

// RecordBuffer is the upload buffer: a persisted map from record ID to
// the encoded record awaiting transmission. Last write wins per ID.
// Mutated only from the engine work queue; no internal locking.
type RecordBuffer struct {
	state statestore.StateStore
	key   string

	records map[models.RecordID]models.RemoteRecord
}

// NewRecordBuffer loads the buffer persisted under key, restoring any
// entries a previous process left behind.
func NewRecordBuffer(ctx context.Context, state statestore.StateStore, key string) (*RecordBuffer, error) {
	b := &RecordBuffer{
		state:   state,
		key:     key,
		records: make(map[models.RecordID]models.RemoteRecord),
	}

	value, ok, err := state.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load record buffer %q: %w", key, err)
	}
	if ok {
		if err = json.Unmarshal(value, &b.records); err != nil {
			return nil, fmt.Errorf("decode record buffer %q: %w", key, err)
		}
	}
	return b, nil
}

// Enqueue merges records into the buffer, replacing any pending revision
// of the same ID, then persists.
func (b *RecordBuffer) Enqueue(ctx context.Context, records ...models.RemoteRecord) error {
	for _, rec := range records {
		b.records[rec.ID] = rec.Clone()
	}
	return b.persist(ctx)
}

// Remove strips the given identifiers from the buffer, then persists.
// Missing identifiers are ignored.
func (b *RecordBuffer) Remove(ctx context.Context, ids ...models.RecordID) error {
	removed := false
	for _, id := range ids {
		if _, ok := b.records[id]; ok {
			delete(b.records, id)
			removed = true
		}
	}
	if !removed {
		return nil
	}
	return b.persist(ctx)
}

// Drain returns the current contents in stable ID order without
// clearing them; clearing happens only on confirmed remote success.
func (b *RecordBuffer) Drain() []models.RemoteRecord {
	out := make([]models.RemoteRecord, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contains reports whether id has a pending entry.
func (b *RecordBuffer) Contains(id models.RecordID) bool {
	_, ok := b.records[id]
	return ok
}

// Len returns the number of pending entries.
func (b *RecordBuffer) Len() int { return len(b.records) }

func (b *RecordBuffer) persist(ctx context.Context) error {
	value, err := json.Marshal(b.records)
	if err != nil {
		return fmt.Errorf("encode record buffer %q: %w", b.key, err)
	}
	if err = b.state.Set(ctx, b.key, value); err != nil {
		return fmt.Errorf("persist record buffer %q: %w", b.key, err)
	}
	return nil
}

// IDBuffer is the delete buffer: a persisted set of record identifiers
// awaiting deletion. Same durability contract as RecordBuffer.
type IDBuffer struct {
	state statestore.StateStore
	key   string

	ids map[models.RecordID]struct{}
}

// NewIDBuffer loads the ID set persisted under key.
func NewIDBuffer(ctx context.Context, state statestore.StateStore, key string) (*IDBuffer, error) {
	b := &IDBuffer{
		state: state,
		key:   key,
		ids:   make(map[models.RecordID]struct{}),
	}

	value, ok, err := state.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load id buffer %q: %w", key, err)
	}
	if ok {
		var stored []models.RecordID
		if err = json.Unmarshal(value, &stored); err != nil {
			return nil, fmt.Errorf("decode id buffer %q: %w", key, err)
		}
		for _, id := range stored {
			b.ids[id] = struct{}{}
		}
	}
	return b, nil
}

// Enqueue adds identifiers to the set, then persists.
func (b *IDBuffer) Enqueue(ctx context.Context, ids ...models.RecordID) error {
	for _, id := range ids {
		b.ids[id] = struct{}{}
	}
	return b.persist(ctx)
}

// Remove strips identifiers from the set, then persists.
func (b *IDBuffer) Remove(ctx context.Context, ids ...models.RecordID) error {
	removed := false
	for _, id := range ids {
		if _, ok := b.ids[id]; ok {
			delete(b.ids, id)
			removed = true
		}
	}
	if !removed {
		return nil
	}
	return b.persist(ctx)
}

// Drain returns the current identifiers in stable order without
// clearing them.
func (b *IDBuffer) Drain() []models.RecordID {
	out := make([]models.RecordID, 0, len(b.ids))
	for id := range b.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether id is pending deletion.
func (b *IDBuffer) Contains(id models.RecordID) bool {
	_, ok := b.ids[id]
	return ok
}

// Len returns the number of pending identifiers.
func (b *IDBuffer) Len() int { return len(b.ids) }

func (b *IDBuffer) persist(ctx context.Context) error {
	value, err := json.Marshal(b.Drain())
	if err != nil {
		return fmt.Errorf("encode id buffer %q: %w", b.key, err)
	}
	if err = b.state.Set(ctx, b.key, value); err != nil {
		return fmt.Errorf("persist id buffer %q: %w", b.key, err)
	}
	return nil
}
