package buffer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/cloudsync/internal/statestore"
	"github.com/MKhiriev/cloudsync/models"
)

func record(id models.RecordID, title string) models.RemoteRecord {
	value, _ := json.Marshal(title)
	return models.RemoteRecord{
		ID:   id,
		Type: "document",
		Fields: map[string]models.FieldValue{
			"title": {Value: value},
		},
	}
}

// ── RecordBuffer ─────────────────────────────────────────────────────────────

func TestRecordBuffer_EnqueueLastWriteWins(t *testing.T) {
	ctx := context.Background()
	buf, err := NewRecordBuffer(ctx, statestore.NewMemory(), "zone/pending_upload")
	require.NoError(t, err)

	require.NoError(t, buf.Enqueue(ctx, record("r1", "first"), record("r2", "other")))
	require.NoError(t, buf.Enqueue(ctx, record("r1", "second")))

	drained := buf.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, models.RecordID("r1"), drained[0].ID)
	assert.JSONEq(t, `"second"`, string(drained[0].Fields["title"].Value))
}

func TestRecordBuffer_DrainDoesNotClear(t *testing.T) {
	ctx := context.Background()
	buf, err := NewRecordBuffer(ctx, statestore.NewMemory(), "zone/pending_upload")
	require.NoError(t, err)

	require.NoError(t, buf.Enqueue(ctx, record("r1", "pending")))
	assert.Len(t, buf.Drain(), 1)
	assert.Len(t, buf.Drain(), 1)

	// mutating a drained record must not leak into the buffer
	drained := buf.Drain()
	drained[0].Fields["title"] = models.FieldValue{Absent: true}
	assert.False(t, buf.Drain()[0].Fields["title"].Absent)
}

func TestRecordBuffer_Remove(t *testing.T) {
	ctx := context.Background()
	buf, err := NewRecordBuffer(ctx, statestore.NewMemory(), "zone/pending_upload")
	require.NoError(t, err)

	require.NoError(t, buf.Enqueue(ctx, record("r1", "a"), record("r2", "b")))
	require.NoError(t, buf.Remove(ctx, "r1", "never-enqueued"))

	assert.False(t, buf.Contains("r1"))
	assert.True(t, buf.Contains("r2"))
	assert.Equal(t, 1, buf.Len())
}

func TestRecordBuffer_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	state := statestore.NewMemory()

	buf, err := NewRecordBuffer(ctx, state, "zone/pending_upload")
	require.NoError(t, err)
	require.NoError(t, buf.Enqueue(ctx, record("r1", "durable")))

	// a new buffer over the same store sees the pre-crash contents
	restored, err := NewRecordBuffer(ctx, state, "zone/pending_upload")
	require.NoError(t, err)
	require.Equal(t, 1, restored.Len())
	assert.JSONEq(t, `"durable"`, string(restored.Drain()[0].Fields["title"].Value))
}

// ── IDBuffer ─────────────────────────────────────────────────────────────────

func TestIDBuffer_EnqueueRemoveDrain(t *testing.T) {
	ctx := context.Background()
	buf, err := NewIDBuffer(ctx, statestore.NewMemory(), "zone/pending_delete")
	require.NoError(t, err)

	require.NoError(t, buf.Enqueue(ctx, "r2", "r1", "r2"))
	assert.Equal(t, []models.RecordID{"r1", "r2"}, buf.Drain())

	require.NoError(t, buf.Remove(ctx, "r1"))
	assert.Equal(t, []models.RecordID{"r2"}, buf.Drain())
	assert.True(t, buf.Contains("r2"))
	assert.False(t, buf.Contains("r1"))
}

func TestIDBuffer_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	state := statestore.NewMemory()

	buf, err := NewIDBuffer(ctx, state, "zone/pending_delete")
	require.NoError(t, err)
	require.NoError(t, buf.Enqueue(ctx, "r1", "r2"))

	restored, err := NewIDBuffer(ctx, state, "zone/pending_delete")
	require.NoError(t, err)
	assert.Equal(t, []models.RecordID{"r1", "r2"}, restored.Drain())
}
