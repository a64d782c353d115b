package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/cloudsync/internal/codec"
	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/internal/statestore"
	"github.com/MKhiriev/cloudsync/models"
)

func TestSyncJob_PeriodicSyncPublishesReports(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, statestore.NewMemory())
	f.provisioned()

	doc := models.NewDocument("periodic", "body")
	rec, err := codec.NewJSON(codec.DocumentType()).Encode(doc)
	require.NoError(t, err)

	// every tick starts from scratch: the job must not commit the cursor
	f.executor.EXPECT().
		FetchDelta(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, since models.ChangeToken, fn func(remote.DeltaEvent) error) (models.ChangeToken, error) {
			assert.True(t, since.IsZero())
			require.NoError(t, fn(remote.DeltaEvent{Changed: &rec}))
			return "t1", nil
		}).
		MinTimes(1)

	job := NewSyncJob(f.engine)
	job.Start(ctx, 10*time.Millisecond)
	defer job.Stop()

	changes := waitForChanges(t, f.engine)
	require.Len(t, changes.PulledUpdates, 1)
	assert.Equal(t, doc.ID, changes.PulledUpdates[0].EntityID())
}

func TestSyncJob_StopIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, statestore.NewMemory())

	job := NewSyncJob(f.engine)
	job.Stop()

	job.Start(context.Background(), time.Hour)
	job.Stop()
	job.Stop()
}
