package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MKhiriev/cloudsync/internal/codec"
	"github.com/MKhiriev/cloudsync/internal/logger"
	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/internal/retry"
	"github.com/MKhiriev/cloudsync/internal/token"
	"github.com/MKhiriev/cloudsync/models"
)

// ErrPullRestartsExhausted is surfaced when a delta fetch kept failing
// retryably past the configured restart budget.
var ErrPullRestartsExhausted = errors.New("pull restarts exhausted")

// puller performs one paginated delta fetch against the remote store.
// Runs only on the engine work queue.
type puller struct {
	executor remote.Executor
	codec    codec.Codec
	tokens   *token.Store
	log      *logger.Logger

	maxRestarts int
	sleep       func(context.Context, time.Duration) error

	onZoneGone func()
}

// accumulator gathers one fetch's worth of delta events in memory.
// Repeated changes to one identifier collapse to the latest; a change
// following a delete (or the reverse) keeps only the later intent.
// Intermediate token updates are held here and never persisted.
type accumulator struct {
	changed map[models.RecordID]models.RemoteRecord
	order   []models.RecordID
	deleted map[models.RecordID]struct{}

	recordType string
	lastToken  models.ChangeToken
}

func newAccumulator(recordType string) *accumulator {
	return &accumulator{
		changed:    make(map[models.RecordID]models.RemoteRecord),
		deleted:    make(map[models.RecordID]struct{}),
		recordType: recordType,
	}
}

func (a *accumulator) apply(ev remote.DeltaEvent) error {
	switch {
	case ev.Changed != nil:
		if ev.Changed.Type != a.recordType {
			return nil
		}
		if _, seen := a.changed[ev.Changed.ID]; !seen {
			a.order = append(a.order, ev.Changed.ID)
		}
		a.changed[ev.Changed.ID] = *ev.Changed
		delete(a.deleted, ev.Changed.ID)

	case ev.DeletedID != "":
		// Deletions of foreign record types belong to other engines
		// sharing the zone.
		if ev.DeletedType != a.recordType {
			return nil
		}
		a.deleted[ev.DeletedID] = struct{}{}
		if _, seen := a.changed[ev.DeletedID]; seen {
			// Drop the change AND its order slot: a later change to the
			// same record must re-enter once, not append a duplicate.
			delete(a.changed, ev.DeletedID)
			a.dropFromOrder(ev.DeletedID)
		}

	case ev.Token != nil:
		a.lastToken = *ev.Token
	}
	return nil
}

func (a *accumulator) dropFromOrder(id models.RecordID) {
	for i, other := range a.order {
		if other == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// pull runs the fetch state machine: start from the committed token,
// accumulate pages, restart from scratch on an expired token, classify
// transient failures, and on completion decode the accumulation into a
// ModelChanges carrying the final cursor.
//
// The returned token is NOT committed here. Committing is the caller's
// explicit action once the changes are durably processed; a crash in
// between re-delivers the same changes instead of losing them.
func (p *puller) pull(ctx context.Context, resetCursor bool) (models.ModelChanges, error) {
	if resetCursor {
		if err := p.tokens.Clear(ctx); err != nil {
			return models.ModelChanges{}, err
		}
	}

	for restart := 0; ; restart++ {
		since, err := p.tokens.Get(ctx)
		if err != nil {
			return models.ModelChanges{}, err
		}

		acc := newAccumulator(p.codec.RecordType())
		final, err := p.executor.FetchDelta(ctx, since, acc.apply)
		if err == nil {
			changes := p.decode(acc)
			changes.Token = &final
			return changes, nil
		}

		if errors.Is(err, remote.ErrZoneNotFound) {
			if p.onZoneGone != nil {
				p.onZoneGone()
			}
			return models.ModelChanges{}, err
		}

		d := retry.Classify(err)
		if !d.Retry {
			// Fatal for this pull; the previously committed token is
			// untouched so the next pull resumes from it.
			return models.ModelChanges{}, err
		}
		if restart >= p.maxRestarts {
			return models.ModelChanges{}, fmt.Errorf("%w: %w", ErrPullRestartsExhausted, err)
		}

		if d.ResetToken {
			// Expired cursor: the whole accumulation is stale. Clear
			// the stored token and refetch everything from scratch.
			p.log.Info().Err(err).Msg("change token expired, restarting full fetch")
			if cErr := p.tokens.Clear(ctx); cErr != nil {
				return models.ModelChanges{}, cErr
			}
		}
		if sErr := p.sleep(ctx, d.Delay); sErr != nil {
			return models.ModelChanges{}, sErr
		}
	}
}

// decode converts the accumulation into pulled change sets. Individual
// decode failures are logged and dropped, never fatal to the pull.
func (p *puller) decode(acc *accumulator) models.ModelChanges {
	var changes models.ModelChanges
	for _, id := range acc.order {
		entity, err := p.codec.Decode(acc.changed[id])
		if err != nil {
			p.log.Warn().Err(err).Str("record", string(id)).Msg("skipping undecodable pulled record")
			continue
		}
		changes.PulledUpdates = append(changes.PulledUpdates, entity)
	}
	for id := range acc.deleted {
		changes.PulledDeletes = append(changes.PulledDeletes, id)
	}
	sortRecordIDs(changes.PulledDeletes)
	return changes
}

func sortRecordIDs(ids []models.RecordID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
