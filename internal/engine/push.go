package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MKhiriev/cloudsync/internal/buffer"
	"github.com/MKhiriev/cloudsync/internal/codec"
	"github.com/MKhiriev/cloudsync/internal/logger"
	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/internal/resolve"
	"github.com/MKhiriev/cloudsync/internal/retry"
	"github.com/MKhiriev/cloudsync/models"
)

// ErrRetriesExhausted is surfaced when a batch stayed retryable past
// the configured attempt budget.
var ErrRetriesExhausted = errors.New("push retries exhausted")

// pusher drains the pending-change buffers against the remote store.
// It runs only on the engine work queue; buffer access is unsynchronized
// by design.
type pusher struct {
	executor remote.Executor
	resolver *resolve.Resolver
	codec    codec.Codec
	uploads  *buffer.RecordBuffer
	deletes  *buffer.IDBuffer
	log      *logger.Logger

	maxRetries int

	// onZoneGone lets the engine invalidate its setup flags when the
	// remote zone vanished mid-push.
	onZoneGone func()
}

// deferredRetry asks the orchestrator to resume a push after a delay.
// The pusher never sleeps on the work queue itself: a long
// store-suggested backoff must not block unrelated operations queued
// behind it.
type deferredRetry struct {
	cause    error
	decision retry.Decision

	// resume continues the push where it left off. It shares the
	// original pushReport, so outcomes accumulate across turns.
	resume func(context.Context) error

	// report produces the operation's combined ModelChanges after
	// resume completes. Set by the operation entry point, not by the
	// submit step that created the retry.
	report func() models.ModelChanges
}

func (d *deferredRetry) Error() string { return d.cause.Error() }

func (d *deferredRetry) Unwrap() error { return d.cause }

// chainResume appends follow-on work to a deferred retry, so steps that
// come after the retried batch still run once it succeeds.
func chainResume(err error, next func(context.Context) error) error {
	var dr *deferredRetry
	if !errors.As(err, &dr) {
		return err
	}
	resume := dr.resume
	dr.resume = func(ctx context.Context) error {
		if rErr := resume(ctx); rErr != nil {
			return chainResume(rErr, next)
		}
		return next(ctx)
	}
	return dr
}

// pushStep runs one push of a multi-step operation, stores its report
// through out, and rewires any deferred retry so resuming refreshes out
// and the retry reports the whole operation through total.
func pushStep(ctx context.Context, push func(context.Context) (models.ModelChanges, error), out *models.ModelChanges, total func() models.ModelChanges) error {
	changes, err := push(ctx)
	*out = changes
	return retargetRetry(err, nil, out, total)
}

func retargetRetry(err error, partial func() models.ModelChanges, out *models.ModelChanges, total func() models.ModelChanges) error {
	var dr *deferredRetry
	if !errors.As(err, &dr) {
		return err
	}
	if dr.report != nil {
		partial = dr.report
	}
	resume := dr.resume
	dr.resume = func(ctx context.Context) error {
		rErr := resume(ctx)
		if partial != nil {
			*out = partial()
		}
		return retargetRetry(rErr, partial, out, total)
	}
	dr.report = total
	return dr
}

// pushReport accumulates per-item outcomes across resubmissions of one
// logical push.
type pushReport struct {
	saved   []models.RemoteRecord
	deleted []models.RecordID
	unknown []models.RecordID
}

// pushUploads submits the upload buffer's current contents.
func (p *pusher) pushUploads(ctx context.Context) (models.ModelChanges, error) {
	return p.push(ctx, pushBatch{save: p.uploads.Drain()})
}

// pushDeletes submits the delete buffer's current contents.
func (p *pusher) pushDeletes(ctx context.Context) (models.ModelChanges, error) {
	return p.push(ctx, pushBatch{del: p.deletes.Drain()})
}

// push submits the batch and reports the accumulated outcomes even on
// failure: items a partial success confirmed have already left the
// buffers, so dropping their report entries would hide the success.
func (p *pusher) push(ctx context.Context, batch pushBatch) (models.ModelChanges, error) {
	if batch.size() == 0 {
		return models.ModelChanges{}, nil
	}

	rep := &pushReport{}
	err := p.submit(ctx, batch, models.SaveIfUnchanged, 0, rep)
	var dr *deferredRetry
	if errors.As(err, &dr) && dr.report == nil {
		dr.report = func() models.ModelChanges { return p.report(rep) }
	}
	return p.report(rep), err
}

// submit sends one batch and applies exactly one outcome. Resubmissions
// (splits, sibling retries, resolved conflicts) recurse with the same
// report so nothing confirmed is double-counted and nothing failed is
// lost silently.
func (p *pusher) submit(ctx context.Context, batch pushBatch, policy models.SavePolicy, attempt int, rep *pushReport) error {
	result, err := p.executor.Modify(ctx, batch.save, batch.del, policy)

	// Partial failures still confirm the items that went through.
	if cErr := p.confirm(ctx, result, rep); cErr != nil {
		return cErr
	}
	if err == nil {
		return nil
	}

	var partial *remote.PartialError
	if errors.As(err, &partial) {
		return p.resolvePartial(ctx, batch, partial, policy, attempt, rep)
	}

	switch {
	case errors.Is(err, remote.ErrZoneNotFound):
		// Structural: the user removed the zone. Never retried, the
		// caller must re-provision.
		if p.onZoneGone != nil {
			p.onZoneGone()
		}
		return err

	case errors.Is(err, remote.ErrLimitExceeded):
		if batch.size() <= 1 {
			return fmt.Errorf("single-record batch rejected: %w", err)
		}
		first, second := batch.split()
		p.log.Debug().Int("total", batch.size()).Int("first", first.size()).Int("second", second.size()).
			Msg("batch limit exceeded, splitting")
		if err = p.submit(ctx, first, policy, 0, rep); err != nil {
			return chainResume(err, func(ctx context.Context) error {
				return p.submit(ctx, second, policy, 0, rep)
			})
		}
		return p.submit(ctx, second, policy, 0, rep)

	case errors.Is(err, remote.ErrUnknownItem):
		// The store knows none of these records: already deleted
		// remotely, nothing to push.
		return p.dropUnknown(ctx, batch.ids(), rep)
	}

	var conflict *remote.ConflictError
	if errors.As(err, &conflict) {
		return p.resubmitResolved(ctx, batch, []*remote.ConflictError{conflict}, attempt, rep)
	}

	if d := retry.Classify(err); d.Retry {
		if attempt >= p.maxRetries {
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}
		return &deferredRetry{
			cause:    err,
			decision: d,
			resume: func(ctx context.Context) error {
				return p.submit(ctx, batch, policy, attempt+1, rep)
			},
		}
	}

	if errors.Is(err, remote.ErrServiceUnavailable) || errors.Is(err, remote.ErrNetworkUnavailable) {
		// Transient: surface, buffers stay intact so the next push
		// retries automatically.
		return err
	}

	// Definitive rejection of unknown shape. Fold the items into the
	// unknown change set rather than losing them silently.
	p.log.Warn().Err(err).Int("items", batch.size()).Msg("batch rejected, reporting items as unknown")
	return p.dropUnknown(ctx, batch.ids(), rep)
}

// resolvePartial classifies every failed item of a mixed batch outcome:
// unknown items are dropped, siblings of failed items are resubmitted
// unchanged, conflicts are merged and resubmitted with a changed-fields
// override.
func (p *pusher) resolvePartial(ctx context.Context, batch pushBatch, partial *remote.PartialError, policy models.SavePolicy, attempt int, rep *pushReport) error {
	saveByID := make(map[models.RecordID]models.RemoteRecord, len(batch.save))
	for _, rec := range batch.save {
		saveByID[rec.ID] = rec
	}
	delSet := make(map[models.RecordID]struct{}, len(batch.del))
	for _, id := range batch.del {
		delSet[id] = struct{}{}
	}

	var resubmit pushBatch
	var conflicts []*remote.ConflictError

	for _, id := range sortedFailureIDs(partial) {
		itemErr := partial.Failures[id]

		var conflict *remote.ConflictError
		switch {
		case errors.As(itemErr, &conflict):
			if conflict.ClientRecord.IsZero() {
				conflict.ClientRecord = saveByID[id]
			}
			conflicts = append(conflicts, conflict)

		case errors.Is(itemErr, remote.ErrUnknownItem):
			if err := p.dropUnknown(ctx, []models.RecordID{id}, rep); err != nil {
				return err
			}

		case errors.Is(itemErr, remote.ErrBatchRequestFailed):
			// Failed only because a sibling failed: resubmit unchanged.
			resubmit = resubmit.add(id, saveByID, delSet)

		default:
			if d := retry.Classify(itemErr); d.Retry {
				resubmit = resubmit.add(id, saveByID, delSet)
				continue
			}
			p.log.Warn().Err(itemErr).Str("record", string(id)).Msg("item rejected, reporting as unknown")
			if err := p.dropUnknown(ctx, []models.RecordID{id}, rep); err != nil {
				return err
			}
		}
	}

	if resubmit.size() > 0 {
		if attempt >= p.maxRetries {
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, partial)
		}
		if err := p.submit(ctx, resubmit, policy, attempt+1, rep); err != nil {
			if len(conflicts) == 0 {
				return err
			}
			return chainResume(err, func(ctx context.Context) error {
				return p.resubmitResolved(ctx, batch, conflicts, attempt, rep)
			})
		}
	}
	if len(conflicts) > 0 {
		return p.resubmitResolved(ctx, batch, conflicts, attempt, rep)
	}
	return nil
}

// resubmitResolved merges each conflict and resubmits the resolved
// records alone, writing only the fields the merge changed so unrelated
// concurrent edits on the server survive.
func (p *pusher) resubmitResolved(ctx context.Context, batch pushBatch, conflicts []*remote.ConflictError, attempt int, rep *pushReport) error {
	if attempt >= p.maxRetries {
		return fmt.Errorf("%w: conflict on %d records", ErrRetriesExhausted, len(conflicts))
	}

	resolved := make([]models.RemoteRecord, 0, len(conflicts))
	for _, conflict := range conflicts {
		client := conflict.ClientRecord
		if client.IsZero() && len(batch.save) == 1 {
			client = batch.save[0]
		}
		rec, err := p.resolver.Resolve(client, conflict.ServerRecord)
		if err != nil {
			return err
		}
		p.log.Debug().Str("record", string(rec.ID)).
			Strs("fields", rec.ChangedFields(conflict.ServerRecord)).
			Msg("conflict resolved")
		resolved = append(resolved, rec)
	}
	return p.submit(ctx, pushBatch{save: resolved}, models.SaveChangedFields, attempt+1, rep)
}

// confirm removes confirmed identifiers from their buffers and records
// them in the report. Buffer entries survive until this point so a
// crash before confirmation re-pushes rather than loses.
func (p *pusher) confirm(ctx context.Context, result remote.ModifyResult, rep *pushReport) error {
	if len(result.SavedRecords) > 0 {
		ids := make([]models.RecordID, 0, len(result.SavedRecords))
		for _, rec := range result.SavedRecords {
			ids = append(ids, rec.ID)
		}
		if err := p.uploads.Remove(ctx, ids...); err != nil {
			return err
		}
		rep.saved = append(rep.saved, result.SavedRecords...)
	}
	if len(result.DeletedIDs) > 0 {
		if err := p.deletes.Remove(ctx, result.DeletedIDs...); err != nil {
			return err
		}
		rep.deleted = append(rep.deleted, result.DeletedIDs...)
	}
	return nil
}

// dropUnknown removes definitively rejected identifiers from both
// buffers and reports them under the unknown change set.
func (p *pusher) dropUnknown(ctx context.Context, ids []models.RecordID, rep *pushReport) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.uploads.Remove(ctx, ids...); err != nil {
		return err
	}
	if err := p.deletes.Remove(ctx, ids...); err != nil {
		return err
	}
	rep.unknown = append(rep.unknown, ids...)
	return nil
}

// sortedFailureIDs returns the failed identifiers in stable order so
// resubmissions are deterministic.
func sortedFailureIDs(partial *remote.PartialError) []models.RecordID {
	ids := make([]models.RecordID, 0, len(partial.Failures))
	for id := range partial.Failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// report converts the accumulated outcomes into a ModelChanges. Saved
// records are decoded back into entities; individual decode failures
// are logged and dropped, never fatal to the push.
func (p *pusher) report(rep *pushReport) models.ModelChanges {
	changes := models.ModelChanges{
		PushedDeletes: rep.deleted,
		Unknown:       rep.unknown,
	}
	for _, rec := range rep.saved {
		entity, err := p.codec.Decode(rec)
		if err != nil {
			p.log.Warn().Err(err).Str("record", string(rec.ID)).Msg("skipping undecodable pushed record")
			continue
		}
		changes.PushedUpdates = append(changes.PushedUpdates, entity)
	}
	return changes
}
