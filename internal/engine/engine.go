// Package engine implements the sync reconciliation core: durable
// pending-change buffers drained by a push reconciler, a paginated pull
// reconciler over an opaque change cursor, and the orchestrator that
// sequences them on a single serialized work queue.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MKhiriev/cloudsync/internal/buffer"
	"github.com/MKhiriev/cloudsync/internal/codec"
	"github.com/MKhiriev/cloudsync/internal/logger"
	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/internal/resolve"
	"github.com/MKhiriev/cloudsync/internal/retry"
	"github.com/MKhiriev/cloudsync/internal/statestore"
	"github.com/MKhiriev/cloudsync/internal/token"
	"github.com/MKhiriev/cloudsync/models"
)

// ErrEngineClosed is returned by every operation after Close.
var ErrEngineClosed = errors.New("sync engine closed")

// Config carries the engine's persistence keys and operational limits.
// It is constructed once by the configuration layer (keys derived from
// the zone name there, never recomputed here) and passed down to every
// component.
type Config struct {
	UploadBufferKey     string
	DeleteBufferKey     string
	ChangeTokenKey      string
	ZoneFlagKey         string
	SubscriptionFlagKey string

	// MaxPushRetries bounds resubmissions of one logical push batch.
	MaxPushRetries int

	// MaxPullRestarts bounds full fetch restarts within one pull.
	MaxPullRestarts int

	// ChangeStreamBuffer sizes the out-of-band Changes channel.
	ChangeStreamBuffer int
}

// Dependencies are the external collaborators the engine drives.
type Dependencies struct {
	Executor    remote.Executor
	Provisioner remote.Provisioner
	Codec       codec.Codec
	State       statestore.StateStore
	Logger      *logger.Logger
}

// Engine reconciles the local pending changes with the remote record
// store. All reconciliation runs serialized on an internal work queue;
// public methods are safe for concurrent use and block until their
// queued step completes.
type Engine struct {
	queue     *workQueue
	scheduler *retry.Scheduler

	uploads *buffer.RecordBuffer
	deletes *buffer.IDBuffer
	tokens  *token.Store

	pusher *pusher
	puller *puller
	setup  *setup
	codec  codec.Codec
	log    *logger.Logger

	changes chan models.ModelChanges

	// pendingNotifications counts remote notifications that arrived
	// before provisioning finished; they are replayed once Ready.
	// Touched only from the work queue.
	pendingNotifications int

	closeOnce sync.Once
}

// New constructs an Engine, restoring any buffered changes a previous
// process did not manage to push.
func New(ctx context.Context, cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.MaxPushRetries <= 0 {
		cfg.MaxPushRetries = 3
	}
	if cfg.MaxPullRestarts <= 0 {
		cfg.MaxPullRestarts = 3
	}
	if cfg.ChangeStreamBuffer <= 0 {
		cfg.ChangeStreamBuffer = 16
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	uploads, err := buffer.NewRecordBuffer(ctx, deps.State, cfg.UploadBufferKey)
	if err != nil {
		return nil, err
	}
	deletes, err := buffer.NewIDBuffer(ctx, deps.State, cfg.DeleteBufferKey)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		queue:   newWorkQueue(),
		uploads: uploads,
		deletes: deletes,
		tokens:  token.NewStore(deps.State, cfg.ChangeTokenKey),
		codec:   deps.Codec,
		log:     deps.Logger,
		changes: make(chan models.ModelChanges, cfg.ChangeStreamBuffer),
	}
	e.scheduler = retry.NewScheduler(e.queue)
	e.setup = newSetup(deps.Provisioner, deps.State, cfg.ZoneFlagKey, cfg.SubscriptionFlagKey, deps.Logger)

	onZoneGone := func() { e.setup.invalidate(context.Background()) }
	e.pusher = &pusher{
		executor:   deps.Executor,
		resolver:   resolve.NewResolver(deps.Codec),
		codec:      deps.Codec,
		uploads:    uploads,
		deletes:    deletes,
		log:        deps.Logger,
		maxRetries: cfg.MaxPushRetries,
		onZoneGone: onZoneGone,
	}
	e.puller = &puller{
		executor:    deps.Executor,
		codec:       deps.Codec,
		tokens:      e.tokens,
		log:         deps.Logger,
		maxRestarts: cfg.MaxPullRestarts,
		sleep:       sleepCtx,
		onZoneGone:  onZoneGone,
	}

	return e, nil
}

// Start evaluates the setup state machine and replays any notifications
// that arrived before provisioning finished.
func (e *Engine) Start(ctx context.Context) error {
	return e.runErr(ctx, func(ctx context.Context) error {
		if err := e.setup.ensureReady(ctx); err != nil {
			return err
		}
		if e.pendingNotifications > 0 {
			// Coalesce: one pull observes everything the queued
			// notifications announced.
			e.log.Debug().Int("queued", e.pendingNotifications).Msg("replaying queued notifications")
			e.pendingNotifications = 0
			e.notificationPull(ctx, true)
		}
		return nil
	})
}

// Upload encodes the entities, enqueues them into the durable upload
// buffer, and pushes the buffer. Per-entity encode failures are logged
// and skipped, never fatal to the batch.
func (e *Engine) Upload(ctx context.Context, entities ...models.Entity) (models.ModelChanges, error) {
	return e.run(ctx, func(ctx context.Context) (models.ModelChanges, error) {
		if err := e.setup.ensureReady(ctx); err != nil {
			return models.ModelChanges{}, err
		}

		records := make([]models.RemoteRecord, 0, len(entities))
		for _, entity := range entities {
			rec, err := e.codec.Encode(entity)
			if err != nil {
				e.log.Warn().Err(err).Str("record", string(entity.EntityID())).Msg("skipping unencodable entity")
				continue
			}
			records = append(records, rec)
		}
		if len(records) > 0 {
			if err := e.uploads.Enqueue(ctx, records...); err != nil {
				return models.ModelChanges{}, err
			}
		}
		return e.pusher.pushUploads(ctx)
	})
}

// Delete enqueues the entities' identifiers into the durable delete
// buffer and pushes it. A matching pending upload is purged first: an
// entity slated for deletion must never also be uploaded.
func (e *Engine) Delete(ctx context.Context, entities ...models.Entity) (models.ModelChanges, error) {
	return e.run(ctx, func(ctx context.Context) (models.ModelChanges, error) {
		if err := e.setup.ensureReady(ctx); err != nil {
			return models.ModelChanges{}, err
		}

		ids := make([]models.RecordID, 0, len(entities))
		for _, entity := range entities {
			ids = append(ids, entity.EntityID())
		}
		if err := e.uploads.Remove(ctx, ids...); err != nil {
			return models.ModelChanges{}, err
		}
		if err := e.deletes.Enqueue(ctx, ids...); err != nil {
			return models.ModelChanges{}, err
		}
		return e.pusher.pushDeletes(ctx)
	})
}

// Pull performs one paginated delta fetch. The returned report carries
// the new cursor; the caller commits it via CommitCursor once the
// changes are durably applied. resetCursor discards the stored cursor
// first, forcing a full resync.
func (e *Engine) Pull(ctx context.Context, resetCursor bool) (models.ModelChanges, error) {
	return e.run(ctx, func(ctx context.Context) (models.ModelChanges, error) {
		if err := e.setup.ensureReady(ctx); err != nil {
			return models.ModelChanges{}, err
		}
		return e.puller.pull(ctx, resetCursor)
	})
}

// ForceSync pulls before pushing, specifically so an entity the remote
// side already deleted is purged from the upload buffer instead of
// being resurrected.
func (e *Engine) ForceSync(ctx context.Context, resetCursor bool) (models.ModelChanges, error) {
	return e.run(ctx, func(ctx context.Context) (models.ModelChanges, error) {
		if err := e.setup.ensureReady(ctx); err != nil {
			return models.ModelChanges{}, err
		}

		changes, err := e.puller.pull(ctx, resetCursor)
		if err != nil {
			return models.ModelChanges{}, err
		}
		if len(changes.PulledDeletes) > 0 {
			if err = e.uploads.Remove(ctx, changes.PulledDeletes...); err != nil {
				return models.ModelChanges{}, err
			}
			if err = e.deletes.Remove(ctx, changes.PulledDeletes...); err != nil {
				return models.ModelChanges{}, err
			}
		}

		var pushedDeletes, pushedUploads models.ModelChanges
		total := func() models.ModelChanges {
			return changes.Merge(pushedDeletes).Merge(pushedUploads)
		}
		uploadStep := func(ctx context.Context) error {
			return pushStep(ctx, e.pusher.pushUploads, &pushedUploads, total)
		}

		if err = pushStep(ctx, e.pusher.pushDeletes, &pushedDeletes, total); err != nil {
			// A deferred delete retry picks the uploads up afterwards.
			return total(), chainResume(err, uploadStep)
		}
		err = uploadStep(ctx)
		return total(), err
	})
}

// CommitCursor persists the token as the new resume point. A nil token
// is a deliberate no-op — it is never interpreted as "clear".
func (e *Engine) CommitCursor(ctx context.Context, t *models.ChangeToken) error {
	if t == nil {
		return nil
	}
	return e.runErr(ctx, func(ctx context.Context) error {
		return e.tokens.Set(ctx, *t)
	})
}

// Verify forces re-verification of the remote zone and subscription,
// used on account-change events or suspected drift.
func (e *Engine) Verify(ctx context.Context) error {
	return e.runErr(ctx, func(ctx context.Context) error {
		return e.setup.verify(ctx)
	})
}

// Changes is the out-of-band notification stream: reports produced by
// remote-triggered pulls are delivered here.
func (e *Engine) Changes() <-chan models.ModelChanges {
	return e.changes
}

// HandleRemoteNotification reacts to a push notification from the
// remote store by scheduling an unsolicited pull. Notifications that
// arrive before provisioning completes are queued and replayed once the
// engine is Ready.
func (e *Engine) HandleRemoteNotification(ctx context.Context) {
	e.queue.Submit(func() {
		if !e.setup.ready() {
			e.pendingNotifications++
			return
		}
		e.notificationPull(context.WithoutCancel(ctx), true)
	})
}

// notificationPull runs a pull on behalf of a remote notification and
// emits the result on the change stream. A retryable failure gets one
// scheduled attempt; beyond that the notification is dropped (the next
// pull re-delivers the same changes, nothing is lost).
func (e *Engine) notificationPull(ctx context.Context, retryAllowed bool) {
	changes, err := e.puller.pull(ctx, false)
	if err != nil {
		d := retry.Classify(err)
		if d.Retry && retryAllowed {
			e.scheduler.Schedule(d, func() { e.notificationPull(ctx, false) }, nil)
			return
		}
		e.log.Err(err).Msg("notification-triggered pull failed")
		return
	}
	if !changes.HasRecordChanges() {
		// A successful pull always carries a token, so per-set checks
		// decide whether consumers have anything to apply. The cursor
		// stays uncommitted and the next pull covers the same span.
		return
	}
	e.emit(changes)
}

// emit publishes a report on the change stream without blocking the
// work queue. A full stream drops the report; the cursor was not
// committed, so the next pull re-delivers the same changes.
func (e *Engine) emit(changes models.ModelChanges) {
	select {
	case e.changes <- changes:
	default:
		e.log.Warn().Msg("change stream full, dropping report")
	}
}

// Close stops the work queue after the queued steps finish and closes
// the change stream. In-flight remote operations run to completion.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.queue.Close()
		close(e.changes)
	})
}

func (e *Engine) run(ctx context.Context, fn func(context.Context) (models.ModelChanges, error)) (models.ModelChanges, error) {
	type outcome struct {
		changes models.ModelChanges
		err     error
	}
	done := make(chan outcome, 1)

	// The queued step runs to completion even if the caller gives up:
	// reconciliation is not cancellable mid-operation.
	taskCtx := context.WithoutCancel(ctx)

	// finish delivers the outcome, or parks a deferred retry with the
	// scheduler. The queue is free between turns, so a long backoff on
	// one operation never blocks the others.
	var finish func(changes models.ModelChanges, err error)
	finish = func(changes models.ModelChanges, err error) {
		var dr *deferredRetry
		if !errors.As(err, &dr) {
			done <- outcome{changes: changes, err: err}
			return
		}
		report := dr.report
		if report == nil {
			report = func() models.ModelChanges { return changes }
		}
		e.scheduler.Schedule(dr.decision, func() {
			rErr := dr.resume(taskCtx)
			var next *deferredRetry
			if errors.As(rErr, &next) && next.report == nil {
				next.report = report
			}
			finish(report(), rErr)
		}, func() {
			done <- outcome{changes: report(), err: ErrEngineClosed}
		})
	}

	if !e.queue.Submit(func() {
		changes, err := fn(taskCtx)
		finish(changes, err)
	}) {
		return models.ModelChanges{}, ErrEngineClosed
	}

	select {
	case out := <-done:
		return out.changes, out.err
	case <-ctx.Done():
		return models.ModelChanges{}, ctx.Err()
	}
}

func (e *Engine) runErr(ctx context.Context, fn func(context.Context) error) error {
	_, err := e.run(ctx, func(ctx context.Context) (models.ModelChanges, error) {
		return models.ModelChanges{}, fn(ctx)
	})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
