// Package remote defines the contract between the sync engine and the
// remote record store, the error taxonomy the reconcilers classify by,
// and an HTTP implementation of that contract.
//
// The engine never talks HTTP directly: it sees only [Executor] and
// [Provisioner], so tests substitute mocks and alternative transports
// plug in without touching reconciliation logic.
package remote

import (
	"context"

	"github.com/MKhiriev/cloudsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_mock.go -package=mock

// ModifyResult reports the per-item outcome of a successful (or
// partially successful) modify operation.
type ModifyResult struct {
	// SavedRecords are the saved records as the store now holds them,
	// including the newly assigned change tags.
	SavedRecords []models.RemoteRecord

	// DeletedIDs are the identifiers whose deletion the store confirmed.
	DeletedIDs []models.RecordID
}

// DeltaEvent is one element of the lazy change feed: exactly one of the
// fields is populated.
type DeltaEvent struct {
	// Changed is a record that was created or modified.
	Changed *models.RemoteRecord

	// DeletedID is a record that was deleted, with DeletedType carrying
	// the record type so consumers can filter foreign types out.
	DeletedID   models.RecordID
	DeletedType string

	// Token is an intermediate cursor update. Consumers hold it in
	// memory; only the token returned at completion may be committed.
	Token *models.ChangeToken
}

// Executor issues operations against the remote record store. All
// failures are classified into the package taxonomy so callers can
// react with errors.Is / errors.As. Implementations execute strictly
// one operation at a time per zone.
type Executor interface {
	// Modify atomically saves and deletes records in one batch. On full
	// success the result covers every submitted item. A mixed outcome
	// is returned as a *PartialError alongside the result for the items
	// that did succeed.
	Modify(ctx context.Context, save []models.RemoteRecord, del []models.RecordID, policy models.SavePolicy) (ModifyResult, error)

	// FetchDelta streams every change recorded after since, invoking fn
	// for each event in order. It returns the final change token on
	// completion. A non-nil error from fn aborts the fetch and is
	// returned unchanged.
	FetchDelta(ctx context.Context, since models.ChangeToken, fn func(DeltaEvent) error) (models.ChangeToken, error)
}

// Provisioner performs the one-time remote setup. Both methods are
// idempotent and safe to call on every engine start; the boolean
// reports whether the resource currently exists.
type Provisioner interface {
	// EnsureZone creates the record zone if missing.
	EnsureZone(ctx context.Context) (bool, error)

	// EnsureSubscription creates the change-notification subscription
	// if missing.
	EnsureSubscription(ctx context.Context) (bool, error)
}
