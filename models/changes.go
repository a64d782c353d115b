package models

// ModelChanges is the result aggregate of one reconciliation pass. All
// change sets are optional; a nil slice means "nothing in this
// category". The engine constructs a fresh value per operation and does
// not retain it.
type ModelChanges struct {
	// PulledUpdates are entities the remote store reported as changed.
	PulledUpdates []Entity

	// PulledDeletes are identifiers the remote store reported as deleted.
	PulledDeletes []RecordID

	// PushedUpdates are entities whose local changes were confirmed saved.
	PushedUpdates []Entity

	// PushedDeletes are identifiers whose local deletes were confirmed.
	PushedDeletes []RecordID

	// Unknown are identifiers the remote store rejected as nonexistent.
	// Not an error: the caller decides whether to drop its local copy.
	Unknown []RecordID

	// Token is the cursor associated with the pulled changes, if any.
	// It is NOT committed by the engine; the caller commits it via
	// CommitCursor once the changes are durably applied.
	Token *ChangeToken
}

// IsEmpty reports whether the report carries no changes and no token.
func (c ModelChanges) IsEmpty() bool {
	return len(c.PulledUpdates) == 0 &&
		len(c.PulledDeletes) == 0 &&
		len(c.PushedUpdates) == 0 &&
		len(c.PushedDeletes) == 0 &&
		len(c.Unknown) == 0 &&
		c.Token == nil
}

// HasRecordChanges reports whether any change set is non-empty. A
// report carrying only a token has nothing for a consumer to apply.
func (c ModelChanges) HasRecordChanges() bool {
	return len(c.PulledUpdates) > 0 ||
		len(c.PulledDeletes) > 0 ||
		len(c.PushedUpdates) > 0 ||
		len(c.PushedDeletes) > 0 ||
		len(c.Unknown) > 0
}

// Merge folds other into the receiver and returns the combined report.
// Other's token wins when present, so a pull-then-push pass reports the
// pull's cursor exactly once.
func (c ModelChanges) Merge(other ModelChanges) ModelChanges {
	out := c
	out.PulledUpdates = append(out.PulledUpdates, other.PulledUpdates...)
	out.PulledDeletes = append(out.PulledDeletes, other.PulledDeletes...)
	out.PushedUpdates = append(out.PushedUpdates, other.PushedUpdates...)
	out.PushedDeletes = append(out.PushedDeletes, other.PushedDeletes...)
	out.Unknown = append(out.Unknown, other.Unknown...)
	if other.Token != nil {
		out.Token = other.Token
	}
	return out
}
