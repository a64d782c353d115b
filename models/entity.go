package models

// Entity is a local typed record being synchronized. Implementations are
// plain model structs owned by the application; the engine never
// inspects fields directly, it only moves entities through the codec and
// asks them to resolve conflicts.
type Entity interface {
	// EntityID returns the stable identifier of the entity. It must
	// equal the RecordID of the entity's encoded form.
	EntityID() RecordID

	// Resolve merges the receiver (the client's version) with another
	// version of the same entity and returns the merged result, or nil
	// when no resolution is possible. It must be a pure function: no
	// side effects, no mutation of either input.
	Resolve(other Entity) Entity
}

// ChangeToken is an opaque cursor into the remote change feed. The empty
// token means "from the beginning". Tokens only move forward, and only
// via an explicit CommitCursor call once the caller has durably
// processed the changes delivered up to it.
type ChangeToken string

// IsZero reports whether the token is the empty "full fetch" cursor.
func (t ChangeToken) IsZero() bool { return t == "" }
