package sessions

import "context"

// Repo stores session records keyed by the id carried in the session cookie.
// Records expire a fixed TTL after they were last written; reads never extend them.
type Repo interface {
	// Upsert replaces the record stored under sessionID and restarts its TTL.
	Upsert(ctx context.Context, sessionID string, record Record) error

	// Get returns the live record or errors.ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, sessionID string) error
}
