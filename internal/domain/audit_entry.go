package domain

import "time"

// Outcome records how an attempted action was decided.
type Outcome string

const (
	OutcomeAllowed Outcome = "ALLOWED"
	OutcomeDenied  Outcome = "DENIED"
)

// AuditEntry is an immutable record of who did what to what, when, and with
// what outcome. Entries are append-only: once written they are never updated
// or deleted by any code path. The actor fields are a snapshot taken at
// record time, so a later role change does not alter past entries. IDs are
// assigned from a monotonically increasing sequence.
type AuditEntry struct {
	ID               int64
	ActorUserID      string
	ActorRole        Role
	Action           Action
	TargetResourceID *string
	Outcome          Outcome
	SourceAddr       string
	CreatedAt        time.Time
}
