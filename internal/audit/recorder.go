package audit

import (
	"context"

	"github.com/spec-kit/ticket-access/internal/domain"
	"github.com/spec-kit/ticket-access/internal/repository"
	apperrors "github.com/spec-kit/ticket-access/pkg/util"
)

// Recorder appends immutable audit entries. It snapshots the identity at call
// time, so later changes to the account (a role change, for instance) never
// alter what was recorded. When the caller runs inside a transaction the
// append joins it, which is how mutate-and-audit stays all-or-nothing.
type Recorder struct {
	entries repository.AuditEntryRepository
}

// NewRecorder builds a recorder over the given store.
func NewRecorder(entries repository.AuditEntryRepository) *Recorder {
	return &Recorder{entries: entries}
}

// Record appends one entry for the attempted action and returns it with its
// assigned id and timestamp. An append failure surfaces as AUDIT_WRITE_FAILURE
// so the enclosing operation can roll back its paired mutation.
func (r *Recorder) Record(ctx context.Context, identity domain.Identity, action domain.Action, targetResourceID *string, outcome domain.Outcome) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		ActorUserID:      identity.UserID,
		ActorRole:        identity.Role,
		Action:           action,
		TargetResourceID: targetResourceID,
		Outcome:          outcome,
		SourceAddr:       identity.SourceAddr,
	}
	if err := r.entries.Append(ctx, entry); err != nil {
		return nil, apperrors.NewAuditWriteFailure(err)
	}
	return entry, nil
}

// Query returns entries matching the compliance filter.
func (r *Recorder) Query(ctx context.Context, filter repository.AuditEntryFilter) ([]domain.AuditEntry, error) {
	return r.entries.ListWithFilter(ctx, filter)
}
