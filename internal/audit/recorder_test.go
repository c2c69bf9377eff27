package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-access/internal/domain"
	"github.com/spec-kit/ticket-access/internal/repository"
	apperrors "github.com/spec-kit/ticket-access/pkg/util"
)

type fakeAuditStore struct {
	entries   []domain.AuditEntry
	appendErr error
	nextID    int64
}

func (f *fakeAuditStore) Append(_ context.Context, entry *domain.AuditEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.nextID++
	entry.ID = f.nextID
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) ListWithFilter(_ context.Context, filter repository.AuditEntryFilter) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if filter.ActorUserID != nil && e.ActorUserID != *filter.ActorUserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func TestRecordSnapshotsIdentity(t *testing.T) {
	store := &fakeAuditStore{}
	recorder := NewRecorder(store)

	identity := domain.Identity{
		UserID:     "user-1",
		Role:       domain.RoleTechnician,
		SourceAddr: "198.51.100.4",
		IssuedAt:   time.Now(),
	}
	target := "ticket-42"

	entry, err := recorder.Record(context.Background(), identity, domain.ActionUpdateTicket, &target, domain.OutcomeAllowed)
	require.NoError(t, err)

	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, "user-1", entry.ActorUserID)
	assert.Equal(t, domain.RoleTechnician, entry.ActorRole)
	assert.Equal(t, domain.ActionUpdateTicket, entry.Action)
	assert.Equal(t, "ticket-42", *entry.TargetResourceID)
	assert.Equal(t, domain.OutcomeAllowed, entry.Outcome)
	assert.Equal(t, "198.51.100.4", entry.SourceAddr)

	// A later role change must not alter the stored snapshot.
	identity.Role = domain.RoleRequester
	assert.Equal(t, domain.RoleTechnician, store.entries[0].ActorRole)
}

func TestRecordAppendFailure(t *testing.T) {
	store := &fakeAuditStore{appendErr: errors.New("connection reset")}
	recorder := NewRecorder(store)

	entry, err := recorder.Record(context.Background(), domain.Identity{UserID: "u", Role: domain.RoleAdmin}, domain.ActionDeleteTicket, nil, domain.OutcomeAllowed)
	require.Error(t, err)
	assert.Nil(t, entry)
	assert.True(t, apperrors.HasCode(err, "AUDIT_WRITE_FAILURE"))

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "internal server error", domainErr.Message, "storage detail must not leak to callers")
}

func TestQueryFiltersByActor(t *testing.T) {
	store := &fakeAuditStore{}
	recorder := NewRecorder(store)
	ctx := context.Background()

	alice := domain.Identity{UserID: "alice", Role: domain.RoleRequester}
	bob := domain.Identity{UserID: "bob", Role: domain.RoleRequester}
	_, err := recorder.Record(ctx, alice, domain.ActionLogin, nil, domain.OutcomeAllowed)
	require.NoError(t, err)
	_, err = recorder.Record(ctx, bob, domain.ActionLogin, nil, domain.OutcomeDenied)
	require.NoError(t, err)

	actor := "bob"
	entries, err := recorder.Query(ctx, repository.AuditEntryFilter{ActorUserID: &actor})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutcomeDenied, entries[0].Outcome)
}
