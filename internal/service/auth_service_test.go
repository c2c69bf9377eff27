package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-access/internal/audit"
	"github.com/spec-kit/ticket-access/internal/auth"
	"github.com/spec-kit/ticket-access/internal/config"
	"github.com/spec-kit/ticket-access/internal/domain"
	apperrors "github.com/spec-kit/ticket-access/pkg/util"
)

type authFixture struct {
	service *AuthService
	users   *fakeUserRepo
	audits  *fakeAuditRepo
}

func newAuthFixture() *authFixture {
	users := newFakeUserRepo()
	audits := &fakeAuditRepo{}
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 5,
			BcryptCost:            4,
		},
	}
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo: users,
		Recorder: audit.NewRecorder(audits),
		Tx:       &fakeTxRunner{audits: audits, users: users},
	})
	return &authFixture{service: svc, users: users, audits: audits}
}

func (fx *authFixture) seedAccount(t *testing.T, email, password string, role domain.Role, active bool) domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	return fx.users.seed(domain.User{
		Name:         "Account " + email,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	})
}

func TestRegisterCreatesRequester(t *testing.T) {
	fx := newAuthFixture()

	user, token, exp, err := fx.service.Register(context.Background(), "Rita", "rita@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleRequester, user.Role)
	assert.True(t, user.Active)
	assert.NotEmpty(t, token)
	assert.True(t, exp.After(time.Now()))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	fx := newAuthFixture()
	fx.seedAccount(t, "rita@example.com", "s3cret-pass", domain.RoleRequester, true)

	_, _, _, err := fx.service.Register(context.Background(), "Rita", "rita@example.com", "another-pass")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

func TestLoginSuccessIsAudited(t *testing.T) {
	fx := newAuthFixture()
	seeded := fx.seedAccount(t, "adam@example.com", "correct horse", domain.RoleAdmin, true)

	user, token, _, err := fx.service.Login(context.Background(), "adam@example.com", "correct horse", "192.0.2.20")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)
	assert.NotEmpty(t, token)

	require.Len(t, fx.audits.entries, 1)
	entry := fx.audits.entries[0]
	assert.Equal(t, domain.ActionLogin, entry.Action)
	assert.Equal(t, domain.OutcomeAllowed, entry.Outcome)
	assert.Equal(t, seeded.ID, entry.ActorUserID)
	assert.Equal(t, "192.0.2.20", entry.SourceAddr)
}

func TestLoginWrongPasswordIsAuditedDenied(t *testing.T) {
	fx := newAuthFixture()
	seeded := fx.seedAccount(t, "adam@example.com", "correct horse", domain.RoleAdmin, true)

	_, _, _, err := fx.service.Login(context.Background(), "adam@example.com", "wrong", "192.0.2.20")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "UNAUTHENTICATED"))

	require.Len(t, fx.audits.entries, 1)
	assert.Equal(t, domain.OutcomeDenied, fx.audits.entries[0].Outcome)
	assert.Equal(t, seeded.ID, fx.audits.entries[0].ActorUserID)
}

func TestLoginInactiveAccountDenied(t *testing.T) {
	fx := newAuthFixture()
	fx.seedAccount(t, "gone@example.com", "correct horse", domain.RoleTechnician, false)

	_, _, _, err := fx.service.Login(context.Background(), "gone@example.com", "correct horse", "192.0.2.20")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "UNAUTHENTICATED"))
	require.Len(t, fx.audits.entries, 1)
	assert.Equal(t, domain.OutcomeDenied, fx.audits.entries[0].Outcome)
}

func TestLoginUnknownEmail(t *testing.T) {
	fx := newAuthFixture()

	_, _, _, err := fx.service.Login(context.Background(), "nobody@example.com", "whatever", "192.0.2.20")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "UNAUTHENTICATED"))
	// The unknown-email and wrong-password messages are the same on purpose.
	assert.Equal(t, "invalid credentials", apperrors.ToDomainError(err).Message)
}

func TestChangeRoleByAdmin(t *testing.T) {
	fx := newAuthFixture()
	target := fx.seedAccount(t, "rita@example.com", "s3cret-pass", domain.RoleRequester, true)
	admin := ident("a-1", domain.RoleAdmin)

	updated, err := fx.service.ChangeRole(context.Background(), admin, target.ID, domain.RoleTechnician)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, updated.Role)

	persisted, err := fx.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, persisted.Role)

	require.Len(t, fx.audits.entries, 1)
	entry := fx.audits.entries[0]
	assert.Equal(t, domain.ActionChangeRole, entry.Action)
	assert.Equal(t, domain.OutcomeAllowed, entry.Outcome)
	assert.Equal(t, target.ID, *entry.TargetResourceID)
}

func TestChangeRoleDeniedForNonAdmins(t *testing.T) {
	fx := newAuthFixture()
	target := fx.seedAccount(t, "rita@example.com", "s3cret-pass", domain.RoleRequester, true)

	for _, role := range []domain.Role{domain.RoleTechnician, domain.RoleRequester} {
		fx.audits.entries = nil
		_, err := fx.service.ChangeRole(context.Background(), ident("u-99", role), target.ID, domain.RoleAdmin)
		require.Error(t, err, "role %s", role)
		assert.True(t, apperrors.HasCode(err, "UNAUTHORIZED"), "role %s", role)

		require.Len(t, fx.audits.entries, 1, "role %s", role)
		assert.Equal(t, domain.OutcomeDenied, fx.audits.entries[0].Outcome)

		persisted, getErr := fx.users.GetByID(context.Background(), target.ID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.RoleRequester, persisted.Role, "role must be untouched")
	}
}

func TestChangeRoleTargetMissing(t *testing.T) {
	fx := newAuthFixture()

	_, err := fx.service.ChangeRole(context.Background(), ident("a-1", domain.RoleAdmin), "u-missing", domain.RoleTechnician)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestChangeRoleRollsBackWhenAuditFails(t *testing.T) {
	fx := newAuthFixture()
	target := fx.seedAccount(t, "rita@example.com", "s3cret-pass", domain.RoleRequester, true)
	fx.audits.appendErr = assert.AnError

	_, err := fx.service.ChangeRole(context.Background(), ident("a-1", domain.RoleAdmin), target.ID, domain.RoleTechnician)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "AUDIT_WRITE_FAILURE"))

	persisted, getErr := fx.users.GetByID(context.Background(), target.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.RoleRequester, persisted.Role)
}
