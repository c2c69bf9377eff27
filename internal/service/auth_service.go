package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-access/internal/audit"
	"github.com/spec-kit/ticket-access/internal/auth"
	"github.com/spec-kit/ticket-access/internal/authz"
	"github.com/spec-kit/ticket-access/internal/config"
	"github.com/spec-kit/ticket-access/internal/domain"
	"github.com/spec-kit/ticket-access/internal/events"
	"github.com/spec-kit/ticket-access/internal/persistence"
	"github.com/spec-kit/ticket-access/internal/repository"
	apperrors "github.com/spec-kit/ticket-access/pkg/util"
)

// AuthService coordinates registration, login and role administration.
type AuthService struct {
	users      repository.UserRepository
	recorder   *audit.Recorder
	tx         persistence.TxRunner
	throttle   *auth.LoginThrottle
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	bcryptCost int
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Recorder   *audit.Recorder
	Tx         persistence.TxRunner
	Throttle   *auth.LoginThrottle
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		recorder:   deps.Recorder,
		tx:         deps.Tx,
		throttle:   deps.Throttle,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a new account. Every self-registered account starts as a
// requester; only an admin promotes it afterwards.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleRequester,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// Login authenticates an account and issues a token. Both outcomes are
// audited with the caller's source address; repeated failures from one
// address are throttled via the redis counter.
func (s *AuthService) Login(ctx context.Context, email, password, sourceAddr string) (*domain.User, string, time.Time, error) {
	if s.throttle.Blocked(ctx, email, sourceAddr) {
		return nil, "", time.Time{}, apperrors.NewUnauthenticated("too many failed attempts")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No account to attribute the attempt to; the throttle still
			// counts it.
			s.throttle.RecordFailure(ctx, email, sourceAddr)
			return nil, "", time.Time{}, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	identity := domain.Identity{
		UserID:     user.ID,
		Role:       user.Role,
		SourceAddr: sourceAddr,
		IssuedAt:   time.Now(),
	}

	if !user.Active || auth.ComparePassword(user.PasswordHash, password) != nil {
		s.throttle.RecordFailure(ctx, email, sourceAddr)
		if _, err := s.recorder.Record(ctx, identity, domain.ActionLogin, nil, domain.OutcomeDenied); err != nil {
			return nil, "", time.Time{}, err
		}
		s.publish(ctx, identity, events.EventAccessDenied, events.AccessDeniedPayload{
			Action:     domain.ActionLogin,
			Reason:     "invalid_credentials",
			SourceAddr: sourceAddr,
		})
		return nil, "", time.Time{}, apperrors.NewUnauthenticated("invalid credentials")
	}

	s.throttle.Reset(ctx, email, sourceAddr)

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if _, err := s.recorder.Record(ctx, identity, domain.ActionLogin, nil, domain.OutcomeAllowed); err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// ChangeRole updates another account's role. Admin-only; the role update and
// its audit entry commit together.
func (s *AuthService) ChangeRole(ctx context.Context, identity domain.Identity, targetUserID string, newRole domain.Role) (*domain.User, error) {
	decision := authz.Authorize(identity, domain.ActionChangeRole, nil)
	if !decision.Allowed {
		if _, err := s.recorder.Record(ctx, identity, domain.ActionChangeRole, &targetUserID, domain.OutcomeDenied); err != nil {
			return nil, err
		}
		s.publish(ctx, identity, events.EventAccessDenied, events.AccessDeniedPayload{
			Action:           domain.ActionChangeRole,
			TargetResourceID: &targetUserID,
			Reason:           string(decision.Reason),
			SourceAddr:       identity.SourceAddr,
		})
		return nil, apperrors.NewUnauthorized()
	}
	if !newRole.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": newRole})
	}

	var updated *domain.User
	var oldRole domain.Role
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, targetUserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("user", map[string]any{"user_id": targetUserID})
			}
			return err
		}
		oldRole = user.Role
		user.Role = newRole
		if err := s.users.Update(txCtx, user); err != nil {
			return err
		}
		if _, err := s.recorder.Record(txCtx, identity, domain.ActionChangeRole, &targetUserID, domain.OutcomeAllowed); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, "AUDIT_WRITE_FAILURE") {
			s.publish(ctx, identity, events.EventAuditWriteFailed, events.AuditWriteFailedPayload{
				Action:           domain.ActionChangeRole,
				TargetResourceID: &targetUserID,
				Error:            err.Error(),
			})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, identity, events.EventRoleChanged, events.RoleChangedPayload{
		TargetUserID: targetUserID,
		OldRole:      oldRole,
		NewRole:      newRole,
	})
	return updated, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, identity domain.Identity, eventType events.EventType, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        newEventID(),
		Type:      eventType,
		Actor:     events.Actor{UserID: identity.UserID, Role: identity.Role},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
