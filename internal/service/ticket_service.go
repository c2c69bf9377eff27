package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-access/internal/audit"
	"github.com/spec-kit/ticket-access/internal/authz"
	"github.com/spec-kit/ticket-access/internal/domain"
	"github.com/spec-kit/ticket-access/internal/events"
	"github.com/spec-kit/ticket-access/internal/persistence"
	"github.com/spec-kit/ticket-access/internal/repository"
	apperrors "github.com/spec-kit/ticket-access/pkg/util"
)

const defaultUpdateRetryAttempts = 3

// TicketService coordinates ticket workflows. Every operation follows the
// same pipeline: build a resource descriptor, consult the authorization
// engine, then perform the mutation and the audit append as one transaction.
type TicketService struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	recorder      *audit.Recorder
	tx            persistence.TxRunner
	dispatcher    events.Dispatcher
	retryAttempts int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	UserRepo      repository.UserRepository
	Recorder      *audit.Recorder
	Tx            persistence.TxRunner
	Dispatcher    events.Dispatcher
	RetryAttempts int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// TicketListInput describes listing filters. Role scoping is applied on top.
type TicketListInput struct {
	Statuses    []domain.TicketStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	attempts := deps.RetryAttempts
	if attempts <= 0 {
		attempts = defaultUpdateRetryAttempts
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		users:         deps.UserRepo,
		recorder:      deps.Recorder,
		tx:            deps.Tx,
		dispatcher:    deps.Dispatcher,
		retryAttempts: attempts,
	}
}

// Create opens a new ticket with the identity as its requester.
func (s *TicketService) Create(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	decision := authz.Authorize(identity, domain.ActionCreateTicket, nil)
	if !decision.Allowed {
		return nil, s.deny(ctx, identity, domain.ActionCreateTicket, nil, decision.Reason)
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: identity.UserID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
	}

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.Create(txCtx, ticket); err != nil {
			return err
		}
		_, err := s.recorder.Record(txCtx, identity, domain.ActionCreateTicket, &ticket.ID, domain.OutcomeAllowed)
		return err
	})
	if err != nil {
		s.reportAuditFailure(ctx, identity, domain.ActionCreateTicket, nil, err)
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, identity, events.EventTicketCreated, events.TicketCreatedPayload{
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Title:       ticket.Title,
	})
	return ticket, nil
}

// Get fetches a single ticket the identity is authorized to view.
func (s *TicketService) Get(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, identity, domain.ActionViewTicket, ticketID)
	if err != nil {
		return nil, err
	}
	decision := authz.Authorize(identity, domain.ActionViewTicket, describe(ticketID, ticket))
	if !decision.Allowed {
		return nil, s.deny(ctx, identity, domain.ActionViewTicket, &ticketID, decision.Reason)
	}
	if _, err := s.recorder.Record(ctx, identity, domain.ActionViewTicket, &ticket.ID, domain.OutcomeAllowed); err != nil {
		return nil, err
	}
	return ticket, nil
}

// List returns tickets visible to the identity: admins see all, technicians
// their assignments, requesters their own.
func (s *TicketService) List(ctx context.Context, identity domain.Identity, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Statuses:    input.Statuses,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       input.Limit,
		Offset:      input.Offset,
	}
	switch identity.Role {
	case domain.RoleAdmin:
	case domain.RoleTechnician:
		assignee := identity.UserID
		filter.AssigneeID = &assignee
	case domain.RoleRequester:
		requester := identity.UserID
		filter.RequesterID = &requester
	default:
		return nil, apperrors.NewUnauthorized()
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateStatus transitions a ticket to newStatus. Transition validity is a
// domain rule checked before the authorization-specific handling; a
// concurrent update triggers a bounded re-read-and-retry.
func (s *TicketService) UpdateStatus(ctx context.Context, identity domain.Identity, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": newStatus})
	}

	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		ticket, err := s.loadTicket(ctx, identity, domain.ActionUpdateTicket, ticketID)
		if err != nil {
			return nil, err
		}
		if !transitionAllowed(ticket.Status, newStatus, identity.Role == domain.RoleAdmin) {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(newStatus))
		}
		decision := authz.Authorize(identity, domain.ActionUpdateTicket, describe(ticketID, ticket))
		if !decision.Allowed {
			return nil, s.deny(ctx, identity, domain.ActionUpdateTicket, &ticketID, decision.Reason)
		}

		oldStatus := ticket.Status
		applyStatus(ticket, newStatus)

		err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
			if err := s.tickets.Update(txCtx, ticket); err != nil {
				return err
			}
			_, err := s.recorder.Record(txCtx, identity, domain.ActionUpdateTicket, &ticket.ID, domain.OutcomeAllowed)
			return err
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			s.reportAuditFailure(ctx, identity, domain.ActionUpdateTicket, &ticketID, err)
			return nil, apperrors.MapError(err)
		}

		s.publish(ctx, identity, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			TicketID:  ticket.ID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
		})
		return ticket, nil
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticketID})
}

// Close confirms a resolved ticket, or force-closes any non-terminal ticket
// when the identity is an admin.
func (s *TicketService) Close(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Ticket, error) {
	return s.UpdateStatus(ctx, identity, ticketID, domain.TicketStatusClosed)
}

// Assign sets the ticket's technician. Admin-initiated only; an open ticket
// moves to in-progress on assignment.
func (s *TicketService) Assign(ctx context.Context, identity domain.Identity, ticketID, technicianID string) (*domain.Ticket, error) {
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		ticket, err := s.loadTicket(ctx, identity, domain.ActionAssignTechnician, ticketID)
		if err != nil {
			return nil, err
		}
		if ticket.Status.Terminal() {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
		}
		decision := authz.Authorize(identity, domain.ActionAssignTechnician, describe(ticketID, ticket))
		if !decision.Allowed {
			return nil, s.deny(ctx, identity, domain.ActionAssignTechnician, &ticketID, decision.Reason)
		}

		assignee, err := s.users.GetByID(ctx, technicianID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("user", map[string]any{"user_id": technicianID})
			}
			return nil, apperrors.MapError(err)
		}
		if assignee.Role != domain.RoleTechnician || !assignee.Active {
			return nil, apperrors.NewValidationError("assignee must be an active technician", map[string]any{"user_id": technicianID})
		}

		ticket.AssigneeID = &assignee.ID
		if ticket.Status == domain.TicketStatusOpen {
			ticket.Status = domain.TicketStatusInProgress
		}

		err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
			if err := s.tickets.Update(txCtx, ticket); err != nil {
				return err
			}
			_, err := s.recorder.Record(txCtx, identity, domain.ActionAssignTechnician, &ticket.ID, domain.OutcomeAllowed)
			return err
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			s.reportAuditFailure(ctx, identity, domain.ActionAssignTechnician, &ticketID, err)
			return nil, apperrors.MapError(err)
		}

		s.publish(ctx, identity, events.EventTicketAssigned, events.TicketAssignedPayload{
			TicketID:     ticket.ID,
			TechnicianID: assignee.ID,
		})
		return ticket, nil
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticketID})
}

// Delete removes a ticket. The audit entry is persisted independently of the
// ticket row, so the record of the deletion survives it.
func (s *TicketService) Delete(ctx context.Context, identity domain.Identity, ticketID string) error {
	ticket, err := s.loadTicket(ctx, identity, domain.ActionDeleteTicket, ticketID)
	if err != nil {
		return err
	}
	decision := authz.Authorize(identity, domain.ActionDeleteTicket, describe(ticketID, ticket))
	if !decision.Allowed {
		return s.deny(ctx, identity, domain.ActionDeleteTicket, &ticketID, decision.Reason)
	}

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.Delete(txCtx, ticketID); err != nil {
			return err
		}
		_, err := s.recorder.Record(txCtx, identity, domain.ActionDeleteTicket, &ticketID, domain.OutcomeAllowed)
		return err
	})
	if err != nil {
		s.reportAuditFailure(ctx, identity, domain.ActionDeleteTicket, &ticketID, err)
		return apperrors.MapError(err)
	}

	s.publish(ctx, identity, events.EventTicketDeleted, events.TicketDeletedPayload{TicketID: ticketID})
	return nil
}

// loadTicket fetches the target. When the ticket does not exist the caller is
// authorized against an empty ownership descriptor first, so the response for
// "missing" and "not yours" is indistinguishable; only actors allowed by a
// role-only rule observe NOT_FOUND.
func (s *TicketService) loadTicket(ctx context.Context, identity domain.Identity, action domain.Action, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	decision := authz.Authorize(identity, action, &authz.Resource{ID: ticketID})
	if !decision.Allowed {
		return nil, s.deny(ctx, identity, action, &ticketID, decision.Reason)
	}
	return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}

// deny records the denied attempt and returns the uniform Unauthorized error.
// Security-relevant actions fail the request when the denial itself cannot be
// persisted; routine view denials are recorded best-effort.
func (s *TicketService) deny(ctx context.Context, identity domain.Identity, action domain.Action, targetID *string, reason authz.ReasonCode) error {
	if action.SecurityRelevant() {
		if _, err := s.recorder.Record(ctx, identity, action, targetID, domain.OutcomeDenied); err != nil {
			s.reportAuditFailure(ctx, identity, action, targetID, err)
			return err
		}
	} else {
		_, _ = s.recorder.Record(ctx, identity, action, targetID, domain.OutcomeDenied)
	}

	s.publish(ctx, identity, events.EventAccessDenied, events.AccessDeniedPayload{
		Action:           action,
		TargetResourceID: targetID,
		Reason:           string(reason),
		SourceAddr:       identity.SourceAddr,
	})
	return apperrors.NewUnauthorized()
}

func (s *TicketService) reportAuditFailure(ctx context.Context, identity domain.Identity, action domain.Action, targetID *string, err error) {
	if !apperrors.HasCode(err, "AUDIT_WRITE_FAILURE") {
		return
	}
	s.publish(ctx, identity, events.EventAuditWriteFailed, events.AuditWriteFailedPayload{
		Action:           action,
		TargetResourceID: targetID,
		Error:            err.Error(),
	})
}

func (s *TicketService) publish(ctx context.Context, identity domain.Identity, eventType events.EventType, payload interface{}) {
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

func describe(ticketID string, ticket *domain.Ticket) *authz.Resource {
	if ticket == nil {
		return &authz.Resource{ID: ticketID}
	}
	return &authz.Resource{
		ID:          ticket.ID,
		RequesterID: ticket.RequesterID,
		AssigneeID:  ticket.AssigneeID,
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func newEventID() string {
	return uuid.NewString()
}

// Base transitions; admins may additionally close any non-terminal ticket.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

func transitionAllowed(current, next domain.TicketStatus, adminOverride bool) bool {
	if adminOverride && next == domain.TicketStatusClosed && !current.Terminal() {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func applyStatus(ticket *domain.Ticket, next domain.TicketStatus) {
	ticket.Status = next
	if next == domain.TicketStatusClosed {
		now := time.Now()
		ticket.ClosedAt = &now
	}
}
