package events

import (
	"time"

	"github.com/spec-kit/ticket-access/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventAccessDenied        EventType = "access_denied"
	EventRoleChanged         EventType = "role_changed"
	EventAuditWriteFailed    EventType = "audit_write_failed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain or security event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID    string `json:"ticket_id"`
	ExternalKey string `json:"external_key"`
	Title       string `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketID  string              `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketID     string `json:"ticket_id"`
	TechnicianID string `json:"technician_id"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	TicketID string `json:"ticket_id"`
}

// AccessDeniedPayload describes a denied authorization attempt.
type AccessDeniedPayload struct {
	Action           domain.Action `json:"action"`
	TargetResourceID *string       `json:"target_resource_id,omitempty"`
	Reason           string        `json:"reason"`
	SourceAddr       string        `json:"source_addr"`
}

// RoleChangedPayload describes an admin-initiated role change.
type RoleChangedPayload struct {
	TargetUserID string      `json:"target_user_id"`
	OldRole      domain.Role `json:"old_role"`
	NewRole      domain.Role `json:"new_role"`
}

// AuditWriteFailedPayload flags that an audit append failed and the paired
// mutation was rolled back.
type AuditWriteFailedPayload struct {
	Action           domain.Action `json:"action"`
	TargetResourceID *string       `json:"target_resource_id,omitempty"`
	Error            string        `json:"error"`
}
