package dto

import (
	"time"

	"github.com/spec-kit/ticket-access/internal/domain"
)

// AuditEntryResponse is the read-only audit record representation.
type AuditEntryResponse struct {
	ID               int64          `json:"id"`
	ActorUserID      string         `json:"actor_user_id"`
	ActorRole        domain.Role    `json:"actor_role"`
	Action           domain.Action  `json:"action"`
	TargetResourceID *string        `json:"target_resource_id"`
	Outcome          domain.Outcome `json:"outcome"`
	SourceAddr       string         `json:"source_addr"`
	CreatedAt        time.Time      `json:"created_at"`
}
