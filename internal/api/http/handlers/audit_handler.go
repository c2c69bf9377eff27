package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-access/internal/api/dto"
	"github.com/spec-kit/ticket-access/internal/audit"
	"github.com/spec-kit/ticket-access/internal/domain"
	"github.com/spec-kit/ticket-access/internal/repository"
	apperrors "github.com/spec-kit/ticket-access/pkg/util"
)

// AuditHandler exposes the read-only compliance view over the audit trail.
// Route registration gates it to admins.
type AuditHandler struct {
	recorder *audit.Recorder
}

// NewAuditHandler constructs handler.
func NewAuditHandler(recorder *audit.Recorder) *AuditHandler {
	return &AuditHandler{recorder: recorder}
}

// ListEntries GET /audit.
func (h *AuditHandler) ListEntries(c *fiber.Ctx) error {
	filter, err := parseAuditQuery(c)
	if err != nil {
		return err
	}
	entries, err := h.recorder.Query(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, auditEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseAuditQuery(c *fiber.Ctx) (repository.AuditEntryFilter, error) {
	filter := repository.AuditEntryFilter{}
	if actor := c.Query("actor_id"); actor != "" {
		filter.ActorUserID = &actor
	}
	if target := c.Query("target_id"); target != "" {
		filter.TargetResourceID = &target
	}
	if actionStr := c.Query("action"); actionStr != "" {
		for _, part := range strings.Split(actionStr, ",") {
			filter.Actions = append(filter.Actions, domain.Action(strings.TrimSpace(part)))
		}
	}
	if outcomeStr := c.Query("outcome"); outcomeStr != "" {
		outcome := domain.Outcome(strings.ToUpper(outcomeStr))
		if outcome != domain.OutcomeAllowed && outcome != domain.OutcomeDenied {
			return filter, apperrors.NewValidationError("outcome must be ALLOWED or DENIED", nil)
		}
		filter.Outcome = &outcome
	}
	if from := parseTime(c.Query("from")); from != nil {
		filter.From = from
	}
	if to := parseTime(c.Query("to")); to != nil {
		filter.To = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func auditEntryResponse(entry *domain.AuditEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:               entry.ID,
		ActorUserID:      entry.ActorUserID,
		ActorRole:        entry.ActorRole,
		Action:           entry.Action,
		TargetResourceID: entry.TargetResourceID,
		Outcome:          entry.Outcome,
		SourceAddr:       entry.SourceAddr,
		CreatedAt:        entry.CreatedAt,
	}
}
