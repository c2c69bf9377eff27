package authz

import (
	"github.com/spec-kit/ticket-access/internal/domain"
)

// ReasonCode explains an authorization decision.
type ReasonCode string

const (
	ReasonAdminOverride         ReasonCode = "admin_override"
	ReasonAssignee              ReasonCode = "assignee"
	ReasonOwner                 ReasonCode = "owner"
	ReasonOpenToAuthenticated   ReasonCode = "open_to_authenticated"
	ReasonInsufficientPrivilege ReasonCode = "insufficient_privilege"
	ReasonNoMatchingRule        ReasonCode = "no_matching_rule"
	ReasonUnknownRole           ReasonCode = "unknown_role"
)

// Resource describes the target of an action: the identifier plus the
// ownership and assignment fields the rules key on. A nil Resource means the
// action has no target (e.g. CREATE_TICKET); ownership rules then simply do
// not apply.
type Resource struct {
	ID          string
	RequesterID string
	AssigneeID  *string
}

// Decision is the outcome of an authorization check. Ephemeral: only its
// consequence (the mutation and audit entry) persists.
type Decision struct {
	Allowed bool
	Reason  ReasonCode
}

func allow(reason ReasonCode) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason ReasonCode) Decision  { return Decision{Allowed: false, Reason: reason} }

// Authorize decides whether the identity may perform action on resource.
// Pure function of its inputs: no I/O, no hidden state, deterministic, so it
// is safe to re-evaluate on retries. Rules are matched in precedence order
// and the first match wins; an unknown role is denied before any rule runs.
// Auditing the decision is the caller's responsibility.
func Authorize(identity domain.Identity, action domain.Action, resource *Resource) Decision {
	switch identity.Role {
	case domain.RoleAdmin:
		return allow(ReasonAdminOverride)
	case domain.RoleTechnician:
		return authorizeTechnician(identity, action, resource)
	case domain.RoleRequester:
		return authorizeRequester(identity, action, resource)
	default:
		return deny(ReasonUnknownRole)
	}
}

func authorizeTechnician(identity domain.Identity, action domain.Action, resource *Resource) Decision {
	switch action {
	case domain.ActionViewTicket, domain.ActionUpdateTicket:
		if resource != nil && resource.AssigneeID != nil && *resource.AssigneeID == identity.UserID {
			return allow(ReasonAssignee)
		}
		return deny(ReasonNoMatchingRule)
	case domain.ActionAssignTechnician:
		// Only admins assign, including self-assignment.
		return deny(ReasonInsufficientPrivilege)
	case domain.ActionCreateTicket:
		return allow(ReasonOpenToAuthenticated)
	default:
		return deny(ReasonNoMatchingRule)
	}
}

func authorizeRequester(identity domain.Identity, action domain.Action, resource *Resource) Decision {
	switch action {
	case domain.ActionViewTicket, domain.ActionUpdateTicket:
		if resource != nil && resource.RequesterID == identity.UserID && resource.RequesterID != "" {
			return allow(ReasonOwner)
		}
		return deny(ReasonNoMatchingRule)
	case domain.ActionChangeRole, domain.ActionDeleteTicket:
		return deny(ReasonInsufficientPrivilege)
	case domain.ActionCreateTicket:
		return allow(ReasonOpenToAuthenticated)
	default:
		return deny(ReasonNoMatchingRule)
	}
}
