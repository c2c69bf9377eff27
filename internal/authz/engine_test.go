package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-access/internal/domain"
)

func identity(userID string, role domain.Role) domain.Identity {
	return domain.Identity{
		UserID:     userID,
		Role:       role,
		SourceAddr: "203.0.113.7",
		IssuedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func strPtr(s string) *string { return &s }

var allActions = []domain.Action{
	domain.ActionCreateTicket,
	domain.ActionViewTicket,
	domain.ActionUpdateTicket,
	domain.ActionAssignTechnician,
	domain.ActionChangeRole,
	domain.ActionDeleteTicket,
	domain.ActionLogin,
}

func TestAuthorizeAdminAllowsEverything(t *testing.T) {
	admin := identity("admin-1", domain.RoleAdmin)
	resources := []*Resource{
		nil,
		{ID: "t-1"},
		{ID: "t-2", RequesterID: "someone-else"},
		{ID: "t-3", RequesterID: "other", AssigneeID: strPtr("another")},
	}
	for _, action := range allActions {
		for _, res := range resources {
			decision := Authorize(admin, action, res)
			assert.True(t, decision.Allowed, "admin should be allowed for %s", action)
			assert.Equal(t, ReasonAdminOverride, decision.Reason)
		}
	}
}

func TestAuthorizeTechnician(t *testing.T) {
	tech := identity("tech-1", domain.RoleTechnician)

	tests := []struct {
		name    string
		action  domain.Action
		res     *Resource
		allowed bool
		reason  ReasonCode
	}{
		{"view assigned ticket", domain.ActionViewTicket, &Resource{ID: "t-1", AssigneeID: strPtr("tech-1")}, true, ReasonAssignee},
		{"update assigned ticket", domain.ActionUpdateTicket, &Resource{ID: "t-1", AssigneeID: strPtr("tech-1")}, true, ReasonAssignee},
		{"view unassigned ticket", domain.ActionViewTicket, &Resource{ID: "t-2"}, false, ReasonNoMatchingRule},
		{"view ticket assigned elsewhere", domain.ActionViewTicket, &Resource{ID: "t-3", AssigneeID: strPtr("tech-2")}, false, ReasonNoMatchingRule},
		{"update ticket assigned elsewhere", domain.ActionUpdateTicket, &Resource{ID: "t-3", AssigneeID: strPtr("tech-2")}, false, ReasonNoMatchingRule},
		{"assign technician", domain.ActionAssignTechnician, &Resource{ID: "t-1", AssigneeID: strPtr("tech-1")}, false, ReasonInsufficientPrivilege},
		{"create ticket", domain.ActionCreateTicket, nil, true, ReasonOpenToAuthenticated},
		{"delete ticket", domain.ActionDeleteTicket, &Resource{ID: "t-1", AssigneeID: strPtr("tech-1")}, false, ReasonNoMatchingRule},
		{"change role", domain.ActionChangeRole, nil, false, ReasonNoMatchingRule},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := Authorize(tech, tc.action, tc.res)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestAuthorizeRequester(t *testing.T) {
	requester := identity("user-1", domain.RoleRequester)

	tests := []struct {
		name    string
		action  domain.Action
		res     *Resource
		allowed bool
		reason  ReasonCode
	}{
		{"view own ticket", domain.ActionViewTicket, &Resource{ID: "t-1", RequesterID: "user-1"}, true, ReasonOwner},
		{"update own ticket", domain.ActionUpdateTicket, &Resource{ID: "t-1", RequesterID: "user-1"}, true, ReasonOwner},
		{"view foreign ticket", domain.ActionViewTicket, &Resource{ID: "t-2", RequesterID: "user-2"}, false, ReasonNoMatchingRule},
		{"view with empty ownership", domain.ActionViewTicket, &Resource{ID: "t-404"}, false, ReasonNoMatchingRule},
		{"delete own ticket", domain.ActionDeleteTicket, &Resource{ID: "t-1", RequesterID: "user-1"}, false, ReasonInsufficientPrivilege},
		{"change role", domain.ActionChangeRole, nil, false, ReasonInsufficientPrivilege},
		{"assign technician on own ticket", domain.ActionAssignTechnician, &Resource{ID: "t-1", RequesterID: "user-1"}, false, ReasonNoMatchingRule},
		{"create ticket", domain.ActionCreateTicket, nil, true, ReasonOpenToAuthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := Authorize(requester, tc.action, tc.res)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestAuthorizeUnknownRoleNeverAllows(t *testing.T) {
	unknown := identity("user-1", domain.Role("SUPERUSER"))
	for _, action := range allActions {
		decision := Authorize(unknown, action, &Resource{ID: "t-1", RequesterID: "user-1"})
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonUnknownRole, decision.Reason)
	}
}

func TestAuthorizeIsDeterministicAndSideEffectFree(t *testing.T) {
	id := identity("tech-1", domain.RoleTechnician)
	res := &Resource{ID: "t-1", RequesterID: "user-9", AssigneeID: strPtr("tech-1")}
	before := *res

	first := Authorize(id, domain.ActionUpdateTicket, res)
	second := Authorize(id, domain.ActionUpdateTicket, res)

	assert.Equal(t, first, second)
	assert.Equal(t, before, *res, "resource must not be mutated")
	assert.Equal(t, "tech-1", id.UserID, "identity must not be mutated")
}
