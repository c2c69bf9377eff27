package domain

// Action enumerates the operations an actor may attempt.
type Action string

const (
	ActionCreateTicket     Action = "CREATE_TICKET"
	ActionViewTicket       Action = "VIEW_TICKET"
	ActionUpdateTicket     Action = "UPDATE_TICKET"
	ActionAssignTechnician Action = "ASSIGN_TECHNICIAN"
	ActionChangeRole       Action = "CHANGE_ROLE"
	ActionDeleteTicket     Action = "DELETE_TICKET"
	ActionLogin            Action = "LOGIN"
)

// SecurityRelevant reports whether denied attempts of this action must be
// persisted before the response is produced.
func (a Action) SecurityRelevant() bool {
	switch a {
	case ActionLogin, ActionChangeRole, ActionDeleteTicket, ActionAssignTechnician:
		return true
	}
	return false
}
