package domain

// Role enumerates the fixed set of actor roles. There is no runtime extension.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
	RoleRequester  Role = "REQUESTER"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleRequester:
		return true
	}
	return false
}
