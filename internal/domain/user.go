package domain

import "time"

// User is the domain model for every account. Requesters, technicians and
// administrators live in one table and differ only by Role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
