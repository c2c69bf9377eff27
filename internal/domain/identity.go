package domain

import "time"

// Identity is the verified per-request representation of the acting user.
// It is built once by the authentication middleware and never mutated.
type Identity struct {
	UserID     string
	Role       Role
	SourceAddr string
	IssuedAt   time.Time
}
