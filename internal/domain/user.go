package domain

import "time"

// User represents a registered account and the principal of authenticated requests.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
