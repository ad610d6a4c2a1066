package models

import "time"

// User represents a user account as exposed to callers.
// It never carries the password hash.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credentials pairs a user with the stored password hash.
// Only the login and change-password paths read it.
type Credentials struct {
	User         User
	PasswordHash string
}
