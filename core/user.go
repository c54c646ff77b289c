package core

import "time"

// User is the subset of the user record the authenticator works with.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sanitized returns a copy of the user without the password hash.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// UserUpdate lists the only fields the authenticator is allowed to change.
// Nil fields are left untouched.
type UserUpdate struct {
	PasswordHash  *string
	EmailVerified *bool
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.PasswordHash == nil && u.EmailVerified == nil
}
