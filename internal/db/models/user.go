// Package models - user.go defines the User model mirroring the identity issued
// by the auth service. The core never writes users to the store; the model
// exists so store queries and session state share one shape.
package models

import "time"

// User represents the current authenticated user as reported by the auth service
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Metadata  map[string]string `json:"user_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DisplayName returns the user's display name from metadata, falling back to
// the email address when unset.
func (u *User) DisplayName() string {
	if name, ok := u.Metadata["display_name"]; ok && name != "" {
		return name
	}
	return u.Email
}
