// Package models - workspace.go defines the Workspace model: a named collaborative
// container with a store-assigned invite code and an optional icon asset.
package models

import "time"

// Workspace represents a collaborative workspace visible to the current user
type Workspace struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	IconURL    *string   `json:"icon_url" db:"icon_url"`
	InviteCode string    `json:"invite_code" db:"invite_code"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// MemberCount is derived per load by counting membership rows; it is not
	// a column on the workspaces table.
	MemberCount int `json:"member_count" db:"-"`
}

// WorkspaceUpdate carries the mutable fields of a workspace. Nil fields are
// left untouched by the update workflow.
type WorkspaceUpdate struct {
	Name    *string `json:"name"`
	IconURL *string `json:"icon_url"`
}

// IsEmpty reports whether the update would change nothing
func (u WorkspaceUpdate) IsEmpty() bool {
	return u.Name == nil && u.IconURL == nil
}
