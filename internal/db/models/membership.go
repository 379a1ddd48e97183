// Package models - membership.go defines models for user-to-workspace membership.
// Exactly one membership row may exist per (user, workspace) pair; the join
// workflow enforces this by checking before inserting.
package models

import "time"

// Role is a membership role within a workspace
type Role string

const (
	// RoleOwner is assigned to a workspace's creator at creation time
	RoleOwner Role = "owner"
	// RoleMember is assigned to users who join via invite code
	RoleMember Role = "member"
)

// Membership represents a user's membership in a workspace
type Membership struct {
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
