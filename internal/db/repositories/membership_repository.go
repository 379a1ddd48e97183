// membership_repository.go implements MembershipRepository, providing database queries
// for workspace membership rows and per-workspace member counts.
// Follows the sqlx style of the other repositories in this package for consistency.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bandroomhq/bandroom/internal/db/models"
)

// MembershipRepository handles database operations for workspace memberships
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// CountForWorkspace returns the number of membership rows for a workspace.
// This is the head-only count query behind the manager's member-count fan-out.
func (r *MembershipRepository) CountForWorkspace(ctx context.Context, workspaceID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM workspace_members WHERE workspace_id = $1`
	if err := r.db.GetContext(ctx, &count, query, workspaceID); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// Get retrieves a user's membership in a workspace, returning nil when absent
func (r *MembershipRepository) Get(ctx context.Context, workspaceID, userID string) (*models.Membership, error) {
	query := `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`

	member := &models.Membership{}
	err := r.db.GetContext(ctx, member, query, workspaceID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return member, nil
}

// Add inserts a membership row binding a user to a workspace with the given role
func (r *MembershipRepository) Add(ctx context.Context, workspaceID, userID string, role models.Role) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.ExecContext(ctx, query, workspaceID, userID, role); err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}

	return nil
}

// ListForWorkspace retrieves all membership rows for a workspace, newest first
func (r *MembershipRepository) ListForWorkspace(ctx context.Context, workspaceID string) ([]*models.Membership, error) {
	query := `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`

	members := make([]*models.Membership, 0)
	if err := r.db.SelectContext(ctx, &members, query, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	return members, nil
}

// Remove deletes a user's membership row in a workspace
func (r *MembershipRepository) Remove(ctx context.Context, workspaceID, userID string) error {
	query := `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, workspaceID, userID); err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	return nil
}
