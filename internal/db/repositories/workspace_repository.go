// workspace_repository.go implements WorkspaceRepository, providing database queries
// for workspace CRUD and invite-code lookup against the remote store.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bandroomhq/bandroom/internal/db/models"
)

// WorkspaceRepository handles database operations for workspaces
type WorkspaceRepository struct {
	db *sql.DB
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *sql.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// ListVisible retrieves all workspaces visible under the store's access rules,
// newest first. Member counts are not populated here; the manager derives them
// per load from the membership repository.
func (r *WorkspaceRepository) ListVisible(ctx context.Context) ([]*models.Workspace, error) {
	query := `
		SELECT id, name, icon_url, invite_code, created_at
		FROM workspaces
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := make([]*models.Workspace, 0)
	for rows.Next() {
		ws := &models.Workspace{}
		err := rows.Scan(
			&ws.ID,
			&ws.Name,
			&ws.IconURL,
			&ws.InviteCode,
			&ws.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, ws)
	}

	return workspaces, rows.Err()
}

// GetByID retrieves a workspace by ID, returning nil when absent
func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := `
		SELECT id, name, icon_url, invite_code, created_at
		FROM workspaces
		WHERE id = $1
	`

	ws := &models.Workspace{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ws.ID,
		&ws.Name,
		&ws.IconURL,
		&ws.InviteCode,
		&ws.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	return ws, nil
}

// GetByInviteCode retrieves the single workspace carrying the given invite code,
// returning nil when no workspace matches. Invite codes are unique in the store,
// so more than one match is impossible at this layer.
func (r *WorkspaceRepository) GetByInviteCode(ctx context.Context, code string) (*models.Workspace, error) {
	query := `
		SELECT id, name, icon_url, invite_code, created_at
		FROM workspaces
		WHERE invite_code = $1
	`

	ws := &models.Workspace{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&ws.ID,
		&ws.Name,
		&ws.IconURL,
		&ws.InviteCode,
		&ws.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get workspace by invite code: %w", err)
	}

	return ws, nil
}

// Create inserts a new workspace row. The store assigns the id, invite code,
// and creation timestamp, which are scanned back into ws.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) error {
	query := `
		INSERT INTO workspaces (name)
		VALUES ($1)
		RETURNING id, invite_code, created_at
	`

	err := r.db.QueryRowContext(ctx, query, ws.Name).Scan(
		&ws.ID,
		&ws.InviteCode,
		&ws.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	return nil
}

// Update applies the non-nil fields of updates to the workspace row and returns
// the updated row, or nil when the id matches nothing.
func (r *WorkspaceRepository) Update(ctx context.Context, id string, updates models.WorkspaceUpdate) (*models.Workspace, error) {
	query := `
		UPDATE workspaces
		SET name = COALESCE($2, name),
		    icon_url = COALESCE($3, icon_url)
		WHERE id = $1
		RETURNING id, name, icon_url, invite_code, created_at
	`

	ws := &models.Workspace{}
	err := r.db.QueryRowContext(ctx, query, id, updates.Name, updates.IconURL).Scan(
		&ws.ID,
		&ws.Name,
		&ws.IconURL,
		&ws.InviteCode,
		&ws.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}

	return ws, nil
}

// Delete removes a workspace row by id. Membership rows go with it via the
// store's cascade.
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM workspaces WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	return nil
}
