// Package workspace implements the workspace membership manager, the component
// that owns the in-process cache of workspaces visible to the current user, the
// single active-workspace selection, and every workspace workflow (load, create,
// update, delete, join-by-code, icon upload).
//
// The cache is ordered by creation time descending and the active reference
// always points into the cache internally, so merges are visible through it
// without a reload. Accessors and workflow results hand out struct copies, so
// callers can read them without racing a later workflow. All workflows are
// strictly serialized by a per-manager workflow mutex, so multi-step mutations
// never interleave; a second RWMutex guards the state fields so accessors stay
// readable while a workflow is mid-flight.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bandroomhq/bandroom/internal/db/models"
	"github.com/bandroomhq/bandroom/internal/localstate"
	"github.com/bandroomhq/bandroom/internal/storage"
	"github.com/bandroomhq/bandroom/internal/telemetry"
)

// Workflow names used for logging and metrics labels
const (
	workflowLoad       = "load"
	workflowCreate     = "create"
	workflowUpdate     = "update"
	workflowDelete     = "delete"
	workflowJoin       = "join"
	workflowIconUpload = "icon_upload"
)

// WorkspaceStore is the slice of the workspace repository the manager consumes
type WorkspaceStore interface {
	ListVisible(ctx context.Context) ([]*models.Workspace, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Workspace, error)
	Create(ctx context.Context, ws *models.Workspace) error
	Update(ctx context.Context, id string, updates models.WorkspaceUpdate) (*models.Workspace, error)
	Delete(ctx context.Context, id string) error
}

// MembershipStore is the slice of the membership repository the manager consumes
type MembershipStore interface {
	CountForWorkspace(ctx context.Context, workspaceID string) (int, error)
	Get(ctx context.Context, workspaceID, userID string) (*models.Membership, error)
	Add(ctx context.Context, workspaceID, userID string, role models.Role) error
}

// Identity supplies the current user's id. Satisfied by the session provider.
type Identity interface {
	CurrentUserID() string
}

// IconFile is an icon supplied to the create or upload workflows
type IconFile struct {
	Filename string
	Reader   io.Reader
	Size     int64
}

// Manager owns the workspace cache, the active selection, and all workflows.
// Construct one per process with NewManager and pass it by handle; there is no
// package-level instance.
type Manager struct {
	workspaces WorkspaceStore
	members    MembershipStore
	icons      storage.IconStore
	selection  localstate.Store
	identity   Identity
	logger     *slog.Logger

	// workflowMu serializes workflows end to end. It is held for the full
	// duration of every exported workflow, including all remote calls, so no
	// workflow ever observes another's intermediate state.
	workflowMu sync.Mutex

	// stateMu guards the fields below. Accessors take the read lock only, so
	// the UI can poll Loading and Err while a workflow holds workflowMu.
	stateMu sync.RWMutex
	cache   []*models.Workspace
	active  *models.Workspace
	loading bool
	lastErr error
}

// NewManager creates a workspace membership manager
func NewManager(workspaces WorkspaceStore, members MembershipStore, icons storage.IconStore, selection localstate.Store, identity Identity) *Manager {
	return &Manager{
		workspaces: workspaces,
		members:    members,
		icons:      icons,
		selection:  selection,
		identity:   identity,
		logger:     slog.Default().With("component", "workspace_manager"),
	}
}

// snapshot returns a copy of ws so callers never hold cache memory that a
// later workflow merges into. Callers hold stateMu (read or write).
func snapshot(ws *models.Workspace) *models.Workspace {
	if ws == nil {
		return nil
	}
	copied := *ws
	return &copied
}

// Workspaces returns a snapshot of the current cache, newest first. The
// returned structs are copies; they do not follow later workflows.
func (m *Manager) Workspaces() []*models.Workspace {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]*models.Workspace, len(m.cache))
	for i, ws := range m.cache {
		out[i] = snapshot(ws)
	}
	return out
}

// Active returns a snapshot of the active workspace, or nil when none is
// selected
func (m *Manager) Active() *models.Workspace {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return snapshot(m.active)
}

// Loading reports whether a load is in flight
func (m *Manager) Loading() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.loading
}

// Err returns the error recorded by the most recent workflow, or nil if it
// succeeded
func (m *Manager) Err() error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.lastErr
}

// LoadWorkspaces fetches all visible workspaces and their member counts and
// replaces the cache. On failure the previous cache is left untouched and the
// error is recorded but not returned; observe it via Err and Loading.
func (m *Manager) LoadWorkspaces(ctx context.Context) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	m.setLoading(true)
	err := m.load(ctx)
	m.setLoading(false)

	m.record(workflowLoad, err)
	if err != nil {
		m.logger.Error("failed to load workspaces", "error", err)
	}
}

// load fetches the list, runs the member-count fan-out, and swaps the cache.
// Callers hold workflowMu.
func (m *Manager) load(ctx context.Context) error {
	list, err := m.workspaces.ListVisible(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch workspaces: %w", err)
	}

	// Per-workspace count queries run concurrently; results are matched back
	// by index, so the cache ordering never depends on completion order. Any
	// single failure aborts the whole load.
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	counts := make([]int, len(list))
	for i, ws := range list {
		i, ws := i, ws
		g.Go(func() error {
			count, err := m.members.CountForWorkspace(gctx, ws.ID)
			if err != nil {
				return fmt.Errorf("failed to count members of workspace %s: %w", ws.ID, err)
			}
			counts[i] = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	telemetry.MemberCountFanoutDuration.Observe(time.Since(start).Seconds())

	for i, ws := range list {
		ws.MemberCount = counts[i]
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	previousActive := ""
	if m.active != nil {
		previousActive = m.active.ID
	}

	m.cache = list
	m.active = nil
	if previousActive != "" {
		for _, ws := range list {
			if ws.ID == previousActive {
				m.active = ws
				break
			}
		}
	}
	if m.active == nil && len(list) > 0 {
		m.active = list[0]
	}

	m.logger.Debug("workspaces loaded", "count", len(list))
	return nil
}

// SetActiveWorkspace marks the workspace with the given id active and persists
// the selection. An id not present in the cache is a no-op, not an error.
func (m *Manager) SetActiveWorkspace(ctx context.Context, id string) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()
	m.setActive(ctx, id)
}

// setActive activates id if it is in the cache and writes the selection
// through to local state. Callers hold workflowMu.
func (m *Manager) setActive(ctx context.Context, id string) {
	m.stateMu.Lock()
	var found *models.Workspace
	for _, ws := range m.cache {
		if ws.ID == id {
			found = ws
			break
		}
	}
	if found != nil {
		m.active = found
	}
	m.stateMu.Unlock()

	if found == nil {
		m.logger.Debug("ignoring selection of unknown workspace", "workspace_id", id)
		return
	}

	if err := m.selection.Set(ctx, localstate.KeyActiveWorkspace, id); err != nil {
		m.logger.Warn("failed to persist workspace selection", "workspace_id", id, "error", err)
	}
}

// RestoreSelection applies the persisted workspace selection, but only when the
// persisted id is present in the cache; a stale id leaves the auto-derived
// selection untouched. Call after a load, never before.
func (m *Manager) RestoreSelection(ctx context.Context) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	id, err := m.selection.Get(ctx, localstate.KeyActiveWorkspace)
	if err != nil {
		if err != localstate.ErrNotFound {
			m.logger.Warn("failed to read persisted workspace selection", "error", err)
		}
		return
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	for _, ws := range m.cache {
		if ws.ID == id {
			m.active = ws
			return
		}
	}
	m.logger.Debug("persisted selection no longer visible, keeping current", "workspace_id", id)
}

// CreateWorkspace creates a workspace, adds the current user as its owner,
// optionally uploads an icon, reloads the list, and selects the new workspace.
// Committed steps are not rolled back when a later step fails. Returns the
// pre-reload snapshot of the new workspace.
func (m *Manager) CreateWorkspace(ctx context.Context, name string, icon *IconFile) (*models.Workspace, error) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	ws, err := m.create(ctx, name, icon)
	m.record(workflowCreate, err)
	if err != nil {
		m.logger.Error("failed to create workspace", "name", name, "error", err)
		return nil, err
	}

	m.logger.Info("workspace created", "workspace_id", ws.ID, "name", ws.Name)
	return ws, nil
}

func (m *Manager) create(ctx context.Context, name string, icon *IconFile) (*models.Workspace, error) {
	userID := m.identity.CurrentUserID()
	if userID == "" {
		return nil, ErrNoSession
	}

	ws := &models.Workspace{Name: name}
	if err := m.workspaces.Create(ctx, ws); err != nil {
		return nil, err
	}

	if err := m.members.Add(ctx, ws.ID, userID, models.RoleOwner); err != nil {
		return nil, fmt.Errorf("workspace %s created but owner membership failed: %w", ws.ID, err)
	}

	if icon != nil {
		if _, err := m.uploadIcon(ctx, ws.ID, icon); err != nil {
			return nil, fmt.Errorf("workspace %s created but icon upload failed: %w", ws.ID, err)
		}
	}

	if err := m.load(ctx); err != nil {
		return nil, fmt.Errorf("workspace %s created but reload failed: %w", ws.ID, err)
	}
	m.setActive(ctx, ws.ID)

	return ws, nil
}

// UpdateWorkspace applies updates to a workspace and merges the returned row
// into the cache entry. The active reference follows automatically because it
// points into the cache.
func (m *Manager) UpdateWorkspace(ctx context.Context, id string, updates models.WorkspaceUpdate) (*models.Workspace, error) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	ws, err := m.update(ctx, id, updates)
	m.record(workflowUpdate, err)
	if err != nil {
		m.logger.Error("failed to update workspace", "workspace_id", id, "error", err)
		return nil, err
	}
	return ws, nil
}

func (m *Manager) update(ctx context.Context, id string, updates models.WorkspaceUpdate) (*models.Workspace, error) {
	updated, err := m.workspaces.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	for _, ws := range m.cache {
		if ws.ID == id {
			// Merge in place so the active reference stays a view into the
			// cache. The derived member count is not part of the row.
			ws.Name = updated.Name
			ws.IconURL = updated.IconURL
			ws.InviteCode = updated.InviteCode
			ws.CreatedAt = updated.CreatedAt
			return snapshot(ws), nil
		}
	}
	return updated, nil
}

// DeleteWorkspace deletes a workspace remotely and removes it from the cache.
// If it was active, a new active workspace is derived in the same operation,
// so the active reference never points at a deleted id.
func (m *Manager) DeleteWorkspace(ctx context.Context, id string) error {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	err := m.delete(ctx, id)
	m.record(workflowDelete, err)
	if err != nil {
		m.logger.Error("failed to delete workspace", "workspace_id", id, "error", err)
		return err
	}

	m.logger.Info("workspace deleted", "workspace_id", id)
	return nil
}

func (m *Manager) delete(ctx context.Context, id string) error {
	m.stateMu.RLock()
	known := false
	for _, ws := range m.cache {
		if ws.ID == id {
			known = true
			break
		}
	}
	m.stateMu.RUnlock()
	if !known {
		return ErrNotFound
	}

	if err := m.workspaces.Delete(ctx, id); err != nil {
		return err
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	for i, ws := range m.cache {
		if ws.ID == id {
			m.cache = append(m.cache[:i], m.cache[i+1:]...)
			break
		}
	}
	if m.active != nil && m.active.ID == id {
		if len(m.cache) > 0 {
			m.active = m.cache[0]
		} else {
			m.active = nil
		}
	}
	return nil
}

// UploadIcon uploads an icon for a workspace and persists its public URL onto
// the workspace row. Upload and the follow-up update surface as one combined
// failure; no retry is attempted.
func (m *Manager) UploadIcon(ctx context.Context, id string, icon *IconFile) (*models.Workspace, error) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	ws, err := m.uploadIcon(ctx, id, icon)
	m.record(workflowIconUpload, err)
	if err != nil {
		m.logger.Error("failed to upload workspace icon", "workspace_id", id, "error", err)
		return nil, err
	}
	return ws, nil
}

func (m *Manager) uploadIcon(ctx context.Context, id string, icon *IconFile) (*models.Workspace, error) {
	ext := filepath.Ext(icon.Filename)
	path := id + ext

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := m.icons.Upload(ctx, path, icon.Reader, icon.Size, contentType, true); err != nil {
		return nil, fmt.Errorf("failed to upload icon: %w", err)
	}

	url := m.icons.PublicURL(path)
	ws, err := m.update(ctx, id, models.WorkspaceUpdate{IconURL: &url})
	if err != nil {
		return nil, fmt.Errorf("icon uploaded but workspace update failed: %w", err)
	}
	return ws, nil
}

// JoinByCode joins the current user to the workspace carrying the invite code,
// then reloads and selects it. Fails with ErrInvalidInviteCode when no
// workspace matches and ErrAlreadyMember when the user already belongs; in
// neither case is a membership row inserted.
func (m *Manager) JoinByCode(ctx context.Context, code string) (*models.Workspace, error) {
	m.workflowMu.Lock()
	defer m.workflowMu.Unlock()

	ws, err := m.join(ctx, code)
	m.record(workflowJoin, err)
	if err != nil {
		m.logger.Error("failed to join workspace", "error", err)
		return nil, err
	}

	m.logger.Info("joined workspace", "workspace_id", ws.ID, "name", ws.Name)
	return ws, nil
}

func (m *Manager) join(ctx context.Context, code string) (*models.Workspace, error) {
	userID := m.identity.CurrentUserID()
	if userID == "" {
		return nil, ErrNoSession
	}

	ws, err := m.workspaces.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrInvalidInviteCode
	}

	// Check-then-insert is not atomic against a concurrent join by the same
	// user from another gateway; a duplicate row is a tolerated benign race.
	existing, err := m.members.Get(ctx, ws.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	if err := m.members.Add(ctx, ws.ID, userID, models.RoleMember); err != nil {
		return nil, err
	}

	if err := m.load(ctx); err != nil {
		return nil, fmt.Errorf("joined workspace %s but reload failed: %w", ws.ID, err)
	}
	m.setActive(ctx, ws.ID)

	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	for _, cached := range m.cache {
		if cached.ID == ws.ID {
			return snapshot(cached), nil
		}
	}
	return ws, nil
}

func (m *Manager) setLoading(v bool) {
	m.stateMu.Lock()
	m.loading = v
	m.stateMu.Unlock()
}

// record stores the workflow outcome in the error slot and bumps the metrics
func (m *Manager) record(workflow string, err error) {
	m.stateMu.Lock()
	m.lastErr = err
	m.stateMu.Unlock()
	telemetry.RecordWorkflow(workflow, err)
}
