// workspaces.go implements the frontend-facing handlers for workspace listing,
// creation, update, deletion, selection, invite-code joins, and icon uploads.
// Handlers stay thin: every workflow lives in the workspace manager, and the
// handler's only jobs are request decoding and error-to-status mapping.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bandroomhq/bandroom/internal/auth"
	"github.com/bandroomhq/bandroom/internal/db/models"
	"github.com/bandroomhq/bandroom/internal/workspace"
)

// maxIconSize caps multipart icon uploads at 5 MiB
const maxIconSize = 5 << 20

// WorkspaceHandlers handles workspace endpoints, delegating to the manager
type WorkspaceHandlers struct {
	manager *workspace.Manager
}

// NewWorkspaceHandlers creates a new WorkspaceHandlers instance
func NewWorkspaceHandlers(manager *workspace.Manager) *WorkspaceHandlers {
	return &WorkspaceHandlers{manager: manager}
}

// workspaceStateResponse builds the cache view the frontend renders from
func (h *WorkspaceHandlers) workspaceStateResponse() gin.H {
	resp := gin.H{
		"workspaces": h.manager.Workspaces(),
		"loading":    h.manager.Loading(),
	}
	if active := h.manager.Active(); active != nil {
		resp["active_id"] = active.ID
	}
	if err := h.manager.Err(); err != nil {
		resp["error"] = err.Error()
	}
	return resp
}

// List returns the current cache view without touching the remote store
// GET /api/v1/workspaces
func (h *WorkspaceHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.workspaceStateResponse())
}

// Refresh reloads the workspace list from the remote store and restores the
// persisted selection, then returns the fresh cache view. Load failures are
// reported inside the state body, not as an HTTP error, mirroring the
// manager's read-workflow contract.
// POST /api/v1/workspaces/refresh
func (h *WorkspaceHandlers) Refresh(c *gin.Context) {
	h.manager.LoadWorkspaces(c.Request.Context())
	if h.manager.Err() == nil {
		h.manager.RestoreSelection(c.Request.Context())
	}
	c.JSON(http.StatusOK, h.workspaceStateResponse())
}

// Create creates a workspace from a JSON body or a multipart form with an
// optional icon file.
// POST /api/v1/workspaces
func (h *WorkspaceHandlers) Create(c *gin.Context) {
	var name string
	var icon *workspace.IconFile

	if isMultipart(c) {
		name = c.PostForm("name")
		file, err := c.FormFile("icon")
		if err == nil {
			if file.Size > maxIconSize {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Icon exceeds the 5 MiB limit"})
				return
			}
			reader, openErr := file.Open()
			if openErr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read icon file"})
				return
			}
			defer reader.Close()
			icon = &workspace.IconFile{
				Filename: file.Filename,
				Reader:   reader,
				Size:     file.Size,
			}
		}
	} else {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Workspace name is required"})
			return
		}
		name = req.Name
	}

	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workspace name is required"})
		return
	}

	ws, err := h.manager.CreateWorkspace(c.Request.Context(), name, icon)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"workspace": ws})
}

// Update renames a workspace or replaces its icon URL
// PATCH /api/v1/workspaces/:id
func (h *WorkspaceHandlers) Update(c *gin.Context) {
	var req models.WorkspaceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	ws, err := h.manager.UpdateWorkspace(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspace": ws})
}

// Delete removes a workspace
// DELETE /api/v1/workspaces/:id
func (h *WorkspaceHandlers) Delete(c *gin.Context) {
	if err := h.manager.DeleteWorkspace(c.Request.Context(), c.Param("id")); err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.workspaceStateResponse())
}

// UploadIcon uploads a workspace icon from a multipart form
// POST /api/v1/workspaces/:id/icon
func (h *WorkspaceHandlers) UploadIcon(c *gin.Context) {
	file, err := c.FormFile("icon")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Icon file is required"})
		return
	}
	if file.Size > maxIconSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Icon exceeds the 5 MiB limit"})
		return
	}

	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read icon file"})
		return
	}
	defer reader.Close()

	ws, err := h.manager.UploadIcon(c.Request.Context(), c.Param("id"), &workspace.IconFile{
		Filename: file.Filename,
		Reader:   reader,
		Size:     file.Size,
	})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspace": ws})
}

// Join joins the current user to a workspace by invite code
// POST /api/v1/workspaces/join
func (h *WorkspaceHandlers) Join(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invite code is required"})
		return
	}

	ws, err := h.manager.JoinByCode(c.Request.Context(), req.Code)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspace": ws})
}

// SetActive selects the active workspace. An id the gateway does not know is
// not an error; the response simply reflects the unchanged selection.
// PUT /api/v1/workspaces/active
func (h *WorkspaceHandlers) SetActive(c *gin.Context) {
	var req struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workspace id is required"})
		return
	}

	h.manager.SetActiveWorkspace(c.Request.Context(), req.ID)
	c.JSON(http.StatusOK, h.workspaceStateResponse())
}

func isMultipart(c *gin.Context) bool {
	contentType := c.ContentType()
	return contentType == "multipart/form-data"
}

// respondWorkflowError maps manager errors onto HTTP statuses
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
	case errors.Is(err, workspace.ErrInvalidInviteCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invite code"})
	case errors.Is(err, workspace.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "Already a member of this workspace"})
	case errors.Is(err, workspace.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in required"})
	default:
		var reqErr *auth.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode != 0 {
			c.JSON(reqErr.StatusCode, gin.H{"error": reqErr.Message})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
