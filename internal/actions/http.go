package actions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the action routes under the projects group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.DELETE("/:id", h.deleteProject)
	rg.POST("/:id/apply-changes", h.applyChanges)
}

func (h *Handler) deleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteProject(c.Request.Context(), auth.UserFirebaseUID(c), id); err != nil {
		writeError(c, "delete_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": id})
}

type applyChangesReq struct {
	Changes string `json:"changes"`
}

func (h *Handler) applyChanges(c *gin.Context) {
	var req applyChangesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if err := h.svc.ApplyChanges(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"), req.Changes); err != nil {
		writeError(c, "apply_changes", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
