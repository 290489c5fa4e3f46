package assets

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the routes under /clients.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/:client_id/design-assets", h.list)
	rg.POST("/:client_id/design-assets", h.upload)
	rg.DELETE("/:client_id/design-assets/:id", h.delete)
}

type uploadReq struct {
	Kind    Kind   `json:"kind" binding:"required"`
	DataURI string `json:"dataUri" binding:"required"`
	Prompt  string `json:"prompt"`
}

func (h *Handler) upload(c *gin.Context) {
	var req uploadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "kind and dataUri are required"})
		return
	}
	a, err := h.svc.Upload(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("client_id"), req.Kind, req.DataURI, req.Prompt)
	if err != nil {
		writeError(c, "upload_design_asset", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "asset": a})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("client_id"))
	if err != nil {
		writeError(c, "list_design_assets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "assets": items})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("client_id"), c.Param("id")); err != nil {
		writeError(c, "delete_design_asset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "design asset not found"})
	default:
		logging.FromContext(c.Request.Context()).LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
