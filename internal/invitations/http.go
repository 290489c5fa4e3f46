package invitations

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

// RegisterProjectRoutes mounts POST /:id/invitations on the projects group.
func (h *Handler) RegisterProjectRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/invitations", h.invite)
}

// Register mounts the invitee's routes under /invitations.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("/:id/accept", h.accept)
	rg.POST("/:id/decline", h.decline)
}

type inviteReq struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) invite(c *gin.Context) {
	var req inviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "email is required"})
		return
	}
	inv, err := h.svc.Invite(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"), req.Email)
	if err != nil {
		writeError(c, "invite", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "invitation": inv})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), auth.UserFirebaseUID(c))
	if err != nil {
		writeError(c, "list_invitations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invitations": items})
}

func (h *Handler) accept(c *gin.Context) {
	inv, err := h.svc.Accept(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, "accept_invitation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invitation": inv})
}

func (h *Handler) decline(c *gin.Context) {
	inv, err := h.svc.Decline(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, "decline_invitation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invitation": inv})
}

func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalid), errors.Is(err, service.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "invitation not found"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrAlreadyResponded):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
