package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the caller's own profile.
type Handler struct {
	repo   Repository
	uidKey string
}

// NewHandler reads the caller's uid from the gin context key uidKey.
func NewHandler(repo Repository, uidKey string) *Handler {
	return &Handler{repo: repo, uidKey: uidKey}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.PUT("/me", h.updateMe)
}

func (h *Handler) me(c *gin.Context) {
	uid := c.GetString(h.uidKey)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	u, err := h.repo.Get(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": u})
}

type updateProfileReq struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// updateMe overwrites the non-empty profile fields; the email always comes
// from the verified token.
func (h *Handler) updateMe(c *gin.Context) {
	uid := c.GetString(h.uidKey)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}
	if req.DisplayName == "" && req.PhotoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "nothing to update"})
		return
	}
	u, err := h.repo.EnsureUser(c.Request.Context(), UpsertUser{
		FirebaseUID: uid,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to update user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": u})
}
