package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/flows"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/service"
)

type Handler struct {
	jobs *service.JobService
}

func New(jobs *service.JobService) *Handler {
	return &Handler{jobs: jobs}
}

// Register mounts the media job routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/video", h.startVideo)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.DELETE("/:id", h.cancel)
}

func (h *Handler) startVideo(c *gin.Context) {
	var in flows.VideoInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	job, err := h.jobs.StartVideo(c.Request.Context(), auth.UserFirebaseUID(c), in)
	if err != nil {
		writeError(c, "start_video_job", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job": job})
}

func (h *Handler) list(c *gin.Context) {
	jobs, err := h.jobs.List(c.Request.Context(), auth.UserFirebaseUID(c))
	if err != nil {
		writeError(c, "list_media_jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "jobs": jobs})
}

func (h *Handler) get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, "get_media_job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "job": job})
}

func (h *Handler) cancel(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, "cancel_media_job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "job": job})
}

func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, flows.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
	case errors.Is(err, domain.ErrJobFinished):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
