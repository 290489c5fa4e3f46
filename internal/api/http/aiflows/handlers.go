// Package aiflows exposes the AI flows as synchronous JSON endpoints.
package aiflows

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/flows"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

type Handler struct {
	svc *flows.Service
}

func NewHandler(svc *flows.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the routes under /flows.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/analyze", handle(flows.OpAnalysisReport, h.svc.GenerateAnalysisReport))
	rg.POST("/frontend-suggestions", handle(flows.OpFrontendSuggestions, h.svc.SuggestFrontendChanges))
	rg.POST("/backend-suggestions", handle(flows.OpBackendSuggestions, h.svc.SuggestBackendChanges))
	rg.POST("/image", handle(flows.OpImage, h.svc.GenerateImage))
	rg.POST("/audio", handle(flows.OpAudio, h.svc.GenerateAudio))
	rg.POST("/chat", handle(flows.OpChat, h.svc.ChatTurn))
	rg.POST("/research", handle(flows.OpDeepResearch, h.svc.DeepResearchTurn))
	rg.POST("/debate", handle(flows.OpDebate, h.svc.SynthesizeDebate))
	rg.POST("/video", handle(flows.OpVideo, h.video))
}

// video runs the whole poll loop inside the request.
func (h *Handler) video(ctx context.Context, in flows.VideoInput) (*flows.VideoOutput, error) {
	return h.svc.GenerateVideo(ctx, in, nil)
}

func handle[In any, Out any](op string, fn func(context.Context, In) (*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid json body"})
			return
		}
		out, err := fn(c.Request.Context(), in)
		if err != nil {
			writeError(c, op, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "result": out})
	}
}

func writeError(c *gin.Context, op string, err error) {
	var ferr *flows.Error
	switch {
	case errors.Is(err, flows.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, context.Canceled):
		// client went away
		c.Status(499)
	case errors.As(err, &ferr):
		logging.FromContext(c.Request.Context()).LogError(op, err)
		status := http.StatusBadGateway
		if errors.Is(err, flows.ErrPollExhausted) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"ok": false, "error": ferr.Message})
	default:
		logging.FromContext(c.Request.Context()).LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
