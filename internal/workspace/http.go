package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/events"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
)

const (
	SessionHeader  = "X-Session-Id"
	defaultSession = "default"
)

type Handler struct {
	reg       *Registry
	bus       events.Bus
	keepAlive time.Duration
}

func NewHandler(reg *Registry, bus events.Bus) *Handler {
	return &Handler{reg: reg, bus: bus, keepAlive: 15 * time.Second}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.snapshot)
	rg.DELETE("", h.clear)
	rg.POST("/project", h.createProject)
	rg.PUT("/project/:id", h.setProject)
	rg.PUT("/report", h.setReport)
	rg.PUT("/suggestions/:kind", h.setSuggestions)
	rg.POST("/history", h.addHistory)
	rg.POST("/chat", h.addChat)
	rg.POST("/flush", h.flush)
	rg.GET("/events", h.stream)
}

func sessionID(c *gin.Context) string {
	if s := strings.TrimSpace(c.GetHeader(SessionHeader)); s != "" {
		return s
	}
	return defaultSession
}

func (h *Handler) store(c *gin.Context) (*Store, bool) {
	st, err := h.reg.Get(c.Request.Context(), auth.UserFirebaseUID(c), sessionID(c))
	if err != nil {
		writeError(c, "workspace_load", err)
		return nil, false
	}
	return st, true
}

func (h *Handler) snapshot(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "workspace": st.Snapshot()})
}

func (h *Handler) clear(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	st.ClearState()
	c.JSON(http.StatusOK, gin.H{"ok": true, "workspace": st.Snapshot()})
}

type createProjectReq struct {
	Name        string             `json:"name"`
	ProjectType domain.ProjectType `json:"projectType"`
}

func (h *Handler) createProject(c *gin.Context) {
	var req createProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	if _, err := st.CreateProject(c.Request.Context(), req.Name, req.ProjectType); err != nil {
		writeError(c, "workspace_create_project", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "workspace": st.Snapshot()})
}

func (h *Handler) setProject(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	if err := st.SetProjectID(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "workspace_set_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "workspace": st.Snapshot()})
}

type reportReq struct {
	AnalysisReport string `json:"analysisReport"`
}

func (h *Handler) setReport(c *gin.Context) {
	var req reportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	st.SetAnalysisReport(req.AnalysisReport)
	c.JSON(http.StatusOK, gin.H{"ok": true, "workspace": st.Snapshot()})
}

// setSuggestions takes a Suggestion body, or JSON null to clear it.
func (h *Handler) setSuggestions(c *gin.Context) {
	var sg *domain.Suggestion
	if err := json.NewDecoder(c.Request.Body).Decode(&sg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	kind := c.Param("kind")
	if kind != "frontend" && kind != "backend" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "kind must be frontend or backend"})
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	if kind == "frontend" {
		st.SetFrontendSuggestions(sg)
	} else {
		st.SetBackendSuggestions(sg)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "workspace": st.Snapshot()})
}

type historyReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) addHistory(c *gin.Context) {
	var req historyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "message is required"})
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	item := st.AddHistory(req.Message)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "item": item})
}

func (h *Handler) addChat(c *gin.Context) {
	var msg domain.ChatMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	if err := st.AddChatMessage(msg); err != nil {
		writeError(c, "workspace_add_chat", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "workspace": st.Snapshot()})
}

func (h *Handler) flush(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	if err := st.Flush(c.Request.Context()); err != nil {
		writeError(c, "workspace_flush", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "workspace": st.Snapshot()})
}

// stream pushes snapshots of the session and revalidation signals for the
// user over Server-Sent Events.
func (h *Handler) stream(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var revalidate <-chan events.Event
	if h.bus != nil {
		ch, cancel, err := h.bus.Subscribe(ctx, st.UserID())
		if err != nil {
			logging.FromContext(ctx).LogWarnf("workspace_events", "revalidation feed unavailable: %v", err)
		} else {
			defer cancel()
			revalidate = ch
		}
	}

	updates := make(chan Snapshot, 1)
	unsubscribe := st.Subscribe(func(s Snapshot) {
		// keep only the newest snapshot
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	send := func(event string, v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}
	send("snapshot", st.Snapshot())

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		case snap := <-updates:
			send("snapshot", snap)
		case ev, ok := <-revalidate:
			if !ok {
				revalidate = nil
				continue
			}
			send("revalidate", ev)
		}
	}
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
