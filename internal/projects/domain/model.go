package domain

import (
	"errors"
	"slices"
	"strconv"
	"time"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrConflict  = errors.New("project was modified concurrently")
	ErrForbidden = errors.New("project is not shared with this user")
)

type ProjectType string

const (
	TypeAnalysis ProjectType = "analysis"
	TypeChat     ProjectType = "chat"
)

// Valid reports whether t is a known project type.
func (t ProjectType) Valid() bool {
	return t == TypeAnalysis || t == TypeChat
}

// HistoryItem is an append-only activity log entry.
type HistoryItem struct {
	ID        string    `json:"id" firestore:"id"`
	Message   string    `json:"message" firestore:"message"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}

// NewHistoryItem derives the id from the creation time in unix milliseconds.
func NewHistoryItem(message string, now time.Time) HistoryItem {
	return HistoryItem{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Message:   message,
		Timestamp: now.UTC(),
	}
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type ChatMessage struct {
	Role    string `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
}

// Suggestion is overwritten wholesale on every regeneration.
type Suggestion struct {
	SuggestedChanges  string `json:"suggestedChanges" firestore:"suggestedChanges"`
	Reasoning         string `json:"reasoning" firestore:"reasoning"`
	VisualDescription string `json:"visualDescription,omitempty" firestore:"visualDescription,omitempty"`
}

// State is the mutable subset of a project mirrored by a workspace.
type State struct {
	AnalysisReport      string        `json:"analysisReport,omitempty"`
	FrontendSuggestions *Suggestion   `json:"frontendSuggestions,omitempty"`
	BackendSuggestions  *Suggestion   `json:"backendSuggestions,omitempty"`
	History             []HistoryItem `json:"history"`
	ChatHistory         []ChatMessage `json:"chatHistory"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		AnalysisReport: s.AnalysisReport,
		History:        slices.Clone(s.History),
		ChatHistory:    slices.Clone(s.ChatHistory),
	}
	if s.FrontendSuggestions != nil {
		v := *s.FrontendSuggestions
		out.FrontendSuggestions = &v
	}
	if s.BackendSuggestions != nil {
		v := *s.BackendSuggestions
		out.BackendSuggestions = &v
	}
	if out.History == nil {
		out.History = []HistoryItem{}
	}
	if out.ChatHistory == nil {
		out.ChatHistory = []ChatMessage{}
	}
	return out
}

// Project is one analysis or chat session, storage-agnostic.
type Project struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"ownerId"`
	Name          string      `json:"name"`
	ProjectType   ProjectType `json:"projectType"`
	IsPublic      bool        `json:"isPublic"`
	Collaborators []string    `json:"collaborators"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	State
}

// CanRead reports whether uid may read the project.
func (p *Project) CanRead(uid string) bool {
	return p.IsPublic || p.OwnerID == uid || slices.Contains(p.Collaborators, uid)
}

// Patch holds the user-editable metadata; nil fields are left unchanged.
type Patch struct {
	Name     *string `json:"name,omitempty"`
	IsPublic *bool   `json:"isPublic,omitempty"`
}

// AnyVersion disables the version check on SaveState.
const AnyVersion int64 = -1
