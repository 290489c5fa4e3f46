// Package llm is the boundary to the hosted generative-AI API. Flows depend on
// the Client interface; Gemini implements it over google.golang.org/genai.
package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrNoCandidate is returned when the model produced nothing usable.
var ErrNoCandidate = errors.New("model returned no usable candidate")

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Blob is inline binary output (image, audio, video).
type Blob struct {
	MIMEType string
	Data     []byte
}

// StructuredRequest asks for JSON matching Schema.
type StructuredRequest struct {
	Operation string
	System    string
	History   []Message
	Prompt    string
	Schema    *genai.Schema
}

// ChatRequest is a free-form chat turn, optionally offering tools.
type ChatRequest struct {
	Operation string
	System    string
	History   []Message
	Message   string
	Tools     []*genai.FunctionDeclaration
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ChatResponse carries either text or a function call.
type ChatResponse struct {
	Text         string
	FunctionCall *FunctionCall
}

// VideoRequest starts a long-running video generation.
type VideoRequest struct {
	Prompt          string
	AspectRatio     string
	DurationSeconds int
}

// Video is a generated video, either inline or behind a URI.
type Video struct {
	URI      string
	MIMEType string
	Data     []byte
}

// VideoOperation is the handle of a long-running video generation.
type VideoOperation struct {
	Name   string
	Done   bool
	Videos []Video
	Error  string
}

// Client is the generative-AI surface the flows use.
type Client interface {
	GenerateJSON(ctx context.Context, req StructuredRequest, out any) error
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GenerateImage(ctx context.Context, operation, prompt string) (*Blob, error)
	GenerateSpeech(ctx context.Context, operation, text, voice string) (*Blob, error)
	StartVideo(ctx context.Context, req VideoRequest) (*VideoOperation, error)
	PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
	DownloadVideo(ctx context.Context, v Video) ([]byte, error)
}
