// Package llmtest provides an in-memory llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
)

// Fake is a scripted llm.Client. Zero values produce llm.ErrNoCandidate.
type Fake struct {
	mu sync.Mutex

	// JSON maps an operation name to the value returned by GenerateJSON.
	JSON    map[string]any
	JSONErr error

	ChatResponse *llm.ChatResponse
	ChatErr      error

	Image  *llm.Blob
	Speech *llm.Blob

	// PollsUntilDone is the number of PollVideo calls before the operation
	// completes; negative means never.
	PollsUntilDone int
	Video          *llm.Video
	VideoError     string

	Calls    []string
	Prompts  map[string]string
	Requests []llm.ChatRequest
	polls    int
}

var _ llm.Client = (*Fake)(nil)

func (f *Fake) record(op, prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, op)
	if f.Prompts == nil {
		f.Prompts = make(map[string]string)
	}
	f.Prompts[op] = prompt
}

// CallCount returns how many calls were recorded for op.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *Fake) GenerateJSON(ctx context.Context, req llm.StructuredRequest, out any) error {
	f.record(req.Operation, req.Prompt)
	if f.JSONErr != nil {
		return f.JSONErr
	}
	v, ok := f.JSON[req.Operation]
	if !ok {
		return llm.ErrNoCandidate
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fake marshal: %w", err)
	}
	return json.Unmarshal(b, out)
}

func (f *Fake) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.record(req.Operation, req.Message)
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	f.mu.Unlock()
	if f.ChatErr != nil {
		return nil, f.ChatErr
	}
	if f.ChatResponse == nil {
		return nil, llm.ErrNoCandidate
	}
	resp := *f.ChatResponse
	return &resp, nil
}

func (f *Fake) GenerateImage(ctx context.Context, operation, prompt string) (*llm.Blob, error) {
	f.record(operation, prompt)
	if f.Image == nil {
		return nil, llm.ErrNoCandidate
	}
	return f.Image, nil
}

func (f *Fake) GenerateSpeech(ctx context.Context, operation, text, voice string) (*llm.Blob, error) {
	f.record(operation, text)
	if f.Speech == nil {
		return nil, llm.ErrNoCandidate
	}
	return f.Speech, nil
}

func (f *Fake) StartVideo(ctx context.Context, req llm.VideoRequest) (*llm.VideoOperation, error) {
	f.record("video_start", req.Prompt)
	f.mu.Lock()
	f.polls = 0
	f.mu.Unlock()
	return f.videoState(), nil
}

func (f *Fake) PollVideo(ctx context.Context, op *llm.VideoOperation) (*llm.VideoOperation, error) {
	f.record("video_poll", op.Name)
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
	return f.videoState(), nil
}

func (f *Fake) videoState() *llm.VideoOperation {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := &llm.VideoOperation{Name: "operations/fake-video"}
	if f.PollsUntilDone < 0 || f.polls < f.PollsUntilDone {
		return op
	}
	op.Done = true
	op.Error = f.VideoError
	if f.Video != nil {
		op.Videos = []llm.Video{*f.Video}
	}
	return op
}

func (f *Fake) DownloadVideo(ctx context.Context, v llm.Video) ([]byte, error) {
	if len(v.Data) == 0 {
		return nil, llm.ErrNoCandidate
	}
	return v.Data, nil
}
