package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

// GeminiConfig selects backend, models and call rate.
type GeminiConfig struct {
	APIKey     string
	Vertex     bool
	Project    string
	Location   string
	TextModel  string
	ImageModel string
	TTSModel   string
	VideoModel string
	RateLimit  float64
	RateBurst  int
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string
}

// Gemini implements Client using Google's Gemini models.
type Gemini struct {
	client  *genai.Client
	cfg     GeminiConfig
	limiter *rate.Limiter
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Vertex {
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Gemini{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

func (g *Gemini) call(ctx context.Context, operation string, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", operation, err)
	}
	start := time.Now()
	err := fn()
	RecordCall(operation, time.Since(start), err)
	if err != nil {
		logging.FromContext(ctx).LogError(operation, err)
	}
	return err
}

func toContents(history []Message, final string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if final != "" {
		contents = append(contents, genai.NewContentFromText(final, genai.RoleUser))
	}
	return contents
}

func systemInstruction(system string) *genai.Content {
	if strings.TrimSpace(system) == "" {
		return nil
	}
	return genai.NewContentFromText(system, genai.RoleUser)
}

// GenerateJSON asks for a JSON response constrained by req.Schema and decodes it into out.
func (g *Gemini) GenerateJSON(ctx context.Context, req StructuredRequest, out any) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(req.System),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    req.Schema,
	}

	return g.call(ctx, req.Operation, func() error {
		res, err := g.client.Models.GenerateContent(ctx, g.cfg.TextModel, toContents(req.History, req.Prompt), cfg)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		text := strings.TrimSpace(res.Text())
		if text == "" {
			return ErrNoCandidate
		}
		if err := json.Unmarshal([]byte(text), out); err != nil {
			return fmt.Errorf("decode structured output: %w", err)
		}
		return nil
	})
}

// Chat runs one conversational turn, offering req.Tools as callable functions.
func (g *Gemini) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(req.System),
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: req.Tools}}
	}

	var out ChatResponse
	err := g.call(ctx, req.Operation, func() error {
		res, err := g.client.Models.GenerateContent(ctx, g.cfg.TextModel, toContents(req.History, req.Message), cfg)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if calls := res.FunctionCalls(); len(calls) > 0 {
			out.FunctionCall = &FunctionCall{Name: calls[0].Name, Args: calls[0].Args}
			return nil
		}
		out.Text = res.Text()
		if strings.TrimSpace(out.Text) == "" {
			return ErrNoCandidate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func firstInlineData(res *genai.GenerateContentResponse, prefix string) *Blob {
	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if prefix == "" || strings.HasPrefix(part.InlineData.MIMEType, prefix) {
				return &Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
			}
		}
	}
	return nil
}

// GenerateImage returns the first inline image of an image-capable model.
func (g *Gemini) GenerateImage(ctx context.Context, operation, prompt string) (*Blob, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	var blob *Blob
	err := g.call(ctx, operation, func() error {
		res, err := g.client.Models.GenerateContent(ctx, g.cfg.ImageModel, genai.Text(prompt), cfg)
		if err != nil {
			return fmt.Errorf("generate image: %w", err)
		}
		if blob = firstInlineData(res, "image/"); blob == nil {
			return ErrNoCandidate
		}
		return nil
	})
	return blob, err
}

// GenerateSpeech synthesises text into raw PCM audio.
func (g *Gemini) GenerateSpeech(ctx context.Context, operation, text, voice string) (*Blob, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	var blob *Blob
	err := g.call(ctx, operation, func() error {
		res, err := g.client.Models.GenerateContent(ctx, g.cfg.TTSModel, genai.Text(text), cfg)
		if err != nil {
			return fmt.Errorf("generate speech: %w", err)
		}
		if blob = firstInlineData(res, "audio/"); blob == nil {
			return ErrNoCandidate
		}
		return nil
	})
	return blob, err
}

// StartVideo starts a long-running video generation.
func (g *Gemini) StartVideo(ctx context.Context, req VideoRequest) (*VideoOperation, error) {
	cfg := &genai.GenerateVideosConfig{
		AspectRatio: req.AspectRatio,
	}
	if req.DurationSeconds > 0 {
		cfg.DurationSeconds = genai.Ptr[int32](int32(req.DurationSeconds))
	}

	var out *VideoOperation
	err := g.call(ctx, "video_start", func() error {
		op, err := g.client.Models.GenerateVideos(ctx, g.cfg.VideoModel, req.Prompt, nil, cfg)
		if err != nil {
			return fmt.Errorf("generate videos: %w", err)
		}
		out = fromVideoOperation(op)
		return nil
	})
	return out, err
}

// PollVideo refreshes the state of a video operation.
func (g *Gemini) PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error) {
	var out *VideoOperation
	err := g.call(ctx, "video_poll", func() error {
		fresh, err := g.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
		if err != nil {
			return fmt.Errorf("get videos operation: %w", err)
		}
		out = fromVideoOperation(fresh)
		return nil
	})
	return out, err
}

func fromVideoOperation(op *genai.GenerateVideosOperation) *VideoOperation {
	out := &VideoOperation{Name: op.Name, Done: op.Done}
	if len(op.Error) > 0 {
		if msg, ok := op.Error["message"].(string); ok {
			out.Error = msg
		} else {
			out.Error = fmt.Sprint(op.Error)
		}
	}
	if op.Response != nil {
		for _, gv := range op.Response.GeneratedVideos {
			if gv == nil || gv.Video == nil {
				continue
			}
			out.Videos = append(out.Videos, Video{
				URI:      gv.Video.URI,
				MIMEType: gv.Video.MIMEType,
				Data:     gv.Video.VideoBytes,
			})
		}
	}
	return out
}

// DownloadVideo returns inline bytes, or downloads the generated file. Vertex
// writes videos to Cloud Storage, so gs:// URIs are read from the bucket.
func (g *Gemini) DownloadVideo(ctx context.Context, v Video) ([]byte, error) {
	if len(v.Data) > 0 {
		return v.Data, nil
	}
	if v.URI == "" {
		return nil, ErrNoCandidate
	}

	if strings.HasPrefix(v.URI, "gs://") {
		return downloadGCS(ctx, v.URI)
	}

	data, err := g.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: v.URI, MIMEType: v.MIMEType}), nil)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	return data, nil
}

func downloadGCS(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("invalid storage uri %q", uri)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}
