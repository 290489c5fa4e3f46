package flows

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/llm/llmtest"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newService(t *testing.T, fake *llmtest.Fake, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithSleep(noSleep)}, opts...)
	s, err := New(fake, opts...)
	require.NoError(t, err)
	return s
}

func TestGenerateAnalysisReport_Scenario(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{
		OpAnalysisReport: map[string]string{"report": "# Report\nA single text file."},
	}}
	s := newService(t, fake)

	out, err := s.GenerateAnalysisReport(context.Background(), AnalysisInput{FileStructure: "a.txt", CodeSnippets: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Report)
	assert.Contains(t, fake.Prompts[OpAnalysisReport], "a.txt")
	assert.Contains(t, fake.Prompts[OpAnalysisReport], "hello")
}

func TestGenerateAnalysisReport_InvalidInputMakesNoCall(t *testing.T) {
	fake := &llmtest.Fake{}
	s := newService(t, fake)

	_, err := s.GenerateAnalysisReport(context.Background(), AnalysisInput{})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, fake.Calls)
}

func TestGenerateAnalysisReport_EmptyReport(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{OpAnalysisReport: map[string]string{"report": ""}}}
	s := newService(t, fake)

	_, err := s.GenerateAnalysisReport(context.Background(), AnalysisInput{FileStructure: "a.txt", CodeSnippets: "hello"})
	require.ErrorIs(t, err, ErrEmptyResult)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "failed to generate analysis report", ferr.Error())
	assert.Equal(t, 1, fake.CallCount(OpAnalysisReport))
}

func TestGenerateAnalysisReport_UploadedFiles(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{OpAnalysisReport: map[string]string{"report": "ok"}}}
	s := newService(t, fake)

	_, err := s.GenerateAnalysisReport(context.Background(), AnalysisInput{Files: []UploadedFile{
		{Path: "src/main.go", Content: media.EncodeDataURI("text/plain", []byte("package main"))},
		{Path: "logo.png", Content: media.EncodeDataURI("image/png", []byte{0x89, 0x50})},
	}})
	require.NoError(t, err)

	prompt := fake.Prompts[OpAnalysisReport]
	assert.Contains(t, prompt, "src/main.go")
	assert.Contains(t, prompt, "package main")
	assert.Contains(t, prompt, "[binary image/png, 2 bytes]")
}

func TestGenerateAnalysisReport_BadUpload(t *testing.T) {
	s := newService(t, &llmtest.Fake{})

	_, err := s.GenerateAnalysisReport(context.Background(), AnalysisInput{Files: []UploadedFile{
		{Path: "x", Content: "data:text/plain;base64,@@@"},
	}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSuggestions(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{
		OpFrontendSuggestions: map[string]string{"suggestedChanges": "add button", "reasoning": "users asked", "visualDescription": "blue"},
		OpBackendSuggestions:  map[string]string{"suggestedChanges": "add endpoint", "reasoning": "needed", "visualDescription": "ignored"},
	}}
	s := newService(t, fake)
	in := SuggestionInput{AnalysisReport: "report", Request: "dark mode"}

	fe, err := s.SuggestFrontendChanges(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "blue", fe.VisualDescription)

	be, err := s.SuggestBackendChanges(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "add endpoint", be.SuggestedChanges)
	assert.Empty(t, be.VisualDescription)

	_, err = s.SuggestBackendChanges(context.Background(), SuggestionInput{Request: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSuggestions_MissingReasoning(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{
		OpFrontendSuggestions: map[string]string{"suggestedChanges": "add button"},
	}}
	s := newService(t, fake)

	_, err := s.SuggestFrontendChanges(context.Background(), SuggestionInput{AnalysisReport: "r", Request: "q"})
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestGenerateImage(t *testing.T) {
	fake := &llmtest.Fake{Image: &llm.Blob{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}}
	s := newService(t, fake)

	out, err := s.GenerateImage(context.Background(), ImageInput{Prompt: "a cat", Style: "watercolor"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.ImageDataURI, "data:image/jpeg;base64,"))
	assert.Contains(t, fake.Prompts[OpImage], "watercolor")

	_, err = newService(t, &llmtest.Fake{}).GenerateImage(context.Background(), ImageInput{Prompt: "a cat"})
	require.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, "no image was generated", err.Error())
}

func TestGenerateAudio_FramesPCM(t *testing.T) {
	pcm := make([]byte, 480)
	fake := &llmtest.Fake{Speech: &llm.Blob{MIMEType: "audio/L16;codec=pcm;rate=16000", Data: pcm}}
	s := newService(t, fake)

	out, err := s.GenerateAudio(context.Background(), AudioInput{Text: "hello"})
	require.NoError(t, err)

	d, err := media.DecodeDataURI(out.AudioDataURI)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", d.MediaType)
	require.Len(t, d.Data, media.WAVHeaderSize+len(pcm))
	assert.Equal(t, "RIFF", string(d.Data[0:4]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(d.Data[24:28]))
}

func TestGenerateAudio_RejectsBadVoice(t *testing.T) {
	fake := &llmtest.Fake{}
	s := newService(t, fake)

	_, err := s.GenerateAudio(context.Background(), AudioInput{Text: "hi", Voice: "not a voice!"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, fake.Calls)
}

func TestGenerateVideo_PollsUntilDone(t *testing.T) {
	fake := &llmtest.Fake{
		PollsUntilDone: 3,
		Video:          &llm.Video{Data: []byte("mp4")},
	}
	s := newService(t, fake, WithPollPolicy(PollPolicy{Interval: time.Millisecond, MaxAttempts: 10}))

	var seen []int
	out, err := s.GenerateVideo(context.Background(), VideoInput{Prompt: "waves"}, func(n int) { seen = append(seen, n) })
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", out.MIMEType)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 3, fake.CallCount("video_poll"))
}

func TestGenerateVideo_BoundedPolling(t *testing.T) {
	fake := &llmtest.Fake{PollsUntilDone: -1}
	s := newService(t, fake, WithPollPolicy(PollPolicy{Interval: time.Millisecond, MaxAttempts: 4}))

	_, err := s.GenerateVideo(context.Background(), VideoInput{Prompt: "waves"}, nil)
	require.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 4, fake.CallCount("video_poll"))
}

func TestGenerateVideo_Cancelled(t *testing.T) {
	fake := &llmtest.Fake{PollsUntilDone: -1}
	s := newService(t, fake, WithPollPolicy(PollPolicy{Interval: time.Millisecond}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.GenerateVideo(ctx, VideoInput{Prompt: "waves"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateVideo_InvalidDuration(t *testing.T) {
	fake := &llmtest.Fake{}
	s := newService(t, fake)

	_, err := s.GenerateVideo(context.Background(), VideoInput{Prompt: "x", DurationSeconds: 12}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.GenerateVideo(context.Background(), VideoInput{Prompt: "x", AspectRatio: "4:3"}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, fake.Calls)
}

func TestGenerateVideo_OperationError(t *testing.T) {
	fake := &llmtest.Fake{VideoError: "safety filter"}
	s := newService(t, fake)

	_, err := s.GenerateVideo(context.Background(), VideoInput{Prompt: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety filter")
}

func TestChatTurn_Text(t *testing.T) {
	fake := &llmtest.Fake{ChatResponse: &llm.ChatResponse{Text: "Hi there"}}
	s := newService(t, fake)

	out, err := s.ChatTurn(context.Background(), ChatInput{
		History:        []ChatMessage{{Role: "user", Content: "hello"}, {Role: "model", Content: "hey"}},
		Message:        "how are you",
		AnalysisReport: "REPORT-TEXT",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out.Response)
	assert.Nil(t, out.ToolCall)

	require.Len(t, fake.Requests, 1)
	req := fake.Requests[0]
	assert.Len(t, req.History, 2)
	assert.Contains(t, req.System, "REPORT-TEXT")
	require.Len(t, req.Tools, 1)
	assert.Equal(t, ToolGenerateImage, req.Tools[0].Name)
}

func TestChatTurn_ToolCall(t *testing.T) {
	fake := &llmtest.Fake{
		ChatResponse: &llm.ChatResponse{FunctionCall: &llm.FunctionCall{
			Name: ToolGenerateImage,
			Args: map[string]any{"prompt": "a login page mockup"},
		}},
		Image: &llm.Blob{MIMEType: "image/png", Data: []byte{9, 9}},
	}
	s := newService(t, fake)

	out, err := s.ChatTurn(context.Background(), ChatInput{Message: "draw the login page"})
	require.NoError(t, err)
	require.NotNil(t, out.ToolCall)
	assert.True(t, strings.HasPrefix(out.ImageDataURI, "data:image/png;base64,"))
	assert.Contains(t, fake.Prompts[OpImage], "a login page mockup")
}

func TestChatTurn_ToolCallWithOverlongPrompt(t *testing.T) {
	long := strings.Repeat("é", maxImagePromptRunes+500)
	fake := &llmtest.Fake{
		ChatResponse: &llm.ChatResponse{FunctionCall: &llm.FunctionCall{
			Name: ToolGenerateImage,
			Args: map[string]any{"prompt": long},
		}},
		Image: &llm.Blob{MIMEType: "image/png", Data: []byte{1}},
	}
	s := newService(t, fake)

	out, err := s.ChatTurn(context.Background(), ChatInput{Message: "draw it"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ImageDataURI)
	assert.Contains(t, fake.Prompts[OpImage], strings.Repeat("é", maxImagePromptRunes))
	assert.NotContains(t, fake.Prompts[OpImage], strings.Repeat("é", maxImagePromptRunes+1))
}

func TestChatTurn_BadRole(t *testing.T) {
	s := newService(t, &llmtest.Fake{})
	_, err := s.ChatTurn(context.Background(), ChatInput{
		History: []ChatMessage{{Role: "system", Content: "x"}},
		Message: "hi",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeepResearchTurn(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{OpDeepResearch: map[string]any{
		"summary":     "s",
		"keyFindings": []string{"k1", "k2"},
	}}}
	s := newService(t, fake)

	out, err := s.DeepResearchTurn(context.Background(), ResearchInput{Query: "why go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, out.KeyFindings)
	assert.NotNil(t, out.FollowUpQuestions)

	fake.JSON[OpDeepResearch] = map[string]any{"summary": "s", "keyFindings": []string{}}
	_, err = s.DeepResearchTurn(context.Background(), ResearchInput{Query: "why go"})
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestSynthesizeDebate(t *testing.T) {
	fake := &llmtest.Fake{JSON: map[string]any{OpDebate: map[string]any{
		"synthesis":      "both have merit",
		"agreements":     []string{"testing matters"},
		"recommendation": "use both",
	}}}
	s := newService(t, fake)

	_, err := s.SynthesizeDebate(context.Background(), DebateInput{
		Topic:        "monolith vs microservices",
		Perspectives: []Perspective{{Name: "A", Argument: "simple"}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	out, err := s.SynthesizeDebate(context.Background(), DebateInput{
		Topic: "monolith vs microservices",
		Perspectives: []Perspective{
			{Name: "A", Argument: "simple"},
			{Name: "B", Argument: "scalable"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "use both", out.Recommendation)
	assert.Equal(t, []string{}, out.Disagreements)
	assert.Contains(t, fake.Prompts[OpDebate], "B: scalable")
}

func TestAIFailureIsWrapped(t *testing.T) {
	boom := errors.New("upstream 500")
	fake := &llmtest.Fake{JSONErr: boom}
	s := newService(t, fake)

	_, err := s.DeepResearchTurn(context.Background(), ResearchInput{Query: "q"})
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrEmptyResult))
	assert.Equal(t, 1, fake.CallCount(OpDeepResearch))
}

func TestPromptsRender(t *testing.T) {
	p, err := DefaultPrompts()
	require.NoError(t, err)

	for _, op := range []string{OpAnalysisReport, OpFrontendSuggestions, OpBackendSuggestions, OpDeepResearch} {
		_, _, err := p.Render(op, map[string]any{
			"FileStructure": "f", "CodeSnippets": "c", "AnalysisReport": "r",
			"Request": "q", "CurrentCode": "", "Query": "q",
		})
		assert.NoError(t, err, op)
	}

	_, _, err = p.Render("nope", nil)
	assert.Error(t, err)

	_, err = LoadPrompts([]byte("x: {prompt: '{{.Broken'}"))
	assert.Error(t, err)
}
