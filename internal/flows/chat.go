package flows

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

// ToolGenerateImage is the function the chat model may call to draw a picture.
const ToolGenerateImage = "generateImage"

// maxImagePromptRunes matches the limit on ImageInput.Prompt.
const maxImagePromptRunes = 4000

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content" validate:"required"`
}

type ChatInput struct {
	History        []ChatMessage `json:"history" validate:"dive"`
	Message        string        `json:"message" validate:"required,max=8000"`
	AnalysisReport string        `json:"analysisReport,omitempty"`
}

type ChatOutput struct {
	Response     string            `json:"response"`
	ToolCall     *llm.FunctionCall `json:"toolCall,omitempty"`
	ImageDataURI string            `json:"imageDataUri,omitempty"`
}

var generateImageTool = &genai.FunctionDeclaration{
	Name:        ToolGenerateImage,
	Description: "Generate an image, mockup or illustration from a detailed text prompt.",
	Parameters: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prompt": {Type: genai.TypeString, Description: "Detailed description of the image."},
		},
		Required: []string{"prompt"},
	},
}

// ChatTurn answers one chat message. If the model asks for an image, the
// image flow runs and its data URI is returned alongside the tool call.
func (s *Service) ChatTurn(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	const failMessage = "the assistant did not respond"
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	system, _, err := s.prompts.Render(OpChat, in)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(in.History))
	for _, m := range in.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Operation: OpChat,
		System:    system,
		History:   history,
		Message:   in.Message,
		Tools:     []*genai.FunctionDeclaration{generateImageTool},
	})
	if err != nil {
		if errors.Is(err, llm.ErrNoCandidate) {
			return nil, emptyResult(OpChat, failMessage)
		}
		return nil, failed(OpChat, failMessage, err)
	}

	if call := resp.FunctionCall; call != nil && call.Name == ToolGenerateImage {
		prompt, _ := call.Args["prompt"].(string)
		if strings.TrimSpace(prompt) == "" {
			prompt = in.Message
		}
		prompt = truncateRunes(prompt, maxImagePromptRunes)
		logging.FromContext(ctx).LogInfof(OpChat, "model requested %s", call.Name)

		img, err := s.GenerateImage(ctx, ImageInput{Prompt: prompt})
		if err != nil {
			return nil, err
		}
		text := resp.Text
		if text == "" {
			text = "Here is the image you asked for."
		}
		return &ChatOutput{Response: text, ToolCall: call, ImageDataURI: img.ImageDataURI}, nil
	}

	if strings.TrimSpace(resp.Text) == "" {
		return nil, emptyResult(OpChat, failMessage)
	}
	return &ChatOutput{Response: resp.Text}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
