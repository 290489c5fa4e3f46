package flows

import (
	"context"

	"google.golang.org/genai"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
)

type SuggestionInput struct {
	AnalysisReport string `json:"analysisReport" validate:"required"`
	Request        string `json:"request" validate:"required,max=8000"`
	CurrentCode    string `json:"currentCode,omitempty"`
}

type SuggestionOutput struct {
	SuggestedChanges  string `json:"suggestedChanges" validate:"required"`
	Reasoning         string `json:"reasoning" validate:"required"`
	VisualDescription string `json:"visualDescription,omitempty"`
}

var backendSuggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestedChanges": {Type: genai.TypeString, Description: "The proposed code changes."},
		"reasoning":        {Type: genai.TypeString, Description: "Why these changes address the request."},
	},
	Required: []string{"suggestedChanges", "reasoning"},
}

var frontendSuggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestedChanges":  {Type: genai.TypeString, Description: "The proposed code changes."},
		"reasoning":         {Type: genai.TypeString, Description: "Why these changes address the request."},
		"visualDescription": {Type: genai.TypeString, Description: "How the changed UI will look."},
	},
	Required: []string{"suggestedChanges", "reasoning"},
}

// SuggestFrontendChanges proposes UI code changes for a modification request.
func (s *Service) SuggestFrontendChanges(ctx context.Context, in SuggestionInput) (*SuggestionOutput, error) {
	return s.suggest(ctx, OpFrontendSuggestions, "failed to generate frontend suggestions", frontendSuggestionSchema, in)
}

// SuggestBackendChanges proposes server-side code changes for a modification request.
func (s *Service) SuggestBackendChanges(ctx context.Context, in SuggestionInput) (*SuggestionOutput, error) {
	out, err := s.suggest(ctx, OpBackendSuggestions, "failed to generate backend suggestions", backendSuggestionSchema, in)
	if err != nil {
		return nil, err
	}
	out.VisualDescription = ""
	return out, nil
}

func (s *Service) suggest(ctx context.Context, op, failMessage string, schema *genai.Schema, in SuggestionInput) (*SuggestionOutput, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	var out SuggestionOutput
	if err := s.generateStructured(ctx, op, failMessage, in, llm.StructuredRequest{Schema: schema}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
