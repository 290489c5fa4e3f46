package flows

import (
	"context"

	"google.golang.org/genai"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
)

type ResearchInput struct {
	Query   string        `json:"query" validate:"required,max=8000"`
	History []ChatMessage `json:"history,omitempty" validate:"dive"`
}

type ResearchOutput struct {
	Summary           string   `json:"summary" validate:"required"`
	KeyFindings       []string `json:"keyFindings" validate:"min=1,dive,required"`
	FollowUpQuestions []string `json:"followUpQuestions"`
}

var researchSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":           {Type: genai.TypeString},
		"keyFindings":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"followUpQuestions": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"summary", "keyFindings"},
}

// DeepResearchTurn runs one turn of an in-depth research conversation.
func (s *Service) DeepResearchTurn(ctx context.Context, in ResearchInput) (*ResearchOutput, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(in.History))
	for _, m := range in.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	var out ResearchOutput
	if err := s.generateStructured(ctx, OpDeepResearch, "research produced no findings", in,
		llm.StructuredRequest{History: history, Schema: researchSchema}, &out); err != nil {
		return nil, err
	}
	if out.FollowUpQuestions == nil {
		out.FollowUpQuestions = []string{}
	}
	return &out, nil
}
