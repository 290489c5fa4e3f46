package flows

import (
	"context"

	"google.golang.org/genai"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
)

type Perspective struct {
	Name     string `json:"name" validate:"required"`
	Argument string `json:"argument" validate:"required"`
}

type DebateInput struct {
	Topic        string        `json:"topic" validate:"required,max=2000"`
	Perspectives []Perspective `json:"perspectives" validate:"min=2,dive"`
}

type DebateOutput struct {
	Synthesis      string   `json:"synthesis" validate:"required"`
	Agreements     []string `json:"agreements"`
	Disagreements  []string `json:"disagreements"`
	Recommendation string   `json:"recommendation" validate:"required"`
}

var debateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"synthesis":      {Type: genai.TypeString},
		"agreements":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"disagreements":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"recommendation": {Type: genai.TypeString},
	},
	Required: []string{"synthesis", "recommendation"},
}

// SynthesizeDebate merges two or more positions on a topic into one verdict.
func (s *Service) SynthesizeDebate(ctx context.Context, in DebateInput) (*DebateOutput, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	var out DebateOutput
	if err := s.generateStructured(ctx, OpDebate, "failed to synthesize the debate", in,
		llm.StructuredRequest{Schema: debateSchema}, &out); err != nil {
		return nil, err
	}
	if out.Agreements == nil {
		out.Agreements = []string{}
	}
	if out.Disagreements == nil {
		out.Disagreements = []string{}
	}
	return &out, nil
}
