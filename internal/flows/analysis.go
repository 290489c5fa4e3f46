package flows

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
)

// maxSnippetBytes caps how much of one uploaded file is embedded in the prompt.
const maxSnippetBytes = 20000

// UploadedFile is a transient upload: a path plus its content as a data URI.
type UploadedFile struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content" validate:"required,startswith=data:"`
}

type AnalysisInput struct {
	FileStructure string         `json:"fileStructure" validate:"required_without=Files"`
	CodeSnippets  string         `json:"codeSnippets" validate:"required_without=Files"`
	Files         []UploadedFile `json:"files,omitempty" validate:"omitempty,dive"`
}

type AnalysisOutput struct {
	Report string `json:"report" validate:"required"`
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"report": {Type: genai.TypeString, Description: "The architecture analysis report in Markdown."},
	},
	Required: []string{"report"},
}

// GenerateAnalysisReport produces an architecture report for uploaded code or documents.
func (s *Service) GenerateAnalysisReport(ctx context.Context, in AnalysisInput) (*AnalysisOutput, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	data, err := summarizeUploads(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var out AnalysisOutput
	if err := s.generateStructured(ctx, OpAnalysisReport, "failed to generate analysis report", data,
		llm.StructuredRequest{Schema: analysisSchema}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// summarizeUploads folds uploaded files into the file structure and snippet text.
func summarizeUploads(in AnalysisInput) (AnalysisInput, error) {
	if len(in.Files) == 0 {
		return in, nil
	}

	var tree, snippets strings.Builder
	if in.FileStructure != "" {
		tree.WriteString(in.FileStructure)
		tree.WriteString("\n")
	}
	if in.CodeSnippets != "" {
		snippets.WriteString(in.CodeSnippets)
		snippets.WriteString("\n\n")
	}

	for _, f := range in.Files {
		tree.WriteString(f.Path)
		tree.WriteString("\n")

		d, err := media.DecodeDataURI(f.Content)
		if err != nil {
			return in, fmt.Errorf("file %s: %w", f.Path, err)
		}
		fmt.Fprintf(&snippets, "--- %s ---\n", f.Path)
		if !d.IsText() {
			fmt.Fprintf(&snippets, "[binary %s, %d bytes]\n\n", d.BaseType(), len(d.Data))
			continue
		}
		body := d.Data
		truncated := false
		if len(body) > maxSnippetBytes {
			body = body[:maxSnippetBytes]
			truncated = true
		}
		snippets.Write(body)
		if truncated {
			snippets.WriteString("\n[truncated]")
		}
		snippets.WriteString("\n\n")
	}

	return AnalysisInput{
		FileStructure: strings.TrimSpace(tree.String()),
		CodeSnippets:  strings.TrimSpace(snippets.String()),
	}, nil
}
