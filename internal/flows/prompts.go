package flows

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptSpec struct {
	System string `yaml:"system"`
	Prompt string `yaml:"prompt"`
}

type compiledPrompt struct {
	system *template.Template
	prompt *template.Template
}

// Prompts is the parsed template catalog, keyed by flow operation.
type Prompts struct {
	byName map[string]compiledPrompt
}

// LoadPrompts parses a YAML template catalog.
func LoadPrompts(raw []byte) (*Prompts, error) {
	var specs map[string]promptSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	p := &Prompts{byName: make(map[string]compiledPrompt, len(specs))}
	for name, spec := range specs {
		var c compiledPrompt
		var err error
		if spec.System != "" {
			if c.system, err = template.New(name + ".system").Option("missingkey=error").Parse(spec.System); err != nil {
				return nil, fmt.Errorf("parse %s system prompt: %w", name, err)
			}
		}
		if spec.Prompt != "" {
			if c.prompt, err = template.New(name + ".prompt").Option("missingkey=error").Parse(spec.Prompt); err != nil {
				return nil, fmt.Errorf("parse %s prompt: %w", name, err)
			}
		}
		p.byName[name] = c
	}
	return p, nil
}

// DefaultPrompts returns the embedded catalog.
func DefaultPrompts() (*Prompts, error) {
	return LoadPrompts(promptsYAML)
}

// Render executes the system and user templates of one flow.
func (p *Prompts) Render(name string, data any) (system, prompt string, err error) {
	c, ok := p.byName[name]
	if !ok {
		return "", "", fmt.Errorf("no prompt template named %q", name)
	}
	if system, err = execute(c.system, data); err != nil {
		return "", "", err
	}
	if prompt, err = execute(c.prompt, data); err != nil {
		return "", "", err
	}
	return system, prompt, nil
}

func execute(t *template.Template, data any) (string, error) {
	if t == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
