package bootstrap

import (
	"fmt"
	"os"

	"github.com/aetherium-labs/aetherium-backend/internal/flows"
)

// LoadPrompts reads the prompt catalog from path, or the embedded one when
// path is empty.
func LoadPrompts(path string) (*flows.Prompts, error) {
	if path == "" {
		return flows.DefaultPrompts()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return flows.LoadPrompts(raw)
}
