package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PromptLoader resolves a system prompt reference to its content.
type PromptLoader interface {
	Load(ref string) (string, error)
}

// DirLoader loads prompts from files under a directory; the reference
// is the file name (e.g., "alpha.md").
type DirLoader struct {
	Dir string
}

func (l DirLoader) Load(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	// Reject references that escape the prompt directory.
	if strings.Contains(ref, "..") || filepath.IsAbs(ref) {
		return "", fmt.Errorf("invalid system prompt reference %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(l.Dir, ref))
	if err != nil {
		return "", fmt.Errorf("loading system prompt %q: %w", ref, err)
	}
	return string(data), nil
}

// StaticLoader serves prompts from a fixed map. Used in tests and for
// deployments with inline prompt configuration.
type StaticLoader map[string]string

func (l StaticLoader) Load(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	content, ok := l[ref]
	if !ok {
		return "", fmt.Errorf("unknown system prompt reference %q", ref)
	}
	return content, nil
}
