package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"docsign-backend/internal/signing"
)

// LoadPlan reads a YAML or JSON plan file. The document is normalized to
// JSON so the same loose parsing used for API payloads applies.
func LoadPlan(path string) ([]signing.Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes plan bytes. JSON is a subset of YAML, so one decoder
// covers both.
func ParsePlan(data []byte) ([]signing.Assignment, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrMalformed, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty plan", signing.ErrMalformed)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrMalformed, err)
	}
	return signing.ParseAssignments(normalized)
}
