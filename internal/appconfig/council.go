// internal/appconfig/council.go
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Member describes one configured council participant. The same shape is used
// for the chairman. Members are immutable during a run.
type Member struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Council is the persisted council document: the voting members plus the
// chairman that synthesizes the final answer.
type Council struct {
	Members  []Member `json:"council_members"`
	Chairman Member   `json:"chairman"`
}

// councilSchema validates the council document before it reaches a pipeline
// run. Shape mismatches should fail at config time, not mid-turn.
var councilSchema = map[string]any{
	"type":     "object",
	"required": []any{"council_members", "chairman"},
	"properties": map[string]any{
		"council_members": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    memberSchema,
		},
		"chairman": memberSchema,
	},
}

var memberSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "name", "model"},
	"properties": map[string]any{
		"id":            map[string]any{"type": "string", "minLength": 1},
		"name":          map[string]any{"type": "string", "minLength": 1},
		"model":         map[string]any{"type": "string", "minLength": 1},
		"system_prompt": map[string]any{"type": []any{"string", "null"}},
	},
}

// DefaultCouncil returns the council used when no document has been saved yet.
func DefaultCouncil() Council {
	return Council{
		Members: []Member{
			{ID: "gpt", Name: "GPT-5.1", Model: "openai/gpt-5.1"},
			{ID: "gemini", Name: "Gemini 3 Pro", Model: "google/gemini-3-pro-preview"},
			{ID: "claude", Name: "Claude Opus 4.5", Model: "anthropic/claude-opus-4.5"},
			{ID: "grok", Name: "Grok 4.1", Model: "x-ai/grok-4.1-fast"},
		},
		Chairman: Member{ID: "chairman", Name: "Chairman", Model: "openai/gpt-5.1"},
	}
}

// ValidateCouncil checks a raw council document against the schema and then
// enforces the invariants the schema cannot express (unique member IDs).
func ValidateCouncil(raw []byte) (Council, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(councilSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Council{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return Council{}, fmt.Errorf("council config failed validation: %s", strings.Join(details, "; "))
	}

	var council Council
	if err := json.Unmarshal(raw, &council); err != nil {
		return Council{}, fmt.Errorf("unmarshal council config: %w", err)
	}
	if err := council.CheckMemberIDs(); err != nil {
		return Council{}, err
	}
	return council, nil
}

// CheckMemberIDs rejects councils with duplicate or blank member IDs. Peer
// ranking keys everything by member ID, so collisions would corrupt a turn.
func (c Council) CheckMemberIDs() error {
	seen := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return fmt.Errorf("council member %q has an empty id", m.Name)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate council member id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// LoadCouncil reads the council document from path, falling back to the
// default council when the file does not exist or cannot be parsed.
func LoadCouncil(path string) Council {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DefaultCouncil()
	}
	council, err := ValidateCouncil(raw)
	if err != nil {
		return DefaultCouncil()
	}
	return council
}

// SaveCouncil validates and writes the council document to path.
func SaveCouncil(path string, raw []byte) (Council, error) {
	council, err := ValidateCouncil(raw)
	if err != nil {
		return Council{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Council{}, err
	}
	data, err := json.MarshalIndent(council, "", "  ")
	if err != nil {
		return Council{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Council{}, err
	}
	return council, nil
}
