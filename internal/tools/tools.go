// internal/tools/tools.go

// Package tools defines the tool surface exposed to council models and
// executes tool calls on their behalf. Currently the only tool is web search.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Zeetio/llm-council/internal/logging"
)

// Definition describes a tool in OpenAI function-calling shape.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// WebSearchDefinition is offered to models that may need fresh information.
var WebSearchDefinition = Definition{
	Name:        "web_search",
	Description: "Search the web for current information. Use this when the question requires up-to-date information, news, or facts that might have changed after your knowledge cutoff.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant information",
			},
		},
		"required": []any{"query"},
	},
}

// Available lists every tool the engine can execute.
func Available() []Definition {
	return []Definition{WebSearchDefinition}
}

// Executor dispatches tool calls by name.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// ValidateArguments checks tool-call arguments against the tool's parameter
// schema before execution.
func ValidateArguments(def Definition, args map[string]any) error {
	if def.Parameters == nil {
		return nil
	}
	argBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments for validation: %w", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(def.Parameters), gojsonschema.NewBytesLoader(argBytes))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("arguments failed validation: %s", strings.Join(details, "; "))
}

// logToolCall emits one line per execution mirroring the request log format.
func logToolCall(name string, latencyMS int64, success bool) {
	status := "ok"
	if !success {
		status = "failed"
	}
	logging.LogEvent("Tool: %s | %dms | %s", name, latencyMS, status)
}
