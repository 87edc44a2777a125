// internal/openrouter/client.go

// Package openrouter implements the model invoker: a client for the
// OpenRouter chat-completions API with an optional bounded tool-call loop.
// The engine treats it as opaque; every call is attempted exactly once.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/tools"
)

// ErrorKind classifies invocation failures for per-member reporting.
type ErrorKind string

const (
	ErrTimeout   ErrorKind = "timeout"
	ErrTransport ErrorKind = "transport"
	ErrStatus    ErrorKind = "status"
	ErrMalformed ErrorKind = "malformed"
)

// InvokeError carries the failure classification alongside the cause.
type InvokeError struct {
	Kind ErrorKind
	Err  error
}

func (e *InvokeError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *InvokeError) Unwrap() error { return e.Err }

// Kind extracts the error kind, defaulting to transport for foreign errors.
func Kind(err error) ErrorKind {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ErrTransport
}

// Message is a single chat message in OpenRouter wire shape.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one tool invocation requested by a completion.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Usage reports token counts for one completion round trip.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InvokeRequest is everything needed for one model invocation.
type InvokeRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Stage        string
	Tools        []tools.Definition
	ToolExecutor tools.Executor
}

// InvokeResult is the completion plus accumulated metadata. When the tool
// loop runs, token counts sum over every round trip.
type InvokeResult struct {
	Text      string
	Usage     Usage
	Latency   time.Duration
	ToolsUsed []string
}

// Client talks to the OpenRouter chat-completions endpoint.
type Client struct {
	client  *http.Client
	apiURL  string
	apiKey  string
	timeout time.Duration
	toolMax int
}

// New constructs a client with the given endpoint, key and per-call timeout.
func New(apiURL, apiKey string, timeout time.Duration, toolIterations int) *Client {
	if toolIterations <= 0 {
		toolIterations = 1
	}
	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		apiURL:  apiURL,
		apiKey:  apiKey,
		timeout: timeout,
		toolMax: toolIterations,
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []any     `json:"tools,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Invoke sends the request, driving the tool loop when the completion asks
// for a tool and an executor is available. One Invoke makes at most
// 1 + toolMax round trips; transport errors are never retried.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	messages := req.Messages
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	result := &InvokeResult{}
	start := time.Now()

	for iteration := 0; ; iteration++ {
		resp, err := c.complete(ctx, req.Model, req.Stage, messages, req.Tools)
		if err != nil {
			result.Latency = time.Since(start)
			return nil, err
		}
		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || req.ToolExecutor == nil || iteration >= c.toolMax {
			result.Text = msg.Content
			result.Latency = time.Since(start)
			return result, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
			output, execErr := req.ToolExecutor.Execute(ctx, call.Function.Name, args)
			if execErr != nil {
				output = fmt.Sprintf("Error executing %s: %v", call.Function.Name, execErr)
			}
			result.ToolsUsed = append(result.ToolsUsed, call.Function.Name)
			messages = append(messages, Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}
}

func (c *Client) complete(ctx context.Context, model, stage string, messages []Message, defs []tools.Definition) (*completionResponse, error) {
	payload := completionRequest{Model: model, Messages: messages}
	for _, def := range defs {
		payload.Tools = append(payload.Tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  def.Parameters,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &InvokeError{Kind: ErrMalformed, Err: err}
	}
	logging.LogRequest("COUNCIL->LLM", model, stage, map[string]any{"messages": len(messages), "tools": len(defs)})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &InvokeError{Kind: ErrTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &InvokeError{Kind: ErrTimeout, Err: err}
		}
		return nil, &InvokeError{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &InvokeError{Kind: ErrTransport, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		preview := strings.TrimSpace(string(respBody))
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, &InvokeError{Kind: ErrStatus, Err: fmt.Errorf("openrouter returned %s: %s", resp.Status, preview)}
	}
	logging.LogRequest("LLM->COUNCIL", model, stage, map[string]any{"bytes": len(respBody)})

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &InvokeError{Kind: ErrMalformed, Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &InvokeError{Kind: ErrMalformed, Err: errors.New("completion contained no choices")}
	}
	return &parsed, nil
}
