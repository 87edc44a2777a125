// internal/tools/websearch.go
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zeetio/llm-council/internal/usage"
	"github.com/Zeetio/llm-council/internal/util"
)

const (
	tavilyURL          = "https://api.tavily.com/search"
	searchTimeout      = 30 * time.Second
	imageSearchTimeout = 15 * time.Second
	maxSearchResults   = 10
	maxImageResults    = 8
)

// Image is one related image returned alongside a search.
type Image struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebSearcher executes web and image searches against the Tavily API and
// records every execution into the run's usage accumulator.
type WebSearcher struct {
	client  *http.Client
	apiKey  string
	baseURL string
	acc     *usage.Accumulator
}

// NewWebSearcher builds a searcher for one pipeline run. An empty API key is
// allowed; executions then fail softly with a configuration message.
func NewWebSearcher(apiKey string, acc *usage.Accumulator) *WebSearcher {
	return &WebSearcher{
		client:  &http.Client{Timeout: searchTimeout},
		apiKey:  apiKey,
		baseURL: tavilyURL,
		acc:     acc,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (s *WebSearcher) SetBaseURL(u string) { s.baseURL = u }

// Execute implements Executor. Unknown tools and bad arguments are reported
// as tool results, not errors, so a confused model cannot kill the call.
func (s *WebSearcher) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	if name != WebSearchDefinition.Name {
		msg := fmt.Sprintf("Unknown tool: %s", name)
		s.record(name, args, msg, 0, 0, false, msg)
		return msg, nil
	}
	if err := ValidateArguments(WebSearchDefinition, args); err != nil {
		msg := fmt.Sprintf("Invalid arguments: %v", err)
		s.record(name, args, msg, 0, 0, false, err.Error())
		return msg, nil
	}
	query, _ := args["query"].(string)
	return s.search(ctx, query, args)
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
	Images []json.RawMessage `json:"images"`
}

func (s *WebSearcher) search(ctx context.Context, query string, args map[string]any) (string, error) {
	start := time.Now()

	if s.apiKey == "" {
		msg := "Error: Web search not configured (TAVILY_API_KEY not set)"
		s.record("web_search", args, msg, 0, 0, false, "TAVILY_API_KEY not configured")
		return msg, nil
	}

	payload := map[string]any{
		"api_key":        s.apiKey,
		"query":          query,
		"search_depth":   "basic",
		"max_results":    maxSearchResults,
		"include_answer": true,
	}
	data, err := s.post(ctx, payload, searchTimeout)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		msg := fmt.Sprintf("Error searching: %v", err)
		s.record("web_search", args, msg, 0, elapsed, false, err.Error())
		return msg, nil
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		msg := fmt.Sprintf("Error searching: %v", err)
		s.record("web_search", args, msg, 0, elapsed, false, err.Error())
		return msg, nil
	}

	var formatted []string
	if parsed.Answer != "" {
		formatted = append(formatted, "Summary: "+parsed.Answer, "")
	}
	formatted = append(formatted, "Sources:")
	for _, r := range parsed.Results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		formatted = append(formatted,
			"- "+title,
			"  "+util.TruncateRunes(r.Content, 300),
			"  URL: "+r.URL,
			"")
	}
	result := strings.Join(formatted, "\n")
	if len(parsed.Results) == 0 && parsed.Answer == "" {
		result = "No results found"
	}

	s.record("web_search", args, result, len(parsed.Results), elapsed, true, "")
	return result, nil
}

// SearchImages fetches related images for a query. Failures return an empty
// slice; related items are decoration, never pipeline-fatal.
func (s *WebSearcher) SearchImages(ctx context.Context, query string) []Image {
	if s.apiKey == "" {
		return nil
	}
	payload := map[string]any{
		"api_key":                    s.apiKey,
		"query":                      query,
		"search_depth":               "basic",
		"max_results":                maxImageResults,
		"include_images":             true,
		"include_image_descriptions": true,
	}
	data, err := s.post(ctx, payload, imageSearchTimeout)
	if err != nil {
		return nil
	}
	var parsed tavilyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}

	var images []Image
	for _, raw := range parsed.Images {
		if len(images) >= maxImageResults {
			break
		}
		var obj Image
		if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
			if strings.HasPrefix(obj.URL, "http") {
				images = append(images, obj)
			}
			continue
		}
		var plain string
		if err := json.Unmarshal(raw, &plain); err == nil && strings.HasPrefix(plain, "http") {
			images = append(images, Image{URL: plain})
		}
	}
	return images
}

func (s *WebSearcher) post(ctx context.Context, payload map[string]any, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: search returned %s", resp.Status)
	}
	return data, nil
}

func (s *WebSearcher) record(name string, args map[string]any, result string, count int, latencyMS int64, success bool, errMsg string) {
	logToolCall(name, latencyMS, success)
	if s.acc == nil {
		return
	}
	s.acc.RecordTool(usage.ToolRecord{
		ToolName:      name,
		Arguments:     args,
		ResultPreview: util.Preview(result, 100),
		ResultCount:   count,
		LatencyMS:     latencyMS,
		Success:       success,
		ErrorMessage:  errMsg,
	})
}
