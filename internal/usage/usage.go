// internal/usage/usage.go

// Package usage accumulates per-call token, cost, latency and tool metrics
// across a single pipeline run. Records are only ever appended; totals are
// derived on demand and finalized once at job completion.
package usage

import (
	"sync"
	"time"

	"github.com/Zeetio/llm-council/internal/logging"
)

// CallRecord captures one model invocation.
type CallRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	Model            string    `json:"model"`
	Stage            string    `json:"stage"`
	MemberID         string    `json:"member_id"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMS        int64     `json:"response_time_ms"`
	ToolUsed         bool      `json:"tool_used"`
	ToolName         string    `json:"tool_name,omitempty"`
	Failed           bool      `json:"failed,omitempty"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
}

// ToolRecord captures one tool execution made on behalf of a model.
type ToolRecord struct {
	Timestamp     time.Time      `json:"timestamp"`
	ToolName      string         `json:"tool_name"`
	Arguments     map[string]any `json:"arguments"`
	ResultPreview string         `json:"result_preview"`
	ResultCount   int            `json:"result_count"`
	LatencyMS     int64          `json:"execution_time_ms"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// StageTotals is the per-stage or per-model rollup inside Totals.
type StageTotals struct {
	Calls       int     `json:"calls"`
	FailedCalls int     `json:"failed_calls,omitempty"`
	TotalTokens int     `json:"total_tokens"`
	CostUSD     float64 `json:"cost_usd"`
	AvgLatency  int64   `json:"avg_latency_ms"`
}

// Totals is the finalized usage document attached to a completed job.
type Totals struct {
	TotalCalls    int                    `json:"total_calls"`
	FailedCalls   int                    `json:"failed_calls"`
	TotalTokens   int                    `json:"total_tokens"`
	TotalCostUSD  float64                `json:"total_cost_usd"`
	AvgLatencyMS  int64                  `json:"avg_latency_ms"`
	ByStage       map[string]StageTotals `json:"by_stage"`
	ByModel       map[string]StageTotals `json:"by_model"`
	ToolCalls     []ToolRecord           `json:"tool_calls,omitempty"`
	ToolCallCount int                    `json:"tool_call_count"`
}

// Accumulator threads through all three stages of one run. Safe for
// concurrent use by the stage fan-outs.
type Accumulator struct {
	mu    sync.Mutex
	calls []CallRecord
	tools []ToolRecord
}

// NewAccumulator returns an empty accumulator for one pipeline run.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// RecordCall appends one model invocation, estimating its cost.
func (a *Accumulator) RecordCall(rec CallRecord) CallRecord {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.EstimatedCostUSD = EstimateCost(rec.Model, rec.PromptTokens, rec.CompletionTokens)

	a.mu.Lock()
	a.calls = append(a.calls, rec)
	a.mu.Unlock()

	logging.LogEvent("LLM call: %s | stage=%s | %d tokens | %dms | $%.6f",
		rec.Model, rec.Stage, rec.TotalTokens, rec.LatencyMS, rec.EstimatedCostUSD)
	return rec
}

// RecordTool appends one tool execution.
func (a *Accumulator) RecordTool(rec ToolRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	a.mu.Lock()
	a.tools = append(a.tools, rec)
	a.mu.Unlock()
}

// Calls returns a copy of all call records so far.
func (a *Accumulator) Calls() []CallRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CallRecord, len(a.calls))
	copy(out, a.calls)
	return out
}

// Totals rolls the records up into the final usage document.
func (a *Accumulator) Totals() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()

	totals := Totals{
		ByStage: make(map[string]StageTotals),
		ByModel: make(map[string]StageTotals),
	}

	var latencySum int64
	stageLatency := make(map[string]int64)
	modelLatency := make(map[string]int64)

	for _, rec := range a.calls {
		totals.TotalCalls++
		if rec.Failed {
			totals.FailedCalls++
		}
		totals.TotalTokens += rec.TotalTokens
		totals.TotalCostUSD += rec.EstimatedCostUSD
		latencySum += rec.LatencyMS

		st := totals.ByStage[rec.Stage]
		st.Calls++
		if rec.Failed {
			st.FailedCalls++
		}
		st.TotalTokens += rec.TotalTokens
		st.CostUSD += rec.EstimatedCostUSD
		stageLatency[rec.Stage] += rec.LatencyMS
		totals.ByStage[rec.Stage] = st

		mt := totals.ByModel[rec.Model]
		mt.Calls++
		if rec.Failed {
			mt.FailedCalls++
		}
		mt.TotalTokens += rec.TotalTokens
		mt.CostUSD += rec.EstimatedCostUSD
		modelLatency[rec.Model] += rec.LatencyMS
		totals.ByModel[rec.Model] = mt
	}

	if totals.TotalCalls > 0 {
		totals.AvgLatencyMS = latencySum / int64(totals.TotalCalls)
	}
	for stage, st := range totals.ByStage {
		if st.Calls > 0 {
			st.AvgLatency = stageLatency[stage] / int64(st.Calls)
			totals.ByStage[stage] = st
		}
	}
	for model, mt := range totals.ByModel {
		if mt.Calls > 0 {
			mt.AvgLatency = modelLatency[model] / int64(mt.Calls)
			totals.ByModel[model] = mt
		}
	}

	totals.ToolCalls = make([]ToolRecord, len(a.tools))
	copy(totals.ToolCalls, a.tools)
	totals.ToolCallCount = len(a.tools)
	return totals
}
