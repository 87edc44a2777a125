// internal/council/pipeline.go
package council

import (
	"context"
	"errors"
	"strings"

	"github.com/Zeetio/llm-council/internal/appconfig"
	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/openrouter"
	"github.com/Zeetio/llm-council/internal/tools"
	"github.com/Zeetio/llm-council/internal/usage"
	"github.com/Zeetio/llm-council/internal/util"
)

// Invoker is the model-invocation boundary. The engine tolerates arbitrary
// latency and any error kind it reports; each call is made exactly once.
type Invoker interface {
	Invoke(ctx context.Context, req openrouter.InvokeRequest) (*openrouter.InvokeResult, error)
}

// Observer receives progress updates as stages start and complete. All
// methods are called from the pipeline's goroutine, in stage order.
type Observer interface {
	StageStarted(stage string)
	Stage1Completed(results []Stage1Result, failures []MemberFailure)
	Stage2Completed(results []Stage2Result, labelToMember map[string]string, aggregate []AggregateEntry)
	Stage3Completed(result Stage3Result)
}

type noopObserver struct{}

func (noopObserver) StageStarted(string) {}

func (noopObserver) Stage1Completed([]Stage1Result, []MemberFailure) {}

func (noopObserver) Stage2Completed([]Stage2Result, map[string]string, []AggregateEntry) {}

func (noopObserver) Stage3Completed(Stage3Result) {}

// Pipeline runs one full council deliberation per call to Run. It owns no
// mutable state between turns; everything per-turn lives on the stack.
type Pipeline struct {
	invoker  Invoker
	council  appconfig.Council
	acc      *usage.Accumulator
	searcher *tools.WebSearcher
}

// New assembles a pipeline. The searcher may be nil, which disables the
// chairman's web-search tool.
func New(invoker Invoker, council appconfig.Council, acc *usage.Accumulator, searcher *tools.WebSearcher) *Pipeline {
	return &Pipeline{invoker: invoker, council: council, acc: acc, searcher: searcher}
}

// Run executes the three stages for one user turn. Per-member failures are
// absorbed into the result; the returned error is either a *PipelineError or
// the context's error after cancellation.
func (p *Pipeline) Run(ctx context.Context, question string, history []Turn, memoryContext string, obs Observer) (*Result, error) {
	if obs == nil {
		obs = noopObserver{}
	}
	if err := p.council.CheckMemberIDs(); err != nil {
		return nil, &PipelineError{Stage: StageOne, Kind: InvalidCouncil, Err: err}
	}

	obs.StageStarted(StageOne)
	stage1, failures, err := p.runStage1(ctx, question, history, memoryContext)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(stage1) < 2 {
		return nil, &PipelineError{
			Stage: StageOne,
			Kind:  InsufficientResponders,
			Err:   errors.New("peer ranking needs at least two successful responses"),
		}
	}
	obs.Stage1Completed(stage1, failures)

	obs.StageStarted(StageTwo)
	anonMap := NewAnonymizationMap(stage1)
	stage2, stage2Failures, err := p.runStage2(ctx, question, stage1, anonMap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	failures = append(failures, stage2Failures...)
	aggregate := Aggregate(stage2, anonMap, stage1)
	obs.Stage2Completed(stage2, anonMap.LabelToMember(), aggregate)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs.StageStarted(StageThree)
	stage3, err := p.runStage3(ctx, question, stage1, stage2, aggregate, anonMap, memoryContext)
	if err != nil {
		return nil, err
	}
	obs.Stage3Completed(stage3)

	return &Result{
		Stage1:        stage1,
		Failures:      failures,
		Stage2:        stage2,
		LabelToMember: anonMap.LabelToMember(),
		Aggregate:     aggregate,
		Stage3:        stage3,
	}, nil
}

// GenerateTitle produces a short conversation title from the first message,
// using the chairman's model. Failures fall back to a fixed title; a missing
// title never blocks a turn.
func (p *Pipeline) GenerateTitle(ctx context.Context, question string) string {
	const fallback = "New Conversation"

	result, err := p.invoker.Invoke(ctx, openrouter.InvokeRequest{
		Model:    p.council.Chairman.Model,
		Stage:    StageTitle,
		Messages: []openrouter.Message{{Role: "user", Content: titlePrompt(question)}},
	})
	if err != nil {
		logging.LogEvent("Title generation failed: %v", err)
		return fallback
	}
	p.recordCall(StageTitle, "title", p.council.Chairman.Model, result, false)

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(result.Text), `"`))
	if title == "" {
		return fallback
	}
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	return util.TruncateRunes(title, 80)
}

// recordCall appends one successful or failed invocation to the accumulator.
func (p *Pipeline) recordCall(stage, memberID, model string, result *openrouter.InvokeResult, failed bool) {
	if p.acc == nil {
		return
	}
	rec := usage.CallRecord{
		Model:    model,
		Stage:    stage,
		MemberID: memberID,
		Failed:   failed,
	}
	if result != nil {
		rec.PromptTokens = result.Usage.PromptTokens
		rec.CompletionTokens = result.Usage.CompletionTokens
		rec.TotalTokens = result.Usage.TotalTokens
		rec.LatencyMS = result.Latency.Milliseconds()
		if len(result.ToolsUsed) > 0 {
			rec.ToolUsed = true
			rec.ToolName = result.ToolsUsed[0]
		}
	}
	p.acc.RecordCall(rec)
}
