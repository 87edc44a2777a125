// internal/council/stage3.go
package council

import (
	"context"

	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/openrouter"
	"github.com/Zeetio/llm-council/internal/tools"
)

// runStage3 hands the full deliberation record to the chairman. Unlike the
// fan-out stages there is no one to fall back to, so a chairman failure ends
// the turn.
func (p *Pipeline) runStage3(ctx context.Context, question string, stage1 []Stage1Result, stage2 []Stage2Result, aggregate []AggregateEntry, m AnonymizationMap, memoryContext string) (Stage3Result, error) {
	chairman := p.council.Chairman

	req := openrouter.InvokeRequest{
		Model:        chairman.Model,
		Messages:     []openrouter.Message{{Role: "user", Content: buildChairmanPrompt(question, stage1, stage2, aggregate, m, memoryContext)}},
		SystemPrompt: chairman.SystemPrompt,
		Stage:        StageThree,
	}
	if p.searcher != nil {
		req.Tools = tools.Available()
		req.ToolExecutor = p.searcher
	}

	result, err := p.invoker.Invoke(ctx, req)
	if err != nil {
		p.recordCall(StageThree, chairman.ID, chairman.Model, result, true)
		if ctx.Err() != nil {
			return Stage3Result{}, ctx.Err()
		}
		return Stage3Result{}, &PipelineError{Stage: StageThree, Kind: ChairmanFailure, Err: err}
	}
	p.recordCall(StageThree, chairman.ID, chairman.Model, result, false)

	out := Stage3Result{Model: chairman.Model, Response: result.Text}

	// When the chairman reached for web search, fetch a few related images
	// for the same question. Image failures are silent; the answer stands.
	if p.searcher != nil && len(result.ToolsUsed) > 0 {
		out.RelatedImages = p.searcher.SearchImages(ctx, question)
	}

	logging.LogEvent("Stage 3 complete: %s synthesized final answer", chairman.Model)
	return out, nil
}
