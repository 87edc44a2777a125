// internal/council/stage2.go
package council

import (
	"context"
	"sync"

	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/openrouter"
)

// runStage2 asks every Stage-1 responder to rank the anonymized answer set.
// Raters whose call fails, or whose reply yields no recognizable labels, are
// dropped from aggregation; their absence only reduces the vote count.
func (p *Pipeline) runStage2(ctx context.Context, question string, stage1 []Stage1Result, m AnonymizationMap) ([]Stage2Result, []MemberFailure, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	prompt := buildRankingPrompt(question, m)

	type outcome struct {
		result  *Stage2Result
		failure *MemberFailure
	}
	outcomes := make([]outcome, len(stage1))

	var wg sync.WaitGroup
	for i, responder := range stage1 {
		wg.Add(1)
		go func(i int, responder Stage1Result) {
			defer wg.Done()
			result, err := p.invoker.Invoke(ctx, openrouter.InvokeRequest{
				Model:    responder.Model,
				Messages: []openrouter.Message{{Role: "user", Content: prompt}},
				Stage:    StageTwo,
			})
			if err != nil {
				p.recordCall(StageTwo, responder.MemberID, responder.Model, result, true)
				logging.LogEvent("Stage 2: %s failed: %v", responder.Model, err)
				outcomes[i].failure = &MemberFailure{
					MemberID:  responder.MemberID,
					Model:     responder.Model,
					ErrorKind: string(openrouter.Kind(err)),
					Message:   err.Error(),
				}
				return
			}
			p.recordCall(StageTwo, responder.MemberID, responder.Model, result, false)

			parsed := ParseRanking(result.Text, m)
			if len(parsed) == 0 {
				logging.LogEvent("Stage 2: %s produced no usable ranking", responder.Model)
				outcomes[i].failure = &MemberFailure{
					MemberID:  responder.MemberID,
					Model:     responder.Model,
					ErrorKind: "unparseable_ranking",
					Message:   "no recognizable response labels in ranking reply",
				}
				return
			}
			outcomes[i].result = &Stage2Result{
				MemberID:      responder.MemberID,
				Model:         responder.Model,
				Ranking:       result.Text,
				ParsedRanking: parsed,
			}
		}(i, responder)
	}
	wg.Wait()

	var results []Stage2Result
	var failures []MemberFailure
	for _, o := range outcomes {
		if o.result != nil {
			results = append(results, *o.result)
		}
		if o.failure != nil {
			failures = append(failures, *o.failure)
		}
	}
	logging.LogEvent("Stage 2 complete: %d/%d rankings usable", len(results), len(stage1))
	return results, failures, nil
}
