// internal/council/stage1.go
package council

import (
	"context"
	"sync"

	"github.com/Zeetio/llm-council/internal/appconfig"
	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/openrouter"
)

// runStage1 fans the question out to every member concurrently and waits for
// all of them. A member's failure never affects its peers; the only error
// returned here is the context's, when the run was cancelled before dispatch.
func (p *Pipeline) runStage1(ctx context.Context, question string, history []Turn, memoryContext string) ([]Stage1Result, []MemberFailure, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	messages := buildStage1Messages(question, history, memoryContext)

	type outcome struct {
		result  *Stage1Result
		failure *MemberFailure
	}
	outcomes := make([]outcome, len(p.council.Members))

	var wg sync.WaitGroup
	for i, member := range p.council.Members {
		wg.Add(1)
		go func(i int, member appconfig.Member) {
			defer wg.Done()
			result, err := p.invoker.Invoke(ctx, openrouter.InvokeRequest{
				Model:        member.Model,
				Messages:     messages,
				SystemPrompt: member.SystemPrompt,
				Stage:        StageOne,
			})
			if err != nil {
				p.recordCall(StageOne, member.ID, member.Model, result, true)
				logging.LogEvent("Stage 1: %s failed: %v", member.Model, err)
				outcomes[i].failure = &MemberFailure{
					MemberID:  member.ID,
					Model:     member.Model,
					ErrorKind: string(openrouter.Kind(err)),
					Message:   err.Error(),
				}
				return
			}
			p.recordCall(StageOne, member.ID, member.Model, result, false)
			outcomes[i].result = &Stage1Result{
				MemberID: member.ID,
				Name:     member.Name,
				Model:    member.Model,
				Response: result.Text,
			}
		}(i, member)
	}
	wg.Wait()

	// Results stay in council order so downstream ordering is deterministic.
	var results []Stage1Result
	var failures []MemberFailure
	for _, o := range outcomes {
		if o.result != nil {
			results = append(results, *o.result)
		}
		if o.failure != nil {
			failures = append(failures, *o.failure)
		}
	}
	logging.LogEvent("Stage 1 complete: %d/%d members responded", len(results), len(p.council.Members))
	return results, failures, nil
}
