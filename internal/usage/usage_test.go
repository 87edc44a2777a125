package usage

import (
	"sync"
	"testing"
)

func TestEstimateCost(t *testing.T) {
	got := EstimateCost("openai/gpt-5.1", 1_000_000, 1_000_000)
	if got != 15.0 {
		t.Fatalf("gpt-5.1 cost: %f", got)
	}
	got = EstimateCost("made-up/model", 1_000_000, 0)
	if got != 1.0 {
		t.Fatalf("default input cost: %f", got)
	}
	if got := EstimateCost("openai/gpt-5.1", 0, 0); got != 0 {
		t.Fatalf("zero tokens should cost nothing: %f", got)
	}
}

func TestAccumulatorTotals(t *testing.T) {
	acc := NewAccumulator()
	acc.RecordCall(CallRecord{Model: "m1", Stage: "stage1", MemberID: "a", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, LatencyMS: 100})
	acc.RecordCall(CallRecord{Model: "m2", Stage: "stage1", MemberID: "b", TotalTokens: 0, LatencyMS: 300, Failed: true})
	acc.RecordCall(CallRecord{Model: "m1", Stage: "stage3", MemberID: "chairman", PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20, LatencyMS: 200})
	acc.RecordTool(ToolRecord{ToolName: "web_search", Success: true, ResultCount: 3})

	totals := acc.Totals()
	if totals.TotalCalls != 3 {
		t.Fatalf("total calls: %d", totals.TotalCalls)
	}
	if totals.FailedCalls != 1 {
		t.Fatalf("failed calls: %d", totals.FailedCalls)
	}
	if totals.TotalTokens != 170 {
		t.Fatalf("total tokens: %d", totals.TotalTokens)
	}
	if totals.AvgLatencyMS != 200 {
		t.Fatalf("avg latency: %d", totals.AvgLatencyMS)
	}
	if totals.ByStage["stage1"].Calls != 2 || totals.ByStage["stage3"].Calls != 1 {
		t.Fatalf("stage breakdown: %+v", totals.ByStage)
	}
	if totals.ByModel["m1"].TotalTokens != 170 {
		t.Fatalf("model breakdown: %+v", totals.ByModel)
	}
	if totals.ToolCallCount != 1 || len(totals.ToolCalls) != 1 {
		t.Fatalf("tool log: %+v", totals.ToolCalls)
	}
}

func TestAccumulatorAppendOnly(t *testing.T) {
	acc := NewAccumulator()
	acc.RecordCall(CallRecord{Model: "m", Stage: "stage1", TotalTokens: 10})

	before := acc.Totals()
	acc.RecordCall(CallRecord{Model: "m", Stage: "stage2", TotalTokens: 5})
	after := acc.Totals()

	if after.TotalTokens < before.TotalTokens {
		t.Fatalf("totals decreased: %d -> %d", before.TotalTokens, after.TotalTokens)
	}
	if after.TotalCalls != before.TotalCalls+1 {
		t.Fatalf("call count did not grow by one")
	}
}

func TestAccumulatorConcurrentRecords(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.RecordCall(CallRecord{Model: "m", Stage: "stage2", TotalTokens: 1, LatencyMS: 10})
		}()
	}
	wg.Wait()

	totals := acc.Totals()
	if totals.TotalCalls != 20 || totals.TotalTokens != 20 {
		t.Fatalf("concurrent records lost: %+v", totals)
	}
}
