// internal/jobs/controller_test.go
package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zeetio/llm-council/internal/council"
	"github.com/Zeetio/llm-council/internal/storage"
	"github.com/Zeetio/llm-council/internal/usage"
)

// fakeRunner walks the observer through a scripted deliberation.
type fakeRunner struct {
	err         error
	title       string
	hangInStage string // block at this stage until the context is cancelled
}

func (f *fakeRunner) Run(ctx context.Context, question string, history []council.Turn, memoryContext string, obs council.Observer) (*council.Result, error) {
	obs.StageStarted("stage1")
	if f.hangInStage == "stage1" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	stage1 := []council.Stage1Result{
		{MemberID: "gpt", Model: "openai/gpt-5.1", Response: "answer one"},
		{MemberID: "claude", Model: "anthropic/claude-sonnet-4.5", Response: "answer two"},
	}
	obs.Stage1Completed(stage1, nil)

	if f.err != nil {
		return nil, f.err
	}

	obs.StageStarted("stage2")
	if f.hangInStage == "stage2" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	labelToMember := map[string]string{"Response A": "gpt", "Response B": "claude"}
	aggregate := []council.AggregateEntry{{MemberID: "gpt", AverageRank: 1.0, VoteCount: 2}}
	obs.Stage2Completed([]council.Stage2Result{{MemberID: "gpt", ParsedRanking: []string{"Response A"}}}, labelToMember, aggregate)

	obs.StageStarted("stage3")
	stage3 := council.Stage3Result{Model: "openai/gpt-5.1", Response: "final answer"}
	obs.Stage3Completed(stage3)

	return &council.Result{
		Stage1:        stage1,
		LabelToMember: labelToMember,
		Aggregate:     aggregate,
		Stage3:        stage3,
	}, nil
}

func (f *fakeRunner) GenerateTitle(ctx context.Context, question string) string {
	if f.title != "" {
		return f.title
	}
	return "New Conversation"
}

func newTestController(t *testing.T, runner Runner, stale time.Duration) (*Controller, *storage.Store, string) {
	t.Helper()
	files, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	store, err := OpenStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	conv, err := files.CreateConversation(storage.DefaultProjectID)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	ctrl := NewController(store, files, func(acc *usage.Accumulator) Runner { return runner }, stale)
	return ctrl, files, conv.ID
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatalf("event stream never closed; got %v", eventTypes(events))
		}
	}
}

func eventTypes(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestJobRunsToCompletion(t *testing.T) {
	ctrl, files, convID := newTestController(t, &fakeRunner{}, time.Minute)

	job, err := ctrl.Submit(SubmitRequest{
		ProjectID:      storage.DefaultProjectID,
		ConversationID: convID,
		Question:       "What is Go?",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != StatusQueued {
		t.Errorf("initial status = %q", job.Status)
	}

	ch, unsub, err := ctrl.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()
	events := collect(t, ch)

	want := []string{
		EventStage1Start, EventStage1Complete,
		EventStage2Start, EventStage2Complete,
		EventStage3Start, EventStage3Complete,
		EventComplete,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	for i, event := range events {
		if event.Sequence != i+1 {
			t.Errorf("event %d has sequence %d", i, event.Sequence)
		}
	}
	if events[len(events)-1].Usage == nil {
		t.Error("terminal event carries no usage totals")
	}

	snapshot, err := ctrl.Snapshot(job.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Status != StatusCompleted {
		t.Errorf("status = %q", snapshot.Status)
	}
	if len(snapshot.Events) != len(events) {
		t.Errorf("snapshot has %d events, stream delivered %d", len(snapshot.Events), len(events))
	}
	for _, stage := range []string{"stage1", "stage2", "stage3"} {
		if snapshot.Stages[stage].Status != StageCompleted {
			t.Errorf("%s status = %q", stage, snapshot.Stages[stage].Status)
		}
	}

	conv, err := files.GetConversation(storage.DefaultProjectID, convID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected question and answer persisted, got %d messages", len(conv.Messages))
	}
	if conv.Messages[1].Content != "final answer" || conv.Messages[1].Usage == nil {
		t.Errorf("assistant message = %+v", conv.Messages[1])
	}
}

func TestJobTitleGeneration(t *testing.T) {
	ctrl, files, convID := newTestController(t, &fakeRunner{title: "Go Basics"}, time.Minute)

	job, err := ctrl.Submit(SubmitRequest{
		ProjectID:      storage.DefaultProjectID,
		ConversationID: convID,
		Question:       "What is Go?",
		GenerateTitle:  true,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ch, unsub, _ := ctrl.Subscribe(job.ID)
	defer unsub()
	events := collect(t, ch)

	found := false
	for _, event := range events {
		if event.Type == EventTitleComplete {
			found = true
			if event.Title != "Go Basics" {
				t.Errorf("title event = %+v", event)
			}
		}
	}
	if !found {
		t.Fatalf("no title_complete event in %v", eventTypes(events))
	}
	if events[len(events)-1].Type != EventComplete {
		t.Errorf("terminal event = %q", events[len(events)-1].Type)
	}

	conv, _ := files.GetConversation(storage.DefaultProjectID, convID)
	if conv.Title != "Go Basics" {
		t.Errorf("conversation title = %q", conv.Title)
	}
}

func TestJobCancellation(t *testing.T) {
	ctrl, _, convID := newTestController(t, &fakeRunner{hangInStage: "stage2"}, time.Minute)

	job, err := ctrl.Submit(SubmitRequest{
		ProjectID:      storage.DefaultProjectID,
		ConversationID: convID,
		Question:       "What is Go?",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ch, unsub, _ := ctrl.Subscribe(job.ID)
	defer unsub()

	// Wait for stage2 to start, then cancel.
	timeout := time.After(5 * time.Second)
	var events []Event
waitStage2:
	for {
		select {
		case event := <-ch:
			events = append(events, event)
			if event.Type == EventStage2Start {
				break waitStage2
			}
		case <-timeout:
			t.Fatalf("stage2 never started; got %v", eventTypes(events))
		}
	}
	if err := ctrl.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	events = append(events, collect(t, ch)...)

	got := eventTypes(events)
	if got[len(got)-1] != EventCancelled {
		t.Fatalf("terminal event = %v", got)
	}
	for _, typ := range got {
		if typ == EventStage2Complete || typ == EventStage3Start || typ == EventStage3Complete {
			t.Errorf("event %q emitted after cancellation", typ)
		}
	}

	snapshot, _ := ctrl.Snapshot(job.ID)
	if snapshot.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", snapshot.Status)
	}
	if snapshot.Stages["stage2"].Status == StageRunning {
		t.Error("stage2 still reported running after cancellation")
	}
}

func TestJobFailure(t *testing.T) {
	ctrl, _, convID := newTestController(t, &fakeRunner{
		err: &council.PipelineError{Stage: "stage1", Kind: council.InsufficientResponders, Err: errors.New("only one response")},
	}, time.Minute)

	job, _ := ctrl.Submit(SubmitRequest{
		ProjectID:      storage.DefaultProjectID,
		ConversationID: convID,
		Question:       "What is Go?",
	})

	ch, unsub, _ := ctrl.Subscribe(job.ID)
	defer unsub()
	events := collect(t, ch)

	last := events[len(events)-1]
	if last.Type != EventError || last.Message == "" {
		t.Fatalf("terminal event = %+v", last)
	}

	snapshot, _ := ctrl.Snapshot(job.ID)
	if snapshot.Status != StatusFailed || snapshot.Error == "" {
		t.Errorf("snapshot = status %q error %q", snapshot.Status, snapshot.Error)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctrl, _, convID := newTestController(t, &fakeRunner{}, time.Minute)

	if _, err := ctrl.Submit(SubmitRequest{ProjectID: storage.DefaultProjectID, ConversationID: convID, Question: "   "}); err == nil {
		t.Error("blank question accepted")
	}
	if _, err := ctrl.Submit(SubmitRequest{ProjectID: storage.DefaultProjectID, ConversationID: "nope", Question: "q"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing conversation: got %v", err)
	}
}

func TestCancelTerminalAndUnknownJobs(t *testing.T) {
	ctrl, _, convID := newTestController(t, &fakeRunner{}, time.Minute)

	job, _ := ctrl.Submit(SubmitRequest{ProjectID: storage.DefaultProjectID, ConversationID: convID, Question: "q"})
	ch, unsub, _ := ctrl.Subscribe(job.ID)
	defer unsub()
	collect(t, ch) // wait for completion

	if err := ctrl.Cancel(job.ID); !errors.Is(err, ErrFinished) {
		t.Errorf("cancel terminal job: got %v, want ErrFinished", err)
	}
	if err := ctrl.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancel unknown job: got %v, want ErrNotFound", err)
	}
}

func TestStaleJobReapedOnRead(t *testing.T) {
	ctrl, _, _ := newTestController(t, &fakeRunner{}, time.Minute)

	stale := &Job{
		ID:        "orphan",
		Status:    StatusRunning,
		Stages:    newStages(),
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := ctrl.store.Save(stale); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snapshot, err := ctrl.Snapshot("orphan")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Status != StatusFailed {
		t.Errorf("status = %q, want failed", snapshot.Status)
	}
	if snapshot.Error == "" {
		t.Error("stale job has no failure reason")
	}

	// The reaped state is persisted, not just reported.
	persisted, _ := ctrl.store.Get("orphan")
	if persisted.Status != StatusFailed {
		t.Errorf("persisted status = %q, want failed", persisted.Status)
	}
}

func TestFreshRunningJobNotReaped(t *testing.T) {
	ctrl, _, _ := newTestController(t, &fakeRunner{}, time.Hour)

	job := &Job{
		ID:        "orphan",
		Status:    StatusRunning,
		Stages:    newStages(),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := ctrl.store.Save(job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snapshot, _ := ctrl.Snapshot("orphan")
	if snapshot.Status != StatusRunning {
		t.Errorf("status = %q, want running", snapshot.Status)
	}
}

func TestLateSubscriberReplaysFullSequence(t *testing.T) {
	ctrl, _, convID := newTestController(t, &fakeRunner{}, time.Minute)

	job, _ := ctrl.Submit(SubmitRequest{ProjectID: storage.DefaultProjectID, ConversationID: convID, Question: "q"})

	// Let the job finish first.
	first, unsub, _ := ctrl.Subscribe(job.ID)
	collect(t, first)
	unsub()

	late, lateUnsub, err := ctrl.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("late Subscribe: %v", err)
	}
	defer lateUnsub()
	events := collect(t, late)
	if len(events) == 0 || events[len(events)-1].Type != EventComplete {
		t.Errorf("late subscriber events = %v", eventTypes(events))
	}
	for i, event := range events {
		if event.Sequence != i+1 {
			t.Errorf("replayed event %d has sequence %d", i, event.Sequence)
		}
	}
}
