// internal/jobs/store_test.go
package jobs

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zeetio/llm-council/internal/usage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	totals := usage.Totals{TotalCalls: 7, TotalTokens: 999}
	job := &Job{
		ID:             "job-1",
		ProjectID:      "default",
		ConversationID: "conv-1",
		Question:       "What is Go?",
		Status:         StatusCompleted,
		Stages:         newStages(),
		Events: []Event{
			{Type: EventStage1Start, Sequence: 1, Timestamp: now},
			{Type: EventComplete, Sequence: 2, Timestamp: now, Usage: &totals},
		},
		Usage:     &totals,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Save(job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != StatusCompleted || loaded.Question != "What is Go?" {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Events) != 2 || loaded.Events[1].Usage.TotalTokens != 999 {
		t.Errorf("events did not survive: %+v", loaded.Events)
	}
	if len(loaded.Stages) != 3 || loaded.Stages["stage1"].Status != StagePending {
		t.Errorf("stages did not survive: %+v", loaded.Stages)
	}
}

func TestStoreSaveIsUpsert(t *testing.T) {
	store := newTestStore(t)

	job := &Job{ID: "job-1", Status: StatusQueued, Stages: newStages(), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := store.Save(job); err != nil {
		t.Fatalf("Save: %v", err)
	}
	job.Status = StatusRunning
	if err := store.Save(job); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	loaded, _ := store.Get("job-1")
	if loaded.Status != StatusRunning {
		t.Errorf("status = %q, want running", loaded.Status)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		job := &Job{
			ID:        id,
			Status:    StatusQueued,
			Stages:    newStages(),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Save(job); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	listed, err := store.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "new" || listed[1].ID != "mid" {
		t.Errorf("listed = %v", listed)
	}
}
