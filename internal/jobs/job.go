// internal/jobs/job.go

// Package jobs runs council deliberations in the background. Each job walks
// queued -> running -> completed|failed|cancelled, persisting every
// transition so a restarted process can still answer for it. Progress is
// delivered both ways: push (typed events to subscribers) and pull (snapshot
// reads), and both observe the same ordered sequence.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/Zeetio/llm-council/internal/usage"
)

// Job states. Terminal states are final; the state machine never moves
// backwards.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Per-stage states.
const (
	StagePending   = "pending"
	StageRunning   = "running"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Event types, in the order a successful job emits them. title_complete may
// interleave anywhere before the terminal event.
const (
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventTitleComplete  = "title_complete"
	EventComplete       = "complete"
	EventError          = "error"
	EventCancelled      = "cancelled"
)

// Event is one entry in a job's ordered progress sequence. Sequence numbers
// start at 1 and never repeat within a job.
type Event struct {
	Type      string          `json:"type"`
	Sequence  int             `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Title     string          `json:"title,omitempty"`
	Message   string          `json:"message,omitempty"`
	Usage     *usage.Totals   `json:"usage,omitempty"`
}

// StageProgress is the per-stage sub-status inside a job.
type StageProgress struct {
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Job is the persisted record of one background deliberation.
type Job struct {
	ID             string                   `json:"id"`
	ProjectID      string                   `json:"project_id"`
	ConversationID string                   `json:"conversation_id"`
	Question       string                   `json:"question"`
	Status         string                   `json:"status"`
	Stages         map[string]StageProgress `json:"stages"`
	Events         []Event                  `json:"events"`
	Title          string                   `json:"title,omitempty"`
	Error          string                   `json:"error,omitempty"`
	Usage          *usage.Totals            `json:"usage,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

var stageNames = []string{"stage1", "stage2", "stage3"}

func newStages() map[string]StageProgress {
	stages := make(map[string]StageProgress, len(stageNames))
	for _, name := range stageNames {
		stages[name] = StageProgress{Status: StagePending}
	}
	return stages
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// clone deep-copies the job so snapshots never alias controller state.
func (j *Job) clone() *Job {
	out := *j
	out.Stages = make(map[string]StageProgress, len(j.Stages))
	for name, stage := range j.Stages {
		out.Stages[name] = stage
	}
	out.Events = make([]Event, len(j.Events))
	copy(out.Events, j.Events)
	if j.Usage != nil {
		totals := *j.Usage
		out.Usage = &totals
	}
	return &out
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
