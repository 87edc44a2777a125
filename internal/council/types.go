// internal/council/types.go

// Package council implements the three-stage deliberation pipeline:
// independent answering, anonymized peer ranking, and chairman synthesis.
package council

import (
	"fmt"

	"github.com/Zeetio/llm-council/internal/tools"
)

// Stage names used in progress updates, usage records and logs.
const (
	StageOne   = "stage1"
	StageTwo   = "stage2"
	StageThree = "stage3"
	StageTitle = "title"
)

// Stage1Result is one member's independent answer. Created once per turn and
// never mutated afterwards.
type Stage1Result struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Response string `json:"response"`
}

// MemberFailure records an isolated per-member error without failing the turn.
type MemberFailure struct {
	MemberID  string `json:"member_id"`
	Model     string `json:"model"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// Stage2Result is one member's ranking of the anonymized answers.
type Stage2Result struct {
	MemberID      string   `json:"member_id"`
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// AggregateEntry is one row of the consensus ordering.
type AggregateEntry struct {
	MemberID    string  `json:"member_id"`
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	AverageRank float64 `json:"average_rank"`
	VoteCount   int     `json:"vote_count"`
}

// Stage3Result is the chairman's synthesis.
type Stage3Result struct {
	Model         string        `json:"model"`
	Response      string        `json:"response"`
	RelatedImages []tools.Image `json:"related_images,omitempty"`
}

// Result collects everything one completed turn produced.
type Result struct {
	Stage1        []Stage1Result    `json:"stage1"`
	Failures      []MemberFailure   `json:"stage1_failures,omitempty"`
	Stage2        []Stage2Result    `json:"stage2"`
	LabelToMember map[string]string `json:"label_to_member"`
	Aggregate     []AggregateEntry  `json:"aggregate_rankings"`
	Stage3        Stage3Result      `json:"stage3"`
}

// FailureKind classifies pipeline-fatal errors.
type FailureKind string

const (
	InsufficientResponders FailureKind = "insufficient_responders"
	ChairmanFailure        FailureKind = "chairman_failure"
	InvalidCouncil         FailureKind = "invalid_council"
)

// PipelineError is a pipeline-fatal failure: the turn cannot proceed.
// Per-member errors are never wrapped in one; they ride along as
// MemberFailure metadata instead.
type PipelineError struct {
	Stage string
	Kind  FailureKind
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
