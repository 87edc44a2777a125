// internal/tui/watch_test.go
package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zeetio/llm-council/internal/jobs"
	"github.com/Zeetio/llm-council/internal/usage"
)

func applyEvents(m *watchModel, events ...jobs.Event) {
	for _, event := range events {
		m.Update(eventMsg(event))
	}
}

func TestWatchModelTracksStages(t *testing.T) {
	m := newWatchModel("job-1", nil, nil)

	applyEvents(m,
		jobs.Event{Type: jobs.EventStage1Start},
		jobs.Event{Type: jobs.EventStage1Complete, Data: []byte(`[]`)},
		jobs.Event{Type: jobs.EventStage2Start},
	)

	if m.stageStatus["stage1"] != jobs.StageCompleted {
		t.Errorf("stage1 = %q", m.stageStatus["stage1"])
	}
	if m.stageStatus["stage2"] != jobs.StageRunning {
		t.Errorf("stage2 = %q", m.stageStatus["stage2"])
	}
	if m.stageStatus["stage3"] != jobs.StagePending {
		t.Errorf("stage3 = %q", m.stageStatus["stage3"])
	}
	if m.terminal != "" {
		t.Errorf("terminal = %q before a terminal event", m.terminal)
	}
}

func TestWatchModelTerminalEvents(t *testing.T) {
	m := newWatchModel("job-1", nil, nil)
	totals := usage.Totals{TotalCalls: 7, TotalTokens: 500}

	applyEvents(m,
		jobs.Event{Type: jobs.EventStage1Start},
		jobs.Event{Type: jobs.EventStage1Complete, Data: []byte(`[]`)},
		jobs.Event{Type: jobs.EventComplete, Usage: &totals},
	)
	if m.terminal != jobs.StatusCompleted {
		t.Errorf("terminal = %q", m.terminal)
	}

	failed := newWatchModel("job-2", nil, nil)
	applyEvents(failed,
		jobs.Event{Type: jobs.EventStage1Start},
		jobs.Event{Type: jobs.EventError, Message: "boom"},
	)
	if failed.terminal != jobs.StatusFailed {
		t.Errorf("terminal = %q", failed.terminal)
	}
	if failed.stageStatus["stage1"] != jobs.StageFailed {
		t.Errorf("running stage not failed: %q", failed.stageStatus["stage1"])
	}
}

func TestWatchModelView(t *testing.T) {
	m := newWatchModel("job-1", nil, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	applyEvents(m, jobs.Event{Type: jobs.EventTitleComplete, Title: "Go Basics"})

	view := m.View()
	if !strings.Contains(view, "job-1") {
		t.Error("view missing job id")
	}
	if !strings.Contains(view, "title_complete") {
		t.Error("view missing log line")
	}
	if !strings.Contains(view, "c to cancel") {
		t.Error("view missing help line")
	}
}

func TestWatchModelQuitKeys(t *testing.T) {
	m := newWatchModel("job-1", nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit message")
	}
}
