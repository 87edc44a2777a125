// internal/tui/watch.go

// Package tui implements the operator-facing watch screen: a live view of a
// single job's event stream as the council deliberates.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zeetio/llm-council/internal/council"
	"github.com/Zeetio/llm-council/internal/jobs"
	"github.com/Zeetio/llm-council/internal/util"
)

var (
	headerStyle   = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	stageDone     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stageActive   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	stageIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	stageBad      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	logEventStyle = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type eventMsg jobs.Event

type streamClosedMsg struct{}

// watchModel is the Bubble Tea model behind the watch screen.
type watchModel struct {
	jobID    string
	events   <-chan jobs.Event
	cancelFn func() error

	spinner       spinner.Model
	viewport      viewport.Model
	ready         bool
	width, height int

	stageStatus map[string]string
	log         []string
	terminal    string
	err         error
}

func newWatchModel(jobID string, events <-chan jobs.Event, cancelFn func() error) *watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &watchModel{
		jobID:    jobID,
		events:   events,
		cancelFn: cancelFn,
		spinner:  s,
		stageStatus: map[string]string{
			"stage1": jobs.StagePending,
			"stage2": jobs.StagePending,
			"stage3": jobs.StagePending,
		},
	}
}

// Watch runs the watch screen until the stream closes or the user quits.
func Watch(jobID string, events <-chan jobs.Event, cancelFn func() error) error {
	p := tea.NewProgram(newWatchModel(jobID, events, cancelFn), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func waitForEvent(ch <-chan jobs.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			if m.terminal == "" && m.cancelFn != nil {
				if err := m.cancelFn(); err != nil {
					m.appendLog(stageBad.Render("cancel failed: " + err.Error()))
				} else {
					m.appendLog("cancellation requested")
				}
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		logHeight := msg.Height - 6
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, logHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = logHeight
		}
		m.viewport.SetContent(strings.Join(m.log, "\n"))
		return m, nil

	case eventMsg:
		m.apply(jobs.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		if m.terminal == "" {
			m.terminal = "stream closed"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// apply folds one event into the stage table and the log.
func (m *watchModel) apply(event jobs.Event) {
	switch event.Type {
	case jobs.EventStage1Start, jobs.EventStage2Start, jobs.EventStage3Start:
		stage := strings.TrimSuffix(event.Type, "_start")
		m.stageStatus[stage] = jobs.StageRunning
		m.appendLog(logEventStyle.Render(event.Type))
	case jobs.EventStage1Complete:
		m.stageStatus["stage1"] = jobs.StageCompleted
		m.appendLog(logEventStyle.Render(event.Type) + m.stage1Summary(event))
	case jobs.EventStage2Complete:
		m.stageStatus["stage2"] = jobs.StageCompleted
		m.appendLog(logEventStyle.Render(event.Type) + m.stage2Summary(event))
	case jobs.EventStage3Complete:
		m.stageStatus["stage3"] = jobs.StageCompleted
		m.appendLog(logEventStyle.Render(event.Type) + m.stage3Summary(event))
	case jobs.EventTitleComplete:
		m.appendLog(logEventStyle.Render(event.Type) + " " + event.Title)
	case jobs.EventComplete:
		m.terminal = jobs.StatusCompleted
		line := logEventStyle.Render(event.Type)
		if event.Usage != nil {
			line += fmt.Sprintf(" %d calls, %d tokens, $%.4f",
				event.Usage.TotalCalls, event.Usage.TotalTokens, event.Usage.TotalCostUSD)
		}
		m.appendLog(line)
	case jobs.EventError:
		m.terminal = jobs.StatusFailed
		m.markRunningStages(jobs.StageFailed)
		m.appendLog(stageBad.Render(event.Type + ": " + event.Message))
	case jobs.EventCancelled:
		m.terminal = jobs.StatusCancelled
		m.markRunningStages(jobs.StageFailed)
		m.appendLog(stageBad.Render(event.Type))
	default:
		m.appendLog(event.Type)
	}
}

func (m *watchModel) stage1Summary(event jobs.Event) string {
	var results []council.Stage1Result
	if err := json.Unmarshal(event.Data, &results); err != nil {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, fmt.Sprintf("%s (%s)", res.Model, util.Preview(res.Response, 40)))
	}
	return " " + strings.Join(parts, ", ")
}

func (m *watchModel) stage2Summary(event jobs.Event) string {
	var meta struct {
		Aggregate []council.AggregateEntry `json:"aggregate_rankings"`
	}
	if err := json.Unmarshal(event.Metadata, &meta); err != nil || len(meta.Aggregate) == 0 {
		return ""
	}
	parts := make([]string, 0, len(meta.Aggregate))
	for i, entry := range meta.Aggregate {
		parts = append(parts, fmt.Sprintf("%d. %s (%.2f)", i+1, entry.Model, entry.AverageRank))
	}
	return " consensus: " + strings.Join(parts, "  ")
}

func (m *watchModel) stage3Summary(event jobs.Event) string {
	var result council.Stage3Result
	if err := json.Unmarshal(event.Data, &result); err != nil {
		return ""
	}
	return " " + util.Preview(result.Response, 120)
}

func (m *watchModel) markRunningStages(status string) {
	for stage, current := range m.stageStatus {
		if current == jobs.StageRunning {
			m.stageStatus[stage] = status
		}
	}
}

func (m *watchModel) appendLog(line string) {
	m.log = append(m.log, line)
	if m.ready {
		m.viewport.SetContent(strings.Join(m.log, "\n"))
		m.viewport.GotoBottom()
	}
}

func (m *watchModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Watching job " + m.jobID))
	b.WriteString("\n\n")
	b.WriteString(m.stageLine())
	b.WriteString("\n\n")
	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(strings.Join(m.log, "\n"))
	}
	b.WriteString("\n")
	if m.terminal == "" {
		b.WriteString(helpStyle.Render("(c to cancel, q to quit)"))
	} else {
		b.WriteString(helpStyle.Render(fmt.Sprintf("job %s (q to quit)", m.terminal)))
	}
	return b.String()
}

func (m *watchModel) stageLine() string {
	parts := make([]string, 0, 3)
	for _, stage := range []string{"stage1", "stage2", "stage3"} {
		label := stage + " " + m.stageStatus[stage]
		switch m.stageStatus[stage] {
		case jobs.StageCompleted:
			parts = append(parts, stageDone.Render("✓ "+label))
		case jobs.StageRunning:
			parts = append(parts, stageActive.Render(m.spinner.View()+label))
		case jobs.StageFailed:
			parts = append(parts, stageBad.Render("✗ "+label))
		default:
			parts = append(parts, stageIdle.Render("· "+label))
		}
	}
	return strings.Join(parts, "   ")
}
