// internal/jobs/controller.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zeetio/llm-council/internal/council"
	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/storage"
	"github.com/Zeetio/llm-council/internal/usage"
)

var ErrFinished = errors.New("job already finished")

// Runner is the deliberation the controller drives. *council.Pipeline
// satisfies it.
type Runner interface {
	Run(ctx context.Context, question string, history []council.Turn, memoryContext string, obs council.Observer) (*council.Result, error)
	GenerateTitle(ctx context.Context, question string) string
}

// RunnerFactory builds a runner around the accumulator of one job, so usage
// recorded during the run lands in that job's totals.
type RunnerFactory func(acc *usage.Accumulator) Runner

// SubmitRequest describes one deliberation to run in the background.
type SubmitRequest struct {
	ProjectID      string
	ConversationID string
	Question       string
	GenerateTitle  bool
}

// Controller owns all in-flight jobs. Submit returns immediately; progress
// flows to subscribers as events and to pollers as snapshots, both backed by
// the same persisted record.
type Controller struct {
	store   *Store
	files   *storage.Store
	factory RunnerFactory
	stale   time.Duration

	mu      sync.Mutex
	active  map[string]*activeJob
	subs    map[string]map[int]chan Event
	nextSub int
}

type activeJob struct {
	job    *Job
	cancel context.CancelFunc
}

// NewController wires the controller to its persistence and runner factory.
// staleAfter bounds how long a persisted running job may sit without
// progress before a read declares it lost.
func NewController(store *Store, files *storage.Store, factory RunnerFactory, staleAfter time.Duration) *Controller {
	return &Controller{
		store:   store,
		files:   files,
		factory: factory,
		stale:   staleAfter,
		active:  make(map[string]*activeJob),
		subs:    make(map[string]map[int]chan Event),
	}
}

// Submit validates the request, persists a queued job and starts it in the
// background. The returned snapshot is safe to hand to the caller.
func (c *Controller) Submit(req SubmitRequest) (*Job, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.New("question must not be empty")
	}
	if _, err := c.files.GetConversation(req.ProjectID, req.ConversationID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:             uuid.NewString(),
		ProjectID:      req.ProjectID,
		ConversationID: req.ConversationID,
		Question:       question,
		Status:         StatusQueued,
		Stages:         newStages(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.store.Save(job); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.active[job.ID] = &activeJob{job: job, cancel: cancel}
	c.mu.Unlock()

	logging.LogEvent("Job %s submitted for conversation %s", job.ID, job.ConversationID)
	req.Question = question
	snapshot := job.clone()
	go c.run(ctx, cancel, job, req)
	return snapshot, nil
}

// Cancel requests cooperative cancellation. Cancelling a terminal job is an
// error; cancelling an orphaned persisted job marks it cancelled directly.
func (c *Controller) Cancel(id string) error {
	c.mu.Lock()
	if entry, ok := c.active[id]; ok {
		entry.cancel()
		c.mu.Unlock()
		logging.LogEvent("Job %s cancellation requested", id)
		return nil
	}
	c.mu.Unlock()

	job, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return ErrFinished
	}
	job.Status = StatusCancelled
	job.UpdatedAt = time.Now().UTC()
	return c.store.Save(job)
}

// Snapshot is the pull side: the job record as of now, with staleness
// applied to orphaned running jobs.
func (c *Controller) Snapshot(id string) (*Job, error) {
	c.mu.Lock()
	if entry, ok := c.active[id]; ok {
		snapshot := entry.job.clone()
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	job, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	return c.reapIfStale(job), nil
}

// List returns recent jobs, newest first, with staleness applied.
func (c *Controller) List(limit int) ([]*Job, error) {
	persisted, err := c.store.List(limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(persisted))
	for _, job := range persisted {
		c.mu.Lock()
		entry, running := c.active[job.ID]
		if running {
			job = entry.job.clone()
		}
		c.mu.Unlock()
		if !running {
			job = c.reapIfStale(job)
		}
		out = append(out, job)
	}
	return out, nil
}

// Subscribe is the push side: the full event sequence from the beginning,
// already-emitted events replayed first, then live ones in order. The stream
// closes at the terminal event. The returned func unsubscribes.
func (c *Controller) Subscribe(id string) (<-chan Event, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var job *Job
	if entry, ok := c.active[id]; ok {
		job = entry.job
	} else {
		persisted, err := c.store.Get(id)
		if err != nil {
			return nil, nil, err
		}
		job = persisted
	}

	ch := make(chan Event, len(job.Events)+64)
	for _, event := range job.Events {
		ch <- event
	}

	if _, running := c.active[id]; !running || job.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	c.nextSub++
	subID := c.nextSub
	if c.subs[id] == nil {
		c.subs[id] = make(map[int]chan Event)
	}
	c.subs[id][subID] = ch

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if set, ok := c.subs[id]; ok {
			if _, live := set[subID]; live {
				delete(set, subID)
				close(ch)
			}
		}
	}
	return ch, unsubscribe, nil
}

// reapIfStale declares a persisted running job lost when it has made no
// progress within the staleness threshold. Reaping happens on read, never
// in a background sweep.
func (c *Controller) reapIfStale(job *Job) *Job {
	if job.Terminal() || c.stale <= 0 {
		return job
	}
	if time.Since(job.UpdatedAt) <= c.stale {
		return job
	}
	job.Status = StatusFailed
	job.Error = fmt.Sprintf("job lost: no progress since %s", job.UpdatedAt.Format(time.RFC3339))
	job.UpdatedAt = time.Now().UTC()
	if err := c.store.Save(job); err != nil {
		logging.LogEvent("Failed to persist stale job %s: %v", job.ID, err)
	}
	logging.LogEvent("Job %s declared stale", job.ID)
	return job
}

// run drives one job to a terminal state.
func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, job *Job, req SubmitRequest) {
	defer cancel()

	acc := usage.NewAccumulator()
	runner := c.factory(acc)

	c.transition(job, StatusRunning)

	conversation, err := c.files.GetConversation(req.ProjectID, req.ConversationID)
	if err != nil {
		c.fail(job, fmt.Sprintf("loading conversation: %v", err))
		return
	}
	history := conversation.History()
	memoryContext := c.files.MemoryContext(req.ProjectID)

	if err := c.files.AddUserMessage(req.ProjectID, req.ConversationID, req.Question); err != nil {
		c.fail(job, fmt.Sprintf("recording question: %v", err))
		return
	}

	var titleWG sync.WaitGroup
	if req.GenerateTitle {
		titleWG.Add(1)
		go func() {
			defer titleWG.Done()
			title := runner.GenerateTitle(ctx, req.Question)
			if err := c.files.SetTitle(req.ProjectID, req.ConversationID, title); err != nil {
				logging.LogEvent("Failed to store title for %s: %v", req.ConversationID, err)
			}
			c.emit(job, Event{Type: EventTitleComplete, Title: title}, func(j *Job) {
				j.Title = title
			})
		}()
	}

	result, runErr := runner.Run(ctx, req.Question, history, memoryContext, &jobObserver{ctrl: c, job: job})
	titleWG.Wait()

	if runErr != nil {
		if ctx.Err() != nil || errors.Is(runErr, context.Canceled) {
			c.failRunningStages(job)
			c.finish(job, StatusCancelled, Event{Type: EventCancelled})
			return
		}
		c.failRunningStages(job)
		c.fail(job, runErr.Error())
		return
	}

	totals := acc.Totals()
	if err := c.files.AddAssistantMessage(req.ProjectID, req.ConversationID, result, totals); err != nil {
		c.fail(job, fmt.Sprintf("persisting turn: %v", err))
		return
	}
	c.finish(job, StatusCompleted, Event{Type: EventComplete, Usage: &totals}, func(j *Job) {
		j.Usage = &totals
	})
}

func (c *Controller) fail(job *Job, message string) {
	c.finish(job, StatusFailed, Event{Type: EventError, Message: message}, func(j *Job) {
		j.Error = message
	})
}

// transition moves the job's top-level status forward and persists it.
func (c *Controller) transition(job *Job, status string) {
	c.mu.Lock()
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if err := c.store.Save(job); err != nil {
		logging.LogEvent("Failed to persist job %s: %v", job.ID, err)
	}
	c.mu.Unlock()
}

// emit appends one event to the job's sequence, persists, and fans it out to
// subscribers. mutate, when given, adjusts the job under the same lock.
func (c *Controller) emit(job *Job, event Event, mutate ...func(*Job)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked(job, event, mutate...)
}

func (c *Controller) emitLocked(job *Job, event Event, mutate ...func(*Job)) {
	event.Sequence = len(job.Events) + 1
	event.Timestamp = time.Now().UTC()
	for _, fn := range mutate {
		fn(job)
	}
	job.Events = append(job.Events, event)
	job.UpdatedAt = event.Timestamp
	if err := c.store.Save(job); err != nil {
		logging.LogEvent("Failed to persist job %s: %v", job.ID, err)
	}
	for subID, ch := range c.subs[job.ID] {
		select {
		case ch <- event:
		default:
			// Slow consumer: drop the subscription rather than block the run.
			delete(c.subs[job.ID], subID)
			close(ch)
			logging.LogEvent("Dropped slow subscriber %d on job %s", subID, job.ID)
		}
	}
}

// finish emits the terminal event, moves the job to its final status and
// closes every subscriber stream.
func (c *Controller) finish(job *Job, status string, event Event, mutate ...func(*Job)) {
	c.mu.Lock()
	job.Status = status
	c.emitLocked(job, event, mutate...)
	for subID, ch := range c.subs[job.ID] {
		delete(c.subs[job.ID], subID)
		close(ch)
	}
	delete(c.subs, job.ID)
	delete(c.active, job.ID)
	c.mu.Unlock()

	logging.LogEvent("Job %s finished: %s", job.ID, status)
}

// failRunningStages marks any stage still marked running as failed, so a
// failed job never reports a stage in flight.
func (c *Controller) failRunningStages(job *Job) {
	c.mu.Lock()
	now := time.Now().UTC()
	for name, stage := range job.Stages {
		if stage.Status == StageRunning {
			stage.Status = StageFailed
			stage.CompletedAt = &now
			job.Stages[name] = stage
		}
	}
	c.mu.Unlock()
}

// jobObserver adapts council stage callbacks into job events.
type jobObserver struct {
	ctrl *Controller
	job  *Job
}

func (o *jobObserver) StageStarted(stage string) {
	o.ctrl.emit(o.job, Event{Type: stage + "_start"}, func(j *Job) {
		now := time.Now().UTC()
		j.Stages[stage] = StageProgress{Status: StageRunning, StartedAt: &now}
	})
}

func (o *jobObserver) stageCompleted(stage string, event Event) {
	o.ctrl.emit(o.job, event, func(j *Job) {
		progress := j.Stages[stage]
		now := time.Now().UTC()
		progress.Status = StageCompleted
		progress.CompletedAt = &now
		j.Stages[stage] = progress
	})
}

func (o *jobObserver) Stage1Completed(results []council.Stage1Result, failures []council.MemberFailure) {
	event := Event{Type: EventStage1Complete, Data: mustJSON(results)}
	if len(failures) > 0 {
		event.Metadata = mustJSON(map[string]any{"failures": failures})
	}
	o.stageCompleted("stage1", event)
}

func (o *jobObserver) Stage2Completed(results []council.Stage2Result, labelToMember map[string]string, aggregate []council.AggregateEntry) {
	o.stageCompleted("stage2", Event{
		Type: EventStage2Complete,
		Data: mustJSON(results),
		Metadata: mustJSON(map[string]any{
			"label_to_member":    labelToMember,
			"aggregate_rankings": aggregate,
		}),
	})
}

func (o *jobObserver) Stage3Completed(result council.Stage3Result) {
	o.stageCompleted("stage3", Event{Type: EventStage3Complete, Data: mustJSON(result)})
}
