// Package progress tracks analysis execution and streams structured events
// to an observer. The tracker owns the event log and per-task timelines;
// observers receive immutable snapshots and must return quickly.
package progress

import (
	"fmt"
	"sync"
	"time"

	"bizlens/internal/logging"
)

// Status is the state carried by a progress event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Level is the granularity of a progress event.
type Level string

const (
	LevelPhase  Level = "phase"
	LevelTask   Level = "task"
	LevelSkill  Level = "skill"
	LevelAPI    Level = "api"
	LevelLLM    Level = "llm"
	LevelAction Level = "action"
)

// Event is a single progress event.
type Event struct {
	TaskID    string         `json:"task_id"`
	TaskName  string         `json:"task_name"`
	Action    string         `json:"action"`
	Status    Status         `json:"status"`
	Level     Level          `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// ActionRecord is one entry in a task's recent-action history.
type ActionRecord struct {
	Action    string    `json:"action"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskView is the observer-facing view of one task.
type TaskView struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Status  Status         `json:"status"`
	Actions []ActionRecord `json:"actions"`
}

// CurrentAction describes the most recent in-progress event.
type CurrentAction struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	Action   string `json:"action"`
	Level    Level  `json:"level"`
}

// Snapshot is an immutable view of run progress at one instant.
type Snapshot struct {
	Phase           string         `json:"phase"`
	TotalTasks      int            `json:"total_tasks"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	InProgress      bool           `json:"in_progress"`
	ProgressPercent float64        `json:"progress_percent"`
	CurrentAction   *CurrentAction `json:"current_action,omitempty"`
	Tasks           []TaskView     `json:"tasks"`
	ETA             string         `json:"eta"`
	Elapsed         string         `json:"elapsed"`
}

// Observer receives snapshots. Called synchronously on the orchestrator's
// goroutine; implementations that need buffering own their own queue.
type Observer interface {
	OnProgress(Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Snapshot)

// OnProgress implements Observer.
func (f ObserverFunc) OnProgress(s Snapshot) { f(s) }

type taskRecord struct {
	name    string
	status  Status
	actions []ActionRecord
	start   *time.Time
	end     *time.Time
}

// Tracker accumulates progress events and computes ETA from completed-task
// durations.
type Tracker struct {
	mu sync.Mutex

	totalTasks int
	observer   Observer

	events    []Event
	tasks     map[string]*taskRecord
	taskOrder []string

	startTime time.Time
	durations []time.Duration

	currentPhase string
	completed    int
	failed       int
}

// NewTracker creates a tracker for the given task count. Observer may be nil.
func NewTracker(totalTasks int, observer Observer) *Tracker {
	return &Tracker{
		totalTasks: totalTasks,
		observer:   observer,
		tasks:      make(map[string]*taskRecord),
		startTime:  time.Now(),
	}
}

// SetTotalTasks adjusts the expected task count after planning.
func (t *Tracker) SetTotalTasks(n int) {
	t.mu.Lock()
	t.totalTasks = n
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snapshot)
}

// Emit records a progress event, updates the task's timeline and pushes a
// snapshot to the observer. The first in-progress event stamps the task's
// start time; terminal events stamp the end time, and completed events also
// add the task's duration to the samples the ETA is averaged over.
func (t *Tracker) Emit(taskID, taskName, action string, status Status, level Level, details map[string]any) {
	t.mu.Lock()

	event := Event{
		TaskID:    taskID,
		TaskName:  taskName,
		Action:    action,
		Status:    status,
		Level:     level,
		Timestamp: time.Now(),
		Details:   details,
	}
	t.events = append(t.events, event)

	rec, ok := t.tasks[taskID]
	if !ok {
		rec = &taskRecord{name: taskName}
		t.tasks[taskID] = rec
		t.taskOrder = append(t.taskOrder, taskID)
	}
	rec.status = status
	rec.actions = append(rec.actions, ActionRecord{
		Action:    action,
		Level:     level,
		Timestamp: event.Timestamp,
	})

	switch status {
	case StatusInProgress:
		if rec.start == nil {
			started := event.Timestamp
			rec.start = &started
		}
	case StatusCompleted:
		if rec.start != nil && rec.end == nil {
			ended := event.Timestamp
			rec.end = &ended
			t.durations = append(t.durations, ended.Sub(*rec.start))
		}
		t.completed++
	case StatusFailed:
		if rec.start != nil && rec.end == nil {
			ended := event.Timestamp
			rec.end = &ended
		}
		t.failed++
	}

	logging.Progress("[%s] %s: %s", status, taskID, action)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snapshot)
}

// SetPhase updates the current phase and notifies the observer.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.currentPhase = phase
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snapshot)
}

// Snapshot returns the current progress snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// TaskHistory returns the full action history for one task.
func (t *Tracker) TaskHistory(taskID string) []ActionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tasks[taskID]
	if !ok {
		return nil
	}
	return append([]ActionRecord(nil), rec.actions...)
}

func (t *Tracker) notify(s Snapshot) {
	if t.observer != nil {
		t.observer.OnProgress(s)
	}
}

func (t *Tracker) snapshotLocked() Snapshot {
	terminal := t.completed + t.failed
	percent := 0.0
	if t.totalTasks > 0 {
		percent = float64(terminal) / float64(t.totalTasks) * 100
	}
	if percent > 100 {
		percent = 100
	}

	var current *CurrentAction
	if n := len(t.events); n > 0 {
		latest := t.events[n-1]
		if latest.Status == StatusInProgress {
			current = &CurrentAction{
				TaskID:   latest.TaskID,
				TaskName: latest.TaskName,
				Action:   latest.Action,
				Level:    latest.Level,
			}
		}
	}

	views := make([]TaskView, 0, len(t.taskOrder))
	for _, id := range t.taskOrder {
		rec := t.tasks[id]
		actions := rec.actions
		if len(actions) > 5 {
			actions = actions[len(actions)-5:]
		}
		views = append(views, TaskView{
			ID:      id,
			Name:    rec.name,
			Status:  rec.status,
			Actions: append([]ActionRecord(nil), actions...),
		})
	}

	return Snapshot{
		Phase:           t.currentPhase,
		TotalTasks:      t.totalTasks,
		Completed:       t.completed,
		Failed:          t.failed,
		InProgress:      terminal < t.totalTasks,
		ProgressPercent: percent,
		CurrentAction:   current,
		Tasks:           views,
		ETA:             t.etaLocked(),
		Elapsed:         formatDuration(time.Since(t.startTime)),
	}
}

// etaLocked estimates remaining time as mean completed-task duration times
// the remaining task count.
func (t *Tracker) etaLocked() string {
	if len(t.durations) == 0 {
		return "Calculating..."
	}

	remaining := t.totalTasks - t.completed - t.failed
	if remaining <= 0 {
		return "Almost done..."
	}

	var sum time.Duration
	for _, d := range t.durations {
		sum += d
	}
	avg := sum / time.Duration(len(t.durations))
	return formatDuration(avg * time.Duration(remaining))
}

func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d seconds", seconds)
	case seconds < 3600:
		minutes := seconds / 60
		plural := "s"
		if minutes == 1 {
			plural = ""
		}
		return fmt.Sprintf("%d minute%s %d seconds", minutes, plural, seconds%60)
	}
	hours := seconds / 3600
	plural := "s"
	if hours == 1 {
		plural = ""
	}
	return fmt.Sprintf("%d hour%s %d minutes", hours, plural, (seconds%3600)/60)
}
