package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"bizlens/internal/progress"
)

var (
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	actionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	percentStyle = lipgloss.NewStyle().Bold(true)
)

// consoleObserver renders progress snapshots as terse log lines. It keeps
// the last printed action so identical snapshots stay silent, and it must
// stay fast: it runs synchronously on the orchestrator's goroutine.
type consoleObserver struct {
	mu         sync.Mutex
	out        io.Writer
	lastPhase  string
	lastAction string
	done       map[string]progress.Status
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out, done: make(map[string]progress.Status)}
}

// OnProgress implements progress.Observer.
func (o *consoleObserver) OnProgress(s progress.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s.Phase != "" && s.Phase != o.lastPhase {
		o.lastPhase = s.Phase
		fmt.Fprintln(o.out, phaseStyle.Render("== "+s.Phase+" =="))
	}

	for _, task := range s.Tasks {
		if !isTerminal(task.Status) || o.done[task.ID] == task.Status {
			continue
		}
		o.done[task.ID] = task.Status
		if task.Status == progress.StatusCompleted {
			fmt.Fprintln(o.out, okStyle.Render("  ✓ "+task.Name))
		} else {
			fmt.Fprintln(o.out, failStyle.Render("  ✗ "+task.Name))
		}
	}

	if s.CurrentAction != nil && s.CurrentAction.Action != o.lastAction {
		o.lastAction = s.CurrentAction.Action
		fmt.Fprintf(o.out, "  %s %s\n",
			percentStyle.Render(fmt.Sprintf("[%3.0f%%]", s.ProgressPercent)),
			actionStyle.Render(s.CurrentAction.Action))
	}
}

func isTerminal(s progress.Status) bool {
	return s == progress.StatusCompleted || s == progress.StatusFailed
}
