// Package report computes read-only aggregate statistics over tasks.
// Every call recomputes from the current store state.
package report

import (
	"context"
	"time"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

// Window is the trailing period counted by WorkDoneLastWeek.
const Window = 7 * 24 * time.Hour

// Source is the read side of the store the engine aggregates over.
type Source interface {
	ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error)
	Lookup(ctx context.Context, coll entity.Collection, ids []string) (map[string]entity.Document, error)
}

// TeamClosed is one row of TasksClosedByTeam.
type TeamClosed struct {
	TeamName    string `json:"teamName"`
	ClosedTasks int    `json:"closedTasks"`
}

// OwnerClosed is one row of TasksClosedByOwner.
type OwnerClosed struct {
	OwnerName   string `json:"ownerName"`
	ClosedTasks int    `json:"closedTasks"`
}

// Engine computes reports.
type Engine struct {
	src Source
	now func() time.Time
}

// NewEngine creates an Engine reading from src.
func NewEngine(src Source) *Engine {
	return &Engine{src: src, now: time.Now}
}

// SetClock replaces the time source that anchors the trailing window.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// WorkDoneLastWeek counts Completed tasks last updated within the trailing
// Window, inclusive of the lower bound.
func (e *Engine) WorkDoneLastWeek(ctx context.Context) (int, error) {
	done, err := e.src.ListTasks(ctx, task.Filter{Status: task.StatusCompleted})
	if err != nil {
		return 0, err
	}
	now := e.now()
	since := now.Add(-Window)
	n := 0
	for _, t := range done {
		if !t.UpdatedAt.Before(since) && !t.UpdatedAt.After(now) {
			n++
		}
	}
	return n, nil
}

// PendingWorkDays sums timeToComplete over tasks that are not Completed.
func (e *Engine) PendingWorkDays(ctx context.Context) (float64, error) {
	pending, err := e.src.ListTasks(ctx, task.Filter{NotStatus: task.StatusCompleted})
	if err != nil {
		return 0, err
	}
	var total float64
	for _, t := range pending {
		total += t.TimeToComplete
	}
	return total, nil
}

// TasksClosedByTeam counts Completed tasks per team. Teams without closed
// tasks, or whose id no longer resolves, are omitted.
func (e *Engine) TasksClosedByTeam(ctx context.Context) ([]TeamClosed, error) {
	done, err := e.src.ListTasks(ctx, task.Filter{Status: task.StatusCompleted})
	if err != nil {
		return nil, err
	}
	return groupJoin(ctx, e.src, done, grouping[TeamClosed]{
		keys: func(t *task.Task) []string { return []string{t.Team} },
		coll: entity.Teams,
		shape: func(doc entity.Document, n int) TeamClosed {
			return TeamClosed{TeamName: doc.Name, ClosedTasks: n}
		},
	})
}

// TasksClosedByOwner counts Completed tasks per owner. A task with several
// owners counts once for each of them.
func (e *Engine) TasksClosedByOwner(ctx context.Context) ([]OwnerClosed, error) {
	done, err := e.src.ListTasks(ctx, task.Filter{Status: task.StatusCompleted})
	if err != nil {
		return nil, err
	}
	return groupJoin(ctx, e.src, done, grouping[OwnerClosed]{
		keys: func(t *task.Task) []string { return t.Owners },
		coll: entity.Users,
		shape: func(doc entity.Document, n int) OwnerClosed {
			return OwnerClosed{OwnerName: doc.Name, ClosedTasks: n}
		},
	})
}
