// Package task defines the task model and the lifecycle rules for creating,
// updating, listing and deleting tasks.
package task

import (
	"context"
	"time"

	"github.com/GoCodeAlone/taskboard/entity"
)

// Status is the workflow state of a task. The set is open: any non-empty
// value is accepted, but reports only treat StatusCompleted specially.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusBlocked    Status = "Blocked"
)

// Task is a unit of work. Project, Team, Owners and Tags hold ids of the
// referenced records; they are joined only on explicit expansion.
type Task struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Project        string    `json:"project"`
	Team           string    `json:"team"`
	Owners         []string  `json:"owners"`
	Tags           []string  `json:"tags"`
	TimeToComplete float64   `json:"timeToComplete"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Store persists and retrieves tasks and resolves references.
type Store interface {
	// CreateTask persists t and assigns its ID.
	CreateTask(ctx context.Context, t *Task) error

	// GetTask returns entity.ErrNotFound when id does not resolve.
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListTasks returns tasks matching filter, oldest first.
	ListTasks(ctx context.Context, filter Filter) ([]*Task, error)

	// UpdateTask applies patch to the task with the given id.
	// It returns entity.ErrNotFound when no task matched.
	UpdateTask(ctx context.Context, id string, patch Patch) error

	// DeleteTask reports whether a task was removed.
	DeleteTask(ctx context.Context, id string) (bool, error)

	// Lookup resolves ids in coll to their documents. Ids that do not
	// resolve are absent from the result.
	Lookup(ctx context.Context, coll entity.Collection, ids []string) (map[string]entity.Document, error)
}

// Filter controls which tasks are returned by ListTasks. Zero fields match all.
type Filter struct {
	Status    Status `json:"status,omitempty"`
	NotStatus Status `json:"not_status,omitempty"`
	Team      string `json:"team,omitempty"`
	Project   string `json:"project,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Tag       string `json:"tag,omitempty"`
}

// Match reports whether t satisfies the filter.
func (f Filter) Match(t *Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.NotStatus != "" && t.Status == f.NotStatus {
		return false
	}
	if f.Team != "" && t.Team != f.Team {
		return false
	}
	if f.Project != "" && t.Project != f.Project {
		return false
	}
	if f.Owner != "" && !contains(t.Owners, f.Owner) {
		return false
	}
	if f.Tag != "" && !contains(t.Tags, f.Tag) {
		return false
	}
	return true
}

// Patch is a partial update. Nil fields are left unchanged.
// UpdatedAt is always written.
type Patch struct {
	Name           *string   `json:"name,omitempty"`
	Project        *string   `json:"project,omitempty"`
	Team           *string   `json:"team,omitempty"`
	Owners         *[]string `json:"owners,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	TimeToComplete *float64  `json:"timeToComplete,omitempty"`
	Status         *Status   `json:"status,omitempty"`
	UpdatedAt      time.Time `json:"-"`
}

// Apply merges the patch into t.
func (p Patch) Apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Project != nil {
		t.Project = *p.Project
	}
	if p.Team != nil {
		t.Team = *p.Team
	}
	if p.Owners != nil {
		t.Owners = append([]string(nil), (*p.Owners)...)
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.TimeToComplete != nil {
		t.TimeToComplete = *p.TimeToComplete
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	t.UpdatedAt = p.UpdatedAt
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
