package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GoCodeAlone/taskboard/entity"
)

// Payload is the body accepted when creating a task.
type Payload struct {
	Name           string   `json:"name"`
	Project        string   `json:"project"`
	Team           string   `json:"team"`
	Owners         []string `json:"owners"`
	Tags           []string `json:"tags"`
	TimeToComplete *float64 `json:"timeToComplete"`
	Status         Status   `json:"status"`
}

// Validate checks required fields in a fixed order and reports only the
// first one that is missing.
func (p Payload) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return entity.Required("name")
	case strings.TrimSpace(p.Project) == "":
		return entity.Required("project")
	case strings.TrimSpace(p.Team) == "":
		return entity.Required("team")
	case len(idSet(p.Owners)) == 0:
		return entity.Required("owners")
	case len(idSet(p.Tags)) == 0:
		return entity.Required("tags")
	case p.TimeToComplete == nil || *p.TimeToComplete == 0:
		return entity.Required("timeToComplete")
	case *p.TimeToComplete < 0:
		return &entity.ValidationError{Field: "timeToComplete", Msg: "must be positive"}
	case strings.TrimSpace(string(p.Status)) == "":
		return entity.Required("status")
	}
	return nil
}

// Manager enforces the task lifecycle on top of a Store.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// SetClock replaces the time source used for updatedAt.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create validates p and persists a new task. The returned task is not expanded.
func (m *Manager) Create(ctx context.Context, p Payload) (*Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := m.now().UTC()
	t := &Task{
		Name:           strings.TrimSpace(p.Name),
		Project:        strings.TrimSpace(p.Project),
		Team:           strings.TrimSpace(p.Team),
		Owners:         idSet(p.Owners),
		Tags:           idSet(p.Tags),
		TimeToComplete: *p.TimeToComplete,
		Status:         p.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	m.logger.Debug("task created", slog.String("id", t.ID), slog.String("status", string(t.Status)))
	return t, nil
}

// Get returns one task with owners, team and tags expanded.
func (m *Manager) Get(ctx context.Context, id string) (*View, error) {
	t, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	v := newView(t)
	if err := m.expand(ctx, []*View{v}, fullExpansions...); err != nil {
		return nil, err
	}
	return v, nil
}

// Update merges patch into the stored task and stamps updatedAt. Fields are
// not re-validated. The result has owners, team and tags expanded.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (*View, error) {
	existing, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	if now.Before(existing.UpdatedAt) {
		now = existing.UpdatedAt
	}
	patch.UpdatedAt = now
	if patch.Owners != nil {
		owners := idSet(*patch.Owners)
		patch.Owners = &owners
	}
	if patch.Tags != nil {
		tags := idSet(*patch.Tags)
		patch.Tags = &tags
	}

	if err := m.store.UpdateTask(ctx, id, patch); err != nil {
		return nil, err
	}
	m.logger.Debug("task updated", slog.String("id", id))
	return m.Get(ctx, id)
}

// List returns tasks matching filter with owners and team expanded to their
// names. An empty result is reported as entity.ErrNotFound.
func (m *Manager) List(ctx context.Context, filter Filter) ([]*View, error) {
	tasks, err := m.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("list tasks: %w", entity.ErrNotFound)
	}
	views := make([]*View, len(tasks))
	for i, t := range tasks {
		views[i] = newView(t)
	}
	if err := m.expand(ctx, views, listExpansions...); err != nil {
		return nil, err
	}
	return views, nil
}

// Delete removes a task and reports whether it existed.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := m.store.DeleteTask(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		m.logger.Debug("task deleted", slog.String("id", id))
	}
	return removed, nil
}

var (
	fullExpansions = []expansion{{field: fieldOwners}, {field: fieldTeam}, {field: fieldTags}}
	listExpansions = []expansion{{field: fieldOwners, nameOnly: true}, {field: fieldTeam, nameOnly: true}}
)

// expand joins the selected references of views with one lookup per field.
// References that do not resolve keep their bare id.
func (m *Manager) expand(ctx context.Context, views []*View, exps ...expansion) error {
	for _, exp := range exps {
		var targets []*Ref
		for _, v := range views {
			targets = append(targets, exp.field.refsOf(v)...)
		}
		if len(targets) == 0 {
			continue
		}
		ids := make([]string, 0, len(targets))
		for _, r := range targets {
			ids = append(ids, r.ID)
		}
		docs, err := m.store.Lookup(ctx, exp.field.collection(), idSet(ids))
		if err != nil {
			return err
		}
		for _, r := range targets {
			doc, ok := docs[r.ID]
			if !ok {
				continue
			}
			if exp.nameOnly {
				doc = doc.NameOnly()
			}
			r.Doc = &doc
		}
	}
	return nil
}

// idSet trims ids, drops blanks and removes duplicates, keeping first-seen order.
func idSet(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
