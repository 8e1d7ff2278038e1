package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "taskboard-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore_CreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tb.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected db file: %v", err)
	}
}

func TestSQLiteStore_Teams(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	team := &entity.Team{Name: "Core", Description: "core team"}
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if team.ID == "" {
		t.Fatal("expected team id")
	}

	err := store.CreateTeam(ctx, &entity.Team{Name: "Core", Description: "dup"})
	if !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}

	teams, err := store.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 1 || teams[0].Name != "Core" {
		t.Errorf("ListTeams = %+v", teams)
	}

	removed, err := store.DeleteTeam(ctx, team.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteTeam = %v, %v", removed, err)
	}
	removed, err = store.DeleteTeam(ctx, team.ID)
	if err != nil || removed {
		t.Fatalf("second DeleteTeam = %v, %v", removed, err)
	}
	teams, _ = store.ListTeams(ctx)
	if teams == nil || len(teams) != 0 {
		t.Errorf("expected empty non-nil list, got %v", teams)
	}
}

func TestSQLiteStore_ProjectsAndTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &entity.Project{Name: "P1", Description: "d"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	tag := &entity.Tag{Name: "bug"}
	if err := store.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	projects, err := store.ListProjects(ctx)
	if err != nil || len(projects) != 1 || projects[0].Description != "d" {
		t.Fatalf("ListProjects = %+v, %v", projects, err)
	}
	tags, err := store.ListTags(ctx)
	if err != nil || len(tags) != 1 || tags[0].ID != tag.ID {
		t.Fatalf("ListTags = %+v, %v", tags, err)
	}

	if removed, err := store.DeleteProject(ctx, p.ID); err != nil || !removed {
		t.Errorf("DeleteProject = %v, %v", removed, err)
	}
	if removed, err := store.DeleteTag(ctx, "missing"); err != nil || removed {
		t.Errorf("DeleteTag(missing) = %v, %v", removed, err)
	}
}

func TestSQLiteStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := &entity.User{Name: "A", Email: "a@x.com", Password: "hash"}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.CreateUser(ctx, &entity.User{Name: "B", Email: "a@x.com", Password: "h"}); !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	got, err := store.FindUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Password != "hash" {
		t.Errorf("FindUserByEmail = %+v", got)
	}
	if _, err := store.GetUser(ctx, u.ID); err != nil {
		t.Errorf("GetUser: %v", err)
	}
	if _, err := store.FindUserByEmail(ctx, "nobody@x.com"); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Password != "" {
		t.Errorf("ListUsers should omit passwords: %+v", users)
	}
}

func newTask(name string, status task.Status, team string, owners ...string) *task.Task {
	return &task.Task{
		Name:           name,
		Project:        "p1",
		Team:           team,
		Owners:         owners,
		Tags:           []string{"bug"},
		TimeToComplete: 2.5,
		Status:         status,
	}
}

func TestSQLiteStore_TaskCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := newTask("fix", task.StatusToDo, "core", "u1", "u2")
	if err := store.CreateTask(ctx, tk); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if tk.ID == "" || tk.CreatedAt.IsZero() || tk.UpdatedAt.IsZero() {
		t.Fatalf("CreateTask did not fill id/timestamps: %+v", tk)
	}

	got, err := store.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Name != "fix" || len(got.Owners) != 2 || got.Owners[1] != "u2" || got.TimeToComplete != 2.5 {
		t.Errorf("GetTask = %+v", got)
	}

	done := task.StatusCompleted
	later := tk.UpdatedAt.Add(time.Hour)
	if err := store.UpdateTask(ctx, tk.ID, task.Patch{Status: &done, UpdatedAt: later}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, _ = store.GetTask(ctx, tk.ID)
	if got.Status != task.StatusCompleted {
		t.Errorf("Status = %q", got.Status)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
	}
	if got.Name != "fix" {
		t.Errorf("untouched field changed: %q", got.Name)
	}

	if err := store.UpdateTask(ctx, "missing", task.Patch{UpdatedAt: later}); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetTask(ctx, "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	removed, err := store.DeleteTask(ctx, tk.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteTask = %v, %v", removed, err)
	}
}

func TestSQLiteStore_ListTasksFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, tk := range []*task.Task{
		newTask("t1", task.StatusToDo, "team-a", "u1"),
		newTask("t2", task.StatusCompleted, "team-a", "u2"),
		newTask("t3", task.StatusCompleted, "team-b", "u1", "u2"),
	} {
		if err := store.CreateTask(ctx, tk); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	cases := []struct {
		name   string
		filter task.Filter
		want   int
	}{
		{"all", task.Filter{}, 3},
		{"status", task.Filter{Status: task.StatusCompleted}, 2},
		{"not status", task.Filter{NotStatus: task.StatusCompleted}, 1},
		{"team", task.Filter{Team: "team-a"}, 2},
		{"owner", task.Filter{Owner: "u2"}, 2},
		{"tag", task.Filter{Tag: "bug"}, 3},
		{"tag miss", task.Filter{Tag: "feature"}, 0},
		{"combined", task.Filter{Owner: "u1", Status: task.StatusCompleted}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.ListTasks(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("got %d tasks, want %d", len(got), tc.want)
			}
		})
	}
}

func TestSQLiteStore_Lookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	team := &entity.Team{Name: "Core", Description: "core team"}
	user := &entity.User{Name: "A", Email: "a@x.com", Password: "secret-hash"}
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	teams, err := store.Lookup(ctx, entity.Teams, []string{team.ID, "ghost"})
	if err != nil {
		t.Fatalf("Lookup teams: %v", err)
	}
	if len(teams) != 1 || teams[team.ID].Description != "core team" {
		t.Errorf("Lookup teams = %+v", teams)
	}

	users, err := store.Lookup(ctx, entity.Users, []string{user.ID})
	if err != nil {
		t.Fatalf("Lookup users: %v", err)
	}
	if users[user.ID].Email != "a@x.com" || users[user.ID].Name != "A" {
		t.Errorf("Lookup users = %+v", users)
	}

	empty, err := store.Lookup(ctx, entity.Tags, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Lookup(nil) = %v, %v", empty, err)
	}
	if _, err := store.Lookup(ctx, entity.Tasks, []string{"x"}); err == nil {
		t.Error("expected error for unsupported collection")
	}
}
