package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

// newMongoTestStore connects to TASKBOARD_TEST_MONGO_URI, skipping when unset.
// Each test gets its own database, dropped on cleanup.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("TASKBOARD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TASKBOARD_TEST_MONGO_URI not set")
	}
	db := fmt.Sprintf("taskboard_test_%d", time.Now().UnixNano())
	store, err := NewMongoStore(context.Background(), uri, db)
	if err != nil {
		t.Fatalf("NewMongoStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.db.Drop(context.Background())
		store.Close()
	})
	return store
}

func TestMongoStore_UsersAndConflict(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	u := &entity.User{Name: "A", Email: "a@x.com", Password: "hash"}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.CreateUser(ctx, &entity.User{Name: "B", Email: "a@x.com", Password: "h"}); !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := store.FindUserByEmail(ctx, "a@x.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindUserByEmail = %+v, %v", got, err)
	}
	if _, err := store.GetUser(ctx, "not-an-id"); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMongoStore_TaskLifecycle(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	team := &entity.Team{Name: "Core", Description: "d"}
	project := &entity.Project{Name: "P1", Description: "d"}
	tag := &entity.Tag{Name: "bug"}
	owner := &entity.User{Name: "A", Email: "a@x.com", Password: "h"}
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := store.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := store.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tk := &task.Task{
		Name: "fix", Project: project.ID, Team: team.ID,
		Owners: []string{owner.ID}, Tags: []string{tag.ID},
		TimeToComplete: 3, Status: task.StatusToDo,
	}
	if err := store.CreateTask(ctx, tk); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	done := task.StatusCompleted
	if err := store.UpdateTask(ctx, tk.ID, task.Patch{Status: &done, UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	completed, err := store.ListTasks(ctx, task.Filter{Status: task.StatusCompleted, Owner: owner.ID})
	if err != nil || len(completed) != 1 {
		t.Fatalf("ListTasks = %d, %v", len(completed), err)
	}

	docs, err := store.Lookup(ctx, entity.Teams, []string{team.ID, "bogus"})
	if err != nil || docs[team.ID].Name != "Core" || len(docs) != 1 {
		t.Fatalf("Lookup = %+v, %v", docs, err)
	}

	removed, err := store.DeleteTask(ctx, tk.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteTask = %v, %v", removed, err)
	}
}
