package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	project_id       TEXT NOT NULL,
	team_id          TEXT NOT NULL,
	owners           TEXT NOT NULL DEFAULT '[]',
	tags             TEXT NOT NULL DEFAULT '[]',
	time_to_complete REAL NOT NULL,
	status           TEXT NOT NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_team ON tasks(team_id);
`

// lookupColumns maps a collection to the columns projected by Lookup:
// id, name, description, email.
var lookupColumns = map[entity.Collection]string{
	entity.Teams:    "id, name, description, ''",
	entity.Projects: "id, name, description, ''",
	entity.Tags:     "id, name, '', ''",
	entity.Users:    "id, name, '', email",
}

// SQLiteStore persists all entities in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- teams, projects, tags ---

// CreateTeam inserts t. A duplicate name yields entity.ErrConflict.
func (s *SQLiteStore) CreateTeam(ctx context.Context, t *entity.Team) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, description, created_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.Description, t.CreatedAt)
	return entity.Fault("insert team", classify(err))
}

func (s *SQLiteStore) ListTeams(ctx context.Context) ([]*entity.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM teams ORDER BY created_at, rowid`)
	if err != nil {
		return nil, entity.Fault("list teams", err)
	}
	defer rows.Close()

	teams := []*entity.Team{}
	for rows.Next() {
		var t entity.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, entity.Fault("scan team", err)
		}
		teams = append(teams, &t)
	}
	return teams, entity.Fault("list teams", rows.Err())
}

func (s *SQLiteStore) DeleteTeam(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "teams", id)
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *entity.Project) error {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at) VALUES (?,?,?,?)`,
		p.ID, p.Name, p.Description, p.CreatedAt)
	return entity.Fault("insert project", classify(err))
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM projects ORDER BY created_at, rowid`)
	if err != nil {
		return nil, entity.Fault("list projects", err)
	}
	defer rows.Close()

	projects := []*entity.Project{}
	for rows.Next() {
		var p entity.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, entity.Fault("scan project", err)
		}
		projects = append(projects, &p)
	}
	return projects, entity.Fault("list projects", rows.Err())
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "projects", id)
}

func (s *SQLiteStore) CreateTag(ctx context.Context, t *entity.Tag) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES (?,?,?)`,
		t.ID, t.Name, t.CreatedAt)
	return entity.Fault("insert tag", classify(err))
}

func (s *SQLiteStore) ListTags(ctx context.Context) ([]*entity.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY created_at, rowid`)
	if err != nil {
		return nil, entity.Fault("list tags", err)
	}
	defer rows.Close()

	tags := []*entity.Tag{}
	for rows.Next() {
		var t entity.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, entity.Fault("scan tag", err)
		}
		tags = append(tags, &t)
	}
	return tags, entity.Fault("list tags", rows.Err())
}

func (s *SQLiteStore) DeleteTag(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "tags", id)
}

// --- users ---

// CreateUser inserts u. A duplicate email yields entity.ErrConflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *entity.User) error {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password, created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Password, u.CreatedAt)
	return entity.Fault("insert user", classify(err))
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return s.getUser(ctx, "get user", `SELECT id, name, email, password, created_at FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.getUser(ctx, "find user", `SELECT id, name, email, password, created_at FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, op, query, arg string) (*entity.User, error) {
	var u entity.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", arg, entity.ErrNotFound)
	}
	if err != nil {
		return nil, entity.Fault(op, err)
	}
	return &u, nil
}

// ListUsers returns all users. Password hashes are not loaded.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*entity.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, created_at FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, entity.Fault("list users", err)
	}
	defer rows.Close()

	users := []*entity.User{}
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, entity.Fault("scan user", err)
		}
		users = append(users, &u)
	}
	return users, entity.Fault("list users", rows.Err())
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "users", id)
}

// --- tasks ---

// CreateTask persists a new task and sets its ID. Timestamps left zero are
// filled with the current time.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *task.Task) error {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	owners, _ := json.Marshal(nonNil(t.Owners))
	tags, _ := json.Marshal(nonNil(t.Tags))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(id, name, project_id, team_id, owners, tags, time_to_complete, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.Project, t.Team,
		string(owners), string(tags),
		t.TimeToComplete, string(t.Status),
		t.CreatedAt, t.UpdatedAt,
	)
	return entity.Fault("insert task", err)
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, entity.Fault("get task", err)
	}
	return t, nil
}

// ListTasks returns tasks matching the filter, oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT " + taskColumns + " FROM tasks WHERE 1=1")
	args := []any{}

	if filter.Status != "" {
		q.WriteString(" AND status=?")
		args = append(args, string(filter.Status))
	}
	if filter.NotStatus != "" {
		q.WriteString(" AND status<>?")
		args = append(args, string(filter.NotStatus))
	}
	if filter.Team != "" {
		q.WriteString(" AND team_id=?")
		args = append(args, filter.Team)
	}
	if filter.Project != "" {
		q.WriteString(" AND project_id=?")
		args = append(args, filter.Project)
	}
	if filter.Owner != "" {
		q.WriteString(" AND EXISTS (SELECT 1 FROM json_each(tasks.owners) WHERE json_each.value=?)")
		args = append(args, filter.Owner)
	}
	if filter.Tag != "" {
		q.WriteString(" AND EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE json_each.value=?)")
		args = append(args, filter.Tag)
	}
	q.WriteString(" ORDER BY created_at ASC, rowid ASC")

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, entity.Fault("list tasks", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, entity.Fault("scan task", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, entity.Fault("list tasks", rows.Err())
}

// UpdateTask writes the non-nil fields of patch plus updated_at.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch task.Patch) error {
	sets := []string{"updated_at=?"}
	args := []any{patch.UpdatedAt}

	if patch.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *patch.Name)
	}
	if patch.Project != nil {
		sets = append(sets, "project_id=?")
		args = append(args, *patch.Project)
	}
	if patch.Team != nil {
		sets = append(sets, "team_id=?")
		args = append(args, *patch.Team)
	}
	if patch.Owners != nil {
		owners, _ := json.Marshal(nonNil(*patch.Owners))
		sets = append(sets, "owners=?")
		args = append(args, string(owners))
	}
	if patch.Tags != nil {
		tags, _ := json.Marshal(nonNil(*patch.Tags))
		sets = append(sets, "tags=?")
		args = append(args, string(tags))
	}
	if patch.TimeToComplete != nil {
		sets = append(sets, "time_to_complete=?")
		args = append(args, *patch.TimeToComplete)
	}
	if patch.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, string(*patch.Status))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return entity.Fault("update task", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return entity.Fault("update task", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "tasks", id)
}

// --- references ---

// Lookup resolves ids in coll. Unknown ids are omitted from the result.
func (s *SQLiteStore) Lookup(ctx context.Context, coll entity.Collection, ids []string) (map[string]entity.Document, error) {
	cols, ok := lookupColumns[coll]
	if !ok {
		return nil, fmt.Errorf("lookup: unsupported collection %q", coll)
	}
	docs := make(map[string]entity.Document, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id IN (%s)", cols, coll, placeholders), args...)
	if err != nil {
		return nil, entity.Fault("lookup "+string(coll), err)
	}
	defer rows.Close()

	for rows.Next() {
		var d entity.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Email); err != nil {
			return nil, entity.Fault("scan "+string(coll), err)
		}
		docs[d.ID] = d
	}
	return docs, entity.Fault("lookup "+string(coll), rows.Err())
}

// --- helpers ---

// deleteByID removes one row from table, which is always a package constant.
func (s *SQLiteStore) deleteByID(ctx context.Context, table, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id=?", id)
	if err != nil {
		return false, entity.Fault("delete from "+table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, entity.Fault("delete from "+table, err)
	}
	return rows > 0, nil
}

const taskColumns = `id, name, project_id, team_id, owners, tags, time_to_complete, status, created_at, updated_at`

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*task.Task, error) {
	var t task.Task
	var status, ownersJSON, tagsJSON string

	err := s.Scan(
		&t.ID, &t.Name, &t.Project, &t.Team,
		&ownersJSON, &tagsJSON,
		&t.TimeToComplete, &status,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	if err := json.Unmarshal([]byte(ownersJSON), &t.Owners); err != nil {
		return nil, fmt.Errorf("decode owners of %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", t.ID, err)
	}
	return &t, nil
}

// classify maps unique-constraint violations to entity.ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %v", entity.ErrConflict, err)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", entity.ErrConflict, err)
	}
	return err
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
