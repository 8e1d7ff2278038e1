// Package store implements the entity store behind taskboard: teams,
// projects, tags, users and tasks, with id lookups for reference expansion.
package store

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/task"
)

// Store is the full persistence surface used by the server.
type Store interface {
	task.Store

	CreateTeam(ctx context.Context, t *entity.Team) error
	ListTeams(ctx context.Context) ([]*entity.Team, error)
	DeleteTeam(ctx context.Context, id string) (bool, error)

	CreateProject(ctx context.Context, p *entity.Project) error
	ListProjects(ctx context.Context) ([]*entity.Project, error)
	DeleteProject(ctx context.Context, id string) (bool, error)

	CreateTag(ctx context.Context, t *entity.Tag) error
	ListTags(ctx context.Context) ([]*entity.Tag, error)
	DeleteTag(ctx context.Context, id string) (bool, error)

	// CreateUser returns entity.ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u *entity.User) error
	GetUser(ctx context.Context, id string) (*entity.User, error)
	FindUserByEmail(ctx context.Context, email string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)

	Close() error
}

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", config.DriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.DriverMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
