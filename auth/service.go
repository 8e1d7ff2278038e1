package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/taskboard/entity"
)

// UserStore is the slice of the entity store the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *entity.User) error
	GetUser(ctx context.Context, id string) (*entity.User, error)
	FindUserByEmail(ctx context.Context, email string) (*entity.User, error)
}

// SignupRequest is the body accepted by signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body accepted by login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service registers users and exchanges credentials for tokens.
type Service struct {
	users  UserStore
	issuer *Issuer
	cost   int
	logger *slog.Logger

	// dummyHash is compared against when the email is unknown so that
	// both login failures take roughly the same time.
	dummyHash string
}

// NewService creates a Service. A nil logger falls back to slog.Default.
func NewService(users UserStore, issuer *Issuer, bcryptCost int, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := HashPassword("taskboard-dummy-password", bcryptCost)
	if err != nil {
		return nil, err
	}
	return &Service{users: users, issuer: issuer, cost: bcryptCost, logger: logger, dummyHash: dummy}, nil
}

// Signup creates a user with a hashed password.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*entity.User, error) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return nil, entity.Required("name")
	case strings.TrimSpace(req.Email) == "":
		return nil, entity.Required("email")
	case req.Password == "":
		return nil, entity.Required("password")
	}

	hash, err := HashPassword(req.Password, s.cost)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    NormalizeEmail(req.Email),
		Password: hash,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, entity.ErrConflict) {
			return nil, fmt.Errorf("email %s: %w", u.Email, entity.ErrConflict)
		}
		return nil, err
	}
	s.logger.Info("user registered", slog.String("id", u.ID))
	return u, nil
}

// Login verifies the credentials and returns a signed token. An unknown
// email and a wrong password both yield entity.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	if strings.TrimSpace(req.Email) == "" {
		return "", entity.Required("email")
	}
	if req.Password == "" {
		return "", entity.Required("password")
	}

	u, err := s.users.FindUserByEmail(ctx, NormalizeEmail(req.Email))
	if errors.Is(err, entity.ErrNotFound) {
		_, _ = CheckPassword(s.dummyHash, req.Password)
		return "", entity.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	ok, err := CheckPassword(u.Password, req.Password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", entity.ErrInvalidCredentials
	}
	return s.issuer.Issue(Identity{UserID: u.ID, Email: u.Email})
}

// Me returns the user a verified identity refers to, without its password.
func (s *Service) Me(ctx context.Context, id Identity) (*entity.User, error) {
	u, err := s.users.GetUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	u.Password = ""
	return u, nil
}
