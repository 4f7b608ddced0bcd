// Package agents manages the sales team: credential checks, provisioning
// and the supervisor hierarchy.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jordanlanch/salesbot/pkg/auth"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidCredentials is returned on a failed login. The caller cannot
// tell an unknown login from a wrong password.
var ErrInvalidCredentials = errors.New("agents: invalid credentials")

// ErrLoginTaken is returned when provisioning with an existing login.
var ErrLoginTaken = errors.New("agents: login already in use")

// CreateRequest carries the fields needed to provision an agent.
type CreateRequest struct {
	Name     string      `validate:"required,min=2"`
	Login    string      `validate:"required,min=3,alphanum"`
	Password string      `validate:"required,min=6"`
	Role     models.Role `validate:"required"`
}

// Service handles team management.
type Service struct {
	agents   store.AgentStore
	validate *validator.Validate
}

// NewService creates a new agents service.
func NewService(agents store.AgentStore) *Service {
	return &Service{agents: agents, validate: validator.New()}
}

// Login verifies credentials and, when telegramID is non-zero, binds the
// chat account to the agent so later updates resolve without a password.
func (s *Service) Login(ctx context.Context, login, password string, telegramID int64) (*models.Agent, error) {
	agent, err := s.agents.ByLogin(ctx, strings.ToLower(strings.TrimSpace(login)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	if !auth.CheckPassword(agent.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if telegramID != 0 {
		if err := s.agents.SetTelegramID(ctx, agent.ID, telegramID); err != nil {
			return nil, fmt.Errorf("failed to bind chat account: %w", err)
		}
		agent.TelegramID = &telegramID
	}
	return agent, nil
}

// Authenticate verifies credentials without touching the chat binding.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.Agent, error) {
	return s.Login(ctx, login, password, 0)
}

// Create provisions a new agent with a hashed password.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Agent, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid agent: %w", err)
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", req.Role)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	agent := &models.Agent{
		Name:         strings.TrimSpace(req.Name),
		Login:        strings.ToLower(strings.TrimSpace(req.Login)),
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.agents.Insert(ctx, agent); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return agent, nil
}

// ByID fetches one agent.
func (s *Service) ByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error) {
	return s.agents.ByID(ctx, id)
}

// All lists every agent.
func (s *Service) All(ctx context.Context) ([]models.Agent, error) {
	return s.agents.All(ctx)
}

// Supervisors lists agents holding the supervisor role.
func (s *Service) Supervisors(ctx context.Context) ([]models.Agent, error) {
	return s.agents.ByRole(ctx, models.RoleSupervisor)
}

// Team lists the agents reporting to a supervisor.
func (s *Service) Team(ctx context.Context, supervisorID primitive.ObjectID) ([]models.Agent, error) {
	return s.agents.Team(ctx, supervisorID)
}

// Independent lists agents with no supervisor assigned.
func (s *Service) Independent(ctx context.Context) ([]models.Agent, error) {
	return s.agents.Independent(ctx)
}

// SetRole changes an agent's role. Promoting an agent to supervisor
// detaches it from its own supervisor.
func (s *Service) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if err := s.agents.SetRole(ctx, id, role); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if role != models.RoleAgent {
		if err := s.agents.SetSupervisor(ctx, id, nil); err != nil {
			return fmt.Errorf("failed to detach supervisor: %w", err)
		}
	}
	return nil
}

// AssignSupervisor links an agent under a supervisor, or detaches it when
// supervisorID is nil.
func (s *Service) AssignSupervisor(ctx context.Context, agentID primitive.ObjectID, supervisorID *primitive.ObjectID) error {
	if supervisorID != nil {
		sup, err := s.agents.ByID(ctx, *supervisorID)
		if err != nil {
			return fmt.Errorf("failed to look up supervisor: %w", err)
		}
		if !sup.CanSupervise() {
			return fmt.Errorf("agent %s cannot supervise", sup.Login)
		}
	}
	if err := s.agents.SetSupervisor(ctx, agentID, supervisorID); err != nil {
		return fmt.Errorf("failed to assign supervisor: %w", err)
	}
	return nil
}

// ByTelegramID resolves the agent bound to a chat account.
func (s *Service) ByTelegramID(ctx context.Context, telegramID int64) (*models.Agent, error) {
	all, err := s.agents.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].TelegramID != nil && *all[i].TelegramID == telegramID {
			return &all[i], nil
		}
	}
	return nil, store.ErrNotFound
}
