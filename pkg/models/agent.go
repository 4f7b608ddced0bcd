package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is an agent's permission level.
type Role string

const (
	RoleAgent      Role = "vendedor"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "administrador"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// Agent is an authenticated user who works leads. Supervisors form a
// single-level hierarchy: an agent may reference one supervisor, and no
// deeper nesting is modeled.
type Agent struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"nome_vendedor" json:"nome_vendedor"`
	Login        string              `bson:"usuario_login" json:"usuario_login"`
	PasswordHash string              `bson:"senha_hash" json:"-"`
	Role         Role                `bson:"role" json:"role"`
	SupervisorID *primitive.ObjectID `bson:"supervisor_id,omitempty" json:"supervisor_id,omitempty"`
	TelegramID   *int64              `bson:"usuario_telegram,omitempty" json:"usuario_telegram,omitempty"`
}

// FirstName returns the first word of the agent's display name.
func (a *Agent) FirstName() string {
	fields := strings.Fields(a.Name)
	if len(fields) == 0 {
		return a.Login
	}
	return fields[0]
}

// CanSupervise reports whether the agent may view team-level panels.
func (a *Agent) CanSupervise() bool {
	return a.Role == RoleSupervisor || a.Role == RoleAdmin
}

// IsAdmin reports whether the agent has the admin role.
func (a *Agent) IsAdmin() bool {
	return a.Role == RoleAdmin
}
