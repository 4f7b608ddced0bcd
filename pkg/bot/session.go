package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/salesbot/pkg/cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNoSession means there is no conversation state for the chat. The user
// is prompted to start over.
var ErrNoSession = errors.New("bot: no active conversation")

// ErrNotAuthenticated means the chat has no logged-in agent bound to it.
var ErrNotAuthenticated = errors.New("bot: not authenticated")

// Step names the awaited input of a multi-step conversation.
type Step string

const (
	StepLoginUser      Step = "login_usuario"
	StepLoginPassword  Step = "login_senha"
	StepSearchPhone    Step = "buscar_telefone"
	StepNoteText       Step = "nota_texto"
	StepInquiryBalance Step = "consulta_saldo"
	StepAgentName      Step = "novo_vendedor_nome"
	StepAgentLogin     Step = "novo_vendedor_login"
	StepAgentPassword  Step = "novo_vendedor_senha"
	StepTemplateName   Step = "novo_template_nome"
	StepTemplateBody   Step = "novo_template_texto"
	StepAdoptBatchName Step = "adotar_base_nome"
)

// State is the per-conversation record. It never holds passwords: flows
// that collect one act on it in the same update and discard it.
type State struct {
	Step         Step   `json:"step"`
	LeadID       string `json:"lead_id,omitempty"`
	Login        string `json:"login,omitempty"`
	Name         string `json:"nome,omitempty"`
	Bank         string `json:"banco,omitempty"`
	Result       string `json:"resultado,omitempty"`
	TemplateName string `json:"nome_template,omitempty"`
	EditAgentID  string `json:"edit_agent_id,omitempty"`
}

// Lead returns the lead id carried by the conversation.
func (s *State) Lead() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(s.LeadID)
}

const (
	sessionTTL = 30 * time.Minute
	authTTL    = 12 * time.Hour
)

// Sessions stores conversation state and chat identity in Redis, keyed by
// (chat, user) so group chats keep users apart.
type Sessions struct {
	cache *cache.Client
}

// NewSessions creates a session manager on top of the Redis client.
func NewSessions(c *cache.Client) *Sessions {
	return &Sessions{cache: c}
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("sess:%d:%d", chatID, userID)
}

func authKey(chatID, userID int64) string {
	return fmt.Sprintf("auth:%d:%d", chatID, userID)
}

// Get loads the conversation state, or ErrNoSession.
func (s *Sessions) Get(ctx context.Context, chatID, userID int64) (*State, error) {
	raw, err := s.cache.Get(ctx, sessionKey(chatID, userID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// Corrupt state is dropped so the user can start over.
		_ = s.cache.Delete(ctx, sessionKey(chatID, userID))
		return nil, ErrNoSession
	}
	return &state, nil
}

// Put stores the conversation state, refreshing its TTL.
func (s *Sessions) Put(ctx context.Context, chatID, userID int64, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.cache.Set(ctx, sessionKey(chatID, userID), string(raw), sessionTTL)
}

// Clear drops the conversation state. Clearing an absent state is not an
// error.
func (s *Sessions) Clear(ctx context.Context, chatID, userID int64) error {
	return s.cache.Delete(ctx, sessionKey(chatID, userID))
}

// SetAgent binds the chat to a logged-in agent.
func (s *Sessions) SetAgent(ctx context.Context, chatID, userID int64, agentID primitive.ObjectID) error {
	return s.cache.Set(ctx, authKey(chatID, userID), agentID.Hex(), authTTL)
}

// AgentID resolves the agent bound to the chat, or ErrNotAuthenticated.
func (s *Sessions) AgentID(ctx context.Context, chatID, userID int64) (primitive.ObjectID, error) {
	raw, err := s.cache.Get(ctx, authKey(chatID, userID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return primitive.NilObjectID, ErrNotAuthenticated
		}
		return primitive.NilObjectID, fmt.Errorf("failed to load identity: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		_ = s.cache.Delete(ctx, authKey(chatID, userID))
		return primitive.NilObjectID, ErrNotAuthenticated
	}
	return id, nil
}

// Logout drops both the identity and any conversation state.
func (s *Sessions) Logout(ctx context.Context, chatID, userID int64) error {
	return s.cache.Delete(ctx, authKey(chatID, userID), sessionKey(chatID, userID))
}
