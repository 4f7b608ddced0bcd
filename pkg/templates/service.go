// Package templates manages reusable outreach messages. A template body
// carries {{cliente}} and {{vendedor}} placeholders that are filled with
// first names at send time.
package templates

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/phone"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	placeholderLead  = "{{cliente}}"
	placeholderAgent = "{{vendedor}}"
)

// Service handles message template management and rendering.
type Service struct {
	templates store.TemplateStore
}

// NewService creates a new templates service.
func NewService(templates store.TemplateStore) *Service {
	return &Service{templates: templates}
}

// Render fills a template body with the lead's and agent's first names.
func Render(body string, lead *models.Lead, agent *models.Agent) string {
	out := strings.ReplaceAll(body, placeholderLead, lead.FirstName())
	return strings.ReplaceAll(out, placeholderAgent, agent.FirstName())
}

// WhatsAppLink builds a wa.me link that opens a chat with the lead with the
// rendered message prefilled.
func WhatsAppLink(body string, lead *models.Lead, agent *models.Agent) string {
	base := phone.WhatsAppURL(lead.Phone)
	if base == "" {
		return ""
	}
	return base + "?text=" + url.QueryEscape(Render(body, lead, agent))
}

// Create stores a new template, active by default.
func (s *Service) Create(ctx context.Context, name, body string) (*models.MessageTemplate, error) {
	name = strings.TrimSpace(name)
	body = strings.TrimSpace(body)
	if name == "" || body == "" {
		return nil, fmt.Errorf("template name and body are required")
	}
	tpl := &models.MessageTemplate{Name: name, Body: body, Active: true}
	if err := s.templates.Insert(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return tpl, nil
}

// ByID fetches one template.
func (s *Service) ByID(ctx context.Context, id primitive.ObjectID) (*models.MessageTemplate, error) {
	return s.templates.ByID(ctx, id)
}

// All lists every template, active or not.
func (s *Service) All(ctx context.Context) ([]models.MessageTemplate, error) {
	return s.templates.All(ctx)
}

// Active lists the templates offered to agents.
func (s *Service) Active(ctx context.Context) ([]models.MessageTemplate, error) {
	return s.templates.Active(ctx)
}

// SetActive toggles whether a template is offered to agents.
func (s *Service) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	tpl, err := s.templates.ByID(ctx, id)
	if err != nil {
		return err
	}
	tpl.Active = active
	return s.templates.Update(ctx, tpl)
}

// UpdateBody replaces a template's text.
func (s *Service) UpdateBody(ctx context.Context, id primitive.ObjectID, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("template body is required")
	}
	tpl, err := s.templates.ByID(ctx, id)
	if err != nil {
		return err
	}
	tpl.Body = body
	return s.templates.Update(ctx, tpl)
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.templates.Delete(ctx, id)
}
