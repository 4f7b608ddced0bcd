package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/auth"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/models"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	agents    *agents.Service
	config    *config.Config
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(agentsSvc *agents.Service, cfg *config.Config, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		agents:    agentsSvc,
		config:    cfg,
		metrics:   m,
		validator: validator.New(),
	}
}

// Login exchanges agent credentials for a JWT.
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request data. Please check your input and try again.",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	agent, err := h.agents.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, agents.ErrInvalidCredentials) {
			h.metrics.LoginAttempts.WithLabelValues("failed").Inc()
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Login or password is incorrect",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "internal_error",
		})
	}

	token, err := auth.GenerateJWT(agent.ID.Hex(), agent.Login, string(agent.Role),
		h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "token_generation_error",
		})
	}

	h.metrics.LoginAttempts.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, models.AuthResponse{
		Token: token,
		Name:  agent.Name,
		Role:  agent.Role,
	})
}
