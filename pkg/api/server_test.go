package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func setupServer(t *testing.T) (*Deps, http.Handler) {
	t.Helper()

	leadStore := store.NewMemoryLeadStore()
	agentStore := store.NewMemoryAgentStore()
	registry := prometheus.NewRegistry()

	deps := &Deps{
		Config: &config.Config{
			JWTSecret:          "test-secret",
			JWTExpirationHours: 1,
		},
		Agents:   agents.NewService(agentStore),
		Exports:  export.NewService(leadStore, agentStore),
		Metrics:  metrics.New(registry),
		Registry: registry,
		Log:      logger.Default(),
	}
	return deps, New(*deps)
}

func createAgent(t *testing.T, deps *Deps, login string, role models.Role) {
	t.Helper()
	_, err := deps.Agents.Create(context.Background(), agents.CreateRequest{
		Name:     "Ana Lima",
		Login:    login,
		Password: "segredo123",
		Role:     role,
	})
	require.NoError(t, err)
}

func doLogin(t *testing.T, h http.Handler, login, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"login":"` + login + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	_, h := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginIssuesToken(t *testing.T) {
	deps, h := setupServer(t)
	createAgent(t, deps, "ana", models.RoleSupervisor)

	rec := doLogin(t, h, "ana", "segredo123")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleSupervisor, resp.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	deps, h := setupServer(t)
	createAgent(t, deps, "ana", models.RoleAgent)

	rec := doLogin(t, h, "ana", "senha-errada")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidatesBody(t *testing.T) {
	_, h := setupServer(t)
	rec := doLogin(t, h, "x", "y")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRequiresToken(t *testing.T) {
	_, h := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/export", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportRejectsAgentRole(t *testing.T) {
	deps, h := setupServer(t)
	createAgent(t, deps, "ana", models.RoleAgent)

	rec := doLogin(t, h, "ana", "segredo123")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/export", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportStreamsWorkbook(t *testing.T) {
	deps, h := setupServer(t)
	createAgent(t, deps, "rita", models.RoleAdmin)

	rec := doLogin(t, h, "rita", "segredo123")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/export", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "desempenho_")
	assert.NotEmpty(t, rec.Body.Bytes())
}
