package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymbro/internal/config"
	"gymbro/internal/logger"
)

func testConfig(driver, dsn string) *config.Config {
	return &config.Config{
		AppPort:                ":0",
		AppEnv:                 "test",
		DatabaseDriver:         driver,
		DatabaseDSN:            dsn,
		JWTSecret:              "test_jwt_secret",
		UsernameRandomAttempts: 8,
		DocstoreTxAttempts:     5,
		MatchDefaultLimit:      10,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	require.NoError(t, app.StartEventLog())
	return app
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, testConfig(config.DriverMemory, ""))

	resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["database"])
	assert.Equal(t, false, body["events"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	app := newTestApp(t, testConfig(config.DriverMemory, ""))

	for _, path := range []string{"/api/v1/me/profile", "/api/v1/matches", "/api/v1/posts"} {
		resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRegisterOnSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "gymbro.db")
	app := newTestApp(t, testConfig(config.DriverSQLite, dsn))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"lifter@example.com","password":"password123","username":"Lifter"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/api/v1/usernames/lifter/availability", nil), -1)
	require.NoError(t, err)
	var body struct {
		Handle    string `json:"handle"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "lifter", body.Handle)
	assert.False(t, body.Available)
}

func TestNewAppRejectsUnknownDriver(t *testing.T) {
	_, err := NewApp(testConfig("mongodb", "x"), logger.NewNop())
	assert.Error(t, err)
}
