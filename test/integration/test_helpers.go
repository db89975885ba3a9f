//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-org-access/internal/app"
	"go-org-access/internal/config"
	"go-org-access/internal/model"
)

const (
	adminEmail    = "admin@example.org"
	adminPassword = "bootstrap-pass"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:             "test",
		ServerPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      10 * time.Second,
		ServerIdleTimeout:       30 * time.Second,
		RequestTimeout:          10 * time.Second,
		StoreBackend:            config.BackendMemory,
		SigningSecret:           "integration-secret",
		SigningAlgorithm:        "HS256",
		AccessTTL:               15 * time.Minute,
		RefreshTTL:              24 * time.Hour,
		PasswordMinLength:       8,
		BcryptCost:              bcrypt.MinCost,
		HashWorkers:             4,
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            10000,
		AuthRateLimitRPM:        10000,
		AdminEmail:              adminEmail,
		AdminPassword:           adminPassword,
	}
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	application, err := app.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		server.Close()
		application.Close()
	})
	return server
}

func doJSON(t *testing.T, method string, url string, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, dst any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeJSONBody(resp *http.Response, dst any) error {
	return json.NewDecoder(resp.Body).Decode(dst)
}

func login(t *testing.T, server *httptest.Server, email string, password string) model.TokenPair {
	t.Helper()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/auth/login", "", model.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair model.TokenPair
	decodeData(t, resp, &pair)
	return pair
}

func createDepartment(t *testing.T, server *httptest.Server, token string, name string) model.Department {
	t.Helper()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/departments", token, model.CreateDepartmentRequest{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var dept model.Department
	decodeData(t, resp, &dept)
	return dept
}

func createUser(t *testing.T, server *httptest.Server, token string, req model.CreateUserRequest) model.User {
	t.Helper()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/users", token, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user model.User
	decodeData(t, resp, &user)
	return user
}
