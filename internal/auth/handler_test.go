// AngelaMos | 2026
// handler_test.go

package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/middleware"
)

type envelope struct {
	Success bool  `json:"success"`
	Data    Grant `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	NewHandler(f.svc).RegisterRoutes(r, middleware.Authenticator(f.svc))
	return r
}

func call(
	t *testing.T,
	h http.Handler,
	method, path string,
	body any,
	bearer string,
) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		payload = &buf
	}

	req := httptest.NewRequest(method, path, payload)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHandlerSignInFlow(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	rec, env := call(t, h, http.MethodPost, "/auth/register", RegisterRequest{
		Email: "ada@example.com", Password: "correct horse", Username: "ada",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	first := env.Data

	rec, env = call(t, h, http.MethodPost, "/auth/register", RegisterRequest{
		Email: "ada@example.com", Password: "correct horse", Username: "ada",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE", env.Error.Code)

	rec, env = call(t, h, http.MethodPost, "/auth/login", LoginRequest{
		Email: "ada@example.com", Password: "nope nope",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	rec, env = call(t, h, http.MethodPost, "/auth/refresh",
		RefreshRequest{RefreshToken: first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := env.Data

	rec, env = call(t, h, http.MethodPost, "/auth/refresh",
		RefreshRequest{RefreshToken: first.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_REPLAYED", env.Error.Code)

	rec, env = call(t, h, http.MethodPost, "/auth/logout", nil, second.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)
}

func TestHandlerLogout(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)
	g := f.register(t, "ada@example.com")

	rec, _ := call(t, h, http.MethodPost, "/auth/logout",
		LogoutRequest{RefreshToken: g.RefreshToken}, g.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, env := call(t, h, http.MethodPut, "/auth/password", ChangePasswordRequest{
		CurrentPassword: "correct horse", NewPassword: "new secret 1",
	}, g.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)
}

func TestHandlerRejectsBadBodies(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"short password", "/auth/register", RegisterRequest{Email: "a@b.co", Password: "short", Username: "a"}},
		{"bad email", "/auth/login", LoginRequest{Email: "nope", Password: "whatever1"}},
		{"missing token", "/auth/refresh", RefreshRequest{}},
		{"not json", "/auth/login", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := call(t, h, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", env.Error.Code)
		})
	}
}
