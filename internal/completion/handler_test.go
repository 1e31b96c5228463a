// AngelaMos | 2026
// handler_test.go

package completion

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/middleware"
	"github.com/carterperez-dev/pocketree/internal/progression"
	"github.com/carterperez-dev/pocketree/internal/task"
)

type envelope struct {
	Success bool             `json:"success"`
	Data    CompleteResponse `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/tasks", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), &middleware.Principal{UserID: userID}))
}

func photoRequest(t *testing.T, target string, photo []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if photo != nil {
		part, err := mw.CreateFormFile(evidenceField, "evidence.jpg")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestHandlerCompletesWithoutBody(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 240, progression.LevelSeedling, easyTask)

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPost, "/tasks/1/complete", nil), "u1")
	newRouter(NewHandler(f.processor, 0)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Data.Success)
	assert.Equal(t, OutcomeCompleted, env.Data.Outcome)
	assert.Equal(t, 340, env.Data.NewCoins)
	assert.Equal(t, "Sapling", env.Data.LevelName)
	assert.True(t, env.Data.LevelUp)
	assert.Len(t, env.Data.BadgesEarned, 2)
}

func TestHandlerPassesPhotoToClassifier(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling, hardTask)

	rec := httptest.NewRecorder()
	req := asUser(photoRequest(t, "/tasks/3/complete", []byte("jpeg-bytes")), "u1")
	newRouter(NewHandler(f.processor, 0)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Data.Success)
	assert.Equal(t, "plant", f.classifier.keyword)
	assert.Equal(t, task.StatusCompleted, f.assignmentStatus("u1", hardTask))
}

func TestHandlerReportsVerificationFailureAsSuccessfulResponse(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling, hardTask)

	rec := httptest.NewRecorder()
	req := asUser(photoRequest(t, "/tasks/3/complete", nil), "u1")
	newRouter(NewHandler(f.processor, 0)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Data.Success)
	assert.Equal(t, OutcomeVerificationFailed, env.Data.Outcome)
}

func TestHandlerErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		userID   string
		fault    string
		wantCode int
		wantErr  string
	}{
		{"non numeric id", "/tasks/abc/complete", "u1", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"zero id", "/tasks/0/complete", "u1", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown task", "/tasks/99/complete", "u1", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown user", "/tasks/1/complete", "ghost", "", http.StatusNotFound, "NOT_FOUND"},
		{"store failure", "/tasks/1/complete", "u1", "users.AdjustTaskCounters", http.StatusServiceUnavailable, "TRANSACTION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultMission())
			f.addUser("u1", 0, progression.LevelSeedling, easyTask)
			if tt.fault != "" {
				f.store.FailOn(tt.fault, errors.New("connection reset"))
			}

			rec := httptest.NewRecorder()
			req := asUser(httptest.NewRequest(http.MethodPost, tt.target, nil), tt.userID)
			newRouter(NewHandler(f.processor, 0)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			if tt.wantCode == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestHandlerRejectsOversizedPhoto(t *testing.T) {
	f := newFixture(t, defaultMission())
	f.addUser("u1", 0, progression.LevelSeedling, hardTask)

	rec := httptest.NewRecorder()
	req := asUser(photoRequest(t, "/tasks/3/complete", bytes.Repeat([]byte("x"), 4096)), "u1")
	newRouter(NewHandler(f.processor, 1024)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decode(t, rec).Error.Code)
	assert.Equal(t, task.StatusAssigned, f.assignmentStatus("u1", hardTask))
}
