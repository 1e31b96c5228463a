// AngelaMos | 2026
// handler.go

package assignment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/middleware"
	"github.com/carterperez-dev/pocketree/internal/task"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type HistoryLister interface {
	ListHistory(
		ctx context.Context,
		userID string,
		limit int,
	) ([]task.HistoryEntry, error)
}

type Handler struct {
	selector *Selector
	history  HistoryLister
}

func NewHandler(selector *Selector, history HistoryLister) *Handler {
	return &Handler{selector: selector, history: history}
}

// RegisterRoutes mounts relative routes; the caller owns the /tasks
// prefix and the authenticator.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/daily", h.Daily)
	r.Get("/history", h.History)
}

type TaskResponse struct {
	ID               int64  `json:"taskId"`
	Description      string `json:"description"`
	Difficulty       string `json:"difficulty"`
	CoinReward       int    `json:"coinReward"`
	RequiresEvidence bool   `json:"requiresEvidence"`
	Category         string `json:"category"`
	IsCompleted      bool   `json:"isCompleted"`
}

type HistoryResponse struct {
	TaskID      int64  `json:"taskId"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	CoinsEarned int    `json:"coinsEarned"`
	CompletedAt string `json:"completedAt"`
}

func ToTaskResponse(t task.AssignedTask) TaskResponse {
	return TaskResponse{
		ID:               t.ID,
		Description:      t.Description,
		Difficulty:       string(t.Difficulty),
		CoinReward:       t.CoinReward,
		RequiresEvidence: t.RequiresEvidence,
		Category:         t.Category,
		IsCompleted:      t.Status == task.StatusCompleted,
	}
}

func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	tasks, err := h.selector.AssignDailyTasks(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrTransactionFailed):
			core.JSONError(w, core.TransactionError(err))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskResponse(t))
	}

	core.OK(w, out)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			core.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.ListHistory(r.Context(), userID, limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			TaskID:      e.TaskID,
			Description: e.Description,
			Difficulty:  string(e.Difficulty),
			CoinsEarned: e.CoinReward,
			CompletedAt: e.CompletedAt.UTC().Format(time.RFC3339),
		})
	}

	core.OK(w, out)
}
