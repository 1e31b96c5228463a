// AngelaMos | 2026
// handler.go

package badge

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/middleware"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/badges", func(r chi.Router) {
		r.Get("/", h.List)

		r.With(authenticator).Get("/me", h.ListMine)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	badges, err := h.repo.ListAll(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, badges)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	badges, err := h.repo.ListOwned(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, badges)
}
