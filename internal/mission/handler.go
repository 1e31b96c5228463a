// AngelaMos | 2026
// handler.go

package mission

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pocketree/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes exposes read-only mission views. Contribution has no
// route of its own; it only happens through task completion.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/mission", func(r chi.Router) {
		r.Get("/", h.GetProgress)
		r.Get("/trees", h.ListTrees)
	})
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "mission")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, progress)
}

func (h *Handler) ListTrees(w http.ResponseWriter, r *http.Request) {
	trees, err := h.service.Forest(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "mission")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, trees)
}
