// AngelaMos | 2026
// handler.go

package completion

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/middleware"
	"github.com/carterperez-dev/pocketree/internal/progression"
)

const (
	evidenceField          = "photo"
	defaultMaxUploadBytes  = 8 << 20
	multipartMemoryReserve = 1 << 20
)

type Handler struct {
	processor      *Processor
	maxUploadBytes int64
}

func NewHandler(processor *Processor, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{processor: processor, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes mounts the completion route relative to the caller's
// /tasks prefix. mws wrap only this route.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	mws ...func(http.Handler) http.Handler,
) {
	r.With(mws...).Post("/{taskID}/complete", h.Complete)
}

type BadgeResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CompleteResponse struct {
	Success            bool            `json:"success"`
	Outcome            Outcome         `json:"outcome"`
	LevelUp            bool            `json:"levelUp"`
	NewCoins           int             `json:"newCoins"`
	NewLevel           int             `json:"newLevel"`
	LevelName          string          `json:"levelName"`
	IsWithered         bool            `json:"isWithered"`
	BadgesEarned       []BadgeResponse `json:"badgesEarned"`
	MissionContributed bool            `json:"missionContributed"`
}

func ToCompleteResponse(res *Result) CompleteResponse {
	earned := make([]BadgeResponse, 0, len(res.BadgesEarned))
	for _, b := range res.BadgesEarned {
		earned = append(earned, toBadgeResponse(b))
	}

	return CompleteResponse{
		Success:            res.Success,
		Outcome:            res.Outcome,
		LevelUp:            res.LevelUp,
		NewCoins:           res.NewCoins,
		NewLevel:           res.NewLevel,
		LevelName:          progression.LevelFor(res.NewLevel).Name,
		IsWithered:         res.IsWithered,
		BadgesEarned:       earned,
		MissionContributed: res.MissionContributed,
	}
}

func toBadgeResponse(b badge.Badge) BadgeResponse {
	return BadgeResponse{ID: b.ID, Name: b.Name, Description: b.Description}
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil || taskID < 1 {
		core.BadRequest(w, "invalid task id")
		return
	}

	evidence, err := h.readEvidence(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.JSONError(w, core.NewAppError(
				core.ErrInvalidInput,
				"evidence image is too large",
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
			))
			return
		}
		core.BadRequest(w, "invalid multipart body")
		return
	}

	res, err := h.processor.Complete(r.Context(), Submission{
		UserID:   middleware.GetUserID(r.Context()),
		TaskID:   taskID,
		Evidence: evidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "task")
		case errors.Is(err, core.ErrTransactionFailed):
			core.JSONError(w, core.TransactionError(err))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ToCompleteResponse(res))
}

// readEvidence returns the uploaded photo, or nil when the request carries
// no multipart body or no photo part.
func (h *Handler) readEvidence(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, nil //nolint:nilerr // a body without a form has no evidence
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryReserve); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile(evidenceField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close() //nolint:errcheck // multipart part

	return io.ReadAll(file)
}
