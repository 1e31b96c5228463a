// AngelaMos | 2026
// recommender.go

package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
)

type Preference struct {
	Category   string `json:"preferredCategory"`
	Difficulty string `json:"preferredDifficulty"`
}

type Candidate struct {
	ID          int64  `json:"taskId"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	Category    string `json:"category"`
	CoinReward  int    `json:"coinReward"`
}

type RecommendRequest struct {
	UserID      string       `json:"userId"`
	Preferences []Preference `json:"preferences"`
	TotalScore  int          `json:"totalScore"`
	Tasks       []Candidate  `json:"tasks"`
}

// Recommender ranks candidate tasks for a user, best first.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) ([]int64, error)
}

type HTTPRecommender struct {
	url    string
	client *http.Client
}

func NewRecommender(cfg config.RecommenderConfig) *HTTPRecommender {
	return &HTTPRecommender{
		url:    strings.TrimRight(cfg.URL, "/") + "/predict",
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *HTTPRecommender) Recommend(
	ctx context.Context,
	in RecommendRequest,
) ([]int64, error) {
	ctx, span := core.StartSpan(ctx, "ml.recommend",
		attribute.String("user.id", in.UserID),
		attribute.Int("ml.candidates", len(in.Tasks)),
	)
	defer span.End()

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("recommend: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.url,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("recommend: %w: %w", core.ErrExternalService, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse
		return nil, fmt.Errorf(
			"recommend: status %d: %w",
			resp.StatusCode,
			core.ErrExternalService,
		)
	}

	var ranked []int64
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("recommend: decode: %w: %w", core.ErrExternalService, err)
	}

	span.SetAttributes(attribute.Int("ml.ranked", len(ranked)))

	return ranked, nil
}
