// AngelaMos | 2026
// classifier.go

package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
)

// Classifier decides whether an evidence photo shows keyword.
type Classifier interface {
	Classify(ctx context.Context, image []byte, keyword string) (bool, error)
}

type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewClassifier(cfg config.ClassifierConfig) *HTTPClassifier {
	return &HTTPClassifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type classifyResponse struct {
	Verified bool `json:"verified"`
}

// Classify posts the image as multipart form data. Any transport failure,
// timeout or non-2xx answer is reported as ErrExternalService.
func (c *HTTPClassifier) Classify(
	ctx context.Context,
	image []byte,
	keyword string,
) (bool, error) {
	ctx, span := core.StartSpan(ctx, "ml.classify",
		attribute.String("ml.keyword", keyword),
		attribute.Int("ml.image_bytes", len(image)),
	)
	defer span.End()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "upload.jpg")
	if err != nil {
		return false, fmt.Errorf("classify: build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return false, fmt.Errorf("classify: build form: %w", err)
	}
	if err := form.WriteField("keyword", keyword); err != nil {
		return false, fmt.Errorf("classify: build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return false, fmt.Errorf("classify: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return false, fmt.Errorf("classify: %w: %w", core.ErrExternalService, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse
		return false, fmt.Errorf(
			"classify: status %d: %w",
			resp.StatusCode,
			core.ErrExternalService,
		)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("classify: decode: %w: %w", core.ErrExternalService, err)
	}

	span.SetAttributes(attribute.Bool("ml.verified", out.Verified))

	return out.Verified, nil
}
