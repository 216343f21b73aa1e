package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
)

// Extraction is the text content pulled out of one paper.
type Extraction struct {
	Text     string   `json:"text"`
	Sections []string `json:"sections,omitempty"`
}

// ContentProcessor extracts text from a paper's content location. The
// parsing implementation behind it is a black box.
type ContentProcessor interface {
	Extract(ctx context.Context, locationRef string) (Extraction, error)
}

// HTTPExtractor calls an external text-extraction service.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

var _ ContentProcessor = (*HTTPExtractor)(nil)

// NewHTTPExtractor creates an extractor client for the given endpoint.
func NewHTTPExtractor(endpoint string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Extract posts the content location and returns the extracted text.
func (e *HTTPExtractor) Extract(ctx context.Context, locationRef string) (Extraction, error) {
	payload, err := json.Marshal(map[string]string{"url": locationRef})
	if err != nil {
		return Extraction{}, fmt.Errorf("encoding extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Extraction{}, fmt.Errorf("building extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Extraction{}, apperrors.Newf(apperrors.ErrProcessing, "extract request for %s: %v", locationRef, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Extraction{}, apperrors.Newf(apperrors.ErrProcessing, "extractor returned %s for %s", resp.Status, locationRef)
	}

	var out Extraction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Extraction{}, apperrors.Newf(apperrors.ErrProcessing, "decoding extraction for %s: %v", locationRef, err)
	}
	return out, nil
}

// AbstractExtractor is a degraded-mode ContentProcessor that indexes only
// the metadata the fetch stage already carries. Used when no extraction
// service is configured.
type AbstractExtractor struct{}

var _ ContentProcessor = AbstractExtractor{}

func (AbstractExtractor) Extract(context.Context, string) (Extraction, error) {
	return Extraction{}, nil
}
