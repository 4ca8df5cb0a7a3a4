package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	deepFeatureWeight = 0.7
	colorHistWeight   = 0.3
)

// ImageComparator scores the visual similarity of two stored images.
type ImageComparator interface {
	Compare(ctx context.Context, refA, refB string) (float64, error)
}

// Unavailable is the comparator used when no vision service is configured.
type Unavailable struct{}

func (Unavailable) Compare(context.Context, string, string) (float64, error) {
	return 0, ErrComputeUnavailable
}

// HTTPComparator calls an external vision service and blends its deep
// feature similarity with a color histogram similarity.
type HTTPComparator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPComparator(baseURL string) *HTTPComparator {
	return &HTTPComparator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type compareRequest struct {
	RefA string `json:"ref_a"`
	RefB string `json:"ref_b"`
}

type compareResponse struct {
	DeepSimilarity  float64 `json:"deep_similarity"`
	ColorSimilarity float64 `json:"color_similarity"`
}

func (c *HTTPComparator) Compare(ctx context.Context, refA, refB string) (float64, error) {
	payload, err := json.Marshal(compareRequest{RefA: refA, RefB: refB})
	if err != nil {
		return 0, fmt.Errorf("matching: marshal compare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("matching: build compare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("matching: call vision service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("matching: vision service returned %d: %s", resp.StatusCode, string(body))
	}

	var out compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("matching: decode compare response: %w", err)
	}

	blended := deepFeatureWeight*out.DeepSimilarity + colorHistWeight*out.ColorSimilarity
	if blended < 0 {
		blended = 0
	}
	if blended > 1 {
		blended = 1
	}
	return blended, nil
}
