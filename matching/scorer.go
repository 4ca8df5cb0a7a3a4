package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/akshitha1024/traceback/embedding"
	"github.com/akshitha1024/traceback/report"
)

// ErrComputeUnavailable signals that a similarity signal cannot be produced,
// typically because the backing service is not configured.
var ErrComputeUnavailable = errors.New("matching: compute unavailable")

// Signal weights for the six-term composite. When image comparison is
// unavailable the remaining five weights are renormalized to sum to one.
const (
	weightDescription = 0.40
	weightImage       = 0.25
	weightLocation    = 0.15
	weightCategory    = 0.10
	weightColor       = 0.05
	weightDate        = 0.05

	dateDecayDays = 14
)

// Breakdown holds the composite score and each contributing signal.
type Breakdown struct {
	Composite          float64 `json:"composite"`
	Description        float64 `json:"description"`
	Image              float64 `json:"image"`
	Location           float64 `json:"location"`
	Category           float64 `json:"category"`
	Color              float64 `json:"color"`
	Date               float64 `json:"date"`
	HasImageComparison bool    `json:"has_image_comparison"`
}

// Scorer computes pairwise similarity between a lost and a found report.
type Scorer struct {
	embedder embedding.Client
	images   ImageComparator
}

func NewScorer(embedder embedding.Client, images ImageComparator) *Scorer {
	return &Scorer{embedder: embedder, images: images}
}

// Score produces the full breakdown for one lost/found pair. The description
// signal requires the embedding service; its failure fails the pair. Image
// comparison failure degrades the pair to the five-signal formula.
func (s *Scorer) Score(ctx context.Context, lost report.LostItem, found report.FoundItem) (Breakdown, error) {
	b := Breakdown{
		Location: binaryMatch(lost.Location, found.Location),
		Category: binaryMatch(lost.Category, found.Category),
		Color:    binaryMatch(lost.Color, found.Color),
		Date:     dateSimilarity(lost.DateLost, found.DateFound),
	}

	// A missing description on either side zeroes the signal; titles alone
	// are too short to embed meaningfully.
	if lost.Description != "" && found.Description != "" {
		lostVec, err := s.embedder.Embed(ctx, lost.Title+" "+lost.Description)
		if err != nil {
			return Breakdown{}, fmt.Errorf("matching: embed lost %s: %w", lost.ID, err)
		}
		foundVec, err := s.embedder.Embed(ctx, found.Title+" "+found.Description)
		if err != nil {
			return Breakdown{}, fmt.Errorf("matching: embed found %s: %w", found.ID, err)
		}
		b.Description = cosine(lostVec, foundVec)
	}

	if lost.ImageRef != nil && found.ImageRef != nil {
		img, err := s.images.Compare(ctx, *lost.ImageRef, *found.ImageRef)
		switch {
		case err == nil:
			b.Image = img
			b.HasImageComparison = true
		case errors.Is(err, ErrComputeUnavailable):
			// fall back to five signals
		default:
			// transient comparator failure, same fallback
		}
	}

	b.Composite = composite(b)
	return b, nil
}

func composite(b Breakdown) float64 {
	if b.HasImageComparison {
		return weightDescription*b.Description +
			weightImage*b.Image +
			weightLocation*b.Location +
			weightCategory*b.Category +
			weightColor*b.Color +
			weightDate*b.Date
	}
	norm := 1.0 - weightImage
	return (weightDescription*b.Description +
		weightLocation*b.Location +
		weightCategory*b.Category +
		weightColor*b.Color +
		weightDate*b.Date) / norm
}

// cosine returns the cosine similarity clamped to [0, 1]. Mismatched or
// zero-length vectors score zero.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}

func binaryMatch(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" || a != b {
		return 0
	}
	return 1
}

// dateSimilarity decays linearly to zero over a two week gap between the
// reported loss date and the find date.
func dateSimilarity(lost, found time.Time) float64 {
	gap := math.Abs(found.Sub(lost).Hours() / 24)
	return math.Max(0, 1-gap/dateDecayDays)
}
