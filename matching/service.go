package matching

import "context"

// RankedMatch is a catalog row shaped for API consumers: the counterpart
// item plus its score and signal breakdown.
type RankedMatch struct {
	ItemID    string    `json:"item_id"`
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Notified  bool      `json:"notified"`
}

// Service answers catalog lookups from the stored match records.
type Service struct {
	catalog CatalogRepository
	topK    int
}

func NewService(catalog CatalogRepository, topK int) *Service {
	if topK <= 0 {
		topK = 10
	}
	return &Service{catalog: catalog, topK: topK}
}

// MatchesForFound returns the best lost-report candidates for one found item.
func (s *Service) MatchesForFound(ctx context.Context, foundItemID string) ([]RankedMatch, error) {
	records, err := s.catalog.TopForFoundItem(ctx, foundItemID, s.topK)
	if err != nil {
		return nil, err
	}
	return rank(records, func(rec MatchRecord) string { return rec.LostItemID }), nil
}

// MatchesForLost returns the best found-report candidates for one lost item.
func (s *Service) MatchesForLost(ctx context.Context, lostItemID string) ([]RankedMatch, error) {
	records, err := s.catalog.TopForLostItem(ctx, lostItemID, s.topK)
	if err != nil {
		return nil, err
	}
	return rank(records, func(rec MatchRecord) string { return rec.FoundItemID }), nil
}

func rank(records []MatchRecord, other func(MatchRecord) string) []RankedMatch {
	ranked := make([]RankedMatch, 0, len(records))
	for _, rec := range records {
		ranked = append(ranked, RankedMatch{
			ItemID:    other(rec),
			Score:     rec.Score,
			Breakdown: rec.Breakdown,
			Notified:  rec.Notified,
		})
	}
	return ranked
}
