package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PairsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traceback_match_pairs_scored_total",
		Help: "Lost/found pairs scored during recompute passes.",
	})

	PairsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traceback_match_pairs_skipped_total",
		Help: "Pairs skipped because a similarity signal could not be computed.",
	})

	MatchesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traceback_matches_stored_total",
		Help: "Match records written to the catalog.",
	})

	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traceback_notifications_sent_total",
		Help: "Notifications delivered to recipients.",
	})

	ClaimAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traceback_claim_attempts_total",
		Help: "Claim verification attempts by outcome.",
	}, []string{"result"})

	ItemsPurged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traceback_items_purged_total",
		Help: "Reports removed by retention purges, by reason.",
	}, []string{"reason"})
)

// Register installs every collector on the default registry. Call once at
// startup.
func Register() {
	prometheus.MustRegister(
		PairsScored,
		PairsSkipped,
		MatchesStored,
		NotificationsSent,
		ClaimAttempts,
		ItemsPurged,
	)
}
