package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/claim"
	"github.com/akshitha1024/traceback/matching"
	"github.com/akshitha1024/traceback/privacy"
	"github.com/akshitha1024/traceback/report"
	"github.com/akshitha1024/traceback/settlement"
)

// userHeader identifies the caller. Authentication happens upstream; the
// gateway injects the verified identity into this header.
const userHeader = "X-User-Email"

// tokenHeader carries an optional reveal token for unredacted item views.
const tokenHeader = "X-Reveal-Token"

// NewRouter assembles the HTTP surface over the engine services.
func NewRouter(
	reports report.Repository,
	views *privacy.Manager,
	matches *matching.Service,
	claims *claim.Service,
	settle *settlement.Service,
	privacyWindow time.Duration,
) *gin.Engine {
	r := gin.Default()

	items := NewItemHandler(reports, views, privacyWindow)
	match := NewMatchHandler(matches)
	verify := NewClaimHandler(claims)
	finalize := NewSettlementHandler(settle)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/lost", items.CreateLost)
		v1.POST("/found", items.CreateFound)
		v1.GET("/found", items.ListFound)
		v1.GET("/found/:id", items.GetFound)

		v1.GET("/found/:id/matches", match.ForFound)
		v1.GET("/lost/:id/matches", match.ForLost)

		v1.GET("/found/:id/questions", verify.Questions)
		v1.POST("/found/:id/claims", verify.Verify)
		v1.GET("/found/:id/claims", verify.ListAttempts)
		v1.GET("/found/:id/claims/:email", verify.GetAttempt)
		v1.PUT("/found/:id/claims/:email/potential", verify.MarkPotential)

		v1.POST("/found/:id/claimed", finalize.MarkClaimed)
		v1.POST("/found/:id/finalize", finalize.Finalize)
	}

	return r
}
