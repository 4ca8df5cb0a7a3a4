package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/matching"
)

type MatchHandler struct {
	matches *matching.Service
}

func NewMatchHandler(matches *matching.Service) *MatchHandler {
	return &MatchHandler{matches: matches}
}

func (h *MatchHandler) ForFound(c *gin.Context) {
	ranked, err := h.matches.MatchesForFound(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": ranked, "count": len(ranked)})
}

func (h *MatchHandler) ForLost(c *gin.Context) {
	ranked, err := h.matches.MatchesForLost(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": ranked, "count": len(ranked)})
}
