package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/settlement"
)

type SettlementHandler struct {
	settle *settlement.Service
}

func NewSettlementHandler(settle *settlement.Service) *SettlementHandler {
	return &SettlementHandler{settle: settle}
}

type finalizeRequest struct {
	ClaimantEmail string `json:"claimantEmail" binding:"required,email"`
	Justification string `json:"justification" binding:"required"`
}

func (h *SettlementHandler) Finalize(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	returnID, err := h.settle.Finalize(c.Request.Context(), c.Param("id"), email, req.ClaimantEmail, req.Justification)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		case errors.Is(err, settlement.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the finder may finalize"})
		case errors.Is(err, settlement.ErrTooEarly):
			c.JSON(http.StatusConflict, gin.H{"error": "decision window still open"})
		case errors.Is(err, settlement.ErrAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "item already resolved"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "finalization failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"returnId": returnID})
}

func (h *SettlementHandler) MarkClaimed(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	err := h.settle.MarkClaimed(c.Request.Context(), c.Param("id"), email)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		case errors.Is(err, settlement.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the finder may close the item"})
		case errors.Is(err, settlement.ErrAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "item already resolved"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close item"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "claimed"})
}
