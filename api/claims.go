package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/claim"
	"github.com/akshitha1024/traceback/privacy"
	"github.com/akshitha1024/traceback/report"
)

type ClaimHandler struct {
	claims *claim.Service
}

func NewClaimHandler(claims *claim.Service) *ClaimHandler {
	return &ClaimHandler{claims: claims}
}

type verifyRequest struct {
	Answers map[string]string `json:"answers" binding:"required,min=1"`
}

// Questions lists an item's security questions so a claimant can prepare an
// attempt. Digests stay server-side.
func (h *ClaimHandler) Questions(c *gin.Context) {
	questions, err := h.claims.Questions(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		case errors.Is(err, claim.ErrItemClosed):
			c.JSON(http.StatusGone, gin.H{"error": "item no longer accepts claims"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list questions"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions, "count": len(questions)})
}

func (h *ClaimHandler) Verify(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.claims.Verify(c.Request.Context(), c.Param("id"), email, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		case errors.Is(err, claim.ErrAlreadyAttempted):
			c.JSON(http.StatusConflict, gin.H{"error": "verification already attempted for this item"})
		case errors.Is(err, claim.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "finders cannot claim their own items"})
		case errors.Is(err, claim.ErrItemClosed):
			c.JSON(http.StatusGone, gin.H{"error": "item no longer accepts claims"})
		case errors.Is(err, claim.ErrNoQuestions):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "item has no security questions"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		}
		return
	}

	resp := gin.H{
		"verified": result.Verified,
		"correct":  result.CorrectCount,
		"total":    result.TotalCount,
		"required": result.RequiredCount,
	}
	if result.Verified {
		resp["revealToken"] = result.RevealToken
		resp["item"] = privacy.Unredacted(*result.Item)
	}
	c.JSON(http.StatusOK, resp)
}

// GetAttempt reports whether a claimant already spent their attempt on the
// item. Claimants may only look up their own record.
func (h *ClaimHandler) GetAttempt(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if c.Param("email") != email {
		c.JSON(http.StatusForbidden, gin.H{"error": "claimants may only view their own attempt"})
		return
	}

	attempted, attempt, err := h.claims.HasAttempted(c.Request.Context(), c.Param("id"), email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up attempt"})
		return
	}

	resp := gin.H{"attempted": attempted}
	if attempt != nil {
		resp["attempt"] = gin.H{
			"verified":  attempt.Verified,
			"correct":   attempt.CorrectCount,
			"total":     attempt.TotalCount,
			"createdAt": attempt.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClaimHandler) ListAttempts(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	attempts, err := h.claims.ListAttempts(c.Request.Context(), c.Param("id"), email)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		case errors.Is(err, claim.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the finder may view attempts"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attempts"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

type potentialRequest struct {
	Potential bool `json:"potential"`
}

func (h *ClaimHandler) MarkPotential(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req potentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.claims.MarkPotential(c.Request.Context(), c.Param("id"), c.Param("email"), email, req.Potential)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNotFound), errors.Is(err, claim.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
		case errors.Is(err, claim.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the finder may mark claimants"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update attempt"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
