package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/privacy"
	"github.com/akshitha1024/traceback/report"
)

type ItemHandler struct {
	reports       report.Repository
	views         *privacy.Manager
	privacyWindow time.Duration
}

func NewItemHandler(reports report.Repository, views *privacy.Manager, privacyWindow time.Duration) *ItemHandler {
	return &ItemHandler{reports: reports, views: views, privacyWindow: privacyWindow}
}

type createLostRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Category    string    `json:"category" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	Color       string    `json:"color"`
	DateLost    time.Time `json:"dateLost" binding:"required"`
	ImageRef    *string   `json:"imageRef"`
}

func (h *ItemHandler) CreateLost(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req createLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.reports.CreateLost(c.Request.Context(), report.CreateLostParams{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		Color:         req.Color,
		DateLost:      req.DateLost,
		ImageRef:      req.ImageRef,
		ReporterEmail: email,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lost report"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        item.ID,
		"title":     item.Title,
		"category":  item.Category,
		"createdAt": item.CreatedAt,
	})
}

type createQuestionRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Kind     string `json:"kind"`
}

type createFoundRequest struct {
	Title           string                  `json:"title" binding:"required"`
	Description     string                  `json:"description"`
	Category        string                  `json:"category" binding:"required"`
	Location        string                  `json:"location" binding:"required"`
	Color           string                  `json:"color"`
	CurrentLocation string                  `json:"currentLocation"`
	DateFound       time.Time               `json:"dateFound" binding:"required"`
	ImageRef        *string                 `json:"imageRef"`
	FinderPhone     *string                 `json:"finderPhone"`
	PrivacyDays     int                     `json:"privacyDays"`
	Questions       []createQuestionRequest `json:"questions" binding:"required,min=1"`
}

func (h *ItemHandler) CreateFound(c *gin.Context) {
	email := c.GetHeader(userHeader)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req createFoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := report.CreateFoundParams{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Location:        req.Location,
		Color:           req.Color,
		CurrentLocation: req.CurrentLocation,
		DateFound:       req.DateFound,
		ImageRef:        req.ImageRef,
		FinderEmail:     email,
		FinderPhone:     req.FinderPhone,
	}
	// Items start private. A zero privacyDays falls back to the configured
	// default window rather than immediate publication.
	window := h.privacyWindow
	if req.PrivacyDays > 0 {
		window = time.Duration(req.PrivacyDays) * 24 * time.Hour
	}
	expires := time.Now().UTC().Add(window)
	params.PrivacyExpiresAt = &expires
	for _, q := range req.Questions {
		params.Questions = append(params.Questions, report.QuestionParams{
			Question: q.Question,
			Answer:   q.Answer,
			Kind:     report.AnswerKind(q.Kind),
		})
	}

	item, err := h.reports.CreateFound(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create found report"})
		return
	}

	// The finder sees their own report in full.
	c.JSON(http.StatusCreated, privacy.Unredacted(item))
}

func (h *ItemHandler) ListFound(c *gin.Context) {
	filters := report.Filters{
		Category:   c.Query("category"),
		Location:   c.Query("location"),
		Color:      c.Query("color"),
		Search:     c.Query("q"),
		OnlyPublic: c.Query("public") == "true",
	}

	items, err := h.reports.ListFound(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list found reports"})
		return
	}

	now := time.Now()
	token := c.GetHeader(tokenHeader)
	out := make([]privacy.View, 0, len(items))
	for _, item := range items {
		out = append(out, h.views.View(item, now, token))
	}

	c.JSON(http.StatusOK, gin.H{"items": out, "count": len(out)})
}

func (h *ItemHandler) GetFound(c *gin.Context) {
	item, err := h.reports.GetFound(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}

	c.JSON(http.StatusOK, h.views.View(item, time.Now(), c.GetHeader(tokenHeader)))
}
