package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealsnap/backend/internal/middleware"
	"github.com/mealsnap/backend/internal/service"
)

// maxUploadBytes bounds the raw image size accepted before normalization
const maxUploadBytes = 10 << 20

// MealHandler exposes the meal-capture pipeline over HTTP
type MealHandler struct {
	orchestrator *service.Orchestrator
	meals        service.MealReader
	authService  service.IAuthService
	rateLimiter  *middleware.RateLimiter
}

// NewMealHandler creates a new meal handler
func NewMealHandler(orchestrator *service.Orchestrator, meals service.MealReader, authService service.IAuthService, rateLimiter *middleware.RateLimiter) *MealHandler {
	return &MealHandler{
		orchestrator: orchestrator,
		meals:        meals,
		authService:  authService,
		rateLimiter:  rateLimiter,
	}
}

// RecalculateRequest carries the ingredient text for a text-path analysis
type RecalculateRequest struct {
	Text string `json:"text" binding:"required"`
}

// CreateDraft opens a new entry session
func (h *MealHandler) CreateDraft(c *gin.Context) {
	draft := h.orchestrator.CreateDraft()
	c.JSON(http.StatusCreated, draft)
}

// GetDraft returns the current draft and pipeline state
func (h *MealHandler) GetDraft(c *gin.Context) {
	draft, err := h.orchestrator.GetDraft(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

// AttachImage accepts a meal photo and runs the image pipeline:
// normalize, upload, analyze, merge
func (h *MealHandler) AttachImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}

	draft, err := h.orchestrator.AttachImage(c.Request.Context(), c.Param("id"), fileHeader.Filename, data)
	if err != nil {
		h.pipelineError(c, draft, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Recalculate runs the text path against the supplied ingredient text
func (h *MealHandler) Recalculate(c *gin.Context) {
	var req RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ingredient text is required"})
		return
	}

	draft, err := h.orchestrator.RecalculateFromText(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		h.pipelineError(c, draft, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// UpdateDraft applies manual edits to the draft
func (h *MealHandler) UpdateDraft(c *gin.Context) {
	var edits service.DraftEdits
	if err := c.ShouldBindJSON(&edits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if edits.Slot != nil && !edits.Slot.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown meal slot"})
		return
	}

	draft, err := h.orchestrator.UpdateDraft(c.Param("id"), edits)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Preview serves the normalized image bytes held for the draft
func (h *MealHandler) Preview(c *gin.Context) {
	img, err := h.orchestrator.Preview(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preview available"})
		return
	}
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

// ClearImage drops the attached image and releases its preview
func (h *MealHandler) ClearImage(c *gin.Context) {
	draft, err := h.orchestrator.ClearImage(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

// SaveDraft finalizes the draft into a persisted meal record. Identity is
// resolved once, here; an unresolved identity saves under the unknown-user
// sentinel instead of failing.
func (h *MealHandler) SaveDraft(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	meal, err := h.orchestrator.Finalize(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDraftNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		case errors.Is(err, service.ErrPipelineBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "analysis still running, try again"})
		default:
			log.Printf("[MealHandler] save failed for draft %s: %v", c.Param("id"), err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not save the meal, your draft was kept"})
		}
		return
	}
	c.JSON(http.StatusCreated, meal)
}

// DiscardDraft drops a draft without saving
func (h *MealHandler) DiscardDraft(c *gin.Context) {
	if err := h.orchestrator.DiscardDraft(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMeals returns the authenticated user's saved meals, newest first
func (h *MealHandler) ListMeals(c *gin.Context) {
	meals, err := h.meals.ListByUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load meals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

// DailySummary returns the day's calorie and macro totals
func (h *MealHandler) DailySummary(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	summary, err := h.meals.DailySummary(c.Request.Context(), middleware.CurrentUserID(c), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build the summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// pipelineError maps a stage failure to a response. The draft is returned
// alongside the message so the client keeps showing the editable state.
func (h *MealHandler) pipelineError(c *gin.Context, draft service.MealDraft, err error) {
	if errors.Is(err, service.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}

	status := http.StatusBadGateway
	switch {
	case errors.Is(err, service.ErrImageDecode), errors.Is(err, service.ErrImageEncode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAnalysisNotConfigured):
		status = http.StatusServiceUnavailable
	}

	log.Printf("[MealHandler] pipeline failure on draft %s: %v", draft.ID, err)
	c.JSON(status, gin.H{
		"error": "meal analysis failed",
		"draft": draft,
	})
}

// RegisterRoutes registers the meal-capture and dashboard routes
func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup) {
	drafts := router.Group("/meals/drafts")
	drafts.Use(middleware.PermissiveAuthMiddleware(h.authService))
	{
		drafts.POST("", h.CreateDraft)
		drafts.GET("/:id", h.GetDraft)
		drafts.PATCH("/:id", h.UpdateDraft)
		drafts.DELETE("/:id", h.DiscardDraft)
		drafts.GET("/:id/preview", h.Preview)
		drafts.DELETE("/:id/image", h.ClearImage)
		drafts.POST("/:id/save", h.SaveDraft)

		// analysis triggers cost an external call each; throttle them
		analyze := drafts.Group("")
		if h.rateLimiter != nil {
			analyze.Use(h.rateLimiter.RateLimitMiddleware())
		}
		analyze.POST("/:id/image", h.AttachImage)
		analyze.POST("/:id/recalculate", h.Recalculate)
	}

	meals := router.Group("/meals")
	meals.Use(middleware.AuthMiddleware(h.authService))
	{
		meals.GET("", h.ListMeals)
		meals.GET("/summary", h.DailySummary)
	}
}
