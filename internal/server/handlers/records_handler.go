package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/progress"
)

type mealRequest struct {
	Type      models.MealType    `json:"type"`
	Foods     []models.FoodEntry `json:"foods"`
	CreatedAt *time.Time         `json:"created_at"`
}

// meal builds a validated meal; entries without a source are manual.
func (r mealRequest) meal(now time.Time) (models.Meal, error) {
	foods := make([]models.FoodEntry, len(r.Foods))
	for i, f := range r.Foods {
		if f.Source == "" {
			f.Source = models.SourceManual
		}
		foods[i] = f
	}
	createdAt := now
	if r.CreatedAt != nil {
		createdAt = *r.CreatedAt
	}
	return models.NewMeal(r.Type, foods, createdAt)
}

// LogMeal appends a meal. With created_at the meal lands on the food day of that
// instant, otherwise on today.
func (h *Handler) LogMeal(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	var req mealRequest
	if !h.bindJSON(c, &req) {
		return
	}
	meal, err := req.meal(h.svc.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}

	var record models.DailyIntakeRecord
	if req.CreatedAt != nil {
		record, err = store.ImportMeal(c.Request.Context(), meal)
	} else {
		record, err = store.AppendMeal(c.Request.Context(), meal)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// Today returns the current food day's record, rolling the day over first if needed.
func (h *Handler) Today(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	record, err := store.ReadToday(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Day returns the record of a given food day.
func (h *Handler) Day(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	record, err := store.ReadDay(c.Request.Context(), c.Param("day"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// EditMeal replaces a meal. An unknown index leaves the day untouched and reports changed=false.
func (h *Handler) EditMeal(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	index, err := parseIndex(c.Param("index"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req mealRequest
	if !h.bindJSON(c, &req) {
		return
	}
	meal, err := req.meal(h.svc.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	day := c.Param("day")
	changed, err := store.EditMeal(ctx, day, index, meal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	record, err := store.ReadDay(ctx, day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "record": record})
}

// DeleteMeal removes a meal. An unknown index is a no-op.
func (h *Handler) DeleteMeal(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	index, err := parseIndex(c.Param("index"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	day := c.Param("day")
	changed, err := store.DeleteMeal(ctx, day, index)
	if err != nil {
		h.respondError(c, err)
		return
	}
	record, err := store.ReadDay(ctx, day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "record": record})
}

// Summary returns the stored summary of a day after checking it against the record.
func (h *Handler) Summary(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	day := c.Param("day")
	if err := store.VerifyDay(ctx, day); err != nil {
		h.respondError(c, err)
		return
	}
	summary, err := store.ReadSummary(ctx, day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Repair re-derives a day's summary from its record.
func (h *Handler) Repair(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	summary, err := store.RepairSummary(c.Request.Context(), c.Param("day"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Progress evaluates a day's totals against the user's targets.
func (h *Handler) Progress(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	targets, err := h.svc.Profiles.Targets(ctx, c.Param("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	record, err := store.ReadDay(ctx, c.Param("day"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day":      record.Day,
		"totals":   record.Totals,
		"targets":  targets,
		"progress": progress.Evaluate(record.Totals, targets),
	})
}

// Summaries lists the summaries between the from and to query days.
func (h *Handler) Summaries(c *gin.Context) {
	store, ok := h.userStore(c)
	if !ok {
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		h.respondError(c, models.NewValidationError("from", "from and to are required"))
		return
	}
	summaries, err := store.Summaries(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "summaries": summaries})
}
