// Package handlers adapts the nutrition services to gin HTTP handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/analysis"
	"github.com/mamadbah2/nutritrack/internal/service/profile"
	"github.com/mamadbah2/nutritrack/internal/service/quota"
	"github.com/mamadbah2/nutritrack/internal/service/records"
	"github.com/mamadbah2/nutritrack/internal/service/reporting"
	"github.com/mamadbah2/nutritrack/pkg/clients/anthropic"
)

// Services bundles the collaborators the HTTP layer needs. Analysis and Sessions may
// be nil when AI analysis is not configured.
type Services struct {
	Records  *records.Store
	Profiles *profile.Service
	Quota    *quota.Tracker
	Analysis *analysis.Service
	Sessions *analysis.Sessions
	Reports  *reporting.Service
	Now      func() time.Time
}

// Handler serves the user-facing API.
type Handler struct {
	svc    Services
	logger *zap.Logger
}

// NewHandler constructs the HTTP handler adapter.
func NewHandler(svc Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc.Now == nil {
		svc.Now = time.Now
	}
	return &Handler{svc: svc, logger: logger}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) userStore(c *gin.Context) (*records.Store, bool) {
	store, err := h.svc.Records.ForUser(c.Param("userID"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return store, true
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func parseIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError("index", "must be an integer, got %q", raw)
	}
	return index, nil
}

// errorResponse maps the error taxonomy onto a status code and JSON body.
func errorResponse(err error) (int, gin.H) {
	var (
		verr *models.ValidationError
		qerr *models.QuotaExceededError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field}
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.As(err, &qerr):
		return http.StatusPaymentRequired, gin.H{
			"error":     "quota_exceeded",
			"message":   qerr.Error(),
			"plan":      qerr.Plan,
			"remaining": 0,
			"resets_at": qerr.ResetsAt,
		}
	case errors.Is(err, models.ErrInconsistentState), errors.Is(err, analysis.ErrNotRetryable):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, analysis.ErrMessageNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, anthropic.ErrNoFoods):
		return http.StatusUnprocessableEntity, gin.H{"error": err.Error()}
	case errors.Is(err, analysis.ErrDisabled), errors.Is(err, reporting.ErrExportDisabled):
		return http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": false}
	case errors.Is(err, models.ErrStorage):
		return http.StatusServiceUnavailable, gin.H{"error": "storage unavailable", "retryable": true}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal error"}
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	h.logError(c, status, err)
	c.JSON(status, body)
}

func (h *Handler) logError(c *gin.Context, status int, err error) {
	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("user_id", c.Param("userID")),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
		return
	}
	h.logger.Warn("request rejected", fields...)
}
