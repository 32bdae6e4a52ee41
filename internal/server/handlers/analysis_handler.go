package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/analysis"
)

// MaxPhotoBytes bounds uploaded meal photos.
const MaxPhotoBytes = 5 << 20

type textRequest struct {
	Text string `json:"text"`
}

type planRequest struct {
	Plan models.PlanID `json:"plan"`
}

type logAnalysisRequest struct {
	MealType models.MealType    `json:"meal_type"`
	Foods    []models.FoodEntry `json:"foods"`
}

// Quota returns the user's usage snapshot.
func (h *Handler) Quota(c *gin.Context) {
	snap, err := h.svc.Quota.Snapshot(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SetPlan moves the user to another plan.
func (h *Handler) SetPlan(c *gin.Context) {
	var req planRequest
	if !h.bindJSON(c, &req) {
		return
	}
	snap, err := h.svc.Quota.SetPlan(c.Request.Context(), c.Param("userID"), req.Plan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AnalyzeText runs a metered text analysis.
func (h *Handler) AnalyzeText(c *gin.Context) {
	if !h.analysisEnabled(c) {
		return
	}
	var req textRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.svc.Analysis.AnalyzeText(c.Request.Context(), c.Param("userID"), req.Text)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzePhoto runs a metered analysis of the multipart "image" upload.
func (h *Handler) AnalyzePhoto(c *gin.Context) {
	if !h.analysisEnabled(c) {
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		h.respondError(c, models.NewValidationError("image", "multipart field is required"))
		return
	}
	if header.Size > MaxPhotoBytes {
		h.respondError(c, models.NewValidationError("image", "must be at most %d bytes", MaxPhotoBytes))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, MaxPhotoBytes))
	if err != nil {
		h.respondError(c, err)
		return
	}
	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(image)
	}
	mediaType, _, _ = strings.Cut(mediaType, ";")

	result, err := h.svc.Analysis.AnalyzePhoto(c.Request.Context(), c.Param("userID"), image, mediaType)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// LogAnalysis stores analyzed foods as a meal of today. It is not metered.
func (h *Handler) LogAnalysis(c *gin.Context) {
	if h.svc.Analysis == nil {
		h.respondError(c, analysis.ErrDisabled)
		return
	}
	var req logAnalysisRequest
	if !h.bindJSON(c, &req) {
		return
	}
	record, err := h.svc.Analysis.LogAnalysis(c.Request.Context(), c.Param("userID"), req.MealType, req.Foods)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// SendChat posts a message to the user's analysis conversation.
func (h *Handler) SendChat(c *gin.Context) {
	if !h.analysisEnabled(c) || !h.chatEnabled(c) {
		return
	}
	var req textRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ex, err := h.svc.Sessions.Send(c.Request.Context(), c.Param("userID"), req.Text)
	h.respondExchange(c, ex, err)
}

// RetryChat re-sends a failed message.
func (h *Handler) RetryChat(c *gin.Context) {
	if !h.analysisEnabled(c) || !h.chatEnabled(c) {
		return
	}
	ex, err := h.svc.Sessions.Retry(c.Request.Context(), c.Param("userID"), c.Param("messageID"))
	h.respondExchange(c, ex, err)
}

// ChatHistory returns the user's conversation.
func (h *Handler) ChatHistory(c *gin.Context) {
	if !h.analysisEnabled(c) || !h.chatEnabled(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.svc.Sessions.History(c.Param("userID"))})
}

func (h *Handler) respondExchange(c *gin.Context, ex analysis.Exchange, err error) {
	if err == nil {
		c.JSON(http.StatusOK, ex)
		return
	}
	status, body := analysisErrorResponse(err)
	h.logError(c, status, err)
	if ex.Message.ID != "" {
		body["chat_message"] = ex.Message
	}
	c.JSON(status, body)
}

func (h *Handler) analysisEnabled(c *gin.Context) bool {
	if h.svc.Analysis == nil || !h.svc.Analysis.Enabled() {
		h.respondError(c, analysis.ErrDisabled)
		return false
	}
	return true
}

func (h *Handler) chatEnabled(c *gin.Context) bool {
	if h.svc.Sessions == nil {
		h.respondError(c, analysis.ErrDisabled)
		return false
	}
	return true
}

func (h *Handler) respondAnalysisError(c *gin.Context, err error) {
	status, body := analysisErrorResponse(err)
	h.logError(c, status, err)
	c.JSON(status, body)
}

// analysisErrorResponse treats unclassified failures as upstream analyzer errors.
func analysisErrorResponse(err error) (int, gin.H) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		return http.StatusBadGateway, gin.H{"error": "analysis failed", "retryable": true}
	}
	return status, body
}
