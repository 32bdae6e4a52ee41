package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/reporting"
)

// SaveProfile stores the body metrics and returns the computed targets.
func (h *Handler) SaveProfile(c *gin.Context) {
	var metrics models.UserMetrics
	if !h.bindJSON(c, &metrics) {
		return
	}
	p, err := h.svc.Profiles.Save(c.Request.Context(), c.Param("userID"), metrics)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetProfile returns the stored profile.
func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.svc.Profiles.Get(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// WeeklyReport reports on the week containing ?day= (default today).
func (h *Handler) WeeklyReport(c *gin.Context) {
	day := c.Query("day")
	if day == "" {
		day = h.svc.Records.Resolver().Today()
	}
	report, err := h.svc.Reports.Weekly(c.Request.Context(), c.Param("userID"), day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondReport(c, report)
}

// MonthlyReport reports on ?month=YYYY-MM (default the current month).
func (h *Handler) MonthlyReport(c *gin.Context) {
	var (
		year  int
		month time.Month
		err   error
	)
	if raw := c.Query("month"); raw != "" {
		year, month, err = reporting.ParseMonth(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
	} else {
		today, err := foodday.ParseDay(h.svc.Records.Resolver().Today())
		if err != nil {
			h.respondError(c, err)
			return
		}
		year, month = today.Year(), today.Month()
	}

	report, err := h.svc.Reports.Monthly(c.Request.Context(), c.Param("userID"), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondReport(c, report)
}

// respondReport renders JSON, or plain text when ?format=text.
func (h *Handler) respondReport(c *gin.Context, report reporting.Report) {
	if c.Query("format") == "text" {
		c.String(http.StatusOK, reporting.Format(report))
		return
	}
	c.JSON(http.StatusOK, report)
}
