package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. The WhatsApp webhook
// is only mounted when webhook is not nil.
func New(handler *handlers.Handler, webhook *handlers.WebhookHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.MaxMultipartMemory = handlers.MaxPhotoBytes

	r.GET("/healthz", handler.Health)

	if webhook != nil {
		r.GET("/webhooks/whatsapp", webhook.Verify)
		r.POST("/webhooks/whatsapp", webhook.Receive)
	}

	user := r.Group("/users/:userID")
	{
		user.PUT("/profile", handler.SaveProfile)
		user.GET("/profile", handler.GetProfile)

		user.POST("/meals", handler.LogMeal)
		user.GET("/today", handler.Today)
		user.GET("/summaries", handler.Summaries)

		day := user.Group("/days/:day")
		day.GET("", handler.Day)
		day.PUT("/meals/:index", handler.EditMeal)
		day.DELETE("/meals/:index", handler.DeleteMeal)
		day.GET("/summary", handler.Summary)
		day.GET("/progress", handler.Progress)
		day.POST("/repair", handler.Repair)

		user.GET("/reports/weekly", handler.WeeklyReport)
		user.GET("/reports/monthly", handler.MonthlyReport)

		user.GET("/quota", handler.Quota)
		user.PUT("/plan", handler.SetPlan)

		user.POST("/analysis/text", handler.AnalyzeText)
		user.POST("/analysis/photo", handler.AnalyzePhoto)
		user.POST("/analysis/log", handler.LogAnalysis)

		user.GET("/chat", handler.ChatHistory)
		user.POST("/chat", handler.SendChat)
		user.POST("/chat/:messageID/retry", handler.RetryChat)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
