package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(wf *handlers.WorkflowHandler, queries *handlers.QueryHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		ops := api.Group("/operators/:id")
		ops.POST("/workflows", wf.Start)
		ops.POST("/workflows/input", wf.Input)
		ops.DELETE("/workflows", wf.Cancel)

		api.GET("/inventory", queries.ListInventory)
		api.GET("/inventory/:id/logs", queries.ItemLogs)
		api.GET("/daily", queries.DailyRange)
		api.GET("/daily/:date", queries.DailyByDate)
		api.GET("/flocks", queries.ListFlocks)
		api.GET("/flocks/:id/vaccinations", queries.FlockVaccinations)
		api.GET("/contacts", queries.ListContacts)
		api.GET("/ledger", queries.LedgerRange)
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
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
