// Package router wires the tutor HTTP routes.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/tutor-x/internal/pkg/middleware"
	"github.com/kart-io/tutor-x/internal/tutor/handler"
	httpopts "github.com/kart-io/tutor-x/pkg/options/http"
)

// HealthCheck 依赖健康检查。
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewEngine creates a gin engine with the standard middleware chain.
func NewEngine(opts *httpopts.Options) *gin.Engine {
	gin.SetMode(opts.Mode)
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger("/healthz", "/metrics"),
		middleware.Recovery(),
		middleware.BodyLimit(opts.MaxUploadSize),
	)
	engine.MaxMultipartMemory = opts.MaxUploadSize
	return engine
}

// Register registers the tutor routes, /healthz and /metrics.
func Register(engine *gin.Engine, h *handler.TutorHandler, gatherer prometheus.Gatherer, checks ...HealthCheck) {
	logger.Info("Registering tutor routes...")

	engine.GET("/healthz", health(checks))
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/v1")
	{
		v1.POST("/uploads", h.Upload)
		v1.POST("/chat", h.Chat)
		v1.POST("/questions", h.Questions)

		papers := v1.Group("/papers")
		{
			papers.GET("", h.ListPapers)
			papers.POST("", h.CreatePaper)
			papers.GET("/:id", h.GetPaper)
		}

		weeks := v1.Group("/weeks")
		{
			weeks.GET("/:id", h.GetWeek)
			weeks.GET("/:id/notation", h.ListNotation)
			weeks.GET("/:id/events", h.WeekEvents)
		}

		v1.POST("/documents/:id/reingest", h.Reingest)
	}

	logger.Info("HTTP routes registered")
}

func health(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				results[hc.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[hc.Name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
