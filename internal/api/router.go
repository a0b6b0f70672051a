package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"vendzz/internal/admission"
	"vendzz/internal/logger"
	"vendzz/pkg/health"
	"vendzz/pkg/middleware"
	"vendzz/pkg/tracing"
)

type RouterOptions struct {
	ServiceName string
	Tracing     bool
	// Admission is nil when admission control is disabled.
	Admission *admission.Policy
	Health    *health.CheckerRegistry
}

func NewRouter(h *Handler, opts RouterOptions, log logger.Logger) *gin.Engine {
	router := gin.New()

	if opts.Tracing {
		router.Use(tracing.GinMiddleware(opts.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	router.GET("/health", healthHandler(opts.Health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes := router.Group("")
	if opts.Admission != nil {
		routes.Use(opts.Admission.Middleware())
	}
	h.RegisterRoutes(routes)

	return router
}

func healthHandler(registry *health.CheckerRegistry) gin.HandlerFunc {
	if registry == nil {
		registry = health.NewCheckerRegistry()
	}
	return func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}
