package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"FinanceFlow/internal/http/handler"
	"FinanceFlow/internal/http/middleware"
)

type RouterConfig struct {
	ServiceName string
	Tracing     bool
	Logger      *slog.Logger
	CORSOrigins []string
}

// New builds the engine with middleware and all routes.
func New(news *handler.NewsHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// otel span first so recovery and request logs carry the trace context
	if cfg.Tracing {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	// preflights never match a route, so CORS has to be engine-wide
	if cors := middleware.CORS(cfg.CORSOrigins); cors != nil {
		router.Use(cors)
	}

	SetupRoutes(router, news)
	return router
}

func SetupRoutes(router *gin.Engine, news *handler.NewsHandler) {
	router.GET("/healthz", news.Health)

	api := router.Group("/api")
	NewsRouter(api, news)
}

func NewsRouter(router *gin.RouterGroup, h *handler.NewsHandler) {
	router.GET("/news", h.List)
	router.POST("/news/invalidate", h.Invalidate)
	router.POST("/ask", h.Ask)
	router.GET("/daily-brief", h.DailyBrief)
}
