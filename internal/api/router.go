package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	corsMaxAge          = 12 * time.Hour
)

// Router wires the HTTP surface of the service.
type Router struct {
	handlers *Handlers
	registry *prometheus.Registry
	debug    bool
}

// NewRouter creates a new API router. registry may be nil to disable
// the metrics endpoint.
func NewRouter(handlers *Handlers, registry *prometheus.Registry, debug bool) *Router {
	return &Router{
		handlers: handlers,
		registry: registry,
		debug:    debug,
	}
}

// Engine builds the gin engine with all routes registered.
func (r *Router) Engine() *gin.Engine {
	if !r.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/health", r.handlers.Health)
	if r.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/generate", r.handlers.Generate)
		v1.POST("/publish", r.handlers.Publish)
		v1.POST("/stop", r.handlers.Stop)
		v1.GET("/items", r.handlers.ListItems)
		v1.GET("/items/:id", r.handlers.GetItem)
		v1.GET("/stats", r.handlers.GetStats)
		v1.GET("/history/recent", r.handlers.GetRecentRuns)
	}

	return engine
}

// NewServer builds an http.Server around the engine.
func (r *Router) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
}

// corsOrigins returns the allowed CORS origins, overridable through a
// comma-separated CORS_ORIGINS environment variable.
func corsOrigins() []string {
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins := strings.Split(env, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}
	return []string{"http://localhost:3000"}
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: corsOrigins(),
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			"Authorization", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}
