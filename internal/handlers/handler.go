package handlers

import (
	"net/http"
	"time"

	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services   *service.Service
	metrics    http.Handler
	wsInterval time.Duration
	log        *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// WithMetrics exposes m on GET /metrics.
func (h *Handler) WithMetrics(m http.Handler) *Handler {
	h.metrics = m
	return h
}

// WithStreamInterval sets the default /ws push interval.
func (h *Handler) WithStreamInterval(d time.Duration) *Handler {
	h.wsInterval = d
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live status stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		api.GET("/status", h.getStatus)
		api.GET("/state", h.getState)
		api.GET("/solar", h.getSolar)
		h.registerRelayRoutes(api)
		h.registerLogRoutes(api)
		api.GET("/weather/history", h.getWeatherHistory)
	}
}

func (h *Handler) registerRelayRoutes(api *gin.RouterGroup) {
	relays := api.Group("/relays")
	{
		relays.GET("", h.listRelays)
		// Body example: {"state":"ON"}
		relays.POST("/:channel", h.setRelay)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
