package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/olvesh/airsportslivetracking/internal/auth"
	"github.com/olvesh/airsportslivetracking/internal/config"
	"github.com/olvesh/airsportslivetracking/internal/metrics"
	"github.com/olvesh/airsportslivetracking/internal/repository"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// Server HTTP сервер трансляции и операторского API
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	logger      *utils.Logger
	config      *config.Config
	live        repository.LiveRepository
	tasks       repository.TaskRepository
	restHandler *RESTHandler
	wsHandler   *WebSocketHandler
	authMW      *auth.Middleware
}

// NewServer создает новый HTTP сервер
func NewServer(cfg *config.Config, live repository.LiveRepository, tasks repository.TaskRepository,
	broadcast *BroadcastManager, authMW *auth.Middleware, logger *utils.Logger) *Server {

	// Production mode для Gin
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(metrics.HTTPMetricsMiddleware())

	server := &Server{
		router:      router,
		logger:      logger,
		config:      cfg,
		live:        live,
		tasks:       tasks,
		restHandler: NewRESTHandler(live, tasks, logger),
		wsHandler:   NewWebSocketHandler(broadcast),
		authMW:      authMW,
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API v1 группа
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/competitors", s.restHandler.GetCompetitors)
		v1.GET("/competitors/:id", s.restHandler.GetCompetitor)
		v1.GET("/competitors/:id/score", s.restHandler.GetScoreLog)
		v1.GET("/competitors/:id/annotations", s.restHandler.GetAnnotations)
		v1.GET("/competitors/:id/gates", s.restHandler.GetGateCrossings)
		v1.GET("/competitors/:id/route", s.restHandler.GetRoute)
		v1.GET("/competitors/:id/track", s.restHandler.GetTrack)

		// Операторские endpoints, требуют Bearer token и роль оператора
		protected := v1.Group("/")
		protected.Use(s.authMW.Authenticate())
		protected.Use(s.authMW.RequireOperator())
		{
			protected.POST("/competitors/:id/terminate", s.restHandler.PostTerminate)
		}
	}

	// WebSocket трансляция по задаче
	s.router.GET("/ws/v1/tracking/:task", s.wsHandler.HandleWebSocket)

	// Метрики Prometheus
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"address": s.config.Server.Address,
		"mode":    gin.Mode(),
	}).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown корректное завершение сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// healthCheck проверяет живость хранилищ
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	statusCode := http.StatusOK
	overall := "ok"
	redisStatus := "ok"
	mysqlStatus := "ok"

	if err := s.live.Ping(ctx); err != nil {
		redisStatus = err.Error()
		overall = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	if err := s.tasks.Ping(ctx); err != nil {
		mysqlStatus = err.Error()
		overall = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overall,
		"timestamp": time.Now().Unix(),
		"redis":     redisStatus,
		"mysql":     mysqlStatus,
	})
}

// ==================== Middleware ====================

// LoggerMiddleware логирование запросов
func LoggerMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	}
}

// CORSMiddleware настройка CORS
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // В production указать конкретные домены
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RateLimitMiddleware ограничение частоты запросов
func RateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(100), 200) // 100 req/sec, burst 200

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limit_exceeded",
				"message": "Too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware заголовки безопасности
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
