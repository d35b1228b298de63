package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/feedback-importer/config"
	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/job"
)

const (
	// Default TTL for stored uploads of finished batches
	DefaultFileTTL = 24 * time.Hour

	// Cleanup interval for old files
	CleanupInterval = 2 * time.Hour
)

// Server exposes the batch import API
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	manager *job.Manager
}

// New creates a new HTTP server instance
func New(cfg *config.Config, manager *job.Manager) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	server := &Server{
		cfg:     cfg,
		router:  router,
		manager: manager,
	}

	server.setupRoutes(router)
	return server
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {
	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", s.health)

	api := router.Group("/api/v1")
	api.GET("/health", s.health)
	api.Use(s.requireToken())
	{
		batches := api.Group("/batch-import")
		batches.GET("", s.listBatches)
		batches.POST("/upload", s.upload)
		batches.DELETE("/:id", s.cancelBatch)
		batches.GET("/:id/status", s.status)
		batches.GET("/:id/data-preview", s.dataPreview)
		batches.POST("/:id/build-prompt", s.buildPrompt)
		batches.PUT("/:id/update-prompt", s.updatePrompt)
		batches.GET("/:id/prompt-text", s.promptText)
		batches.POST("/:id/generate-mapping", s.generateMapping)
		batches.GET("/:id/mapping-preview", s.mappingPreview)
		batches.POST("/:id/confirm-mapping", s.confirmMapping)
		batches.GET("/:id/result-preview", s.resultPreview)

		api.POST("/pipeline/process", s.processPipeline)
	}
}

// Handler returns the router for use with httptest or a custom http.Server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{Addr: ":" + port, Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartCleanupWorker starts a background worker that removes stored uploads
// of batches finished more than DefaultFileTTL ago
func (s *Server) StartCleanupWorker(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.manager.PurgeFiles(ctx, time.Now().Add(-DefaultFileTTL)); err != nil {
					slog.Error("Cleanup failed", "error", err)
				}
			}
		}
	}()
	slog.Info("File cleanup worker started", "interval", CleanupInterval)
}

// requireToken rejects requests without the configured bearer token. An
// empty token disables the check.
func (s *Server) requireToken() gin.HandlerFunc {
	want := s.cfg.Server.Token
	return func(c *gin.Context) {
		if want == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.Abort()
			fail(c, http.StatusUnauthorized, domain.CodeUnauthorized, ErrUnauthorized.Error())
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
