package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiaodingfeng/contract-review/config"
	"github.com/xiaodingfeng/contract-review/handler"
	"github.com/xiaodingfeng/contract-review/llm"
	"github.com/xiaodingfeng/contract-review/middleware"
	"github.com/xiaodingfeng/contract-review/pkg/logger"
	"github.com/xiaodingfeng/contract-review/service"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "ai_provider", cfg.AI.Provider)

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		slog.Error("failed to create upload directory", "error", err)
		os.Exit(1)
	}

	store, err := service.NewStore(cfg.Storage.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	editorSvc, err := service.NewEditorService(cfg.Server.BaseURL, cfg.Editor.JWTSecret, cfg.Editor.Lang)
	if err != nil {
		slog.Error("failed to initialize editor service", "error", err)
		os.Exit(1)
	}

	provider, err := llm.New(&cfg.AI)
	if err != nil {
		slog.Error("failed to initialize AI provider", "error", err)
		os.Exit(1)
	}

	// Document downloads come from the editor on the local network; they
	// do not share the AI call budget.
	fileSync := service.NewFileSync(30, 2)
	reviewSvc := service.NewReviewService(store, provider)

	contractHandler := handler.NewContractHandler(store, editorSvc, cfg.Storage.UploadDir)
	callbackHandler := handler.NewCallbackHandler(store, fileSync)
	analysisHandler := handler.NewAnalysisHandler(store, reviewSvc)
	userHandler := handler.NewUserHandler(store)
	qaHandler := handler.NewQAHandler(store, provider)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(100, time.Minute))

	// The editor container downloads document content from here; the
	// URLs inside signed editor configs point at this route.
	router.Static("/uploads", cfg.Storage.UploadDir)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/contracts/upload", contractHandler.Upload)
		api.POST("/contracts/save-callback", callbackHandler.HandleSaveCallback)
		api.POST("/contracts/pre-analyze", analysisHandler.PreAnalyze)
		api.POST("/contracts/analyze", analysisHandler.Analyze)
		api.GET("/contracts", contractHandler.List)
		api.GET("/contracts/:id", contractHandler.Get)
		api.DELETE("/contracts/:id", contractHandler.Delete)

		api.POST("/users/identify", userHandler.Identify)
		api.GET("/users/:userId/history", userHandler.History)

		api.POST("/qa/ask", qaHandler.Ask)
		api.GET("/qa/history", qaHandler.History)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "base_url", cfg.Server.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers for the browser frontend
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
