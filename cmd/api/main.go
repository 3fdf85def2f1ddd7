package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/api/handlers"
	"github.com/docmind/backend/internal/cache"
	redisstore "github.com/docmind/backend/internal/cache/redis"
	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/ingest"
	"github.com/docmind/backend/internal/llm"
	"github.com/docmind/backend/internal/metrics"
	"github.com/docmind/backend/internal/middleware/ratelimit"
	"github.com/docmind/backend/internal/middleware/security"
	"github.com/docmind/backend/internal/middleware/validation"
	"github.com/docmind/backend/internal/query"
	"github.com/docmind/backend/internal/retrieval"
	"github.com/docmind/backend/internal/storage/sqlite"
	"github.com/docmind/backend/internal/vector/milvus"
	"github.com/docmind/backend/pkg/config"
	applogger "github.com/docmind/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := applogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer applogger.Sync()

	applogger.Info("Starting DocMind API server")

	metrics.Init()

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		applogger.Fatal("Failed to open SQLite database", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		applogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	vectorClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		applogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer vectorClient.Close()

	if err := vectorClient.EnsureCollection(context.Background()); err != nil {
		applogger.Fatal("Failed to ensure vector collection", zap.Error(err))
	}

	// The shared cache tier is optional; without Redis the answer cache
	// runs memory-only.
	var store cache.Store
	redisClient, err := redisstore.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		applogger.Warn("Redis unavailable, answer cache is memory-only", zap.Error(err))
	} else {
		store = redisClient
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		time.Duration(cfg.LLM.GenerateTimeoutSec)*time.Second,
	)

	classifier := classify.New(llmClient, time.Duration(cfg.LLM.ClassifyTimeoutSec)*time.Second)

	retriever := retrieval.NewRetriever(llmClient, vectorClient, retrieval.Config{
		Threshold:     cfg.Retrieval.Threshold,
		ListThreshold: cfg.Retrieval.ListThreshold,
		TopK:          cfg.Retrieval.TopK,
		ScopedTopK:    cfg.Retrieval.ScopedTopK,
		MaxSources:    cfg.Retrieval.MaxSources,
	})

	answers := cache.New[query.AnswerResult](store, cfg.Cache.MemorySize, time.Duration(cfg.Cache.TTLSec)*time.Second)

	engine := query.NewEngine(classifier, retriever, llmClient, db, db, db, answers)

	processor := ingest.NewProcessor(db, vectorClient, llmClient, answers)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(security.Headers(security.HeadersConfig{}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(limiter.Middleware())

	queryHandler := handlers.NewQueryHandler(engine, db)
	wsHandler := handlers.NewWebSocketHandler(engine, db, time.Duration(cfg.Stream.HeartbeatSec)*time.Second)
	documentHandler := handlers.NewDocumentHandler(processor)

	api := app.Group("/api/v1")

	api.Post("/query", validation.Middleware(validation.Config{}), queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	applogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			applogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	applogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	applogger.Info("Server stopped")
}
