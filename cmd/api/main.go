package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/swiss-cv-analyser/internal/config"
	"alfredoptarigan/swiss-cv-analyser/internal/handlers"
	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
	"alfredoptarigan/swiss-cv-analyser/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	config.InitLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}
	log.Info().Msg("✅ Config loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize database")
	}

	analysisRepo := repositories.NewAnalysisRepository(db)
	log.Info().Msg("✅ Repositories initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(services.GeminiOptions{
		APIKey:          cfg.Gemini.APIKey,
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize Gemini AI")
	}

	resolver := services.NewModelResolver(geminiService, cfg.Gemini.ModelCandidates, cfg.Gemini.DefaultModel)
	generationClient := services.NewGenerationClient(geminiService, resolver, services.RetryPolicy{
		MaxAttempts: cfg.Generation.MaxAttempts,
		Backoff:     cfg.Generation.Backoff,
		MinInterval: cfg.Generation.MinInterval,
	})
	log.Info().Str("model", resolver.Resolve(ctx)).Msg("✅ Gemini AI initialized successfully")

	// Reference standards are optional
	var standards services.StandardsRetriever
	if cfg.Qdrant.URL != "" {
		referenceIndex, err := services.NewReferenceIndex(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to initialize Qdrant")
		}
		if err := referenceIndex.EnsureCollection(ctx); err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to initialize Qdrant collection")
		}
		standards = services.NewStandardsRetriever(geminiService, referenceIndex)
		log.Info().Msg("✅ Qdrant initialized successfully")
	} else {
		log.Info().Msg("ℹ️ QDRANT_URL not set, using built-in industry standard")
	}

	analyser := services.NewAnalyser(
		generationClient,
		services.NewPromptBuilder(cfg.Generation.CVCharBudget, cfg.Generation.JDCharBudget),
		standards,
	)

	// Report storage
	var store services.ReportStore
	if cfg.Export.S3.Enabled() {
		store, err = services.NewS3ReportStore(ctx, services.S3Options{
			Bucket:    cfg.Export.S3.Bucket,
			Region:    cfg.Export.S3.Region,
			Endpoint:  cfg.Export.S3.Endpoint,
			AccessKey: cfg.Export.S3.AccessKey,
			SecretKey: cfg.Export.S3.SecretKey,
		})
	} else {
		store, err = services.NewLocalReportStore(cfg.Export.Path)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize report storage")
	}

	notifier := services.NewNoopNotifier()
	if cfg.RabbitMQ.URL != "" {
		notifier, err = services.NewAMQPNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to connect to RabbitMQ")
		}
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("✅ RabbitMQ notifier initialized")
	}
	defer notifier.Close()

	runner := services.NewAnalysisRunner(
		analysisRepo,
		analyser,
		services.NewReportExporter(),
		store,
		notifier,
	)

	// Initialize worker
	worker := services.NewWorker(
		analysisRepo,
		runner,
		cfg.Worker.Concurrency,
		cfg.Worker.PollInterval,
	)
	worker.Start(ctx)
	log.Info().Msg("✅ Worker started successfully")

	// Initialize Handlers
	analysisHandler := handlers.NewAnalysisHandler(
		analysisRepo,
		services.NewDocumentParser(),
		worker,
		cfg.Storage.MaxFileSize,
	)
	resultHandler := handlers.NewResultHandler(analysisRepo, store)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Swiss CV Analyser API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// CV and job description share one multipart body
		BodyLimit:    int(2*cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Routes
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	analyses := api.Group("/analyses", handlers.NewAccessGuard(cfg.Server.AccessPassword))
	analyses.Post("/", analysisHandler.HandleCreate)
	analyses.Get("/:id", resultHandler.HandleGetResult)
	analyses.Get("/:id/export", resultHandler.HandleExport)
	analyses.Delete("/:id", analysisHandler.HandleCancel)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Swiss CV Analyser API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/analyses",
				"GET /api/v1/analyses/:id",
				"GET /api/v1/analyses/:id/export",
				"DELETE /api/v1/analyses/:id",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("🛑 Shutting down server...")
		worker.Stop()
		cancel()
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("❌ Server forced to shutdown")
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("🚀 Server starting")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start server")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ Unhandled error")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
