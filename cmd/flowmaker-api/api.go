// Package main provides the flow maker API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type API struct {
	logger            *slog.Logger
	conversation      *services.Conversation
	registry          *registry.Registry
	library           *patterns.Library
	metrics           *metrics.Metrics
	validate          *validator.Validate
	generationTimeout time.Duration
}

func NewAPI(
	logger *slog.Logger,
	conversation *services.Conversation,
	registry *registry.Registry,
	library *patterns.Library,
	metrics *metrics.Metrics,
	generationTimeout time.Duration,
) *API {
	return &API{
		logger:            logger,
		conversation:      conversation,
		registry:          registry,
		library:           library,
		metrics:           metrics,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		generationTimeout: generationTimeout,
	}
}

func (a *API) App() *fiber.App {
	validationService := services.NewValidation(a.registry)

	handlers := web.NewAPIHandlers(
		a.conversation,
		validationService,
		a.validate,
		a.registry,
		a.library,
		web.WithGenerationTimeout(a.generationTimeout),
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("n8n Flow Maker API")
	})

	conv := app.Group("/conversations")
	conv.Post("/", handlers.StartConversation)
	conv.Get("/:id", handlers.GetConversation)
	conv.Delete("/:id", handlers.DeleteConversation)
	conv.Post("/:id/answers", handlers.AnswerQuestion)
	conv.Post("/:id/generate", handlers.GenerateConversation)
	conv.Get("/:id/summary", handlers.GetSummary)

	app.Post("/generate", handlers.GenerateDirect)
	app.Post("/validate", handlers.ValidateWorkflow)
	app.Post("/analyze", handlers.Analyze)

	catalog := app.Group("/catalog")
	catalog.Get("/nodes", handlers.GetNodes)
	catalog.Get("/nodes/:kind", handlers.GetNode)
	catalog.Get("/patterns", handlers.GetPatterns)

	app.Get("/health", handlers.HealthCheck)

	if a.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	return app
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	a.logger.InfoContext(ctx, "Listening", "port", port)

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{
		DisableStartupMessage: true,
		GracefulContext:       ctx,
	})
}
