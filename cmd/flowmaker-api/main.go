package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/cmd"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/generation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/log"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/otelhelper"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "session-store-url",
			Usage:   "Session store URL (memory://, file://dir, redis://, postgres://)",
			Value:   "file://./data",
			Sources: cli.EnvVars("SESSION_STORE_URL"),
		},
		&cli.DurationFlag{
			Name:    "session-ttl",
			Usage:   "Expiry of idle sessions (0 keeps them)",
			Sources: cli.EnvVars("SESSION_TTL"),
		},
		&cli.StringFlag{
			Name:    "session-sweep",
			Usage:   "Cron schedule of the idle session sweep",
			Value:   "@every 10m",
			Sources: cli.EnvVars("SESSION_SWEEP_SCHEDULE"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}

	command := &cli.Command{
		Name:                  "flowmaker-api",
		Usage:                 "Serve the n8n workflow generation API",
		EnableShellCompletion: true,
		Flags:                 append(flags, cmd.PipelineFlags()...),
		Action:                run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing flow maker API")

	pipelineConfig, err := cmd.PipelineConfigFromCommand(command)
	if err != nil {
		return err
	}

	pipelineConfig.Metrics = metrics.New()
	pipelineConfig.Tracer = otelhelper.Noop()

	if command.Bool("tracing") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, "flowmaker-api")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to flush traces", "error", err)
			}
		}()

		pipelineConfig.Tracer = tracer
	}

	reg, lib, err := cmd.NewCatalogs(logger, command.String("node-catalog"), command.String("pattern-library"))
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("session-store-url"), command.Duration("session-ttl"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	if err := NewAudit(logger).setupEventSubscriptions(eventBus); err != nil {
		return err
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	orchestrator, err := cmd.NewPipeline(ctx, logger, reg, lib, pipelineConfig, generation.WithPublisher(eventBus))
	if err != nil {
		return err
	}

	engine := conversation.NewEngine(orchestrator, log.WithModule("conversation"))
	conversationService := services.NewConversation(engine, persistence, logger,
		services.WithPublisher(eventBus),
		services.WithMetrics(pipelineConfig.Metrics),
		services.WithTracer(pipelineConfig.Tracer),
	)

	if ttl := command.Duration("session-ttl"); ttl > 0 {
		janitor, err := services.NewJanitor(conversationService, command.String("session-sweep"), ttl, logger)
		if err != nil {
			return err
		}

		if err := janitor.Start(ctx); err != nil {
			return err
		}

		defer janitor.Stop()
	}

	api := NewAPI(logger, conversationService, reg, lib, pipelineConfig.Metrics, command.Duration("generation-timeout"))

	return api.Start(ctx, command.Int("port"))
}
