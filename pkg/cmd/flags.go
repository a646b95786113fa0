package cmd

import (
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/config"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/llm"
	"github.com/urfave/cli/v3"
)

// PipelineFlags are the generation flags shared by every binary.
func PipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "llm-provider",
			Usage:   "Text generator (openai, blueprint)",
			Value:   "blueprint",
			Sources: cli.EnvVars("LLM_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "OpenAI API key",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "openai-model",
			Usage:   "Chat completion model",
			Value:   llm.DefaultModel,
			Sources: cli.EnvVars("OPENAI_MODEL"),
		},
		&cli.StringFlag{
			Name:    "openai-base-url",
			Usage:   "Base URL of an OpenAI compatible endpoint",
			Sources: cli.EnvVars("OPENAI_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    "weaviate-url",
			Usage:   "Weaviate URL for vector retrieval; empty uses in-memory search",
			Sources: cli.EnvVars("WEAVIATE_URL"),
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the generation tunables YAML file",
			Sources: cli.EnvVars("GENERATION_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "node-catalog",
			Usage:   "Path to a node catalog YAML file replacing the built-in one",
			Sources: cli.EnvVars("NODE_CATALOG"),
		},
		&cli.StringFlag{
			Name:    "pattern-library",
			Usage:   "Path to a pattern library YAML file replacing the built-in one",
			Sources: cli.EnvVars("PATTERN_LIBRARY"),
		},
		&cli.DurationFlag{
			Name:    "generation-timeout",
			Usage:   "Upper bound for one generation request",
			Value:   5 * time.Minute,
			Sources: cli.EnvVars("GENERATION_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// PipelineConfigFromCommand reads the shared flags. Metrics and tracer are
// left for the caller.
func PipelineConfigFromCommand(command *cli.Command) (PipelineConfig, error) {
	generation, err := config.LoadGeneration(command.String("config"))
	if err != nil {
		return PipelineConfig{}, err
	}

	return PipelineConfig{
		Provider: command.String("llm-provider"),
		OpenAI: llm.OpenAIConfig{
			APIKey:  command.String("openai-api-key"),
			BaseURL: command.String("openai-base-url"),
			Model:   command.String("openai-model"),
		},
		WeaviateURL: command.String("weaviate-url"),
		Generation:  generation,
	}, nil
}
