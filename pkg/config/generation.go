// Package config provides configuration loading for the generation pipeline.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/generation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Generation holds the tunables of the generation pipeline.
type Generation struct {
	Orchestrator generation.Config `yaml:"orchestrator"`
	Retrieval    Retrieval         `yaml:"retrieval"`
	LLM          LLM               `yaml:"llm"`
}

// Retrieval configures the weighted search stages.
type Retrieval struct {
	Stages  []retrieval.Stage `yaml:"stages"  validate:"min=1,dive"`
	Timeout time.Duration     `yaml:"timeout" validate:"gte=0"`
}

// LLM configures the text generator.
type LLM struct {
	Temperature       float32 `yaml:"temperature"         validate:"gte=0,lte=2"`
	MaxTokens         int     `yaml:"max_tokens"          validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// DefaultGeneration returns the built-in tunables.
func DefaultGeneration() Generation {
	return Generation{
		Orchestrator: generation.DefaultConfig(),
		Retrieval: Retrieval{
			Stages:  retrieval.DefaultStages(),
			Timeout: retrieval.DefaultTimeout,
		},
		LLM: LLM{
			Temperature:       0.2,
			MaxTokens:         8192,
			RequestsPerSecond: 2,
		},
	}
}

// LoadGeneration reads a YAML file over the defaults. An empty path returns
// the defaults. Keys missing from the file keep their default values.
func LoadGeneration(path string) (Generation, error) {
	cfg := DefaultGeneration()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Generation{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Generation{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Generation{}, err
	}

	return cfg, nil
}

func (g Generation) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("invalid generation config: %w", err)
	}

	return nil
}
