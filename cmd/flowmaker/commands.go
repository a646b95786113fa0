package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/cmd"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/complexity"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/log"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/memory"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	"github.com/urfave/cli/v3"
)

func runAnalyze(_ context.Context, command *cli.Command) error {
	request, err := requestArg(command)
	if err != nil {
		return err
	}

	analysis := complexity.Analyze(request)

	return writeJSON(command.Root().Writer, map[string]any{
		"analysis":     analysis,
		"requirements": complexity.Seed(request, analysis).Map(),
	})
}

func runGenerate(ctx context.Context, command *cli.Command) error {
	request, err := requestArg(command)
	if err != nil {
		return err
	}

	service, err := newService(ctx, command)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, command.Duration("generation-timeout"))
	defer cancel()

	_, result, err := service.GenerateDirect(ctx, request)
	if err != nil {
		return err
	}

	return writeResult(command, result)
}

func runChat(ctx context.Context, command *cli.Command) error {
	service, err := newService(ctx, command)
	if err != nil {
		return err
	}

	root := command.Root()
	c := newChat(service, root.Reader, root.Writer)

	request := ""
	if command.Args().Present() {
		request, _ = requestArg(command)
	}

	result, err := c.Run(ctx, request, command.Duration("generation-timeout"))
	if err != nil || result == nil {
		return err
	}

	return writeResult(command, result)
}

// newService wires a conversation service over an in-memory session store.
func newService(ctx context.Context, command *cli.Command) (*services.Conversation, error) {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("cli")

	pipelineConfig, err := cmd.PipelineConfigFromCommand(command)
	if err != nil {
		return nil, err
	}

	reg, lib, err := cmd.NewCatalogs(logger, command.String("node-catalog"), command.String("pattern-library"))
	if err != nil {
		return nil, err
	}

	orchestrator, err := cmd.NewPipeline(ctx, logger, reg, lib, pipelineConfig)
	if err != nil {
		return nil, err
	}

	engine := conversation.NewEngine(orchestrator, log.WithModule("conversation"))

	return services.NewConversation(engine, memory.NewPersistence(), logger), nil
}

// writeResult sends the workflow to --out or stdout and the explanation to stderr.
func writeResult(command *cli.Command, result *models.GenerationResult) error {
	root := command.Root()

	data, err := n8n.Marshal(result.Draft)
	if err != nil {
		return err
	}

	if out := command.String("out"); out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write workflow: %w", err)
		}

		fmt.Fprintf(root.ErrWriter, "Workflow written to %s\n", out)
	} else if _, err := fmt.Fprintln(root.Writer, string(data)); err != nil {
		return err
	}

	fmt.Fprintln(root.ErrWriter, result.Explanation)

	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}
