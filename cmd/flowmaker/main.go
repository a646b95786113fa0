// Package main provides the flowmaker command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/cmd"
	"github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowmaker",
		Usage:                 "Turn plain-language requests into importable n8n workflows",
		EnableShellCompletion: true,
		Flags:                 cmd.PipelineFlags(),
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Aliases:   []string{"a"},
				Usage:     "Score the complexity of a request",
				ArgsUsage: "<request>",
				Action:    runAnalyze,
			},
			{
				Name:      "generate",
				Aliases:   []string{"g"},
				Usage:     "Generate a workflow without any dialogue",
				ArgsUsage: "<request>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the workflow JSON to this file instead of stdout",
					},
				},
				Action: runGenerate,
			},
			{
				Name:      "chat",
				Aliases:   []string{"c"},
				Usage:     "Answer clarifying questions, then generate",
				ArgsUsage: "[request]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the workflow JSON to this file instead of stdout",
					},
				},
				Action: runChat,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func requestArg(command *cli.Command) (string, error) {
	request := strings.TrimSpace(strings.Join(command.Args().Slice(), " "))
	if request == "" {
		return "", fmt.Errorf("%s: a request is required", command.Name)
	}

	return request, nil
}
