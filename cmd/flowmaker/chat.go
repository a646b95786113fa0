package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
)

const (
	commandGenerate = "/generate"
	commandQuit     = "/quit"
)

// chat drives the question dialogue over a line-oriented terminal.
type chat struct {
	service *services.Conversation
	in      *bufio.Scanner
	out     io.Writer
}

func newChat(service *services.Conversation, in io.Reader, out io.Writer) *chat {
	return &chat{service: service, in: bufio.NewScanner(in), out: out}
}

// Run asks for the request when it is empty, walks the questions and
// generates. A nil result means the user quit.
func (c *chat) Run(ctx context.Context, request string, timeout time.Duration) (*models.GenerationResult, error) {
	if request == "" {
		fmt.Fprint(c.out, "What should the workflow do?\n> ")

		line, ok := c.readLine()
		if !ok {
			return nil, nil
		}

		request = line
	}

	session, err := c.service.Start(ctx, request)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.out, "Complexity %d/10, %s route, %d questions. Type %s to generate now or %s to leave.\n",
		session.Analysis.Score, session.Analysis.Route, len(session.Questions), commandGenerate, commandQuit)

	force, quit, err := c.dialogue(ctx, session.ID)
	if err != nil || quit {
		return nil, err
	}

	fmt.Fprintln(c.out, "Generating...")

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	return c.service.Generate(ctx, session.ID, force)
}

func (c *chat) dialogue(ctx context.Context, sessionID string) (force, quit bool, err error) {
	for {
		status, err := c.service.Status(ctx, sessionID)
		if err != nil {
			return false, false, err
		}

		q := status.NextQuestion
		if q == nil {
			return status.Phase != models.PhaseReady, false, nil
		}

		c.ask(q, status.Progress)

		line, ok := c.readLine()
		if !ok || line == commandGenerate {
			return true, false, nil
		}

		if line == commandQuit {
			return false, true, nil
		}

		_, err = c.service.Answer(ctx, sessionID, q.ID, choices(q, line))
		if services.IsValidationError(err) {
			fmt.Fprintf(c.out, "  %v\n", err)

			continue
		}

		if err != nil {
			return false, false, err
		}
	}
}

func (c *chat) ask(q *models.Question, progress models.Progress) {
	fmt.Fprintf(c.out, "\n[%d/%d] %s\n", progress.Answered+1, progress.Total, q.Prompt)

	for i, option := range q.Options {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, option)
	}

	if q.MultiSelect {
		fmt.Fprintln(c.out, "  (several numbers separated by commas are fine)")
	}

	fmt.Fprint(c.out, "> ")
}

func (c *chat) readLine() (string, bool) {
	for c.in.Scan() {
		if line := strings.TrimSpace(c.in.Text()); line != "" {
			return line, true
		}
	}

	return "", false
}

// choices maps option numbers to option text. Anything else is a free-text answer.
func choices(q *models.Question, line string) []string {
	if len(q.Options) == 0 {
		return []string{line}
	}

	parts := strings.Split(line, ",")
	values := make([]string, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(q.Options) {
			return []string{line}
		}

		values = append(values, q.Options[n-1])
	}

	return values
}
