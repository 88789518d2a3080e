package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jkim999/primary-care-consultant/internal/consultation"
	model "github.com/jkim999/primary-care-consultant/pkg/consultation"
)

const historyLimit = 5

// console is the interactive loop: it takes complaints, runs consultations and handles
// the top level commands
type console struct {
	orchestrator *consultation.Orchestrator
	history      model.HistoryReader
	lines        <-chan string
	done         chan struct{}
	ui           *ui

	started time.Time
	count   int
	now     func() time.Time
}

func newConsole(orchestrator *consultation.Orchestrator, history model.HistoryReader, in io.Reader, out io.Writer) *console {
	done := make(chan struct{})
	return &console{
		orchestrator: orchestrator,
		history:      history,
		lines:        scanLines(in, done),
		done:         done,
		ui:           newUI(out),
		started:      time.Now(),
		now:          time.Now,
	}
}

// scanLines reads in on its own goroutine so a blocked read never outlives a cancelled context.
// The goroutine stops once done is closed, at the latest after its next read returns.
func scanLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

// readLine shows prompt and waits for one line. io.EOF means the input is closed.
func (c *console) readLine(ctx context.Context, prompt string) (string, error) {
	c.ui.ask(prompt)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// Run serves complaints until the patient leaves or the input ends
func (c *console) Run(ctx context.Context) error {
	defer close(c.done)

	c.ui.header()
	c.ui.disclaimer()
	c.ui.instructions()

	for {
		input, err := c.readLine(ctx, "\nDescribe your symptoms (or type 'quit' to exit): ")
		if err != nil {
			return c.leave(err)
		}

		switch command := strings.ToLower(strings.TrimSpace(input)); command {
		case "quit", "exit":
			c.ui.goodbye(c.now().Sub(c.started), c.count)
			return nil
		case "help":
			c.ui.instructions()
			continue
		case "history":
			c.showHistory(ctx)
			continue
		case "":
			c.ui.warn("Please describe your symptoms or type 'quit' to exit.")
			continue
		}

		if err := c.consult(ctx, input); err != nil {
			if isInterrupt(err) {
				return c.leave(err)
			}
			c.ui.fail("An error occurred: %v", err)
			c.ui.warn("Please try again or contact support if the issue persists.")
			continue
		}

		another, err := c.readLine(ctx, "\nWould you like to start another consultation? (yes/no): ")
		if err != nil {
			return c.leave(err)
		}
		if answer := strings.ToLower(strings.TrimSpace(another)); answer != "yes" && answer != "y" {
			c.ui.goodbye(c.now().Sub(c.started), c.count)
			return nil
		}
	}
}

// consult runs one consultation end to end
func (c *console) consult(ctx context.Context, complaint string) error {
	c.count++
	c.ui.info("\nStarting consultation #%d...", c.count)

	result, err := c.orchestrator.Run(ctx, complaint, func(ctx context.Context, question string) (string, error) {
		c.ui.question(question)
		return c.readLine(ctx, "You: ")
	})
	if err != nil {
		return err
	}

	c.ui.final(result.FinalText, result.IsEmergency)

	for _, warning := range result.Warnings {
		c.ui.warn("Note: %s", warning)
	}
	if !result.Cancelled && len(result.Warnings) == 0 && c.history != nil {
		c.ui.ok("✓ Consultation saved to history")
	}
	return nil
}

func (c *console) showHistory(ctx context.Context) {
	if c.history == nil {
		c.ui.warn("No consultation history found.")
		return
	}

	summaries, err := c.history.ListRecent(ctx, historyLimit)
	if err != nil {
		c.ui.fail("Error reading history: %v", err)
		return
	}
	c.ui.history(summaries)
}

// leave ends the session on closed input or interrupt
func (c *console) leave(err error) error {
	if !isInterrupt(err) {
		return err
	}
	if !errors.Is(err, io.EOF) {
		c.ui.warn("\nConsultation interrupted.")
	}
	c.ui.goodbye(c.now().Sub(c.started), c.count)
	return nil
}

func isInterrupt(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}
