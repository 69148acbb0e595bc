package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/panelops/panelctl/internal/gate"
)

// terminalPrompter reads answers line by line. It serves both the login questions and
// second-factor challenges.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

// ask prints label and returns the trimmed answer. EOF with no input is an error.
func (p *terminalPrompter) ask(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label); err != nil {
		return "", err
	}

	type answer struct {
		line string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		done <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(p.out)
		return "", ctx.Err()
	case a := <-done:
		if a.err != nil && !(errors.Is(a.err, io.EOF) && a.line != "") {
			return "", a.err
		}
		return strings.TrimSpace(a.line), nil
	}
}

// PromptCode implements gate.Prompter. An empty answer or closed input dismisses.
func (p *terminalPrompter) PromptCode(ctx context.Context, challenge gate.Challenge) (string, error) {
	message := strings.TrimSpace(challenge.Message)
	if message == "" {
		message = "Two-factor authentication required"
	}
	if challenge.Channel != "" {
		message = fmt.Sprintf("%s (%s)", message, challenge.Channel)
	}
	_, _ = fmt.Fprintln(p.out, message)

	code, err := p.ask(ctx, "Code (leave empty to cancel): ")
	if errors.Is(err, io.EOF) {
		return "", gate.ErrChallengeDismissed
	}
	return code, err
}
