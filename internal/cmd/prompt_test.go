package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/gate"
)

func TestTerminalPrompterAsk(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPrompter(strings.NewReader("  admin@example.test \nsecond\n"), &out)

	first, err := p.ask(context.Background(), "Email: ")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.test", first)

	second, err := p.ask(context.Background(), "Again: ")
	require.NoError(t, err)
	assert.Equal(t, "second", second)
	assert.Equal(t, "Email: Again: ", out.String())

	_, err = p.ask(context.Background(), "More: ")
	require.ErrorIs(t, err, io.EOF)
}

func TestTerminalPrompterAskWithoutTrailingNewline(t *testing.T) {
	p := newTerminalPrompter(strings.NewReader("123456"), io.Discard)
	got, err := p.ask(context.Background(), "Code: ")
	require.NoError(t, err)
	assert.Equal(t, "123456", got)
}

func TestTerminalPrompterCancelled(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close() // nolint:errcheck // test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTerminalPrompter(reader, io.Discard)
	_, err := p.ask(ctx, "Code: ")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTerminalPrompterPromptCode(t *testing.T) {
	t.Run("code", func(t *testing.T) {
		var out bytes.Buffer
		p := newTerminalPrompter(strings.NewReader("654321\n"), &out)

		code, err := p.PromptCode(context.Background(), gate.Challenge{Channel: "email", Message: "Check your inbox"})
		require.NoError(t, err)
		assert.Equal(t, "654321", code)
		assert.Contains(t, out.String(), "Check your inbox (email)")
	})

	t.Run("default message", func(t *testing.T) {
		var out bytes.Buffer
		p := newTerminalPrompter(strings.NewReader("1\n"), &out)

		_, err := p.PromptCode(context.Background(), gate.Challenge{})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Two-factor authentication required")
	})

	t.Run("closed input dismisses", func(t *testing.T) {
		p := newTerminalPrompter(strings.NewReader(""), io.Discard)
		_, err := p.PromptCode(context.Background(), gate.Challenge{})
		require.ErrorIs(t, err, gate.ErrChallengeDismissed)
	})
}
