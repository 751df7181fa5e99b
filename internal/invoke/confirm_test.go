package invoke

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

func TestLinePromptAnswers(t *testing.T) {
	cases := map[string]error{
		"\n":    nil,
		"y\n":   nil,
		"YES\n": nil,
		"n\n":   ErrCancelled,
		"No\n":  ErrCancelled,
		"n":     ErrCancelled,
	}
	for input, want := range cases {
		var out bytes.Buffer
		p := &LinePrompt{In: strings.NewReader(input), Out: &out}
		err := p.Confirm(func(w io.Writer) { _, _ = io.WriteString(w, "     Message flip\n") })
		if want == nil {
			require.NoError(t, err, "input %q", input)
		} else {
			require.ErrorIs(t, err, want, "input %q", input)
		}
		require.Contains(t, out.String(), "Confirm transaction details")
		require.Contains(t, out.String(), "Message flip")
		require.Contains(t, out.String(), "(Y/n): ")
	}
}

func TestLinePromptRejectsUnexpectedAnswer(t *testing.T) {
	p := &LinePrompt{In: strings.NewReader("maybe\n"), Out: io.Discard}
	err := p.Confirm(func(io.Writer) {})
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeUsage, cliErr.Code)
	require.Contains(t, cliErr.Message, "got 'maybe'")
}

func TestLinePromptFailsOnClosedInput(t *testing.T) {
	p := &LinePrompt{In: strings.NewReader(""), Out: io.Discard}
	err := p.Confirm(func(io.Writer) {})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCancelled)
}

func TestTerminalPromptOutputFollowsWriter(t *testing.T) {
	var out bytes.Buffer
	err := withPtermOutput(&out, func() error {
		pterm.Print(confirmQuestion)
		return nil
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), confirmQuestion)
}
