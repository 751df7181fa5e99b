package invoke

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// ErrCancelled is returned when the user declines to submit. It is a clean
// termination, not a failure.
var ErrCancelled = errors.New("transaction not submitted")

const (
	confirmHeader   = "Confirm transaction details: (skip with --skip-confirm or -y)"
	confirmQuestion = "Are you sure you want to submit this transaction?"
)

// Confirmer shows a preview of the pending extrinsic and waits for approval.
type Confirmer interface {
	Confirm(preview func(w io.Writer)) error
}

// NewConfirmer picks an interactive prompt when in is a terminal and a plain
// line prompt otherwise.
func NewConfirmer(in *os.File, out io.Writer) Confirmer {
	if in != nil && (isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd())) {
		return &TerminalPrompt{Out: out}
	}
	return &LinePrompt{In: in, Out: out}
}

// LinePrompt reads a y/n answer from a line of input. An empty answer
// accepts.
type LinePrompt struct {
	In  io.Reader
	Out io.Writer
}

func (p *LinePrompt) Confirm(preview func(w io.Writer)) error {
	fmt.Fprintln(p.Out, confirmHeader)
	preview(p.Out)
	fmt.Fprintf(p.Out, "%s (Y/n): ", confirmQuestion)

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return clierr.Wrap(clierr.CodeUsage, "read confirmation", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return nil
	case "n", "no":
		return ErrCancelled
	default:
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("expected either 'y' or 'n', got '%s'", strings.TrimSpace(line)))
	}
}

// TerminalPrompt asks through an interactive pterm confirm that defaults to yes.
type TerminalPrompt struct {
	Out io.Writer
}

func (p *TerminalPrompt) Confirm(preview func(w io.Writer)) error {
	fmt.Fprintln(p.Out, confirmHeader)
	preview(p.Out)
	var ok bool
	err := withPtermOutput(p.Out, func() error {
		var err error
		ok, err = pterm.DefaultInteractiveConfirm.
			WithDefaultValue(true).
			Show(confirmQuestion)
		return err
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "read confirmation", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

// withPtermOutput points pterm's package-level writer at w while fn runs.
func withPtermOutput(w io.Writer, fn func() error) error {
	pterm.SetDefaultOutput(w)
	defer pterm.SetDefaultOutput(os.Stdout)
	return fn()
}
