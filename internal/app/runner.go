package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ggonzalez94/contract-cli/internal/config"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/invoke"
	"github.com/ggonzalez94/contract-cli/internal/logging"
	"github.com/ggonzalez94/contract-cli/internal/model"
	"github.com/ggonzalez94/contract-cli/internal/out"
	"github.com/ggonzalez94/contract-cli/internal/policy"
	"github.com/ggonzalez94/contract-cli/internal/schema"
	"github.com/ggonzalez94/contract-cli/internal/version"
)

type Runner struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	dial   chainDialer
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  os.Stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		dial:   dialChain,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	log         *zap.Logger
	root        *cobra.Command
	lastCommand string
	execute     bool
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, log: zap.NewNop()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	_ = state.log.Sync()
	if errors.Is(err, invoke.ErrCancelled) {
		_, _ = fmt.Fprintln(r.stderr, "Transaction cancelled.")
		return 0
	}
	err = normalizeRunError(err)
	if err == nil {
		return 0
	}

	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Call and instantiate smart contracts on a substrate chain",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			s.lastCommand = trimRootPath(cmd.CommandPath())
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = logging.New(settings.Verbosity, s.runner.stderr)
			return policy.CheckCommandAllowed(settings.EnableCommands, s.lastCommand, false)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.URL, "url", "", "Node websocket or HTTP endpoint (default ws://127.0.0.1:9944)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Node request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per node request")
	cmd.PersistentFlags().BoolVar(&s.flags.OutputJSON, "output-json", false, "Export the result as JSON")
	cmd.PersistentFlags().BoolVar(&s.flags.OutputJSON, "json", false, "Alias for --output-json")
	cmd.PersistentFlags().BoolVarP(&s.flags.Verbose, "verbose", "v", false, "Use verbose output")
	cmd.PersistentFlags().BoolVarP(&s.flags.Quiet, "quiet", "q", false, "Use quiet output")
	cmd.PersistentFlags().StringVar(&s.flags.CodecPath, "codec", "", "Path to the contract-codec helper")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated; \"call --execute\" permits submission)")

	cmd.AddCommand(s.newCallCommand())
	cmd.AddCommand(s.newInstantiateCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Error:   nil,
		Meta:    s.meta(commandPath),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	var details any
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		typ = clierr.TypeName(cErr.Code)
		details = cErr.Details
	}

	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
			Details: details,
		},
		Meta: s.meta(commandPath),
	}
	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = config.OutputPlain
		if s.flags.OutputJSON {
			settings.OutputMode = config.OutputJSON
		}
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	meta := model.EnvelopeMeta{
		RequestID: uuid.NewString(),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
		Execute:   s.execute,
	}
	if commandPath == "call" || commandPath == "instantiate" {
		meta.URL = s.settings.URL
	}
	return meta
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
