package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ggonzalez94/contract-cli/internal/bundle"
	"github.com/ggonzalez94/contract-cli/internal/chain"
	"github.com/ggonzalez94/contract-cli/internal/codec"
	"github.com/ggonzalez94/contract-cli/internal/config"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/invoke"
	"github.com/ggonzalez94/contract-cli/internal/policy"
	"github.com/ggonzalez94/contract-cli/internal/signer"
)

type chainDialer func(ctx context.Context, opts chain.Options, helper *codec.Client, s signer.Signer) (invoke.Chain, func(), error)

func dialChain(ctx context.Context, opts chain.Options, helper *codec.Client, s signer.Signer) (invoke.Chain, func(), error) {
	c, err := chain.Dial(ctx, opts, helper, s)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// extrinsicFlags are shared by every command that may submit an extrinsic.
type extrinsicFlags struct {
	suri                string
	keySource           string
	privateKey          string
	file                string
	metadata            string
	storageDepositLimit string
	execute             bool
	skipDryRun          bool
	skipConfirm         bool
	gas                 uint64
	proofSize           uint64
	value               string
	args                []string
}

func (f *extrinsicFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.suri, "suri", "s", "", "Secret key URI of the signer (e.g. //Alice or a mnemonic with //junctions)")
	flags.StringVar(&f.keySource, "key-source", signer.KeySourceAuto, "Signer key source when --suri is not given (auto|env|file|keystore)")
	flags.StringVar(&f.privateKey, "private-key", "", "Hex private key of the signer (overrides --key-source)")
	flags.StringVar(&f.file, "file", "", "Path to a .contract bundle, or a .wasm/.json artifact (default: ./target/ink)")
	flags.StringVar(&f.metadata, "metadata", "", "Path to contract metadata overriding the one found with --file")
	flags.StringVar(&f.storageDepositLimit, "storage-deposit-limit", "", "Maximum balance that can be charged for storage")
	flags.BoolVarP(&f.execute, "execute", "x", false, "Submit the extrinsic for on-chain execution")
	flags.BoolVar(&f.skipDryRun, "skip-dry-run", false, "Skip the pre-submission dry-run; requires --gas and --proof-size")
	flags.BoolVarP(&f.skipConfirm, "skip-confirm", "y", false, "Submit without asking for confirmation")
	flags.Uint64Var(&f.gas, "gas", 0, "Maximum ref_time weight the extrinsic may consume")
	flags.Uint64Var(&f.proofSize, "proof-size", 0, "Maximum proof_size weight the extrinsic may consume")
	flags.StringVar(&f.value, "value", "0", "Value transferred with the extrinsic (base units or e.g. \"1.5 UNIT\")")
	flags.StringArrayVar(&f.args, "args", nil, "Argument for the message or constructor (repeatable)")
}

func (f *extrinsicFlags) options() invoke.SubmitOptions {
	return invoke.SubmitOptions{
		Execute:             f.execute,
		SkipDryRun:          f.skipDryRun,
		SkipConfirm:         f.skipConfirm,
		StorageDepositLimit: f.storageDepositLimit,
	}
}

func (f *extrinsicFlags) weight(cmd *cobra.Command) invoke.WeightOverride {
	var w invoke.WeightOverride
	if cmd.Flags().Changed("gas") {
		gas := f.gas
		w.RefTime = &gas
	}
	if cmd.Flags().Changed("proof-size") {
		proofSize := f.proofSize
		w.ProofSize = &proofSize
	}
	return w
}

func (s *runtimeState) newCallCommand() *cobra.Command {
	var flags extrinsicFlags
	var contract, message string
	cmd := &cobra.Command{
		Use:   "call [-- args...]",
		Short: "Call a message on a deployed contract",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(contract) == "" {
				contract = os.Getenv("CONTRACT")
			}
			if strings.TrimSpace(contract) == "" {
				return clierr.New(clierr.CodeUsage, "--contract is required (or set CONTRACT)")
			}
			if strings.TrimSpace(message) == "" {
				return clierr.New(clierr.CodeUsage, "--message is required")
			}
			req, err := invoke.NewCallRequest(invoke.CallParams{
				Contract: contract,
				Message:  message,
				Args:     append(flags.args, args...),
				Value:    flags.value,
				Weight:   flags.weight(cmd),
				Options:  flags.options(),
			})
			if err != nil {
				return err
			}
			return s.runInvocation(cmd, &flags, func(ctx context.Context, o *invoke.Orchestrator, _ *bundle.Bundle) error {
				return o.Call(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "Address of the contract to call (env CONTRACT)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Name of the contract message to call")
	flags.register(cmd)
	return cmd
}

func (s *runtimeState) newInstantiateCommand() *cobra.Command {
	var flags extrinsicFlags
	var constructor, salt, codeHash string
	cmd := &cobra.Command{
		Use:   "instantiate [-- args...]",
		Short: "Instantiate a contract from new or already uploaded code",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var existing *common.Hash
			if strings.TrimSpace(codeHash) != "" {
				h, err := parseCodeHash(codeHash)
				if err != nil {
					return err
				}
				existing = &h
			}
			params := invoke.InstantiateParams{
				Constructor: constructor,
				Args:        append(flags.args, args...),
				Value:       flags.value,
				Salt:        salt,
				Weight:      flags.weight(cmd),
				Options:     flags.options(),
			}
			if _, err := invoke.ParseSalt(salt); err != nil {
				return err
			}
			if err := params.Options.CheckWeight(params.Weight); err != nil {
				return err
			}
			return s.runInvocation(cmd, &flags, func(ctx context.Context, o *invoke.Orchestrator, b *bundle.Bundle) error {
				switch {
				case existing != nil:
					params.Code = invoke.ExistingCode(*existing)
				case len(b.Wasm) > 0:
					params.Code = invoke.UploadCode(b.Wasm)
				default:
					return clierr.New(clierr.CodeUsage, fmt.Sprintf("no wasm code in %s; pass --code-hash to instantiate uploaded code", b.Name))
				}
				req, err := invoke.NewInstantiateRequest(params)
				if err != nil {
					return err
				}
				return o.Instantiate(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&constructor, "constructor", "new", "Name of the contract constructor to call")
	cmd.Flags().StringVar(&salt, "salt", "", "Hex salt used for the contract address derivation")
	cmd.Flags().StringVar(&codeHash, "code-hash", "", "Hash of code already uploaded to the chain")
	flags.register(cmd)
	return cmd
}

type invocation func(ctx context.Context, o *invoke.Orchestrator, b *bundle.Bundle) error

// runInvocation wires the orchestrator for one command: contract artifact,
// signer, codec helper, node connection, confirmation and reporting.
func (s *runtimeState) runInvocation(cmd *cobra.Command, f *extrinsicFlags, run invocation) error {
	s.execute = f.execute
	path := trimRootPath(cmd.CommandPath())
	settings := s.settings
	if err := policy.CheckCommandAllowed(settings.EnableCommands, path, f.execute); err != nil {
		return err
	}

	b, err := bundle.Load(f.file, f.metadata)
	if err != nil {
		return err
	}
	sg, err := signer.Load(signer.Options{SURI: f.suri, Source: f.keySource, PrivateKey: f.privateKey})
	if err != nil {
		if _, ok := clierr.As(err); ok {
			return err
		}
		return clierr.Wrap(clierr.CodeSigner, "load signer", err)
	}
	s.log.Debug("signer loaded",
		zap.String("account", sg.AccountID().Hex()),
		zap.String("public_key", hexutil.Encode(sg.PublicKey())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	helper := codec.New(settings.CodecPath, s.log)
	var progress io.Writer
	if !settings.JSON() && settings.Verbosity != config.VerbosityQuiet {
		progress = s.runner.stderr
	}
	node, closeNode, err := s.runner.dial(ctx, chain.Options{
		URL:           settings.URL,
		Timeout:       settings.Timeout,
		Retries:       settings.Retries,
		PollInterval:  settings.PollInterval,
		SubmitTimeout: settings.SubmitTimeout,
		SS58Prefix:    settings.SS58Prefix,
		Progress:      progress,
		Log:           s.log,
	}, helper, sg)
	if err != nil {
		return err
	}
	defer closeNode()

	o := &invoke.Orchestrator{
		Chain:      node,
		Transcoder: codec.NewTranscoder(helper, b.Metadata),
		Confirmer:  invoke.NewConfirmer(s.runner.stdin, s.promptWriter()),
		Reporter: &invoke.Reporter{
			Out:       s.runner.stdout,
			JSON:      settings.JSON(),
			Verbosity: settings.Verbosity,
			Emit: func(data any) error {
				return s.emitSuccess(path, data)
			},
		},
		SS58Prefix: settings.SS58Prefix,
		Log:        s.log,
	}
	return run(ctx, o, b)
}

// promptWriter keeps the confirmation prompt off stdout when stdout carries
// the JSON envelope.
func (s *runtimeState) promptWriter() io.Writer {
	if s.settings.JSON() {
		return s.runner.stderr
	}
	return s.runner.stdout
}

func parseCodeHash(input string) (common.Hash, error) {
	buf, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil || len(buf) != common.HashLength {
		return common.Hash{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid --code-hash %q: expected 32 bytes of 0x-prefixed hex", input))
	}
	return common.BytesToHash(buf), nil
}
