package invoke

import (
	"context"
	"errors"
	"io"
	"math/big"

	"go.uber.org/zap"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/ss58"
)

const preSubmitFailed = "Pre-submission dry-run failed. Use --skip-dry-run to skip this step."

// flow is what differs between a call and an instantiation. A flow value
// serves a single invocation; build must run before the other steps.
type flow interface {
	label() string
	options() SubmitOptions
	override() WeightOverride
	build(ctx context.Context, token balance.TokenMetadata) error
	simulate(ctx context.Context) (*Outcome, error)
	reportDryRun(ctx context.Context, outcome *Outcome) error
	preview(w io.Writer, gas Weight)
	submit(ctx context.Context, gas Weight) (*Submission, error)
	reportSubmission(ctx context.Context, sub *Submission, md *ChainMetadata) error
}

// Orchestrator sequences an invocation: token metadata, dry-run, weight
// estimation, confirmation, submission and reporting.
type Orchestrator struct {
	Chain      Chain
	Transcoder Transcoder
	Confirmer  Confirmer
	Reporter   *Reporter
	SS58Prefix uint16
	Log        *zap.Logger
}

func (o *Orchestrator) Call(ctx context.Context, req *CallRequest) error {
	return o.run(ctx, &callFlow{o: o, req: req})
}

func (o *Orchestrator) Instantiate(ctx context.Context, req *InstantiateRequest) error {
	return o.run(ctx, &instantiateFlow{o: o, req: req})
}

func (o *Orchestrator) run(ctx context.Context, f flow) error {
	log := o.logger()
	opts := f.options()
	mode := opts.Mode()
	log.Debug("invocation mode", zap.String("target", f.label()), zap.Stringer("mode", mode))

	if mode == SkipDryRunSubmit && !f.override().Complete() {
		return ErrMissingExplicitWeight
	}

	token, err := o.Chain.TokenMetadata(ctx)
	if err != nil {
		return local(err, clierr.CodeUnavailable, "query token metadata")
	}
	o.Reporter.SetToken(token)

	if err := f.build(ctx, token); err != nil {
		return err
	}

	if mode == DryRunOnly {
		outcome, err := f.simulate(ctx)
		if err != nil {
			return local(err, clierr.CodeUnavailable, "dry-run")
		}
		if !outcome.Ok() {
			return o.dispatchFailure(ctx, outcome, false)
		}
		return f.reportDryRun(ctx, outcome)
	}

	gas, err := EstimateWeight(ctx, mode, f.override(), f.label(), f.simulate, o.Reporter)
	if err != nil {
		var simErr *SimulationFailedError
		if errors.As(err, &simErr) {
			return o.dispatchFailure(ctx, simErr.Outcome, true)
		}
		return local(err, clierr.CodeUnavailable, "dry-run")
	}
	log.Debug("resolved weight", zap.Stringer("weight", gas))

	if !opts.SkipConfirm {
		if err := o.Confirmer.Confirm(func(w io.Writer) { f.preview(w, gas) }); err != nil {
			return err
		}
	}

	sub, err := f.submit(ctx, gas)
	if err != nil {
		return local(err, clierr.CodeUnavailable, "submit extrinsic")
	}
	md, err := o.Chain.Metadata(ctx)
	if err != nil {
		return local(err, clierr.CodeUnavailable, "fetch chain metadata")
	}
	if sub.Failure != nil {
		decoded := md.Decode(*sub.Failure)
		if o.Reporter.JSON {
			return clierr.WithDetails(clierr.CodeDispatch, decoded.String(), decoded)
		}
		if err := o.Reporter.DispatchFailure(decoded, nil); err != nil {
			return err
		}
		return clierr.New(clierr.CodeDispatch, "Extrinsic failed on chain")
	}
	return f.reportSubmission(ctx, sub, md)
}

// dispatchFailure decodes a failed dry-run and turns it into the command's
// error. In JSON mode the decoded object is the error payload.
func (o *Orchestrator) dispatchFailure(ctx context.Context, outcome *Outcome, execute bool) error {
	if outcome == nil || outcome.Failure == nil {
		return clierr.New(clierr.CodeInternal, "dry-run returned no result")
	}
	md, err := o.Chain.Metadata(ctx)
	if err != nil {
		return local(err, clierr.CodeUnavailable, "fetch chain metadata")
	}
	decoded := md.Decode(*outcome.Failure)
	if o.Reporter.JSON {
		return clierr.WithDetails(clierr.CodeDispatch, decoded.String(), decoded)
	}
	if err := o.Reporter.DispatchFailure(decoded, outcome); err != nil {
		return err
	}
	if execute {
		return clierr.New(clierr.CodeDispatch, preSubmitFailed)
	}
	return clierr.New(clierr.CodeDispatch, "Contract dry-run failed")
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o *Orchestrator) address(id *ss58.AccountID) string {
	if id == nil {
		return ""
	}
	addr, err := ss58.Encode(*id, o.SS58Prefix)
	if err != nil {
		return id.Hex()
	}
	return addr
}

// local keeps typed errors as they are and classifies anything else.
func local(err error, code clierr.Code, message string) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	return clierr.Wrap(code, message, err)
}

func parseBalances(value, limit string, token balance.TokenMetadata) (v, l *big.Int, err error) {
	v, err = balance.Parse(value, token)
	if err != nil {
		return nil, nil, local(err, clierr.CodeUsage, "invalid --value")
	}
	if limit == "" {
		return v, nil, nil
	}
	l, err = balance.Parse(limit, token)
	if err != nil {
		return nil, nil, local(err, clierr.CodeUsage, "invalid --storage-deposit-limit")
	}
	return v, l, nil
}
