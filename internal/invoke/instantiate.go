package invoke

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/out"
)

type instantiateFlow struct {
	o   *Orchestrator
	req *InstantiateRequest
	tx  InstantiateTx
}

func (f *instantiateFlow) label() string            { return f.req.Constructor() }
func (f *instantiateFlow) options() SubmitOptions   { return f.req.Options() }
func (f *instantiateFlow) override() WeightOverride { return f.req.Weight() }

func (f *instantiateFlow) build(ctx context.Context, token balance.TokenMetadata) error {
	value, limit, err := parseBalances(f.req.params.Value, f.req.Options().StorageDepositLimit, token)
	if err != nil {
		return err
	}
	data, err := f.o.Transcoder.EncodeConstructor(ctx, f.req.Constructor(), f.req.Args())
	if err != nil {
		return local(err, clierr.CodeUsage, fmt.Sprintf("encode constructor %s", f.req.Constructor()))
	}
	f.tx = InstantiateTx{
		Constructor:         f.req.Constructor(),
		Code:                f.req.Code(),
		Data:                data,
		Salt:                f.req.Salt(),
		Value:               value,
		StorageDepositLimit: limit,
	}
	f.o.logger().Debug("instantiate data", zap.String("data", hexutil.Encode(data)))
	return nil
}

func (f *instantiateFlow) simulate(ctx context.Context) (*Outcome, error) {
	return f.o.Chain.DryRunInstantiate(ctx, f.tx)
}

func (f *instantiateFlow) reportDryRun(ctx context.Context, outcome *Outcome) error {
	ret := outcome.Value
	value, err := f.o.Transcoder.DecodeConstructorReturn(ctx, f.req.Constructor(), ret.Data)
	if err != nil {
		return local(err, clierr.CodeDecode, fmt.Sprintf("Failed to decode return value %s", hexutil.Encode(ret.Data)))
	}
	return f.o.Reporter.InstantiateDryRun(InstantiateDryRunResult{
		Result:         value,
		Contract:       f.o.address(ret.Account),
		Reverted:       ret.Reverted(),
		GasConsumed:    outcome.GasConsumed,
		GasRequired:    outcome.GasRequired,
		StorageDeposit: outcome.StorageDeposit,
	}, outcome)
}

func (f *instantiateFlow) preview(w io.Writer, gas Weight) {
	_ = out.NameValue(w, "Constructor", f.req.Constructor(), out.DefaultKeyColWidth)
	_ = out.NameValue(w, "Args", strings.Join(f.req.Args(), " "), out.DefaultKeyColWidth)
	_ = out.NameValue(w, "Gas limit", gas.String(), out.DefaultKeyColWidth)
	if hash, ok := f.req.Code().Existing(); ok {
		_ = out.NameValue(w, "Code hash", hash.Hex(), out.DefaultKeyColWidth)
	}
}

func (f *instantiateFlow) submit(ctx context.Context, gas Weight) (*Submission, error) {
	return f.o.Chain.SubmitInstantiate(ctx, f.tx, gas)
}

func (f *instantiateFlow) reportSubmission(ctx context.Context, sub *Submission, md *ChainMetadata) error {
	if sub.Contract == nil {
		return clierr.New(clierr.CodeDecode, "Failed to find Instantiated event")
	}
	events, err := NewDisplayEvents(ctx, sub.Events, f.o.Transcoder, md)
	if err != nil {
		return err
	}
	res := InstantiateResult{
		Contract: f.o.address(sub.Contract),
		Events:   events,
	}
	if _, existing := f.req.Code().Existing(); !existing && sub.CodeHash != nil {
		res.CodeHash = sub.CodeHash.Hex()
	}
	return f.o.Reporter.Instantiated(res)
}
