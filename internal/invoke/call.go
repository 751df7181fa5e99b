package invoke

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/out"
)

type callFlow struct {
	o   *Orchestrator
	req *CallRequest
	tx  CallTx
}

func (f *callFlow) label() string            { return f.req.Message() }
func (f *callFlow) options() SubmitOptions   { return f.req.Options() }
func (f *callFlow) override() WeightOverride { return f.req.Weight() }

func (f *callFlow) build(ctx context.Context, token balance.TokenMetadata) error {
	value, limit, err := parseBalances(f.req.params.Value, f.req.Options().StorageDepositLimit, token)
	if err != nil {
		return err
	}
	data, err := f.o.Transcoder.EncodeMessage(ctx, f.req.Message(), f.req.Args())
	if err != nil {
		return local(err, clierr.CodeUsage, fmt.Sprintf("encode message %s", f.req.Message()))
	}
	f.tx = CallTx{
		Contract:            f.req.Contract(),
		Message:             f.req.Message(),
		Data:                data,
		Value:               value,
		StorageDepositLimit: limit,
	}
	return nil
}

func (f *callFlow) simulate(ctx context.Context) (*Outcome, error) {
	return f.o.Chain.DryRunCall(ctx, f.tx)
}

func (f *callFlow) reportDryRun(ctx context.Context, outcome *Outcome) error {
	ret := outcome.Value
	value, err := f.o.Transcoder.DecodeMessageReturn(ctx, f.req.Message(), ret.Data)
	if err != nil {
		return local(err, clierr.CodeDecode, fmt.Sprintf("Failed to decode return value %s", hexutil.Encode(ret.Data)))
	}
	return f.o.Reporter.CallDryRun(CallDryRunResult{
		Reverted:       ret.Reverted(),
		Data:           value,
		GasConsumed:    outcome.GasConsumed,
		GasRequired:    outcome.GasRequired,
		StorageDeposit: outcome.StorageDeposit,
	}, outcome)
}

func (f *callFlow) preview(w io.Writer, gas Weight) {
	_ = out.NameValue(w, "Message", f.req.Message(), out.DefaultKeyColWidth)
	_ = out.NameValue(w, "Args", strings.Join(f.req.Args(), " "), out.DefaultKeyColWidth)
	_ = out.NameValue(w, "Gas limit", gas.String(), out.DefaultKeyColWidth)
}

func (f *callFlow) submit(ctx context.Context, gas Weight) (*Submission, error) {
	return f.o.Chain.SubmitCall(ctx, f.tx, gas)
}

func (f *callFlow) reportSubmission(ctx context.Context, sub *Submission, md *ChainMetadata) error {
	events, err := NewDisplayEvents(ctx, sub.Events, f.o.Transcoder, md)
	if err != nil {
		return err
	}
	return f.o.Reporter.Events(events)
}
