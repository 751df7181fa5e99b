package invoke

import (
	"fmt"
	"io"
	"strings"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	"github.com/ggonzalez94/contract-cli/internal/config"
	"github.com/ggonzalez94/contract-cli/internal/out"
)

// CallDryRunResult is the report of a call that was only simulated.
type CallDryRunResult struct {
	Reverted       bool           `json:"reverted"`
	Data           Value          `json:"data"`
	GasConsumed    Weight         `json:"gas_consumed"`
	GasRequired    Weight         `json:"gas_required"`
	StorageDeposit StorageDeposit `json:"storage_deposit"`
}

// InstantiateDryRunResult is the report of an instantiation that was only
// simulated. Contract is the address the contract would be deployed at.
type InstantiateDryRunResult struct {
	Result         Value          `json:"result"`
	Contract       string         `json:"contract"`
	Reverted       bool           `json:"reverted"`
	GasConsumed    Weight         `json:"gas_consumed"`
	GasRequired    Weight         `json:"gas_required"`
	StorageDeposit StorageDeposit `json:"storage_deposit"`
}

// InstantiateResult is the report of a submitted instantiation. CodeHash is
// only set when new code was uploaded.
type InstantiateResult struct {
	Contract string         `json:"contract,omitempty"`
	CodeHash string         `json:"code_hash,omitempty"`
	Events   *DisplayEvents `json:"events"`
}

// Reporter renders invocation results either as structured documents handed
// to Emit or as aligned label/value lines on Out.
type Reporter struct {
	Out       io.Writer
	JSON      bool
	Verbosity config.Verbosity
	// Emit receives the structured result in JSON mode. When nil the result is
	// written to Out as plain JSON.
	Emit func(data any) error

	token balance.TokenMetadata
}

// SetToken sets the token metadata used to denominate balances.
func (r *Reporter) SetToken(token balance.TokenMetadata) {
	r.token = token
}

func (r *Reporter) DryRunning(name string) {
	if r.JSON {
		return
	}
	_ = out.NameValue(r.Out, "Dry-running", name+" (skip with --skip-dry-run)", out.DefaultKeyColWidth)
}

func (r *Reporter) GasRequired(w Weight) {
	if r.JSON {
		return
	}
	_ = out.NameValue(r.Out, "Success!", "Gas required estimated at "+w.String(), out.DefaultKeyColWidth)
}

// BelowRequired warns that an explicit weight is lower than the dry-run
// estimate, so the extrinsic will likely run out of gas.
func (r *Reporter) BelowRequired(gas, required Weight) {
	if r.JSON {
		return
	}
	_ = out.Warning(r.Out, fmt.Sprintf("Gas limit %s is below the estimated %s", gas, required))
}

func (r *Reporter) CallDryRun(res CallDryRunResult, o *Outcome) error {
	if r.JSON {
		return r.emit(res)
	}
	lines := [][2]string{
		{"Result", res.Data.String()},
		{"Reverted", fmt.Sprint(res.Reverted)},
	}
	return r.dryRunLines("message", lines, res.GasConsumed, res.GasRequired, res.StorageDeposit, o.DebugMessage)
}

func (r *Reporter) InstantiateDryRun(res InstantiateDryRunResult, o *Outcome) error {
	if r.JSON {
		return r.emit(res)
	}
	lines := [][2]string{
		{"Result", res.Result.String()},
		{"Reverted", fmt.Sprint(res.Reverted)},
		{"Contract", res.Contract},
	}
	return r.dryRunLines("instantiate", lines, res.GasConsumed, res.GasRequired, res.StorageDeposit, o.DebugMessage)
}

func (r *Reporter) dryRunLines(kind string, lines [][2]string, consumed, required Weight, deposit StorageDeposit, debug string) error {
	lines = append(lines,
		[2]string{"Gas consumed", consumed.String()},
		[2]string{"Gas required", required.String()},
		[2]string{"Deposit", deposit.Format(r.token)},
	)
	for _, l := range lines {
		if err := out.NameValue(r.Out, l[0], l[1], out.DefaultKeyColWidth); err != nil {
			return err
		}
	}
	if err := r.debugMessage(debug, out.DefaultKeyColWidth); err != nil {
		return err
	}
	return out.Warning(r.Out, fmt.Sprintf("Your %s call has not been executed and the dry-run is only an estimate; add -x/--execute to submit it.", kind))
}

// DispatchFailure prints a decoded dispatch error with the execution summary
// of the dry-run that produced it.
func (r *Reporter) DispatchFailure(decoded DecodedError, o *Outcome) error {
	if r.JSON {
		return nil
	}
	width := out.WideKeyColWidth
	lines := [][2]string{{"Result", decoded.String()}}
	if o != nil {
		lines = append(lines,
			[2]string{"Gas Consumed", o.GasConsumed.String()},
			[2]string{"Gas Required", o.GasRequired.String()},
			[2]string{"Storage Total Deposit", o.StorageDeposit.Format(r.token)},
		)
	}
	for _, l := range lines {
		if err := out.NameValue(r.Out, l[0], l[1], width); err != nil {
			return err
		}
	}
	if o == nil {
		return nil
	}
	return r.debugMessage(o.DebugMessage, width)
}

func (r *Reporter) Events(events *DisplayEvents) error {
	if r.JSON {
		return r.emit(events)
	}
	_, err := io.WriteString(r.Out, events.Display(r.Verbosity, r.token))
	return err
}

func (r *Reporter) Instantiated(res InstantiateResult) error {
	if r.JSON {
		return r.emit(res)
	}
	if _, err := io.WriteString(r.Out, res.Events.Display(r.Verbosity, r.token)); err != nil {
		return err
	}
	if res.CodeHash != "" {
		if err := out.NameValue(r.Out, "Code hash", res.CodeHash, out.DefaultKeyColWidth); err != nil {
			return err
		}
	}
	if res.Contract != "" {
		return out.NameValue(r.Out, "Contract", res.Contract, out.DefaultKeyColWidth)
	}
	return nil
}

func (r *Reporter) debugMessage(msg string, width int) error {
	msg = strings.TrimRight(msg, "\n")
	if msg == "" {
		return nil
	}
	for i, line := range strings.Split(msg, "\n") {
		label := ""
		if i == 0 {
			label = "Debug"
		}
		if err := out.NameValue(r.Out, label, line, width); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) emit(data any) error {
	if r.Emit != nil {
		return r.Emit(data)
	}
	return out.WriteJSON(r.Out, data)
}
