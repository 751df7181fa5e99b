package invoke

import (
	"context"
	"fmt"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// ErrMissingExplicitWeight is returned when --skip-dry-run is used without
// both weight axes.
var ErrMissingExplicitWeight = clierr.New(clierr.CodeUsage, "Weight args `--gas` and `--proof-size` required if `--skip-dry-run` specified")

// SimulationFailedError reports a dry-run that failed at dispatch level. Its
// outcome must never be used to size a submission.
type SimulationFailedError struct {
	Failure DispatchFailure
	Outcome *Outcome
}

func (e *SimulationFailedError) Error() string {
	if e.Failure.Module != nil {
		return fmt.Sprintf("dry-run failed with module error (pallet %d)", e.Failure.Module.Pallet)
	}
	return fmt.Sprintf("dry-run failed: %s", e.Failure.Other)
}

// Notifier receives the status lines printed around a pre-submission dry-run.
type Notifier interface {
	DryRunning(name string)
	GasRequired(w Weight)
	BelowRequired(gas, required Weight)
}

// SimulateFunc performs one dry-run of the pending extrinsic.
type SimulateFunc func(ctx context.Context) (*Outcome, error)

// EstimateWeight resolves the weight to submit with. In SkipDryRunSubmit mode
// both explicit axes are required and nothing is simulated; otherwise exactly
// one dry-run is made and each axis prefers its override over the estimate.
func EstimateWeight(ctx context.Context, mode ExecutionMode, override WeightOverride, name string, simulate SimulateFunc, n Notifier) (Weight, error) {
	if mode == SkipDryRunSubmit {
		if !override.Complete() {
			return Weight{}, ErrMissingExplicitWeight
		}
		return NewWeight(*override.RefTime, *override.ProofSize), nil
	}

	if n != nil {
		n.DryRunning(name)
	}
	outcome, err := simulate(ctx)
	if err != nil {
		return Weight{}, err
	}
	if outcome == nil {
		return Weight{}, clierr.New(clierr.CodeInternal, "dry-run returned no result")
	}
	if outcome.Failure != nil {
		return Weight{}, &SimulationFailedError{Failure: *outcome.Failure, Outcome: outcome}
	}
	gas := override.Resolve(outcome.GasRequired)
	if n != nil {
		n.GasRequired(outcome.GasRequired)
		if !gas.AllGTE(outcome.GasRequired) {
			n.BelowRequired(gas, outcome.GasRequired)
		}
	}
	return gas, nil
}
