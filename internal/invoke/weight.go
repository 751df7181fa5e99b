package invoke

import "fmt"

// Weight is the two-dimensional resource budget of an extrinsic: execution
// time and proof size.
type Weight struct {
	RefTime   uint64 `json:"ref_time"`
	ProofSize uint64 `json:"proof_size"`
}

func NewWeight(refTime, proofSize uint64) Weight {
	return Weight{RefTime: refTime, ProofSize: proofSize}
}

// AllGTE reports whether both components are at least those of other.
func (w Weight) AllGTE(other Weight) bool {
	return w.RefTime >= other.RefTime && w.ProofSize >= other.ProofSize
}

func (w Weight) String() string {
	return fmt.Sprintf("Weight(ref_time: %d, proof_size: %d)", w.RefTime, w.ProofSize)
}

// WeightOverride holds the per-axis values supplied with --gas and
// --proof-size. A nil axis is resolved from a dry-run.
type WeightOverride struct {
	RefTime   *uint64
	ProofSize *uint64
}

// Complete reports whether both axes were supplied.
func (o WeightOverride) Complete() bool {
	return o.RefTime != nil && o.ProofSize != nil
}

// Resolve fills the missing axes from the estimate.
func (o WeightOverride) Resolve(estimate Weight) Weight {
	out := estimate
	if o.RefTime != nil {
		out.RefTime = *o.RefTime
	}
	if o.ProofSize != nil {
		out.ProofSize = *o.ProofSize
	}
	return out
}
