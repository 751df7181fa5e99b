package invoke

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v uint64) *uint64 { return &v }

func TestWeightAllGTE(t *testing.T) {
	a := NewWeight(10, 5)
	require.False(t, a.AllGTE(NewWeight(3, 7)))
	require.True(t, a.AllGTE(NewWeight(10, 5)))
	require.True(t, NewWeight(math.MaxUint64, 8).AllGTE(a))
}

func TestWeightFormatting(t *testing.T) {
	w := NewWeight(100, 10)
	require.Equal(t, "Weight(ref_time: 100, proof_size: 10)", w.String())

	buf, err := json.Marshal(w)
	require.NoError(t, err)
	require.JSONEq(t, `{"ref_time":100,"proof_size":10}`, string(buf))
}

func TestWeightOverrideResolvesPerAxis(t *testing.T) {
	estimate := NewWeight(100, 10)
	require.Equal(t, estimate, WeightOverride{}.Resolve(estimate))
	require.Equal(t, NewWeight(7, 10), WeightOverride{RefTime: ptr(7)}.Resolve(estimate))
	require.Equal(t, NewWeight(100, 3), WeightOverride{ProofSize: ptr(3)}.Resolve(estimate))
	require.True(t, WeightOverride{RefTime: ptr(0), ProofSize: ptr(0)}.Complete())
	require.False(t, WeightOverride{RefTime: ptr(1)}.Complete())
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
