package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	"github.com/ggonzalez94/contract-cli/internal/config"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/ss58"
)

var (
	testToken    = balance.TokenMetadata{Decimals: 12, Symbol: "UNIT"}
	testContract = func() ss58.AccountID {
		var id ss58.AccountID
		for i := range id {
			id[i] = byte(0xa0 + i%16)
		}
		return id
	}()
	testMetadata = NewChainMetadata([]ModuleError{
		{PalletIndex: 8, ErrorIndex: 11, Pallet: "Contracts", Error: "ContractTrapped", Docs: []string{"Contract trapped during execution."}},
	})
	trapped = &DispatchFailure{Module: &ModuleIndex{Pallet: 8, Error: [4]byte{11}}}
)

type fakeChain struct {
	calls    []string
	outcome  *Outcome
	sub      *Submission
	lastGas  Weight
	lastCall CallTx
	lastInst InstantiateTx
}

func (c *fakeChain) TokenMetadata(context.Context) (balance.TokenMetadata, error) {
	c.calls = append(c.calls, "token_metadata")
	return testToken, nil
}

func (c *fakeChain) DryRunCall(_ context.Context, tx CallTx) (*Outcome, error) {
	c.calls = append(c.calls, "dry_run_call")
	c.lastCall = tx
	return c.outcome, nil
}

func (c *fakeChain) DryRunInstantiate(_ context.Context, tx InstantiateTx) (*Outcome, error) {
	c.calls = append(c.calls, "dry_run_instantiate")
	c.lastInst = tx
	return c.outcome, nil
}

func (c *fakeChain) SubmitCall(_ context.Context, tx CallTx, gas Weight) (*Submission, error) {
	c.calls = append(c.calls, "submit_call")
	c.lastCall, c.lastGas = tx, gas
	return c.sub, nil
}

func (c *fakeChain) SubmitInstantiate(_ context.Context, tx InstantiateTx, gas Weight) (*Submission, error) {
	c.calls = append(c.calls, "submit_instantiate")
	c.lastInst, c.lastGas = tx, gas
	return c.sub, nil
}

func (c *fakeChain) Metadata(context.Context) (*ChainMetadata, error) {
	c.calls = append(c.calls, "metadata")
	return testMetadata, nil
}

func (c *fakeChain) submitted() bool {
	for _, call := range c.calls {
		if call == "submit_call" || call == "submit_instantiate" {
			return true
		}
	}
	return false
}

type fakeTranscoder struct{}

func (fakeTranscoder) EncodeMessage(_ context.Context, message string, args []string) ([]byte, error) {
	return []byte(message), nil
}

func (fakeTranscoder) EncodeConstructor(_ context.Context, constructor string, args []string) ([]byte, error) {
	return []byte(constructor), nil
}

func (fakeTranscoder) DecodeMessageReturn(_ context.Context, _ string, data []byte) (Value, error) {
	return Value{JSON: json.RawMessage(data), Text: string(data)}, nil
}

func (fakeTranscoder) DecodeConstructorReturn(context.Context, string, []byte) (Value, error) {
	return Value{JSON: json.RawMessage(`{"Ok":null}`), Text: "Ok(())"}, nil
}

func (fakeTranscoder) DecodeContractEvent(_ context.Context, data []byte) (Value, error) {
	return Value{JSON: json.RawMessage(`{"Flipped":{"value":true}}`), Text: "Flipped { value: true }"}, nil
}

type fakeConfirmer struct {
	answer  error
	preview string
	asked   int
}

func (c *fakeConfirmer) Confirm(preview func(w io.Writer)) error {
	c.asked++
	var buf bytes.Buffer
	preview(&buf)
	c.preview = buf.String()
	return c.answer
}

type harness struct {
	chain     *fakeChain
	confirmer *fakeConfirmer
	stdout    *bytes.Buffer
	emitted   []any
	orch      *Orchestrator
}

func newHarness(jsonMode bool) *harness {
	h := &harness{chain: &fakeChain{}, confirmer: &fakeConfirmer{}, stdout: &bytes.Buffer{}}
	reporter := &Reporter{Out: h.stdout, JSON: jsonMode, Verbosity: config.VerbosityDefault}
	reporter.Emit = func(data any) error {
		h.emitted = append(h.emitted, data)
		return nil
	}
	h.orch = &Orchestrator{
		Chain:      h.chain,
		Transcoder: fakeTranscoder{},
		Confirmer:  h.confirmer,
		Reporter:   reporter,
		SS58Prefix: ss58.DefaultPrefix,
	}
	return h
}

func (h *harness) emittedJSON(t *testing.T) map[string]any {
	t.Helper()
	require.Len(t, h.emitted, 1)
	buf, err := json.Marshal(h.emitted[0])
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf, &out))
	return out
}

func callRequest(t *testing.T, opts SubmitOptions, override WeightOverride) *CallRequest {
	t.Helper()
	req, err := NewCallRequest(CallParams{
		Contract: ss58.MustEncode(testContract, ss58.DefaultPrefix),
		Message:  "get",
		Args:     []string{"1", "true"},
		Value:    "1 UNIT",
		Weight:   override,
		Options:  opts,
	})
	require.NoError(t, err)
	return req
}

func instantiateRequest(t *testing.T, code Code, opts SubmitOptions) *InstantiateRequest {
	t.Helper()
	req, err := NewInstantiateRequest(InstantiateParams{
		Args:    []string{"false"},
		Salt:    "0xbeef",
		Code:    code,
		Options: opts,
	})
	require.NoError(t, err)
	return req
}

func successOutcome(flags uint32, data string) *Outcome {
	account := testContract
	return &Outcome{
		Value:          &ExecutionValue{Flags: flags, Data: []byte(data), Account: &account},
		GasConsumed:    NewWeight(90, 9),
		GasRequired:    NewWeight(100, 10),
		StorageDeposit: StorageDeposit{Amount: bigInt(1_000_000_000_000)},
	}
}

func TestCallDryRunReportsDecodedValue(t *testing.T) {
	h := newHarness(true)
	h.chain.outcome = successOutcome(0, "42")

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{}, WeightOverride{}))
	require.NoError(t, err)
	require.Equal(t, []string{"token_metadata", "dry_run_call"}, h.chain.calls)

	doc := h.emittedJSON(t)
	require.Equal(t, false, doc["reverted"])
	require.Equal(t, float64(42), doc["data"])
	require.Equal(t, map[string]any{"ref_time": float64(100), "proof_size": float64(10)}, doc["gas_required"])
	require.Equal(t, map[string]any{"Charge": float64(1_000_000_000_000)}, doc["storage_deposit"])
	require.Equal(t, "1000000000000", h.chain.lastCall.Value.String())
	require.Empty(t, h.stdout.String())
}

func TestSkipDryRunWithoutWeightMakesNoNetworkCalls(t *testing.T) {
	h := newHarness(false)
	h.chain.outcome = successOutcome(0, "42")

	req := &CallRequest{contract: testContract, params: CallParams{
		Message: "get",
		Value:   "0",
		Weight:  WeightOverride{ProofSize: ptr(10)},
		Options: SubmitOptions{Execute: true, SkipDryRun: true},
	}}
	err := h.orch.Call(context.Background(), req)
	require.ErrorIs(t, err, ErrMissingExplicitWeight)
	require.Equal(t, 2, clierr.ExitCode(err))
	require.Empty(t, h.chain.calls)
	require.Zero(t, h.confirmer.asked)
}

func TestSkipDryRunSubmitsExplicitWeight(t *testing.T) {
	h := newHarness(true)
	h.chain.sub = &Submission{}

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{Execute: true, SkipDryRun: true, SkipConfirm: true}, WeightOverride{RefTime: ptr(7), ProofSize: ptr(0)}))
	require.NoError(t, err)
	require.Equal(t, []string{"token_metadata", "submit_call", "metadata"}, h.chain.calls)
	require.Equal(t, NewWeight(7, 0), h.chain.lastGas)
	require.Zero(t, h.confirmer.asked)
}

func TestInstantiateDeclinedConfirmationIsClean(t *testing.T) {
	h := newHarness(false)
	out := successOutcome(0, "")
	out.GasRequired = NewWeight(200, 20)
	h.chain.outcome = out
	h.confirmer.answer = ErrCancelled

	err := h.orch.Instantiate(context.Background(), instantiateRequest(t, UploadCode([]byte{0, 'a', 's', 'm'}), SubmitOptions{Execute: true}))
	require.ErrorIs(t, err, ErrCancelled)
	require.False(t, h.chain.submitted())
	require.Equal(t, 1, h.confirmer.asked)
	require.Contains(t, h.confirmer.preview, "Constructor new")
	require.Contains(t, h.confirmer.preview, "Gas limit Weight(ref_time: 200, proof_size: 20)")
	require.NotContains(t, h.confirmer.preview, "Code hash")
	require.NotContains(t, h.stdout.String(), "Contract")
	require.Contains(t, h.stdout.String(), "Dry-running new")
}

func TestCallDispatchFailureJSONCarriesDecodedError(t *testing.T) {
	h := newHarness(true)
	h.chain.outcome = &Outcome{Failure: trapped, GasConsumed: NewWeight(5, 1)}

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{Execute: true}, WeightOverride{}))
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeDispatch, cliErr.Code)
	decoded, ok := cliErr.Details.(DecodedError)
	require.True(t, ok)
	require.Equal(t, "Contracts", decoded.Module.Pallet)
	require.Equal(t, "ContractTrapped", decoded.Module.Error)
	require.False(t, h.chain.submitted())
	require.Zero(t, h.confirmer.asked)
	require.Empty(t, h.stdout.String())
	require.Empty(t, h.emitted)
}

func TestCallDispatchFailureHumanPrintsDecodedError(t *testing.T) {
	h := newHarness(false)
	h.chain.outcome = &Outcome{Failure: trapped, GasConsumed: NewWeight(5, 1), DebugMessage: "panicked at lib.rs\n"}

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{Execute: true}, WeightOverride{}))
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeDispatch, cliErr.Code)
	require.Equal(t, preSubmitFailed, cliErr.Message)
	require.Contains(t, h.stdout.String(), "                Result ModuleError: Contracts::ContractTrapped")
	require.Contains(t, h.stdout.String(), "Gas Consumed Weight(ref_time: 5, proof_size: 1)")
	require.Contains(t, h.stdout.String(), "Debug panicked at lib.rs")
	require.False(t, h.chain.submitted())
}

func TestCallDryRunOnlyDispatchFailureIsError(t *testing.T) {
	h := newHarness(false)
	h.chain.outcome = &Outcome{Failure: &DispatchFailure{Other: "BadOrigin"}}

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{}, WeightOverride{}))
	require.Equal(t, 22, clierr.ExitCode(err))
	require.Contains(t, h.stdout.String(), "Result BadOrigin")
	require.False(t, h.chain.submitted())
}

func TestInstantiateExistingCodeOmitsCodeHash(t *testing.T) {
	h := newHarness(true)
	hash := common.HexToHash("0x1234")
	h.chain.outcome = successOutcome(0, "")
	contract := testContract
	h.chain.sub = &Submission{Contract: &contract}

	err := h.orch.Instantiate(context.Background(), instantiateRequest(t, ExistingCode(hash), SubmitOptions{Execute: true}))
	require.NoError(t, err)
	require.Contains(t, h.confirmer.preview, "Code hash "+hash.Hex())
	require.Equal(t, []byte{0xbe, 0xef}, h.chain.lastInst.Salt)

	doc := h.emittedJSON(t)
	require.Equal(t, ss58.MustEncode(testContract, ss58.DefaultPrefix), doc["contract"])
	_, hasCodeHash := doc["code_hash"]
	require.False(t, hasCodeHash)
	require.Equal(t, []any{}, doc["events"])
}

func TestInstantiateUploadReportsCodeHashHuman(t *testing.T) {
	h := newHarness(false)
	hash := common.HexToHash("0xabcd")
	h.chain.outcome = successOutcome(0, "")
	contract := testContract
	h.chain.sub = &Submission{
		Contract: &contract,
		CodeHash: &hash,
		Events: []Event{{
			Pallet: "Contracts",
			Name:   "ContractEmitted",
			Fields: []EventField{
				{Name: "contract", Value: json.RawMessage(`"` + ss58.MustEncode(testContract, ss58.DefaultPrefix) + `"`)},
				{Name: "data", Value: json.RawMessage(`"0x00"`)},
			},
		}},
	}

	err := h.orch.Instantiate(context.Background(), instantiateRequest(t, UploadCode([]byte{1}), SubmitOptions{Execute: true, SkipConfirm: true}))
	require.NoError(t, err)
	out := h.stdout.String()
	require.Contains(t, out, "Event Contracts ➜ ContractEmitted")
	require.Contains(t, out, "data: Flipped { value: true }")
	require.Contains(t, out, "   Code hash "+hash.Hex())
	require.Contains(t, out, "    Contract "+ss58.MustEncode(testContract, ss58.DefaultPrefix))
}

func TestInstantiateWithoutInstantiatedEventFails(t *testing.T) {
	h := newHarness(true)
	h.chain.outcome = successOutcome(0, "")
	h.chain.sub = &Submission{}

	err := h.orch.Instantiate(context.Background(), instantiateRequest(t, UploadCode([]byte{1}), SubmitOptions{Execute: true, SkipConfirm: true}))
	require.Error(t, err)
	require.Equal(t, 21, clierr.ExitCode(err))
	require.Contains(t, err.Error(), "Failed to find Instantiated event")
	require.Empty(t, h.emitted)
}

func TestRevertedDryRunIsNotAnError(t *testing.T) {
	h := newHarness(true)
	h.chain.outcome = successOutcome(1, `"Err"`)

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{}, WeightOverride{}))
	require.NoError(t, err)
	require.Equal(t, true, h.emittedJSON(t)["reverted"])
}

func TestExecuteOverridesWeightPerAxis(t *testing.T) {
	h := newHarness(false)
	h.chain.outcome = successOutcome(0, "42")
	h.chain.sub = &Submission{}

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{Execute: true}, WeightOverride{RefTime: ptr(500)}))
	require.NoError(t, err)
	require.Equal(t, []string{"token_metadata", "dry_run_call", "submit_call", "metadata"}, h.chain.calls)
	require.Equal(t, NewWeight(500, 10), h.chain.lastGas)
	require.Contains(t, h.confirmer.preview, "Args 1 true")
	require.Contains(t, h.stdout.String(), "Success! Gas required estimated at Weight(ref_time: 100, proof_size: 10)")
}

func TestSubmittedExtrinsicFailureIsDecoded(t *testing.T) {
	h := newHarness(true)
	h.chain.outcome = successOutcome(0, "42")
	h.chain.sub = &Submission{Failure: trapped}

	err := h.orch.Call(context.Background(), callRequest(t, SubmitOptions{Execute: true, SkipConfirm: true}, WeightOverride{}))
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeDispatch, cliErr.Code)
	require.IsType(t, DecodedError{}, cliErr.Details)
}

func TestJSONAndHumanDryRunAgree(t *testing.T) {
	jsonHarness := newHarness(true)
	jsonHarness.chain.outcome = successOutcome(1, "7")
	require.NoError(t, jsonHarness.orch.Call(context.Background(), callRequest(t, SubmitOptions{}, WeightOverride{})))
	doc := jsonHarness.emittedJSON(t)

	humanHarness := newHarness(false)
	humanHarness.chain.outcome = successOutcome(1, "7")
	require.NoError(t, humanHarness.orch.Call(context.Background(), callRequest(t, SubmitOptions{}, WeightOverride{})))
	human := humanHarness.stdout.String()

	consumed := doc["gas_consumed"].(map[string]any)
	require.Contains(t, human, fmt.Sprintf("    Reverted %v\n", doc["reverted"]))
	require.Contains(t, human, fmt.Sprintf("      Result %v\n", doc["data"]))
	require.Contains(t, human, fmt.Sprintf("Gas consumed Weight(ref_time: %v, proof_size: %v)\n", consumed["ref_time"], consumed["proof_size"]))
	require.Contains(t, human, "     Deposit Charge(1 UNIT)\n")
	require.Contains(t, human, "Warning")
}
