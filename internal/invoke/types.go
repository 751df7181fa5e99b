package invoke

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/ss58"
)

// ExecutionMode is derived from the --execute and --skip-dry-run flags.
type ExecutionMode int

const (
	DryRunOnly ExecutionMode = iota
	EstimateThenSubmit
	SkipDryRunSubmit
)

func ModeFor(execute, skipDryRun bool) ExecutionMode {
	switch {
	case !execute:
		return DryRunOnly
	case skipDryRun:
		return SkipDryRunSubmit
	default:
		return EstimateThenSubmit
	}
}

func (m ExecutionMode) String() string {
	switch m {
	case DryRunOnly:
		return "dry-run"
	case EstimateThenSubmit:
		return "estimate-then-submit"
	case SkipDryRunSubmit:
		return "skip-dry-run-submit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SubmitOptions are the extrinsic flags shared by call and instantiate.
type SubmitOptions struct {
	Execute             bool
	SkipDryRun          bool
	SkipConfirm         bool
	StorageDepositLimit string
}

func (o SubmitOptions) Mode() ExecutionMode {
	return ModeFor(o.Execute, o.SkipDryRun)
}

// CheckWeight rejects a skipped dry-run without both explicit weight axes.
func (o SubmitOptions) CheckWeight(w WeightOverride) error {
	if o.Mode() == SkipDryRunSubmit && !w.Complete() {
		return ErrMissingExplicitWeight
	}
	return nil
}

type CallParams struct {
	Contract string
	Message  string
	Args     []string
	Value    string
	Weight   WeightOverride
	Options  SubmitOptions
}

// CallRequest is a validated, immutable contract call.
type CallRequest struct {
	contract ss58.AccountID
	params   CallParams
}

func NewCallRequest(p CallParams) (*CallRequest, error) {
	if strings.TrimSpace(p.Contract) == "" {
		return nil, clierr.New(clierr.CodeUsage, "--contract is required")
	}
	contract, err := ss58.ParseAccount(p.Contract)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid --contract", err)
	}
	if strings.TrimSpace(p.Message) == "" {
		return nil, clierr.New(clierr.CodeUsage, "--message is required")
	}
	if err := p.Options.CheckWeight(p.Weight); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Value) == "" {
		p.Value = "0"
	}
	p.Args = append([]string(nil), p.Args...)
	p.Weight = copyOverride(p.Weight)
	return &CallRequest{contract: contract, params: p}, nil
}

func (r *CallRequest) Contract() ss58.AccountID { return r.contract }
func (r *CallRequest) Message() string          { return r.params.Message }
func (r *CallRequest) Args() []string           { return append([]string(nil), r.params.Args...) }
func (r *CallRequest) Options() SubmitOptions   { return r.params.Options }
func (r *CallRequest) Weight() WeightOverride   { return copyOverride(r.params.Weight) }

// Code is the code source of an instantiation: either inline Wasm that is
// uploaded with the extrinsic, or the hash of code already on chain.
type Code struct {
	wasm []byte
	hash *common.Hash
}

func UploadCode(wasm []byte) Code {
	return Code{wasm: append([]byte(nil), wasm...)}
}

func ExistingCode(hash common.Hash) Code {
	return Code{hash: &hash}
}

func (c Code) Upload() ([]byte, bool) {
	if c.hash != nil {
		return nil, false
	}
	return c.wasm, true
}

func (c Code) Existing() (common.Hash, bool) {
	if c.hash == nil {
		return common.Hash{}, false
	}
	return *c.hash, true
}

type InstantiateParams struct {
	Constructor string
	Args        []string
	Value       string
	Salt        string
	Code        Code
	Weight      WeightOverride
	Options     SubmitOptions
}

// InstantiateRequest is a validated, immutable instantiation.
type InstantiateRequest struct {
	salt   []byte
	params InstantiateParams
}

func NewInstantiateRequest(p InstantiateParams) (*InstantiateRequest, error) {
	if strings.TrimSpace(p.Constructor) == "" {
		p.Constructor = "new"
	}
	if _, ok := p.Code.Existing(); !ok {
		if wasm, _ := p.Code.Upload(); len(wasm) == 0 {
			return nil, clierr.New(clierr.CodeUsage, "contract code is required: pass a bundle with --file or an existing --code-hash")
		}
	}
	if err := p.Options.CheckWeight(p.Weight); err != nil {
		return nil, err
	}
	salt, err := ParseSalt(p.Salt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Value) == "" {
		p.Value = "0"
	}
	p.Args = append([]string(nil), p.Args...)
	p.Weight = copyOverride(p.Weight)
	return &InstantiateRequest{salt: salt, params: p}, nil
}

func (r *InstantiateRequest) Constructor() string    { return r.params.Constructor }
func (r *InstantiateRequest) Args() []string         { return append([]string(nil), r.params.Args...) }
func (r *InstantiateRequest) Code() Code             { return r.params.Code }
func (r *InstantiateRequest) Salt() []byte           { return append([]byte(nil), r.salt...) }
func (r *InstantiateRequest) Options() SubmitOptions { return r.params.Options }
func (r *InstantiateRequest) Weight() WeightOverride { return copyOverride(r.params.Weight) }

// ParseSalt decodes a hex salt; the 0x prefix is optional.
func ParseSalt(input string) ([]byte, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return nil, nil
	}
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid --salt %q", input), err)
	}
	return buf, nil
}

func copyOverride(o WeightOverride) WeightOverride {
	var out WeightOverride
	if o.RefTime != nil {
		v := *o.RefTime
		out.RefTime = &v
	}
	if o.ProofSize != nil {
		v := *o.ProofSize
		out.ProofSize = &v
	}
	return out
}

// CallTx is a call with its message encoded and balances denominated.
type CallTx struct {
	Contract            ss58.AccountID
	Message             string
	Data                []byte
	Value               *big.Int
	StorageDepositLimit *big.Int
}

// InstantiateTx is an instantiation with its constructor encoded and
// balances denominated.
type InstantiateTx struct {
	Constructor         string
	Code                Code
	Data                []byte
	Salt                []byte
	Value               *big.Int
	StorageDepositLimit *big.Int
}

// ExecutionValue is what a successfully dispatched contract execution returned.
type ExecutionValue struct {
	Flags   uint32          `json:"flags"`
	Data    hexutil.Bytes   `json:"data"`
	Account *ss58.AccountID `json:"-"`
}

// Reverted reports whether the contract flagged its own execution as failed.
func (v ExecutionValue) Reverted() bool {
	return v.Flags&1 != 0
}

// DispatchFailure is an error reported by the chain's execution layer. Module
// errors carry the pallet and error index and need chain metadata to be named.
type DispatchFailure struct {
	Module *ModuleIndex
	Other  string
}

type ModuleIndex struct {
	Pallet uint8
	Error  [4]byte
}

// ParseDispatchFailure reads the JSON form of a DispatchError as returned by
// the contracts RPC and by decoded System.ExtrinsicFailed events.
func ParseDispatchFailure(raw json.RawMessage) (DispatchFailure, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return DispatchFailure{Other: name}, nil
	}
	var variant map[string]json.RawMessage
	if err := json.Unmarshal(raw, &variant); err != nil {
		return DispatchFailure{}, fmt.Errorf("decode dispatch error: %w", err)
	}
	if body, ok := variant["Module"]; ok {
		idx, err := parseModuleIndex(body)
		if err != nil {
			return DispatchFailure{}, err
		}
		return DispatchFailure{Module: &idx}, nil
	}
	for k, v := range variant {
		var inner any
		if err := json.Unmarshal(v, &inner); err != nil || inner == nil {
			return DispatchFailure{Other: k}, nil
		}
		return DispatchFailure{Other: fmt.Sprintf("%s(%v)", k, inner)}, nil
	}
	return DispatchFailure{}, fmt.Errorf("decode dispatch error: empty variant")
}

func parseModuleIndex(body json.RawMessage) (ModuleIndex, error) {
	var m struct {
		Index uint8           `json:"index"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ModuleIndex{}, fmt.Errorf("decode module error: %w", err)
	}
	idx := ModuleIndex{Pallet: m.Index}
	var asHex string
	if err := json.Unmarshal(m.Error, &asHex); err == nil {
		buf, err := hexutil.Decode(asHex)
		if err != nil {
			return ModuleIndex{}, fmt.Errorf("decode module error bytes: %w", err)
		}
		copy(idx.Error[:], buf)
		return idx, nil
	}
	var asNum uint8
	if err := json.Unmarshal(m.Error, &asNum); err != nil {
		return ModuleIndex{}, fmt.Errorf("decode module error index: %w", err)
	}
	idx.Error[0] = asNum
	return idx, nil
}

// StorageDeposit is the balance reserved (Charge) or released (Refund) for
// storage created or removed by an execution.
type StorageDeposit struct {
	Refund bool
	Amount *big.Int
}

func (d StorageDeposit) MarshalJSON() ([]byte, error) {
	amount := d.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	key := "Charge"
	if d.Refund {
		key = "Refund"
	}
	return json.Marshal(map[string]*big.Int{key: amount})
}

// Format denominates the deposit with the token metadata.
func (d StorageDeposit) Format(token balance.TokenMetadata) string {
	kind := "Charge"
	if d.Refund {
		kind = "Refund"
	}
	return fmt.Sprintf("%s(%s)", kind, balance.Format(d.Amount, token))
}

// Outcome is the result of a dry-run. Exactly one of Value and Failure is set.
type Outcome struct {
	Value          *ExecutionValue
	Failure        *DispatchFailure
	GasConsumed    Weight
	GasRequired    Weight
	StorageDeposit StorageDeposit
	DebugMessage   string
}

func (o *Outcome) Ok() bool {
	return o != nil && o.Value != nil && o.Failure == nil
}

// Submission is the result of an included extrinsic.
type Submission struct {
	Events   []Event
	Failure  *DispatchFailure
	Contract *ss58.AccountID
	CodeHash *common.Hash
}

// Event is a runtime event in decoded form.
type Event struct {
	Pallet string       `json:"pallet"`
	Name   string       `json:"name"`
	Fields []EventField `json:"fields"`
}

type EventField struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	TypeName string          `json:"type_name,omitempty"`
}

// Value is a decoded contract value in both its structured and display form.
type Value struct {
	JSON json.RawMessage
	Text string
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.JSON) == 0 {
		return []byte("null"), nil
	}
	return v.JSON, nil
}

func (v Value) String() string {
	if v.Text != "" {
		return v.Text
	}
	return string(v.JSON)
}

// Chain is the node-facing side of an invocation. Implementations own the
// connection and the signing account.
type Chain interface {
	TokenMetadata(ctx context.Context) (balance.TokenMetadata, error)
	DryRunCall(ctx context.Context, tx CallTx) (*Outcome, error)
	DryRunInstantiate(ctx context.Context, tx InstantiateTx) (*Outcome, error)
	SubmitCall(ctx context.Context, tx CallTx, gas Weight) (*Submission, error)
	SubmitInstantiate(ctx context.Context, tx InstantiateTx, gas Weight) (*Submission, error)
	Metadata(ctx context.Context) (*ChainMetadata, error)
}

// Transcoder maps between contract ABI values and their encoded bytes.
type Transcoder interface {
	EncodeMessage(ctx context.Context, message string, args []string) ([]byte, error)
	EncodeConstructor(ctx context.Context, constructor string, args []string) ([]byte, error)
	DecodeMessageReturn(ctx context.Context, message string, data []byte) (Value, error)
	DecodeConstructorReturn(ctx context.Context, constructor string, data []byte) (Value, error)
	DecodeContractEvent(ctx context.Context, data []byte) (Value, error)
}
