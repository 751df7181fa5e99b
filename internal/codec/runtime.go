package codec

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/invoke"
)

// DryRunCallArgs are the arguments of the ContractsApi_call runtime API.
type DryRunCallArgs struct {
	Origin              common.Hash    `json:"origin"`
	Dest                common.Hash    `json:"dest"`
	Value               string         `json:"value"`
	GasLimit            *invoke.Weight `json:"gas_limit"`
	StorageDepositLimit *string        `json:"storage_deposit_limit"`
	InputData           hexutil.Bytes  `json:"input_data"`
}

// DryRunInstantiateArgs are the arguments of the ContractsApi_instantiate
// runtime API. Exactly one of Upload and CodeHash is set.
type DryRunInstantiateArgs struct {
	Origin              common.Hash    `json:"origin"`
	Value               string         `json:"value"`
	GasLimit            *invoke.Weight `json:"gas_limit"`
	StorageDepositLimit *string        `json:"storage_deposit_limit"`
	Upload              hexutil.Bytes  `json:"upload,omitempty"`
	CodeHash            *common.Hash   `json:"code_hash,omitempty"`
	Data                hexutil.Bytes  `json:"data"`
	Salt                hexutil.Bytes  `json:"salt"`
}

// ContractResult is the decoded ContractResult of a runtime API dry-run.
type ContractResult struct {
	GasConsumed    invoke.Weight `json:"gas_consumed"`
	GasRequired    invoke.Weight `json:"gas_required"`
	StorageDeposit struct {
		Charge *string `json:"Charge,omitempty"`
		Refund *string `json:"Refund,omitempty"`
	} `json:"storage_deposit"`
	DebugMessage string `json:"debug_message"`
	Result       struct {
		Ok *struct {
			Flags   uint32        `json:"flags"`
			Data    hexutil.Bytes `json:"data"`
			Account *common.Hash  `json:"account,omitempty"`
		} `json:"Ok,omitempty"`
		Err json.RawMessage `json:"Err,omitempty"`
	} `json:"result"`
}

// RuntimeCall is an extrinsic call in pallet/function/args form.
type RuntimeCall struct {
	Pallet string         `json:"pallet"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
}

// SigningParams carries everything that goes into a signing payload besides
// the call itself.
type SigningParams struct {
	Nonce              uint64      `json:"nonce"`
	GenesisHash        common.Hash `json:"genesis_hash"`
	SpecVersion        uint32      `json:"spec_version"`
	TransactionVersion uint32      `json:"transaction_version"`
	Tip                string      `json:"tip"`
}

type SigningPayload struct {
	CallData hexutil.Bytes `json:"call_data"`
	Payload  hexutil.Bytes `json:"payload"`
}

// RawEvent is a runtime event as decoded by the helper.
type RawEvent struct {
	ExtrinsicIndex *uint32             `json:"extrinsic_index"`
	Pallet         string              `json:"pallet"`
	Name           string              `json:"name"`
	Fields         []invoke.EventField `json:"fields"`
}

type runtimeParams struct {
	Runtime hexutil.Bytes `json:"runtime_metadata"`
	Args    any           `json:"args,omitempty"`
	Data    hexutil.Bytes `json:"data,omitempty"`
}

// Runtime binds the helper to one chain's runtime metadata.
type Runtime struct {
	client   *Client
	metadata hexutil.Bytes
}

func NewRuntime(client *Client, runtimeMetadata []byte) *Runtime {
	return &Runtime{client: client, metadata: runtimeMetadata}
}

func (r *Runtime) EncodeDryRunCall(ctx context.Context, args DryRunCallArgs) ([]byte, error) {
	var res encodeResult
	err := r.client.Do(ctx, "encode_dry_run_call", runtimeParams{Runtime: r.metadata, Args: args}, &res, clierr.CodeUsage)
	return res.Data, err
}

func (r *Runtime) EncodeDryRunInstantiate(ctx context.Context, args DryRunInstantiateArgs) ([]byte, error) {
	var res encodeResult
	err := r.client.Do(ctx, "encode_dry_run_instantiate", runtimeParams{Runtime: r.metadata, Args: args}, &res, clierr.CodeUsage)
	return res.Data, err
}

// DecodeContractResult decodes the SCALE result of a dry-run. kind is "call"
// or "instantiate".
func (r *Runtime) DecodeContractResult(ctx context.Context, kind string, data []byte) (*ContractResult, error) {
	var res ContractResult
	if err := r.client.Do(ctx, "decode_contract_result", runtimeParams{Runtime: r.metadata, Args: map[string]string{"kind": kind}, Data: data}, &res, clierr.CodeDecode); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Runtime) ModuleErrors(ctx context.Context) ([]invoke.ModuleError, error) {
	var res struct {
		Errors []invoke.ModuleError `json:"errors"`
	}
	if err := r.client.Do(ctx, "module_errors", runtimeParams{Runtime: r.metadata}, &res, clierr.CodeDecode); err != nil {
		return nil, err
	}
	return res.Errors, nil
}

// DecodeEvents decodes the raw System.Events storage value.
func (r *Runtime) DecodeEvents(ctx context.Context, raw []byte) ([]RawEvent, error) {
	var res struct {
		Events []RawEvent `json:"events"`
	}
	if err := r.client.Do(ctx, "decode_events", runtimeParams{Runtime: r.metadata, Data: raw}, &res, clierr.CodeDecode); err != nil {
		return nil, err
	}
	return res.Events, nil
}

func (r *Runtime) SigningPayload(ctx context.Context, call RuntimeCall, params SigningParams) (*SigningPayload, error) {
	var res SigningPayload
	args := map[string]any{"call": call, "signing": params}
	if err := r.client.Do(ctx, "signing_payload", runtimeParams{Runtime: r.metadata, Args: args}, &res, clierr.CodeUsage); err != nil {
		return nil, err
	}
	return &res, nil
}

// AssembleExtrinsic builds a signed extrinsic from call data, the signer's
// account and an ecdsa signature.
func (r *Runtime) AssembleExtrinsic(ctx context.Context, callData []byte, signer common.Hash, signature []byte, params SigningParams) ([]byte, error) {
	var res struct {
		Extrinsic hexutil.Bytes `json:"extrinsic"`
	}
	args := map[string]any{
		"call_data": hexutil.Bytes(callData),
		"signer":    signer,
		"signature": map[string]hexutil.Bytes{"Ecdsa": signature},
		"signing":   params,
	}
	if err := r.client.Do(ctx, "assemble_extrinsic", runtimeParams{Runtime: r.metadata, Args: args}, &res, clierr.CodeInternal); err != nil {
		return nil, err
	}
	return res.Extrinsic, nil
}
