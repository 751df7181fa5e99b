// Package chain implements the node side of contract invocation over the
// substrate JSON-RPC API.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	"github.com/ggonzalez94/contract-cli/internal/codec"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/httpx"
	"github.com/ggonzalez94/contract-cli/internal/invoke"
	"github.com/ggonzalez94/contract-cli/internal/signer"
	"github.com/ggonzalez94/contract-cli/internal/ss58"
)

// Runtime is the SCALE side of the node API, bound to one runtime's
// metadata. *codec.Runtime implements it.
type Runtime interface {
	EncodeDryRunCall(ctx context.Context, args codec.DryRunCallArgs) ([]byte, error)
	EncodeDryRunInstantiate(ctx context.Context, args codec.DryRunInstantiateArgs) ([]byte, error)
	DecodeContractResult(ctx context.Context, kind string, data []byte) (*codec.ContractResult, error)
	ModuleErrors(ctx context.Context) ([]invoke.ModuleError, error)
	DecodeEvents(ctx context.Context, raw []byte) ([]codec.RawEvent, error)
	SigningPayload(ctx context.Context, call codec.RuntimeCall, params codec.SigningParams) (*codec.SigningPayload, error)
	AssembleExtrinsic(ctx context.Context, callData []byte, signer common.Hash, signature []byte, params codec.SigningParams) ([]byte, error)
}

type Options struct {
	URL           string
	Timeout       time.Duration
	Retries       int
	PollInterval  time.Duration
	SubmitTimeout time.Duration
	SS58Prefix    uint16
	// Progress receives the inclusion spinner. Nil disables it.
	Progress io.Writer
	Log      *zap.Logger
}

// Client is an invoke.Chain backed by a node and a signing account.
type Client struct {
	rpc        *rpc.Client
	signer     signer.Signer
	opts       Options
	newRuntime func(metadata []byte) Runtime

	mu       sync.Mutex
	runtime  Runtime
	metadata *invoke.ChainMetadata
}

var _ invoke.Chain = (*Client)(nil)

// Dial connects to the node at opts.URL. Websocket URLs are served over the
// node's HTTP endpoint on the same host and port.
func Dial(ctx context.Context, opts Options, helper *codec.Client, s signer.Signer) (*Client, error) {
	if s == nil {
		return nil, clierr.New(clierr.CodeSigner, "missing signer")
	}
	url := HTTPURL(opts.URL)
	rc, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpx.New(opts.Timeout, opts.Retries)))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("connect to node %s", opts.URL), err)
	}
	return newClient(rc, opts, s, func(md []byte) Runtime { return codec.NewRuntime(helper, md) }), nil
}

func newClient(rc *rpc.Client, opts Options, s signer.Signer, newRuntime func([]byte) Runtime) *Client {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 2 * time.Minute
	}
	return &Client{rpc: rc, signer: s, opts: opts, newRuntime: newRuntime}
}

func (c *Client) Close() {
	c.rpc.Close()
}

// HTTPURL maps ws:// and wss:// endpoints to their http counterparts.
func HTTPURL(url string) string {
	url = strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	}
	return url
}

func (c *Client) TokenMetadata(ctx context.Context) (balance.TokenMetadata, error) {
	var props struct {
		Decimals json.RawMessage `json:"tokenDecimals"`
		Symbol   json.RawMessage `json:"tokenSymbol"`
	}
	if err := c.rpc.CallContext(ctx, &props, "system_properties"); err != nil {
		return balance.TokenMetadata{}, clierr.Wrap(clierr.CodeUnavailable, "query system properties", err)
	}
	token := balance.TokenMetadata{}
	if len(props.Decimals) > 0 {
		var d int
		var ds []int
		switch {
		case json.Unmarshal(props.Decimals, &d) == nil:
			token.Decimals = d
		case json.Unmarshal(props.Decimals, &ds) == nil && len(ds) > 0:
			token.Decimals = ds[0]
		}
	}
	if len(props.Symbol) > 0 {
		var s string
		var ss []string
		switch {
		case json.Unmarshal(props.Symbol, &s) == nil:
			token.Symbol = s
		case json.Unmarshal(props.Symbol, &ss) == nil && len(ss) > 0:
			token.Symbol = ss[0]
		}
	}
	return token, nil
}

func (c *Client) DryRunCall(ctx context.Context, tx invoke.CallTx) (*invoke.Outcome, error) {
	rt, err := c.loadRuntime(ctx)
	if err != nil {
		return nil, err
	}
	args, err := rt.EncodeDryRunCall(ctx, codec.DryRunCallArgs{
		Origin:              c.origin(),
		Dest:                common.Hash(tx.Contract),
		Value:               amount(tx.Value),
		StorageDepositLimit: optionalAmount(tx.StorageDepositLimit),
		InputData:           tx.Data,
	})
	if err != nil {
		return nil, err
	}
	return c.stateCall(ctx, rt, "ContractsApi_call", "call", args)
}

func (c *Client) DryRunInstantiate(ctx context.Context, tx invoke.InstantiateTx) (*invoke.Outcome, error) {
	rt, err := c.loadRuntime(ctx)
	if err != nil {
		return nil, err
	}
	dry := codec.DryRunInstantiateArgs{
		Origin:              c.origin(),
		Value:               amount(tx.Value),
		StorageDepositLimit: optionalAmount(tx.StorageDepositLimit),
		Data:                tx.Data,
		Salt:                tx.Salt,
	}
	if wasm, ok := tx.Code.Upload(); ok {
		dry.Upload = wasm
	} else if hash, ok := tx.Code.Existing(); ok {
		dry.CodeHash = &hash
	}
	args, err := rt.EncodeDryRunInstantiate(ctx, dry)
	if err != nil {
		return nil, err
	}
	return c.stateCall(ctx, rt, "ContractsApi_instantiate", "instantiate", args)
}

func (c *Client) stateCall(ctx context.Context, rt Runtime, method, kind string, args []byte) (*invoke.Outcome, error) {
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "state_call", method, hexutil.Bytes(args)); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "dry-run "+method, err)
	}
	c.opts.Log.Debug("dry-run", zap.String("method", method), zap.Int("result_bytes", len(raw)))
	res, err := rt.DecodeContractResult(ctx, kind, raw)
	if err != nil {
		return nil, err
	}
	return outcomeFrom(res)
}

func outcomeFrom(res *codec.ContractResult) (*invoke.Outcome, error) {
	out := &invoke.Outcome{
		GasConsumed:  res.GasConsumed,
		GasRequired:  res.GasRequired,
		DebugMessage: res.DebugMessage,
	}
	deposit, err := storageDeposit(res)
	if err != nil {
		return nil, err
	}
	out.StorageDeposit = deposit

	switch {
	case res.Result.Ok != nil:
		value := &invoke.ExecutionValue{Flags: res.Result.Ok.Flags, Data: res.Result.Ok.Data}
		if res.Result.Ok.Account != nil {
			id := ss58.AccountID(*res.Result.Ok.Account)
			value.Account = &id
		}
		out.Value = value
	case len(res.Result.Err) > 0:
		failure, err := invoke.ParseDispatchFailure(res.Result.Err)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeDecode, "decode dry-run error", err)
		}
		out.Failure = &failure
	default:
		return nil, clierr.New(clierr.CodeDecode, "dry-run result has neither Ok nor Err")
	}
	return out, nil
}

func storageDeposit(res *codec.ContractResult) (invoke.StorageDeposit, error) {
	raw, refund := res.StorageDeposit.Charge, false
	if res.StorageDeposit.Refund != nil {
		raw, refund = res.StorageDeposit.Refund, true
	}
	if raw == nil {
		return invoke.StorageDeposit{Amount: new(big.Int)}, nil
	}
	v, ok := new(big.Int).SetString(*raw, 10)
	if !ok {
		return invoke.StorageDeposit{}, clierr.New(clierr.CodeDecode, fmt.Sprintf("invalid storage deposit %q", *raw))
	}
	return invoke.StorageDeposit{Refund: refund, Amount: v}, nil
}

// Metadata returns the module errors declared by the connected runtime.
func (c *Client) Metadata(ctx context.Context) (*invoke.ChainMetadata, error) {
	c.mu.Lock()
	md := c.metadata
	c.mu.Unlock()
	if md != nil {
		return md, nil
	}
	rt, err := c.loadRuntime(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := rt.ModuleErrors(ctx)
	if err != nil {
		return nil, err
	}
	md = invoke.NewChainMetadata(entries)
	c.mu.Lock()
	c.metadata = md
	c.mu.Unlock()
	return md, nil
}

func (c *Client) loadRuntime(ctx context.Context) (Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtime != nil {
		return c.runtime, nil
	}
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "state_getMetadata"); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch runtime metadata", err)
	}
	c.opts.Log.Debug("runtime metadata", zap.Int("bytes", len(raw)))
	c.runtime = c.newRuntime(raw)
	return c.runtime, nil
}

func (c *Client) origin() common.Hash {
	return common.Hash(c.signer.AccountID())
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func optionalAmount(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
