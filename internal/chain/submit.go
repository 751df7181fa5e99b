package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/ggonzalez94/contract-cli/internal/codec"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/invoke"
	"github.com/ggonzalez94/contract-cli/internal/ss58"
)

// systemEventsKey is twox128("System") ++ twox128("Events").
const systemEventsKey = "0x26aa394eea5630e07c48ae0c9558cef780d41e5e16056765bc8461851072c9d7"

type header struct {
	Number hexutil.Uint64 `json:"number"`
}

type signedBlock struct {
	Block struct {
		Extrinsics []hexutil.Bytes `json:"extrinsics"`
	} `json:"block"`
}

type runtimeVersion struct {
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

type inclusion struct {
	blockHash common.Hash
	index     uint32
}

func (c *Client) SubmitCall(ctx context.Context, tx invoke.CallTx, gas invoke.Weight) (*invoke.Submission, error) {
	call := codec.RuntimeCall{
		Pallet: "Contracts",
		Name:   "call",
		Args: map[string]any{
			"dest":                  map[string]common.Hash{"Id": common.Hash(tx.Contract)},
			"value":                 amount(tx.Value),
			"gas_limit":             gas,
			"storage_deposit_limit": optionalAmount(tx.StorageDepositLimit),
			"data":                  hexutil.Bytes(tx.Data),
		},
	}
	events, err := c.submitAndWatch(ctx, call)
	if err != nil {
		return nil, err
	}
	return submissionFrom(events)
}

func (c *Client) SubmitInstantiate(ctx context.Context, tx invoke.InstantiateTx, gas invoke.Weight) (*invoke.Submission, error) {
	args := map[string]any{
		"value":                 amount(tx.Value),
		"gas_limit":             gas,
		"storage_deposit_limit": optionalAmount(tx.StorageDepositLimit),
		"data":                  hexutil.Bytes(tx.Data),
		"salt":                  hexutil.Bytes(tx.Salt),
	}
	call := codec.RuntimeCall{Pallet: "Contracts", Args: args}
	if wasm, ok := tx.Code.Upload(); ok {
		call.Name = "instantiate_with_code"
		args["code"] = hexutil.Bytes(wasm)
	} else if hash, ok := tx.Code.Existing(); ok {
		call.Name = "instantiate"
		args["code_hash"] = hash
	} else {
		return nil, clierr.New(clierr.CodeUsage, "instantiate requires code to upload or an existing code hash")
	}
	events, err := c.submitAndWatch(ctx, call)
	if err != nil {
		return nil, err
	}
	return submissionFrom(events)
}

// submitAndWatch signs and submits call, waits until it is part of a
// finalized block and returns the events it emitted.
func (c *Client) submitAndWatch(ctx context.Context, call codec.RuntimeCall) ([]codec.RawEvent, error) {
	rt, err := c.loadRuntime(ctx)
	if err != nil {
		return nil, err
	}
	params, err := c.signingParams(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := rt.SigningPayload(ctx, call, params)
	if err != nil {
		return nil, err
	}
	signature, err := c.signer.Sign(payload.Payload)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "sign extrinsic", err)
	}
	extrinsic, err := rt.AssembleExtrinsic(ctx, payload.CallData, c.origin(), signature, params)
	if err != nil {
		return nil, err
	}
	hash := common.Hash(blake2b.Sum256(extrinsic))

	from, err := c.finalizedNumber(ctx)
	if err != nil {
		return nil, err
	}
	var submitted common.Hash
	if err := c.rpc.CallContext(ctx, &submitted, "author_submitExtrinsic", hexutil.Bytes(extrinsic)); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "submit extrinsic", err)
	}
	c.opts.Log.Debug("extrinsic submitted",
		zap.String("pallet", call.Pallet),
		zap.String("call", call.Name),
		zap.Uint64("nonce", params.Nonce),
		zap.Stringer("hash", submitted))

	inc, err := c.waitForInclusion(ctx, hash, from+1)
	if err != nil {
		return nil, err
	}
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "state_getStorage", systemEventsKey, inc.blockHash); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch block events", err)
	}
	all, err := rt.DecodeEvents(ctx, raw)
	if err != nil {
		return nil, err
	}
	var events []codec.RawEvent
	for _, ev := range all {
		if ev.ExtrinsicIndex != nil && *ev.ExtrinsicIndex == inc.index {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (c *Client) signingParams(ctx context.Context) (codec.SigningParams, error) {
	address, err := ss58.Encode(c.signer.AccountID(), c.opts.SS58Prefix)
	if err != nil {
		return codec.SigningParams{}, clierr.Wrap(clierr.CodeSigner, "encode signer address", err)
	}
	var nonce uint64
	if err := c.rpc.CallContext(ctx, &nonce, "system_accountNextIndex", address); err != nil {
		return codec.SigningParams{}, clierr.Wrap(clierr.CodeUnavailable, "query account nonce", err)
	}
	var genesis common.Hash
	if err := c.rpc.CallContext(ctx, &genesis, "chain_getBlockHash", 0); err != nil {
		return codec.SigningParams{}, clierr.Wrap(clierr.CodeUnavailable, "query genesis hash", err)
	}
	var version runtimeVersion
	if err := c.rpc.CallContext(ctx, &version, "state_getRuntimeVersion"); err != nil {
		return codec.SigningParams{}, clierr.Wrap(clierr.CodeUnavailable, "query runtime version", err)
	}
	return codec.SigningParams{
		Nonce:              nonce,
		GenesisHash:        genesis,
		SpecVersion:        version.SpecVersion,
		TransactionVersion: version.TransactionVersion,
		Tip:                "0",
	}, nil
}

func (c *Client) finalizedNumber(ctx context.Context) (uint64, error) {
	var head common.Hash
	if err := c.rpc.CallContext(ctx, &head, "chain_getFinalizedHead"); err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, "query finalized head", err)
	}
	var h header
	if err := c.rpc.CallContext(ctx, &h, "chain_getHeader", head); err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, "query finalized header", err)
	}
	return uint64(h.Number), nil
}

// waitForInclusion scans finalized blocks from block number from onwards
// until one carries the extrinsic with the given hash.
func (c *Client) waitForInclusion(ctx context.Context, hash common.Hash, from uint64) (inclusion, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.SubmitTimeout)
	defer cancel()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var bar *progressbar.ProgressBar
	if c.opts.Progress != nil {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(c.opts.Progress),
			progressbar.OptionSetDescription("Waiting for finalization"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
	}

	next := from
	for {
		head, err := c.finalizedNumber(waitCtx)
		if err == nil {
			for ; next <= head; next++ {
				inc, found, err := c.findInBlock(waitCtx, next, hash)
				if err != nil {
					// Transient polling failures are retried on the next tick.
					c.opts.Log.Debug("scan block", zap.Uint64("number", next), zap.Error(err))
					break
				}
				if found {
					c.opts.Log.Debug("extrinsic finalized", zap.Uint64("block", next), zap.Uint32("index", inc.index))
					return inc, nil
				}
			}
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return inclusion{}, ctx.Err()
			}
			return inclusion{}, clierr.Wrap(clierr.CodeSubmitTimeout, fmt.Sprintf("timed out waiting for extrinsic %s", hash), waitCtx.Err())
		case <-ticker.C:
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}
}

func (c *Client) findInBlock(ctx context.Context, number uint64, hash common.Hash) (inclusion, bool, error) {
	var blockHash common.Hash
	if err := c.rpc.CallContext(ctx, &blockHash, "chain_getBlockHash", number); err != nil {
		return inclusion{}, false, err
	}
	var block signedBlock
	if err := c.rpc.CallContext(ctx, &block, "chain_getBlock", blockHash); err != nil {
		return inclusion{}, false, err
	}
	for i, ext := range block.Block.Extrinsics {
		if common.Hash(blake2b.Sum256(ext)) == hash {
			return inclusion{blockHash: blockHash, index: uint32(i)}, true, nil
		}
	}
	return inclusion{}, false, nil
}

func submissionFrom(events []codec.RawEvent) (*invoke.Submission, error) {
	sub := &invoke.Submission{Events: make([]invoke.Event, 0, len(events))}
	for _, ev := range events {
		sub.Events = append(sub.Events, invoke.Event{Pallet: ev.Pallet, Name: ev.Name, Fields: ev.Fields})
		switch ev.Pallet + "." + ev.Name {
		case "System.ExtrinsicFailed":
			raw, ok := field(ev, "dispatch_error")
			if !ok {
				return nil, clierr.New(clierr.CodeDecode, "ExtrinsicFailed event without dispatch_error")
			}
			failure, err := invoke.ParseDispatchFailure(raw)
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeDecode, "decode dispatch error", err)
			}
			sub.Failure = &failure
		case "Contracts.Instantiated":
			if id, ok := accountField(ev, "contract"); ok {
				sub.Contract = &id
			}
		case "Contracts.CodeStored":
			if h, ok := hashField(ev, "code_hash"); ok {
				sub.CodeHash = &h
			}
		}
	}
	return sub, nil
}

func field(ev codec.RawEvent, name string) (json.RawMessage, bool) {
	for _, f := range ev.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func hashField(ev codec.RawEvent, name string) (common.Hash, bool) {
	raw, ok := field(ev, name)
	if !ok {
		return common.Hash{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return common.Hash{}, false
	}
	buf, err := hexutil.Decode(s)
	if err != nil || len(buf) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(buf), true
}

// accountField accepts both the SS58 and the hex form of an account id.
func accountField(ev codec.RawEvent, name string) (ss58.AccountID, bool) {
	raw, ok := field(ev, name)
	if !ok {
		return ss58.AccountID{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ss58.AccountID{}, false
	}
	id, err := ss58.ParseAccount(s)
	if err != nil {
		return ss58.AccountID{}, false
	}
	return id, true
}
