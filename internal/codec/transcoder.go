package codec

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/invoke"
)

// Transcoder encodes and decodes values of one contract, described by its
// ink! metadata.
type Transcoder struct {
	client   *Client
	metadata json.RawMessage
}

func NewTranscoder(client *Client, contractMetadata json.RawMessage) *Transcoder {
	return &Transcoder{client: client, metadata: contractMetadata}
}

type encodeParams struct {
	Metadata json.RawMessage `json:"metadata"`
	Name     string          `json:"name"`
	Args     []string        `json:"args"`
}

type decodeParams struct {
	Metadata json.RawMessage `json:"metadata"`
	Name     string          `json:"name,omitempty"`
	Data     hexutil.Bytes   `json:"data"`
}

type encodeResult struct {
	Data hexutil.Bytes `json:"data"`
}

type valueResult struct {
	Value   json.RawMessage `json:"value"`
	Display string          `json:"display"`
}

func (t *Transcoder) EncodeMessage(ctx context.Context, message string, args []string) ([]byte, error) {
	return t.encode(ctx, "encode_message", message, args)
}

func (t *Transcoder) EncodeConstructor(ctx context.Context, constructor string, args []string) ([]byte, error) {
	return t.encode(ctx, "encode_constructor", constructor, args)
}

func (t *Transcoder) DecodeMessageReturn(ctx context.Context, message string, data []byte) (invoke.Value, error) {
	return t.decode(ctx, "decode_message_return", message, data)
}

func (t *Transcoder) DecodeConstructorReturn(ctx context.Context, constructor string, data []byte) (invoke.Value, error) {
	return t.decode(ctx, "decode_constructor_return", constructor, data)
}

func (t *Transcoder) DecodeContractEvent(ctx context.Context, data []byte) (invoke.Value, error) {
	return t.decode(ctx, "decode_contract_event", "", data)
}

func (t *Transcoder) encode(ctx context.Context, op, name string, args []string) ([]byte, error) {
	if args == nil {
		args = []string{}
	}
	var res encodeResult
	if err := t.client.Do(ctx, op, encodeParams{Metadata: t.metadata, Name: name, Args: args}, &res, clierr.CodeUsage); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (t *Transcoder) decode(ctx context.Context, op, name string, data []byte) (invoke.Value, error) {
	var res valueResult
	if err := t.client.Do(ctx, op, decodeParams{Metadata: t.metadata, Name: name, Data: data}, &res, clierr.CodeDecode); err != nil {
		return invoke.Value{}, err
	}
	return invoke.Value{JSON: res.Value, Text: res.Display}, nil
}
