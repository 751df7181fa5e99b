package invoke

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ggonzalez94/contract-cli/internal/balance"
	"github.com/ggonzalez94/contract-cli/internal/config"
	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
	"github.com/ggonzalez94/contract-cli/internal/out"
)

var balanceTypeNames = map[string]bool{
	"T::Balance":   true,
	"BalanceOf<T>": true,
}

type displayField struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	TypeName string          `json:"type_name,omitempty"`
	text     string
}

type displayEvent struct {
	Pallet string         `json:"pallet"`
	Name   string         `json:"name"`
	Fields []displayField `json:"fields"`
}

// DisplayEvents is the rendered list of events emitted by a submitted
// extrinsic.
type DisplayEvents struct {
	events []displayEvent
}

// NewDisplayEvents decodes contract-emitted payloads with the transcoder, when
// one is given, and names dispatch errors of failed extrinsics with md.
func NewDisplayEvents(ctx context.Context, events []Event, transcoder Transcoder, md *ChainMetadata) (*DisplayEvents, error) {
	display := &DisplayEvents{events: make([]displayEvent, 0, len(events))}
	for _, ev := range events {
		de := displayEvent{Pallet: ev.Pallet, Name: ev.Name, Fields: make([]displayField, 0, len(ev.Fields))}
		for _, f := range ev.Fields {
			df := displayField{Name: f.Name, Value: f.Value, TypeName: f.TypeName}
			switch {
			case transcoder != nil && ev.Pallet == "Contracts" && ev.Name == "ContractEmitted" && f.Name == "data":
				var raw string
				if err := json.Unmarshal(f.Value, &raw); err != nil {
					return nil, clierr.Wrap(clierr.CodeDecode, "contract event data is not hex", err)
				}
				data, err := decodeHex(raw)
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeDecode, "contract event data is not hex", err)
				}
				v, err := transcoder.DecodeContractEvent(ctx, data)
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeDecode, fmt.Sprintf("failed to decode contract event 0x%x", data), err)
				}
				df.Value, df.text = v.JSON, v.String()
			case ev.Pallet == "System" && ev.Name == "ExtrinsicFailed" && f.Name == "dispatch_error":
				failure, err := ParseDispatchFailure(f.Value)
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeDecode, "decode ExtrinsicFailed event", err)
				}
				decoded := md.Decode(failure)
				buf, err := json.Marshal(decoded)
				if err != nil {
					return nil, err
				}
				df.Value, df.text = buf, decoded.String()
			}
			de.Fields = append(de.Fields, df)
		}
		display.events = append(display.events, de)
	}
	return display, nil
}

func (d *DisplayEvents) MarshalJSON() ([]byte, error) {
	if d == nil || d.events == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.events)
}

// Display renders the events for humans. Quiet prints nothing, the default
// hides fee and bookkeeping events, verbose prints everything.
func (d *DisplayEvents) Display(verbosity config.Verbosity, token balance.TokenMetadata) string {
	if d == nil || verbosity == config.VerbosityQuiet {
		return ""
	}
	indent := strings.Repeat(" ", out.DefaultKeyColWidth-3)
	var b strings.Builder
	fmt.Fprintf(&b, "%*s\n", out.DefaultKeyColWidth, "Events")
	for _, ev := range d.events {
		if verbosity != config.VerbosityVerbose && isBookkeeping(ev) {
			continue
		}
		fmt.Fprintf(&b, "%*s %s ➜ %s\n", out.DefaultKeyColWidth, "Event", ev.Pallet, ev.Name)
		for _, f := range ev.Fields {
			fmt.Fprintf(&b, "%s%s: %s\n", indent, f.Name, f.display(token))
		}
	}
	return b.String()
}

func (f displayField) display(token balance.TokenMetadata) string {
	if f.text != "" {
		return f.text
	}
	var s string
	if err := json.Unmarshal(f.Value, &s); err != nil {
		s = string(f.Value)
	}
	if balanceTypeNames[f.TypeName] {
		if v, ok := new(big.Int).SetString(s, 10); ok {
			return balance.Format(v, token)
		}
	}
	return s
}

func isBookkeeping(ev displayEvent) bool {
	switch ev.Pallet {
	case "TransactionPayment":
		return true
	case "System":
		return ev.Name == "ExtrinsicSuccess"
	}
	return false
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}
