package invoke

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/contract-cli/internal/config"
)

func sampleEvents() []Event {
	return []Event{
		{Pallet: "Balances", Name: "Withdraw", Fields: []EventField{
			{Name: "who", Value: json.RawMessage(`"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"`)},
			{Name: "amount", Value: json.RawMessage(`"2500000000000"`), TypeName: "T::Balance"},
		}},
		{Pallet: "System", Name: "ExtrinsicFailed", Fields: []EventField{
			{Name: "dispatch_error", Value: json.RawMessage(`{"Module":{"index":8,"error":"0x0b000000"}}`)},
		}},
		{Pallet: "TransactionPayment", Name: "TransactionFeePaid"},
	}
}

func TestDisplayEventsHuman(t *testing.T) {
	events, err := NewDisplayEvents(context.Background(), sampleEvents(), nil, testMetadata)
	require.NoError(t, err)

	got := events.Display(config.VerbosityDefault, testToken)
	require.Contains(t, got, "      Events\n")
	require.Contains(t, got, "       Event Balances ➜ Withdraw\n")
	require.Contains(t, got, "         amount: 2.5 UNIT\n")
	require.Contains(t, got, "dispatch_error: ModuleError: Contracts::ContractTrapped")
	require.NotContains(t, got, "TransactionFeePaid")

	require.Contains(t, events.Display(config.VerbosityVerbose, testToken), "TransactionPayment ➜ TransactionFeePaid")
	require.Empty(t, events.Display(config.VerbosityQuiet, testToken))
}

func TestDisplayEventsJSON(t *testing.T) {
	events, err := NewDisplayEvents(context.Background(), sampleEvents()[1:2], nil, testMetadata)
	require.NoError(t, err)

	buf, err := json.Marshal(events)
	require.NoError(t, err)
	require.JSONEq(t, `[{"pallet":"System","name":"ExtrinsicFailed","fields":[{"name":"dispatch_error","value":{"Module":{"pallet":"Contracts","error":"ContractTrapped","docs":["Contract trapped during execution."]}}}]}]`, string(buf))
}

func TestDisplayEventsDecodesContractEvents(t *testing.T) {
	raw := []Event{{Pallet: "Contracts", Name: "ContractEmitted", Fields: []EventField{{Name: "data", Value: json.RawMessage(`"0x0001"`)}}}}

	undecoded, err := NewDisplayEvents(context.Background(), raw, nil, nil)
	require.NoError(t, err)
	require.Contains(t, undecoded.Display(config.VerbosityDefault, testToken), "data: 0x0001")

	decoded, err := NewDisplayEvents(context.Background(), raw, fakeTranscoder{}, nil)
	require.NoError(t, err)
	require.Contains(t, decoded.Display(config.VerbosityDefault, testToken), "data: Flipped { value: true }")

	bad := []Event{{Pallet: "Contracts", Name: "ContractEmitted", Fields: []EventField{{Name: "data", Value: json.RawMessage(`"0xzz"`)}}}}
	_, err = NewDisplayEvents(context.Background(), bad, fakeTranscoder{}, nil)
	require.Error(t, err)
}
