package codec

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// fakeHelper re-runs the test binary as the codec helper.
func fakeHelper(t *testing.T, env ...string) *Client {
	t.Helper()
	c := New("contract-codec", nil)
	c.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"), env...)
		return cmd
	}
	return c
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 2 && args[2] == "--version" {
		v := os.Getenv("FAKE_CODEC_VERSION")
		if v == "" {
			v = "0.4.2"
		}
		fmt.Printf("contract-codec %s\n", v)
		return
	}

	if os.Getenv("FAKE_CODEC_MODE") == "crash" {
		fmt.Fprintln(os.Stderr, "thread 'main' panicked")
		os.Exit(101)
	}

	body, _ := io.ReadAll(os.Stdin)
	var req struct {
		Op     string         `json:"op"`
		Params map[string]any `json:"params"`
	}
	_ = json.Unmarshal(body, &req)

	reply := func(result any) {
		_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"status": "success", "result": result})
	}
	switch req.Op {
	case "encode_message", "encode_constructor":
		name, _ := req.Params["name"].(string)
		reply(map[string]any{"data": "0x" + hex.EncodeToString([]byte(name))})
	case "decode_message_return":
		reply(map[string]any{"value": map[string]any{"Ok": 42}, "display": "Ok(42)"})
	case "module_errors":
		reply(map[string]any{"errors": []map[string]any{{"pallet_index": 8, "error_index": 11, "pallet": "Contracts", "error": "ContractTrapped", "docs": []string{"trapped"}}}})
	case "decode_contract_result":
		reply(map[string]any{
			"gas_consumed":    map[string]any{"ref_time": 90, "proof_size": 9},
			"gas_required":    map[string]any{"ref_time": 100, "proof_size": 10},
			"storage_deposit": map[string]any{"Refund": "25"},
			"debug_message":   "",
			"result":          map[string]any{"Err": map[string]any{"Module": map[string]any{"index": 8, "error": "0x0b000000"}}},
		})
	default:
		_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"status": "error", "error": "unknown message " + req.Op})
	}
}

func TestCheckVersionAcceptsSupportedHelper(t *testing.T) {
	c := fakeHelper(t)
	require.NoError(t, c.CheckVersion(context.Background()))
	require.True(t, c.verified)
}

func TestCheckVersionRejectsOldHelper(t *testing.T) {
	c := fakeHelper(t, "FAKE_CODEC_VERSION=0.3.9")
	err := c.CheckVersion(context.Background())
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeUnsupported, cliErr.Code)
}

func TestMissingHelperIsUnavailable(t *testing.T) {
	c := New("contract-codec-does-not-exist", nil)
	err := c.CheckVersion(context.Background())
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeUnavailable, cliErr.Code)
	require.Contains(t, cliErr.Message, "--codec")
}

func TestDoReportsHelperErrorsWithFailCode(t *testing.T) {
	c := fakeHelper(t)
	err := c.Do(context.Background(), "nope", nil, nil, clierr.CodeDecode)
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeDecode, cliErr.Code)
	require.Contains(t, cliErr.Message, "unknown message nope")
}

func TestDoReportsCrashedHelper(t *testing.T) {
	c := fakeHelper(t, "FAKE_CODEC_MODE=crash")
	err := c.Do(context.Background(), "encode_message", nil, nil, clierr.CodeUsage)
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeUnavailable, cliErr.Code)
	require.Contains(t, cliErr.Message, "panicked")
}

func TestTranscoderRoundTrip(t *testing.T) {
	tc := NewTranscoder(fakeHelper(t), json.RawMessage(`{"spec":{}}`))

	data, err := tc.EncodeMessage(context.Background(), "flip", nil)
	require.NoError(t, err)
	require.Equal(t, []byte("flip"), data)

	v, err := tc.DecodeMessageReturn(context.Background(), "get", []byte{0, 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"Ok":42}`, string(v.JSON))
	require.Equal(t, "Ok(42)", v.String())

	_, err = tc.DecodeContractEvent(context.Background(), []byte{1})
	cliErr, ok := clierr.As(err)
	require.True(t, ok)
	require.Equal(t, clierr.CodeDecode, cliErr.Code)
}

func TestRuntimeDecodesResultsAndErrors(t *testing.T) {
	rt := NewRuntime(fakeHelper(t), []byte{0x6d, 0x65, 0x74, 0x61})

	errs, err := rt.ModuleErrors(context.Background())
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, "ContractTrapped", errs[0].Error)

	res, err := rt.DecodeContractResult(context.Background(), "call", []byte{0})
	require.NoError(t, err)
	require.Nil(t, res.Result.Ok)
	require.JSONEq(t, `{"Module":{"index":8,"error":"0x0b000000"}}`, string(res.Result.Err))
	require.Equal(t, "25", *res.StorageDeposit.Refund)
	require.Equal(t, uint64(100), res.GasRequired.RefTime)
}
