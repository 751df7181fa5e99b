package errors

import (
	"fmt"
	"testing"
)

func TestExitCodeFromWrappedError(t *testing.T) {
	base := Wrap(CodeUnavailable, "connect rpc", fmt.Errorf("dial tcp: refused"))
	err := fmt.Errorf("call dry-run: %w", base)
	if got := ExitCode(err); got != int(CodeUnavailable) {
		t.Fatalf("expected exit code %d, got %d", CodeUnavailable, got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected exit code 0 for nil error, got %d", got)
	}
	if got := ExitCode(fmt.Errorf("plain")); got != int(CodeInternal) {
		t.Fatalf("expected internal exit code for untyped error, got %d", got)
	}
}

func TestWithDetailsKeepsPayload(t *testing.T) {
	payload := map[string]string{"pallet": "Contracts"}
	err := WithDetails(CodeDispatch, "dry-run failed", payload)
	typed, ok := As(fmt.Errorf("wrapped: %w", err))
	if !ok {
		t.Fatal("expected typed error")
	}
	if typed.Details == nil {
		t.Fatal("expected details to be preserved")
	}
	if TypeName(typed.Code) != "dispatch_error" {
		t.Fatalf("unexpected type name %q", TypeName(typed.Code))
	}
}
