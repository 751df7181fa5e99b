package policy

import "testing"

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "call", true); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"Call"}, "call", false); err != nil {
		t.Fatalf("expected dry-run to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"instantiate"}, "call", false); err == nil {
		t.Fatal("expected command to be blocked")
	}
}

func TestCheckCommandAllowedGatesExecution(t *testing.T) {
	if err := CheckCommandAllowed([]string{"call"}, "call", true); err == nil {
		t.Fatal("expected submission to be blocked by a bare entry")
	}
	if err := CheckCommandAllowed([]string{"call  --execute"}, "call", true); err != nil {
		t.Fatalf("expected submission to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"call --execute"}, "call", false); err != nil {
		t.Fatalf("expected execute entry to allow dry-runs: %v", err)
	}
}
