package errors

import (
	"fmt"
	"testing"
)

func TestHasCodeWalksWrappedChain(t *testing.T) {
	inner := New(CodeUserRejected, "user rejected the request")
	outer := Wrap(CodeWrongNetwork, "switch network", fmt.Errorf("wallet: %w", inner))
	if !HasCode(outer, CodeUserRejected) {
		t.Fatal("expected nested user-rejected code to be found")
	}
	if !HasCode(outer, CodeWrongNetwork) {
		t.Fatal("expected outer code to be found")
	}
	if HasCode(outer, CodeReverted) {
		t.Fatal("did not expect reverted code")
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := ExitCode(fmt.Errorf("plain")); got != int(CodeInternal) {
		t.Fatalf("expected internal code, got %d", got)
	}
	if got := ExitCode(New(CodeApproval, "approve")); got != int(CodeApproval) {
		t.Fatalf("expected approval code, got %d", got)
	}
	if got := TypeName(CodeWrongNetwork); got != "wrong_network" {
		t.Fatalf("unexpected type name %q", got)
	}
}
