package xerrors

import (
	"errors"
	"testing"
)

func TestExecutionError_ErrorIncludesKindAndMessage(t *testing.T) {
	cases := []struct {
		err  *ExecutionError
		want string
	}{
		{MissingExport("get_in"), `missing_export: missing export "get_in"`},
		{Trap("panic: boom"), "trap: panic: boom"},
		{BoundsViolation("offset out of range"), "bounds_violation: offset out of range"},
		{ABIViolation("3 unconsumed bytes"), "abi_violation: 3 unconsumed bytes"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}

func TestDeserializeFailure_WrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("need 4 bytes at offset 0, have 2")
	err := DeserializeFailure(underlying)
	if err.Kind != KindDeserializeFailure {
		t.Errorf("Kind = %v, want KindDeserializeFailure", err.Kind)
	}
	if err.Message != underlying.Error() {
		t.Errorf("Message = %q, want %q", err.Message, underlying.Error())
	}
}

func TestErrorsAs_ExtractsKind(t *testing.T) {
	var wrapped error = Trap("guest panic")
	var execErr *ExecutionError
	if !errors.As(wrapped, &execErr) {
		t.Fatal("errors.As failed to extract *ExecutionError")
	}
	if execErr.Kind != KindTrap {
		t.Errorf("Kind = %v, want KindTrap", execErr.Kind)
	}
}

func TestKindString_CoversAllKinds(t *testing.T) {
	kinds := []Kind{KindMissingExport, KindTrap, KindBoundsViolation, KindABIViolation, KindDeserializeFailure}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "unknown" {
			t.Errorf("Kind %d stringified as unknown", k)
		}
		if seen[s] {
			t.Errorf("Kind %d collides with an earlier kind's string %q", k, s)
		}
		seen[s] = true
	}
}
