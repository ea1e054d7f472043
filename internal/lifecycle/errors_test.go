package lifecycle

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ErrorIncludesWrappedCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := newError(CodeStorageFailure, "failed to write version", cause)

	got := err.Error()
	want := "failed to write version: connection refused"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_ErrorWithoutCauseOmitsColon(t *testing.T) {
	err := newError(CodeMissingServiceName, "serviceName is required", nil)
	if err.Error() != "serviceName is required" {
		t.Errorf("Error() = %q, want %q", err.Error(), "serviceName is required")
	}
}

func TestError_UnwrapSupportsErrorsAs(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := newError(CodeCompositionFailed, "composition failed", cause)

	wrapped := fmt.Errorf("coordinator: %w", err)

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("expected errors.As to find the *Error in the chain")
	}
	if target.Code != CodeCompositionFailed {
		t.Errorf("Code = %s, want %s", target.Code, CodeCompositionFailed)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the original cause through Unwrap")
	}
}
