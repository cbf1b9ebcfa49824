package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Validation("amount must be positive")
	if KindOf(err) != KindValidation {
		t.Errorf("Expected KindValidation, got %s", KindOf(err))
	}

	wrapped := fmt.Errorf("handling request: %w", Expired("anchor past last valid height", nil))
	if KindOf(wrapped) != KindExpired {
		t.Errorf("Expected KindExpired through wrapping, got %s", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindInternal {
		t.Errorf("Plain errors should classify as internal")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Expired("expired", nil)) {
		t.Error("Expiry should be retryable")
	}
	if !IsRetryable(Slippage("tolerance exceeded", nil)) {
		t.Error("Slippage should be retryable")
	}
	if IsRetryable(Validation("bad input")) {
		t.Error("Validation should not be retryable")
	}
	if IsRetryable(NoRoute("no viable route")) {
		t.Error("No-route should not be retryable")
	}
}

func TestTerminal(t *testing.T) {
	base := Slippage("tolerance exceeded at ceiling", nil)
	term := Terminal(base)

	if term.Kind != KindSlippage {
		t.Errorf("Terminal should preserve kind, got %s", term.Kind)
	}
	if IsRetryable(term) {
		t.Error("Terminal error must not be retryable")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("submitting transaction", cause)

	if !errors.Is(err, cause) {
		t.Error("Internal should unwrap to its cause")
	}
}
