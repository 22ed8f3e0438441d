package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatValidation,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatValidation, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
	if !strings.Contains(err.Error(), "root") {
		t.Fatalf("expected cause in message, got %q", err.Error())
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := ErrMalformedMetrics("inst-a", "bad payload")
	if err.Details == nil || err.Details["instance_id"] != "inst-a" {
		t.Fatalf("expected instance_id detail to be set")
	}
}

func TestErrorFactories(t *testing.T) {
	if ErrValidation("C", "m").Retryable {
		t.Fatalf("validation should not be retryable")
	}
	if !ErrStoreUnavailable("C", "m").Retryable {
		t.Fatalf("store unavailable should be retryable")
	}
	if !ErrTimeout("m").Retryable {
		t.Fatalf("timeout should be retryable")
	}
	if ErrMalformedMetrics("i", "m").Retryable {
		t.Fatalf("malformed payload should not be retryable")
	}
	if ErrCollector("m").Retryable {
		t.Fatalf("collector failure should not be retryable")
	}
	if ErrNotFound("C", "m").Retryable {
		t.Fatalf("not found should not be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrStoreUnavailable("X", "m")) {
		t.Fatalf("expected retryable error")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("expected non-domain error to be non-retryable")
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory(ErrNotFound("X", "m"), ErrCatNotFound) {
		t.Fatalf("expected category match")
	}
	if IsCategory(errors.New("plain"), ErrCatStore) {
		t.Fatalf("expected non-domain error not to match")
	}
	if !IsStoreUnavailable(ErrStoreUnavailable("X", "m")) {
		t.Fatalf("expected store unavailable to match")
	}
	if IsStoreUnavailable(ErrInternal("m")) {
		t.Fatalf("expected internal error not to match store category")
	}
}
