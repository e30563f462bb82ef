package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesTypeAndCode(t *testing.T) {
	sentinel := New(ErrorTypeValidation, "REMINDER_LIMIT", "reminder limit reached for plan")
	same := New(ErrorTypeValidation, "REMINDER_LIMIT", "different message")
	other := New(ErrorTypeValidation, "VALIDATION", "reminder limit reached for plan")

	if !errors.Is(same, sentinel) {
		t.Error("errors with matching type and code did not match")
	}
	if errors.Is(other, sentinel) {
		t.Error("errors with different codes matched")
	}
}

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling update: %w", NewValidationError("bad input"))
	if !IsValidation(wrapped) {
		t.Error("wrapped validation error lost its classification")
	}
	if IsNotFound(wrapped) {
		t.Error("validation error classified as not-found")
	}

	if !IsNotFound(fmt.Errorf("turn: %w", NewNotFoundError("entry"))) {
		t.Error("wrapped not-found error lost its classification")
	}
}

func TestNewExternalAPIError(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := NewExternalAPIError(cause, "Gemini")

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("NewExternalAPIError() = %T, want *AppError", err)
	}
	if appErr.Type != ErrorTypeExternal {
		t.Errorf("type = %s, want %s", appErr.Type, ErrorTypeExternal)
	}
	if appErr.Context["api"] != "Gemini" {
		t.Errorf("api context = %v, want Gemini", appErr.Context["api"])
	}
	if !errors.Is(err, cause) {
		t.Error("the cause is not reachable through Unwrap")
	}
	if IsValidation(err) || IsNotFound(err) {
		t.Error("external error classified as recoverable input error")
	}
}
