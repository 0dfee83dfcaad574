package langpipe

import (
	"strings"
	"testing"
)

func TestMapVendorError_RateLimited(t *testing.T) {
	err := MapVendorError(429, "rate_limit_exceeded", "slow down")
	if err.Status != 429 || err.Code != CodeRateLimited {
		t.Errorf("unexpected mapping: %+v", err)
	}
	if !strings.HasPrefix(err.Message, "Rate limited by the model provider.") {
		t.Errorf("expected canonical rate-limit prefix, got %q", err.Message)
	}
	if !strings.Contains(err.Message, "slow down") {
		t.Errorf("vendor message dropped: %q", err.Message)
	}
}

func TestMapVendorError_KeepsVendorCode(t *testing.T) {
	err := MapVendorError(401, "invalid_api_key", "bad key")
	if err.Status != 401 || err.Code != "invalid_api_key" || err.Message != "bad key" {
		t.Errorf("unexpected mapping: %+v", err)
	}
}

func TestMapVendorError_Defaults(t *testing.T) {
	err := MapVendorError(0, "", "")
	if err.Status != 500 || err.Code != CodeInternalServerError {
		t.Errorf("unexpected defaults: %+v", err)
	}
	if err.Message == "" {
		t.Error("expected a fallback message")
	}
}

func TestValidationError(t *testing.T) {
	verr := &ValidationError{}
	if !verr.Empty() {
		t.Error("new ValidationError should be empty")
	}
	verr.Add("messages", "required").Add("pipe.model", "missing")
	if verr.Empty() {
		t.Error("ValidationError with fields should not be empty")
	}
	msg := verr.Error()
	if !strings.Contains(msg, "messages: required") || !strings.Contains(msg, "pipe.model: missing") {
		t.Errorf("expected both fields in message, got %q", msg)
	}
}
