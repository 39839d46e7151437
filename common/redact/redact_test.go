package redact_test

import (
	"strings"
	"testing"

	"github.com/cloudcrafter/console/common/redact"
)

func TestStringReplacesSensitiveValues(t *testing.T) {
	line := "oracle call failed: Bearer sk-abc123 rejected"
	got := redact.String(line, "sk-abc123")
	if strings.Contains(got, "sk-abc123") {
		t.Fatalf("secret survived redaction: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("expected placeholder in %q", got)
	}
}

func TestStringSkipsShortValues(t *testing.T) {
	line := "a or b"
	if got := redact.String(line, "a"); got != line {
		t.Fatalf("short value should not be redacted, got %q", got)
	}
}

func TestAttributesRedactsByKeyName(t *testing.T) {
	attrs := map[string]string{
		"ui_payload":     `{"type":"PLAN_STARTED"}`,
		"aws_access_key": "AKIAEXAMPLE",
		"api_token":      "tok-1234",
	}
	got := redact.Attributes(attrs)
	if got["ui_payload"] != attrs["ui_payload"] {
		t.Errorf("non-sensitive key altered: %q", got["ui_payload"])
	}
	if got["aws_access_key"] != "[REDACTED]" || got["api_token"] != "[REDACTED]" {
		t.Errorf("sensitive keys not redacted: %v", got)
	}
	if attrs["aws_access_key"] != "AKIAEXAMPLE" {
		t.Error("input map was mutated")
	}
}
