package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("supervisor")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("reconciled", "monitorCount", 2)

	out := buf.String()
	if !strings.Contains(out, "msg=reconciled") {
		t.Fatalf("expected plain reconciled message, got: %s", out)
	}
	if !strings.Contains(out, "component=supervisor") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "monitorCount=2") {
		t.Fatalf("expected monitorCount field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("pause")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should have been filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("expected warn message to pass through: %s", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	L("topology").Debug("scan complete", "monitors", 3)

	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected JSON output, got: %s", out)
	}
	if !strings.Contains(out, `"component":"topology"`) {
		t.Fatalf("expected component field in JSON, got: %s", out)
	}
}
