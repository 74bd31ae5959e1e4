package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithConfig_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithConfig(&buf, "suggest", "info", "json")
	if err != nil {
		t.Fatalf("NewWithConfig error: %v", err)
	}

	l.Debug("hidden")
	l.Info("visible", "partition", "000000000001")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["msg"] != "visible" || entry["partition"] != "000000000001" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewWithConfig_Invalid(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWithConfig(&buf, "", "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewWithConfig(&buf, "", "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := New("x")
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return the given logger")
	}
}
