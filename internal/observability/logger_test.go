package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, t.TempDir())

	logger.LogStep("b1", "run-1", "assessment", true)

	var evt map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &evt); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", buf.String(), err)
	}
	if evt["type"] != string(EventTypeStep) {
		t.Errorf("Expected type step, got %v", evt["type"])
	}
	if evt["business_id"] != "b1" || evt["run_id"] != "run-1" {
		t.Errorf("Unexpected ids: %v", evt)
	}
	if evt["timestamp"] == nil {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestLogger_LLMTranscript(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, dir)

	logger.LogLLM("assessment", "describe", "{}")
	logger.LogHeartbeat()

	data, err := os.ReadFile(filepath.Join(dir, "llm.jsonl"))
	if err != nil {
		t.Fatalf("Expected transcript file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("Expected only the llm event in the transcript, got %d lines", len(lines))
	}
}

func TestLogger_Nil(t *testing.T) {
	var logger *Logger
	// Must not panic.
	logger.LogHeartbeat()
}

func TestStatus(t *testing.T) {
	SetStatus(StageCoaching, "b7")
	stage, business, _, _ := GetStatus()
	if stage != StageCoaching || business != "b7" {
		t.Errorf("Expected COACH/b7, got %s/%s", stage, business)
	}

	_, _, before, _ := GetStatus()
	RunFinished()
	stage, business, after, _ := GetStatus()
	if stage != StageIdle || business != "" {
		t.Errorf("Expected idle status after run, got %s/%s", stage, business)
	}
	if after != before+1 {
		t.Errorf("Expected run count to increase by one, got %d -> %d", before, after)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("b1", 25); got != "b1" {
		t.Errorf("Expected short id untouched, got %q", got)
	}
	got := shorten(strings.Repeat("é", 30), 25)
	if !utf8.ValidString(got) {
		t.Errorf("Expected valid UTF-8, got %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 25 {
		t.Errorf("Expected 25 runes, got %d", n)
	}
}
