package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextLoggerSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := New(Options{Stdout: &stdout, Stderr: &stderr})

	l.Info("hello %s", "world")
	l.Error("boom")

	if !strings.Contains(stdout.String(), "[INFO]  hello world") {
		t.Errorf("Expected info line on stdout, got %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "boom") {
		t.Errorf("Expected error line to stay off stdout, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "[ERROR] boom") {
		t.Errorf("Expected error line on stderr, got %q", stderr.String())
	}
}

func TestTextLoggerTimestampPrecedesLevel(t *testing.T) {
	var stdout bytes.Buffer
	l := New(Options{Stdout: &stdout})

	l.Warn("disk almost full")

	line := stdout.String()
	if strings.HasPrefix(line, "[WARN]") {
		t.Errorf("Expected the timestamp before the level, got %q", line)
	}
	if !strings.HasSuffix(line, "[WARN]  disk almost full\n") {
		t.Errorf("Expected level prefix right before the message, got %q", line)
	}
}

func TestMinLevelFiltersMessages(t *testing.T) {
	var stdout bytes.Buffer
	l := New(Options{Stdout: &stdout, MinLevel: WARN})

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")

	out := stdout.String()
	if strings.Contains(out, "debug") || strings.Contains(out, "info") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "warn") {
		t.Errorf("Expected warn to be written, got %q", out)
	}
}

func TestContextPrefix(t *testing.T) {
	var stdout bytes.Buffer
	l := New(Options{Stdout: &stdout})

	l.WithContext(&LogContext{Backend: "pytorch", Hardware: "cuda", Subset: "gptq", Machine: "1xA10"}).Warn("skipped")

	want := "[Backend:pytorch][Hardware:cuda][Subset:gptq][Machine:1xA10] skipped"
	if !strings.Contains(stdout.String(), want) {
		t.Errorf("Expected %q in output, got %q", want, stdout.String())
	}
}

func TestFieldsAreSorted(t *testing.T) {
	got := formatFields(map[string]interface{}{"b": 2, "a": 1})
	if got != " | a=1 b=2" {
		t.Errorf("Expected sorted fields, got %q", got)
	}
}

func TestJSONMode(t *testing.T) {
	var stdout bytes.Buffer
	l := New(Options{Stdout: &stdout, JSON: true})

	l.InfoWithContext(&LogContext{Model: "gpt2"}, "done %d", 3)

	var entry JSONLogEntry
	if err := json.Unmarshal(stdout.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON line, got error: %v (%q)", err, stdout.String())
	}
	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "done 3" {
		t.Errorf("Expected message 'done 3', got %s", entry.Message)
	}
	if entry.Context == nil || entry.Context.Model != "gpt2" {
		t.Errorf("Expected context model gpt2, got %+v", entry.Context)
	}
}

func TestFatalCallsExit(t *testing.T) {
	var stderr bytes.Buffer
	l := New(Options{Stderr: &stderr})
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("catalog broken")

	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "[FATAL] catalog broken") {
		t.Errorf("Expected fatal line on stderr, got %q", stderr.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"WARNING": WARN,
		"error":   ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}
