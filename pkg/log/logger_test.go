package log

import (
	"bytes"
	"encoding/json"
	"errors"
	stdlog "log"
	"strings"
	"testing"
)

func newBufferLogger(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(&buf)))
	return l, &buf
}

func TestLevelGating(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel, &TextFormatter{DisableTimestamp: true})
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN  shown") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestTextFormatterFieldsSorted(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{DisableTimestamp: true})
	l.With(Component("store")).Info("append", Str("account", "alice"), Int("bytes", 3))
	want := "INFO  append account=alice bytes=3 component=store\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestJSONFormatterError(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &JSONFormatter{})
	l.Error("boom", Err(errors.New("disk full")))
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["error"] != "disk full" || m["level"] != "ERROR" || m["msg"] != "boom" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyConfigRedactsAndSamples(t *testing.T) {
	l, err := ApplyConfig(&Config{
		Level:      "debug",
		Format:     "text",
		Outputs:    []OutputConfig{{Type: "null"}},
		RedactKeys: []string{"token"},
		Sampling:   &SamplingConfig{Initial: 1, Thereafter: 2},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	var buf bytes.Buffer
	bl := l.(*BaseLogger)
	bl.outputs = []Output{NewWriterOutput(&buf)}
	bl.formatter = &TextFormatter{DisableTimestamp: true}

	for i := 0; i < 4; i++ {
		l.Info("auth", Str("token", "secret"))
	}
	out := buf.String()
	if strings.Contains(out, "secret") {
		t.Fatalf("token not redacted: %q", out)
	}
	// occurrences 0 (initial), 1 and 3 pass
	if n := strings.Count(out, "auth"); n != 3 {
		t.Fatalf("want 3 sampled lines, got %d: %q", n, out)
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestToStdLogger(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{DisableTimestamp: true})
	var std *stdlog.Logger = ToStdLogger(l, WarnLevel)
	std.Print("from pebble")
	if !strings.Contains(buf.String(), "WARN  from pebble") {
		t.Fatalf("unexpected: %q", buf.String())
	}
}
