package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in     string
		want   zerolog.Level
		wantOK bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"INFO", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"verbose", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", false)
	defer Init("info", false)

	WithComponent("selection").Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"selection"`) {
		t.Fatalf("expected component field, got %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("expected message, got %s", out)
	}
}

func TestInitWriterFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", false)
	defer Init("info", false)

	WithComponent("test").Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info message should be filtered at warn level, got %s", buf.String())
	}
}
