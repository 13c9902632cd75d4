package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
				t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	if !ValidLevel("info") || !ValidLevel("") {
		t.Fatalf("ValidLevel rejected a known level")
	}
	if ValidLevel("loud") {
		t.Fatalf("ValidLevel(loud) = true, want false")
	}
}

func TestFormatChatEntry(t *testing.T) {
	t.Parallel()

	got := formatChatEntry([]byte(`{"level":"warn","message":"send failed","comp":"outbox","chat_id":42,"time":"x"}`))
	want := "[WARN] send failed\n- chat_id=42\n- comp=outbox"
	if got != want {
		t.Fatalf("formatChatEntry = %q, want %q", got, want)
	}

	raw := formatChatEntry([]byte("  not json  "))
	if raw != "not json" {
		t.Fatalf("formatChatEntry(raw) = %q", raw)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 50)
	if got := truncate(s, 20); len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 20); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero Logger IsZero = false")
	}
	l.With(String("k", "v")).Info("dropped")
	Nop().Component("x").Error("dropped", Err(nil))
}
