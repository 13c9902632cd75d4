package retention

import (
	"context"
	"testing"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

func TestRunKeepsRecentAndUnsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 11, 2, 0, 0, 0, time.UTC)
	st := storage.NewMemory()

	mk := func(at time.Time, sent bool) int64 {
		r, err := st.CreateReminder(ctx, storage.Reminder{OwnerID: "u1", ChatID: 1, Message: "x", At: at})
		if err != nil {
			t.Fatalf("CreateReminder() = %v", err)
		}
		if sent {
			if err := st.MarkSent(ctx, r.ID); err != nil {
				t.Fatalf("MarkSent() = %v", err)
			}
		}
		return r.ID
	}
	old := mk(now.Add(-8*24*time.Hour), true)
	recent := mk(now.Add(-2*24*time.Hour), true)
	missed := mk(now.Add(-30*24*time.Hour), false)

	if err := New(st, 0, func() time.Time { return now }, logx.Nop()).Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	tests := []struct {
		name string
		id   int64
		kept bool
	}{
		{"old sent", old, false},
		{"recent sent", recent, true},
		{"old unsent", missed, true},
	}
	for _, tt := range tests {
		_, err := st.GetReminder(ctx, "u1", tt.id)
		if kept := err == nil; kept != tt.kept {
			t.Fatalf("%s: kept = %v, want %v", tt.name, kept, tt.kept)
		}
	}
}
