package market

import (
	"testing"
	"time"
)

// 2025-06-02 為週一，2025-06-07 為週六。
func shanghai(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, exchangeLoc)
}

func TestStateRegularSessions(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want SessionState
	}{
		{"before open", shanghai(9, 0), SessionPreMarket},
		{"morning open edge", shanghai(9, 30), SessionOpen},
		{"mid morning", shanghai(10, 45), SessionOpen},
		{"lunch break", shanghai(12, 0), SessionClosed},
		{"afternoon open edge", shanghai(13, 0), SessionOpen},
		{"before close", shanghai(14, 59), SessionOpen},
		{"after close", shanghai(15, 0), SessionAfterHours},
		{"evening", shanghai(20, 0), SessionAfterHours},
	}
	for _, c := range cases {
		if got := State(c.now); got != c.want {
			t.Errorf("%s: got %s want %s", c.name, got, c.want)
		}
	}
}

func TestStateWeekend(t *testing.T) {
	saturday := time.Date(2025, 6, 7, 10, 0, 0, 0, exchangeLoc)
	if got := State(saturday); got != SessionClosed {
		t.Fatalf("saturday should be CLOSED, got %s", got)
	}
	sunday := saturday.Add(24 * time.Hour)
	if got := State(sunday); got != SessionClosed {
		t.Fatalf("sunday should be CLOSED, got %s", got)
	}
}

func TestStateFailsSafe(t *testing.T) {
	if got := State(time.Time{}); got != SessionClosed {
		t.Fatalf("zero time should be CLOSED, got %s", got)
	}
}

func TestStateConvertsTimezone(t *testing.T) {
	// 週一 02:30 UTC = 上海 10:30，應為 OPEN
	utc := time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)
	if !IsOpen(utc) {
		t.Fatalf("02:30 UTC monday should be inside the morning session")
	}
}
