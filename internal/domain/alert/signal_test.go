package alert

import (
	"strings"
	"testing"
	"time"

	"stock-monitor/internal/domain/monitor"
)

func TestSignalBody(t *testing.T) {
	s := Signal{
		TaskID:     "t-1",
		TaskName:   "贵州茅台",
		Symbol:     "SH600519",
		Price:      1688.5,
		Rating:     monitor.RatingBuy,
		Confidence: 0.82,
		Conditions: []monitor.Condition{monitor.CondEntryZone, monitor.CondRatingChange},
		At:         time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
	}
	body := s.Body()
	for _, want := range []string{"SH600519", "1688.50", "BUY", "82%", "进入买入区间", "AI评级变化"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if got := s.Title(); !strings.Contains(got, "贵州茅台") {
		t.Errorf("title should carry task name, got %q", got)
	}
}

func TestSignalBodyOmitsUnknownRating(t *testing.T) {
	s := Signal{Symbol: "SZ000001", Price: 9.4, Rating: monitor.RatingUnknown, Conditions: []monitor.Condition{monitor.CondStopLoss}}
	if strings.Contains(s.Body(), "UNKNOWN") {
		t.Fatalf("unknown rating should not appear in body")
	}
}

func TestDelivered(t *testing.T) {
	if Delivered(nil) {
		t.Fatalf("no outcomes should not count as delivered")
	}
	outcomes := []Outcome{
		{Channel: ChannelEmail, Success: false, ErrorDetail: "dial timeout"},
		{Channel: ChannelDingTalk, Success: true},
	}
	if !Delivered(outcomes) {
		t.Fatalf("one success should mean delivered")
	}
}
