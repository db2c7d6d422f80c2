package monitor

import (
	"testing"
	"time"
)

func TestRunSummaryRoundTrip(t *testing.T) {
	s := RunSummary{
		Note:      "evaluated",
		Price:     10.5,
		Rating:    RatingBuy,
		Active:    []Condition{CondEntryZone},
		Triggered: []Condition{CondEntryZone},
		At:        time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	decoded := DecodeSummary(s.Encode())
	if decoded.Price != 10.5 || decoded.Rating != RatingBuy {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
	if !decoded.HasActive(CondEntryZone) {
		t.Fatalf("active condition lost in round trip")
	}
	if decoded.HasActive(CondStopLoss) {
		t.Fatalf("unexpected active condition")
	}
}

func TestDecodeSummaryTolerant(t *testing.T) {
	// 空字串與壞資料都要能讀（舊紀錄相容）
	if s := DecodeSummary(""); s.ConsecutiveErrors != 0 || len(s.Active) != 0 {
		t.Fatalf("empty summary should decode to zero value")
	}
	if s := DecodeSummary("not-json"); s.Rating != "" {
		t.Fatalf("garbage summary should decode to zero value")
	}
}

func TestRunSummaryDegraded(t *testing.T) {
	s := RunSummary{ConsecutiveErrors: 2}
	if s.Degraded() {
		t.Fatalf("two consecutive errors should not degrade")
	}
	s.ConsecutiveErrors = 3
	if !s.Degraded() {
		t.Fatalf("three consecutive errors should degrade")
	}
}

func TestResultFailed(t *testing.T) {
	if (Result{}).Failed() {
		t.Fatalf("zero result should not be failed")
	}
	if !(Result{ErrorCode: ErrCodeDataUnavailable}).Failed() {
		t.Fatalf("result with error code should be failed")
	}
}
