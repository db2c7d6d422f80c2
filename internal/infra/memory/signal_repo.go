package memory

import (
	"context"
	"sync"
	"time"

	"stock-monitor/internal/domain/alert"
)

// SignalRepo 記憶體版訊號稽核存儲。
type SignalRepo struct {
	mu      sync.Mutex
	records []alert.Record
	limit   int
}

// NewSignalRepo 建立記憶體實例，最多保留 limit 筆（0 表示不設限）。
func NewSignalRepo(limit int) *SignalRepo {
	return &SignalRepo{limit: limit}
}

func (r *SignalRepo) SaveSignal(_ context.Context, signal alert.Signal, outcomes []alert.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, alert.Record{Signal: signal, Outcomes: outcomes, CreatedAt: time.Now()})
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = r.records[len(r.records)-r.limit:]
	}
	return nil
}

// Recent 回傳最近 n 筆紀錄，新的在前。
func (r *SignalRepo) Recent(_ context.Context, n int) ([]alert.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.records) {
		n = len(r.records)
	}
	out := make([]alert.Record, 0, n)
	for i := len(r.records) - 1; i >= len(r.records)-n; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}
