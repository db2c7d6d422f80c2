package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"stock-monitor/internal/domain/alert"
	"stock-monitor/internal/domain/monitor"
)

// SignalRepo 持久化派發出去的訊號與各通道投遞結果。
type SignalRepo struct {
	db *sql.DB
}

// NewSignalRepo 建立新實例。
func NewSignalRepo(db *sql.DB) *SignalRepo {
	return &SignalRepo{db: db}
}

// SaveSignal 寫入一筆稽核紀錄。條件與結果以 JSON 存放，查詢端不需要反正規化。
func (r *SignalRepo) SaveSignal(ctx context.Context, signal alert.Signal, outcomes []alert.Outcome) error {
	condJSON, err := json.Marshal(signal.Conditions)
	if err != nil {
		return err
	}
	outcomeJSON, err := json.Marshal(outcomes)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO signal_logs (task_id, task_name, symbol, price, rating, conditions, advice, delivered, outcomes, signaled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
	_, err = r.db.ExecContext(ctx, q,
		signal.TaskID, signal.TaskName, signal.Symbol, signal.Price, string(signal.Rating),
		condJSON, signal.Advice, alert.Delivered(outcomes), outcomeJSON, signal.At,
	)
	return err
}

// Recent 回傳最近 n 筆紀錄，新的在前。
func (r *SignalRepo) Recent(ctx context.Context, n int) ([]alert.Record, error) {
	if n <= 0 || n > 200 {
		n = 200
	}
	const q = `
SELECT id, task_id, task_name, symbol, price, rating, conditions, advice, outcomes, signaled_at, created_at
FROM signal_logs
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.Record
	for rows.Next() {
		var rec alert.Record
		var rating string
		var condRaw, outcomeRaw []byte
		if err := rows.Scan(
			&rec.ID, &rec.Signal.TaskID, &rec.Signal.TaskName, &rec.Signal.Symbol, &rec.Signal.Price,
			&rating, &condRaw, &rec.Signal.Advice, &outcomeRaw, &rec.Signal.At, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Signal.Rating = monitor.Rating(rating)
		_ = json.Unmarshal(condRaw, &rec.Signal.Conditions)
		_ = json.Unmarshal(outcomeRaw, &rec.Outcomes)
		out = append(out, rec)
	}
	return out, rows.Err()
}
