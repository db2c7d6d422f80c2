package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stock-monitor/internal/domain/monitor"
)

// TaskRepo 實作 monitor 應用層的 TaskRepository，使用 Postgres 儲存。
// 單列 UPDATE 本身即為原子寫入，無需顯式交易。
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo 建立新實例。
func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

const taskColumns = `id, symbol, name, interval_seconds, trading_hours_only,
entry_min, entry_max, take_profit, stop_loss,
ai_enabled, notify_enabled, auto_trade_enabled, order_qty,
status, last_run_at, last_result_summary, created_at, updated_at`

// Create 建立任務並回傳 DB 產生的 id。
func (r *TaskRepo) Create(ctx context.Context, t monitor.Task) (string, error) {
	const q = `
INSERT INTO monitor_tasks (symbol, name, interval_seconds, trading_hours_only,
  entry_min, entry_max, take_profit, stop_loss,
  ai_enabled, notify_enabled, auto_trade_enabled, order_qty, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id;
`
	var id string
	if err := r.db.QueryRowContext(ctx, q,
		t.Symbol, t.Name, t.IntervalSeconds, t.TradingHoursOnly,
		nullableFloat(t.EntryMin), nullableFloat(t.EntryMax), nullableFloat(t.TakeProfit), nullableFloat(t.StopLoss),
		t.AIEnabled, t.NotifyEnabled, t.AutoTradeEnabled, t.OrderQty, string(t.Status),
	).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// Get 取得單一任務，查無資料回傳 monitor.ErrTaskNotFound。
func (r *TaskRepo) Get(ctx context.Context, id string) (monitor.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM monitor_tasks WHERE id=$1;`
	t, err := scanTask(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return monitor.Task{}, monitor.ErrTaskNotFound
	}
	return t, err
}

// List 列出任務。預設排除軟刪除資料，除非 filter 明確要求。
func (r *TaskRepo) List(ctx context.Context, filter monitor.Filter) ([]monitor.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM monitor_tasks`
	conds := []string{}
	args := []interface{}{}
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(filter.Status))
	} else if !filter.IncludeDeleted {
		conds = append(conds, fmt.Sprintf("status <> $%d", len(args)+1))
		args = append(args, string(monitor.StatusDeleted))
	}
	if filter.Symbol != "" {
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)+1))
		args = append(args, filter.Symbol)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at ASC LIMIT 500"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []monitor.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update 以 read-modify-write 合併 patch 後整列更新，回傳更新後的任務。
func (r *TaskRepo) Update(ctx context.Context, id string, patch monitor.Patch) (monitor.Task, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return monitor.Task{}, err
	}
	t := patch.Apply(current)

	const q = `
UPDATE monitor_tasks
SET name=$1, interval_seconds=$2, trading_hours_only=$3,
    entry_min=$4, entry_max=$5, take_profit=$6, stop_loss=$7,
    ai_enabled=$8, notify_enabled=$9, auto_trade_enabled=$10, order_qty=$11,
    status=$12, updated_at=NOW()
WHERE id=$13;
`
	res, err := r.db.ExecContext(ctx, q,
		t.Name, t.IntervalSeconds, t.TradingHoursOnly,
		nullableFloat(t.EntryMin), nullableFloat(t.EntryMax), nullableFloat(t.TakeProfit), nullableFloat(t.StopLoss),
		t.AIEnabled, t.NotifyEnabled, t.AutoTradeEnabled, t.OrderQty,
		string(t.Status), id,
	)
	if err != nil {
		return monitor.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return monitor.Task{}, monitor.ErrTaskNotFound
	}
	t.UpdatedAt = time.Now()
	return t, nil
}

// SoftDelete 將任務標記為 deleted，保留歷史紀錄。
func (r *TaskRepo) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE monitor_tasks SET status=$1, updated_at=NOW() WHERE id=$2 AND status <> $1;`
	res, err := r.db.ExecContext(ctx, q, string(monitor.StatusDeleted), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return monitor.ErrTaskNotFound
	}
	return nil
}

// RecordRun 更新單次評估後的執行狀態；摘要以 JSON 字串存入 last_result_summary，
// 重啟後 DecodeSummary 還原邊緣觸發記憶。
func (r *TaskRepo) RecordRun(ctx context.Context, id string, at time.Time, summary monitor.RunSummary) error {
	const q = `UPDATE monitor_tasks SET last_run_at=$1, last_result_summary=$2, updated_at=NOW() WHERE id=$3;`
	res, err := r.db.ExecContext(ctx, q, at, summary.Encode(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return monitor.ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (monitor.Task, error) {
	var t monitor.Task
	var entryMin, entryMax, takeProfit, stopLoss sql.NullFloat64
	var status, summaryRaw string
	var lastRunAt sql.NullTime
	if err := row.Scan(
		&t.ID, &t.Symbol, &t.Name, &t.IntervalSeconds, &t.TradingHoursOnly,
		&entryMin, &entryMax, &takeProfit, &stopLoss,
		&t.AIEnabled, &t.NotifyEnabled, &t.AutoTradeEnabled, &t.OrderQty,
		&status, &lastRunAt, &summaryRaw, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return t, err
	}
	t.EntryMin = floatPtr(entryMin)
	t.EntryMax = floatPtr(entryMax)
	t.TakeProfit = floatPtr(takeProfit)
	t.StopLoss = floatPtr(stopLoss)
	t.Status = monitor.Status(status)
	if lastRunAt.Valid {
		at := lastRunAt.Time
		t.LastRunAt = &at
	}
	t.LastSummary = monitor.DecodeSummary(summaryRaw)
	return t, nil
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
