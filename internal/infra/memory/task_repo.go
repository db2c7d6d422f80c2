package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-monitor/internal/domain/monitor"
)

// TaskRepo 提供記憶體版任務存儲，無 DB 時與測試使用。
// 單一 mutex 即滿足「同 id 的 update/record_run 序列化」要求。
type TaskRepo struct {
	mu    sync.Mutex
	tasks map[string]monitor.Task
	seq   int
}

// NewTaskRepo 建立記憶體實例。
func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: make(map[string]monitor.Task)}
}

func (r *TaskRepo) Create(_ context.Context, task monitor.Task) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("task-%d", r.seq)
	now := time.Now()
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[id] = task
	return id, nil
}

func (r *TaskRepo) Get(_ context.Context, id string) (monitor.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return monitor.Task{}, monitor.ErrTaskNotFound
	}
	return t, nil
}

func (r *TaskRepo) List(_ context.Context, filter monitor.Filter) ([]monitor.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]monitor.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if t.Status == monitor.StatusDeleted && !filter.IncludeDeleted && filter.Status != monitor.StatusDeleted {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Symbol != "" && t.Symbol != filter.Symbol {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TaskRepo) Update(_ context.Context, id string, patch monitor.Patch) (monitor.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return monitor.Task{}, monitor.ErrTaskNotFound
	}
	t = patch.Apply(t)
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return t, nil
}

func (r *TaskRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return monitor.ErrTaskNotFound
	}
	t.Status = monitor.StatusDeleted
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return nil
}

func (r *TaskRepo) RecordRun(_ context.Context, id string, at time.Time, summary monitor.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return monitor.ErrTaskNotFound
	}
	t.LastRunAt = &at
	t.LastSummary = summary
	r.tasks[id] = t
	return nil
}
