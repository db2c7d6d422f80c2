package monitor

import (
	"context"
	"fmt"
	"time"

	"stock-monitor/internal/domain/monitor"
)

// Service 聚合任務 CRUD 與排程器的生命週期掛鉤：
// 新增即註冊、暫停/刪除即下線、更新讓 runner 重讀設定。
type Service struct {
	repo            TaskRepository
	scheduler       *Scheduler
	defaultInterval time.Duration
}

// NewService 建立任務服務。scheduler 可為 nil（例如 migrate 工具只需要 CRUD）。
// defaultInterval 為未指定間隔時的補值，<=0 時退回 5 分鐘。
func NewService(repo TaskRepository, scheduler *Scheduler, defaultInterval time.Duration) *Service {
	if defaultInterval <= 0 {
		defaultInterval = 5 * time.Minute
	}
	return &Service{repo: repo, scheduler: scheduler, defaultInterval: defaultInterval}
}

// Create 驗證並建立任務；狀態為 active 時順帶掛上排程器。
func (s *Service) Create(ctx context.Context, task monitor.Task) (monitor.Task, error) {
	if task.Status == "" {
		task.Status = monitor.StatusActive
	}
	if task.IntervalSeconds == 0 {
		task.IntervalSeconds = int(s.defaultInterval / time.Second)
	}
	if err := task.Validate(); err != nil {
		return monitor.Task{}, err
	}
	id, err := s.repo.Create(ctx, task)
	if err != nil {
		return monitor.Task{}, fmt.Errorf("create task: %w", err)
	}
	task.ID = id
	if s.scheduler != nil && task.Schedulable() {
		if err := s.scheduler.Start(id); err != nil {
			return task, fmt.Errorf("task created but failed to schedule: %w", err)
		}
	}
	return task, nil
}

// Get 取得單一任務。
func (s *Service) Get(ctx context.Context, id string) (monitor.Task, error) {
	return s.repo.Get(ctx, id)
}

// List 列出任務。
func (s *Service) List(ctx context.Context, filter monitor.Filter) ([]monitor.Task, error) {
	return s.repo.List(ctx, filter)
}

// Update 套用部分更新。排程中的任務透過 Reload 在下一個 tick 看到新設定，
// 進行中的評估不受影響。
func (s *Service) Update(ctx context.Context, id string, patch monitor.Patch) (monitor.Task, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return monitor.Task{}, err
	}
	merged := patch.Apply(current)
	if err := merged.Validate(); err != nil {
		return monitor.Task{}, err
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return monitor.Task{}, fmt.Errorf("update task: %w", err)
	}
	if s.scheduler != nil {
		switch {
		case updated.Status == monitor.StatusActive && !s.scheduler.IsRunning(id):
			if err := s.scheduler.Start(id); err != nil {
				return updated, err
			}
		case updated.Status != monitor.StatusActive && s.scheduler.IsRunning(id):
			s.scheduler.Stop(id)
		default:
			s.scheduler.Reload(id)
		}
	}
	return updated, nil
}

// Pause 將任務轉為 paused 並移出排程。
func (s *Service) Pause(ctx context.Context, id string) (monitor.Task, error) {
	status := monitor.StatusPaused
	return s.Update(ctx, id, monitor.Patch{Status: &status})
}

// Resume 將任務轉回 active 並重新掛上排程。
func (s *Service) Resume(ctx context.Context, id string) (monitor.Task, error) {
	status := monitor.StatusActive
	return s.Update(ctx, id, monitor.Patch{Status: &status})
}

// Delete 軟刪除：移出排程、保留紀錄供稽核。
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.scheduler != nil && s.scheduler.IsRunning(id) {
		s.scheduler.Stop(id)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
