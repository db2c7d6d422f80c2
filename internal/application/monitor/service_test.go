package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"stock-monitor/internal/domain/market"
	"stock-monitor/internal/domain/monitor"
	"stock-monitor/internal/infra/memory"
)

func newServiceFixture(t *testing.T) (*Service, *Scheduler, *memory.TaskRepo) {
	t.Helper()
	repo := memory.NewTaskRepo()
	ev := NewEvaluator(&fakeQuotes{prices: []float64{10}}, nil, time.Second, time.Second)
	sched := NewScheduler(repo, ev, &fakeDispatcher{}, nil, time.Second)
	sched.session = func(time.Time) market.SessionState { return market.SessionOpen }
	t.Cleanup(func() { _ = sched.StopAll(context.Background()) })
	return NewService(repo, sched, 5*time.Minute), sched, repo
}

func TestServiceCreateSchedulesActiveTask(t *testing.T) {
	svc, sched, _ := newServiceFixture(t)

	created, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519", Name: "贵州茅台", IntervalSeconds: 60})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != monitor.StatusActive {
		t.Fatalf("default status should be active, got %s", created.Status)
	}
	if !sched.IsRunning(created.ID) {
		t.Fatalf("created active task should be scheduled")
	}
}

func TestServiceCreateUsesConfiguredDefaultInterval(t *testing.T) {
	svc := NewService(memory.NewTaskRepo(), nil, 2*time.Minute)

	created, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.IntervalSeconds != 120 {
		t.Fatalf("blank interval should fall back to the configured default, got %d", created.IntervalSeconds)
	}
}

// spyRepo 記錄 Get 次數，用於觀察 runner 是否重讀了設定。
type spyRepo struct {
	TaskRepository
	mu   sync.Mutex
	gets int
}

func (s *spyRepo) Get(ctx context.Context, id string) (monitor.Task, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.TaskRepository.Get(ctx, id)
}

func (s *spyRepo) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func TestServiceUpdateReloadsRunningTask(t *testing.T) {
	repo := &spyRepo{TaskRepository: memory.NewTaskRepo()}
	ev := NewEvaluator(&fakeQuotes{prices: []float64{10}}, nil, time.Second, time.Second)
	sched := NewScheduler(repo, ev, &fakeDispatcher{}, nil, time.Second)
	sched.session = func(time.Time) market.SessionState { return market.SessionOpen }
	svc := NewService(repo, sched, 5*time.Minute)
	t.Cleanup(func() { _ = sched.StopAll(context.Background()) })

	created, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519", IntervalSeconds: 3600})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sched.IsRunning(created.ID) {
		t.Fatalf("created task should be scheduled")
	}

	before := repo.getCount()
	name := "贵州茅台"
	if _, err := svc.Update(context.Background(), created.ID, monitor.Patch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Update 自己讀一次；reload 訊號要讓 runner 再讀一次設定
	deadline := time.Now().Add(2 * time.Second)
	for repo.getCount() < before+2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := repo.getCount(); got < before+2 {
		t.Fatalf("runner never re-read config after update (gets=%d, want >=%d)", got, before+2)
	}
	if !sched.IsRunning(created.ID) {
		t.Fatalf("config-only update must keep the task running")
	}
}

func TestServiceCreateValidates(t *testing.T) {
	svc, _, _ := newServiceFixture(t)
	_, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519", IntervalSeconds: 10})
	if err == nil {
		t.Fatalf("interval below minimum should be rejected")
	}
	_, err = svc.Create(context.Background(), monitor.Task{IntervalSeconds: 60})
	if err == nil {
		t.Fatalf("blank symbol should be rejected")
	}
}

func TestServiceUpdateValidatesMergedTask(t *testing.T) {
	svc, _, _ := newServiceFixture(t)
	created, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519", IntervalSeconds: 60, EntryMax: f64(12)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 合併後 entry_min > entry_max，要被擋下
	_, err = svc.Update(context.Background(), created.ID, monitor.Patch{EntryMin: f64(15)})
	if err == nil {
		t.Fatalf("inverted entry zone after merge should be rejected")
	}
}

func TestServicePauseResume(t *testing.T) {
	svc, sched, _ := newServiceFixture(t)
	created, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519", IntervalSeconds: 60})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paused, err := svc.Pause(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != monitor.StatusPaused || sched.IsRunning(created.ID) {
		t.Fatalf("paused task should be off the scheduler")
	}

	resumed, err := svc.Resume(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != monitor.StatusActive || !sched.IsRunning(created.ID) {
		t.Fatalf("resumed task should be back on the scheduler")
	}
}

func TestServiceDeleteIsSoft(t *testing.T) {
	svc, sched, repo := newServiceFixture(t)
	created, err := svc.Create(context.Background(), monitor.Task{Symbol: "SH600519", IntervalSeconds: 60})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sched.IsRunning(created.ID) {
		t.Fatalf("deleted task should be off the scheduler")
	}
	// 紀錄保留供稽核
	got, err := repo.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("soft-deleted record should remain readable: %v", err)
	}
	if got.Status != monitor.StatusDeleted {
		t.Fatalf("want deleted status, got %s", got.Status)
	}
	// 預設列表不含已刪除
	list, _ := svc.List(context.Background(), monitor.Filter{})
	for _, item := range list {
		if item.ID == created.ID {
			t.Fatalf("deleted task should not appear in default listing")
		}
	}
}
