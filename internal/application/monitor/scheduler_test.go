package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stock-monitor/internal/domain/alert"
	"stock-monitor/internal/domain/market"
	"stock-monitor/internal/domain/monitor"
	"stock-monitor/internal/infra/memory"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	signals []alert.Signal
	fail    bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, signal alert.Signal) []alert.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal)
	return []alert.Outcome{{Channel: alert.ChannelDingTalk, Success: !f.fail}}
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signals)
}

type fakeBroker struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (f *fakeBroker) PlaceOrder(_ context.Context, symbol, side string, qty int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.orders = append(f.orders, symbol+"/"+side)
	return "order-1", nil
}

type schedFixture struct {
	repo       *memory.TaskRepo
	quotes     *fakeQuotes
	dispatcher *fakeDispatcher
	broker     *fakeBroker
	sched      *Scheduler
}

func newFixture(t *testing.T, task monitor.Task, session market.SessionState) (*schedFixture, string) {
	t.Helper()
	repo := memory.NewTaskRepo()
	quotes := &fakeQuotes{prices: []float64{10.5}}
	dispatcher := &fakeDispatcher{}
	broker := &fakeBroker{}
	ev := NewEvaluator(quotes, nil, time.Second, time.Second)
	sched := NewScheduler(repo, ev, dispatcher, broker, time.Second)
	sched.session = func(time.Time) market.SessionState { return session }

	id, err := repo.Create(context.Background(), task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return &schedFixture{repo: repo, quotes: quotes, dispatcher: dispatcher, broker: broker, sched: sched}, id
}

func TestRunOnceGatedTickSkipsCollaborators(t *testing.T) {
	task := monitor.Task{
		Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive,
		TradingHoursOnly: true, NotifyEnabled: true,
		EntryMin: f64(10), EntryMax: f64(12),
		LastSummary: monitor.RunSummary{Active: []monitor.Condition{monitor.CondEntryZone}},
	}
	fx, id := newFixture(t, task, market.SessionClosed)

	fx.sched.runOnce(id)

	if fx.quotes.calls != 0 {
		t.Fatalf("gated tick must not call the data collaborator, got %d calls", fx.quotes.calls)
	}
	got, _ := fx.repo.Get(context.Background(), id)
	if got.LastRunAt == nil {
		t.Fatalf("gated tick should still update last_run_at")
	}
	// 被擋下的 tick 不能洗掉邊緣觸發的記憶
	if !got.LastSummary.HasActive(monitor.CondEntryZone) {
		t.Fatalf("gated tick must preserve previous condition state")
	}
}

func TestRunOnceTriggersDispatchOnce(t *testing.T) {
	task := monitor.Task{
		Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive,
		NotifyEnabled: true, EntryMin: f64(10), EntryMax: f64(12),
	}
	fx, id := newFixture(t, task, market.SessionOpen)
	fx.quotes.prices = []float64{10.5, 10.6, 10.7}

	// 價格連續三個 tick 都在區間內：只能通知一次
	fx.sched.runOnce(id)
	fx.sched.runOnce(id)
	fx.sched.runOnce(id)

	if got := fx.dispatcher.count(); got != 1 {
		t.Fatalf("dispatch fired %d times, want exactly 1", got)
	}
}

func TestRunOnceNoAutoTradeNoBrokerCall(t *testing.T) {
	task := monitor.Task{
		Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive,
		NotifyEnabled: true, EntryMin: f64(10), EntryMax: f64(12),
		AutoTradeEnabled: false,
	}
	fx, id := newFixture(t, task, market.SessionOpen)
	fx.sched.runOnce(id)

	if fx.dispatcher.count() != 1 {
		t.Fatalf("expected a notification")
	}
	if len(fx.broker.orders) != 0 {
		t.Fatalf("auto_trade_enabled=false must mean zero broker calls, got %v", fx.broker.orders)
	}
}

func TestRunOnceAutoTradeOnBuyRating(t *testing.T) {
	task := monitor.Task{
		Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive,
		NotifyEnabled: true, AIEnabled: true, AutoTradeEnabled: true, OrderQty: 100,
		EntryMin: f64(10), EntryMax: f64(12),
	}
	fx, id := newFixture(t, task, market.SessionOpen)
	fx.sched.evaluator = NewEvaluator(fx.quotes, &fakeDecisions{decision: monitor.Decision{Rating: monitor.RatingBuy, Confidence: 0.8}}, time.Second, time.Second)

	fx.sched.runOnce(id)

	if len(fx.broker.orders) != 1 || fx.broker.orders[0] != "SH600519/BUY" {
		t.Fatalf("expected one BUY order, got %v", fx.broker.orders)
	}
}

func TestRunOnceHoldRatingNeverTrades(t *testing.T) {
	task := monitor.Task{
		Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive,
		NotifyEnabled: true, AIEnabled: true, AutoTradeEnabled: true, OrderQty: 100,
		EntryMin: f64(10), EntryMax: f64(12),
	}
	fx, id := newFixture(t, task, market.SessionOpen)
	fx.sched.evaluator = NewEvaluator(fx.quotes, &fakeDecisions{decision: monitor.Decision{Rating: monitor.RatingHold}}, time.Second, time.Second)

	fx.sched.runOnce(id)

	if len(fx.broker.orders) != 0 {
		t.Fatalf("HOLD rating must never place orders, got %v", fx.broker.orders)
	}
}

func TestRunOnceConsecutiveErrorsDegrade(t *testing.T) {
	task := monitor.Task{
		Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive,
		TakeProfit: f64(11),
		LastSummary: monitor.RunSummary{
			Rating: monitor.RatingBuy,
			Active: []monitor.Condition{monitor.CondTakeProfit},
		},
	}
	fx, id := newFixture(t, task, market.SessionOpen)
	fx.quotes.err = errors.New("upstream 502")

	for i := 0; i < 3; i++ {
		fx.sched.runOnce(id)
	}

	degraded, count, err := fx.sched.Health(context.Background(), id)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !degraded || count != 3 {
		t.Fatalf("want degraded after 3 errors, got degraded=%v count=%d", degraded, count)
	}

	got, _ := fx.repo.Get(context.Background(), id)
	if got.Status != monitor.StatusActive {
		t.Fatalf("degraded task must not be auto-paused, got status %s", got.Status)
	}
	// 失敗 tick 不得改寫條件記憶
	if !got.LastSummary.HasActive(monitor.CondTakeProfit) || got.LastSummary.Rating != monitor.RatingBuy {
		t.Fatalf("failed ticks must carry condition state forward: %+v", got.LastSummary)
	}

	// 恢復後歸零
	fx.quotes.err = nil
	fx.sched.runOnce(id)
	_, count, _ = fx.sched.Health(context.Background(), id)
	if count != 0 {
		t.Fatalf("successful tick should reset consecutive errors, got %d", count)
	}
}

func TestRunOncePausedTaskSkips(t *testing.T) {
	task := monitor.Task{Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusPaused, TakeProfit: f64(1)}
	fx, id := newFixture(t, task, market.SessionOpen)
	if next := fx.sched.runOnce(id); next != 60*time.Second {
		t.Fatalf("paused tick should keep the interval, got %s", next)
	}
	if fx.quotes.calls != 0 {
		t.Fatalf("paused task must not be evaluated")
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	task := monitor.Task{Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusActive}
	fx, id := newFixture(t, task, market.SessionOpen)

	if err := fx.sched.Start(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !fx.sched.IsRunning(id) {
		t.Fatalf("task should be running after Start")
	}
	// 重複 Start 為 no-op
	if err := fx.sched.Start(id); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if fx.sched.RunningCount() != 1 {
		t.Fatalf("duplicate start should not add runners")
	}

	fx.sched.Stop(id)
	if fx.sched.IsRunning(id) {
		t.Fatalf("task should not be running after Stop")
	}
}

func TestReloadChangesIntervalWithoutExtraTick(t *testing.T) {
	task := monitor.Task{Symbol: "SH600519", IntervalSeconds: 3600, Status: monitor.StatusActive}
	fx, id := newFixture(t, task, market.SessionOpen)
	fx.quotes.prices = []float64{10, 10, 10}

	if err := fx.sched.Start(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer fx.sched.StopAll(context.Background())

	// 直接寫存儲把間隔縮到 1 秒（繞過服務層驗證，只看排程器語意），
	// 再通知 runner 重讀設定
	secs := 1
	if _, err := fx.repo.Update(context.Background(), id, monitor.Patch{IntervalSeconds: &secs}); err != nil {
		t.Fatalf("update: %v", err)
	}
	fx.sched.Reload(id)

	// reload 只調整 ticker，不能立刻多評估一次
	time.Sleep(300 * time.Millisecond)
	if got := fx.quotes.count(); got != 0 {
		t.Fatalf("reload alone must not trigger an evaluation, got %d quote calls", got)
	}

	// 新間隔在下一個 tick 生效：原本 3600 秒的任務要在幾秒內跑到
	deadline := time.Now().Add(5 * time.Second)
	for fx.quotes.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if fx.quotes.count() == 0 {
		t.Fatalf("updated interval never took effect after reload")
	}
}

func TestSchedulerStartRejectsPaused(t *testing.T) {
	task := monitor.Task{Symbol: "SH600519", IntervalSeconds: 60, Status: monitor.StatusPaused}
	fx, id := newFixture(t, task, market.SessionOpen)
	if err := fx.sched.Start(id); err == nil {
		t.Fatalf("starting a paused task should fail")
	}
}

func TestSchedulerStopAll(t *testing.T) {
	repo := memory.NewTaskRepo()
	ev := NewEvaluator(&fakeQuotes{prices: []float64{10}}, nil, time.Second, time.Second)
	sched := NewScheduler(repo, ev, &fakeDispatcher{}, nil, time.Second)
	sched.session = func(time.Time) market.SessionState { return market.SessionOpen }

	for i := 0; i < 3; i++ {
		id, _ := repo.Create(context.Background(), monitor.Task{Symbol: "SH600000", IntervalSeconds: 60, Status: monitor.StatusActive})
		if err := sched.Start(id); err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
	}
	if sched.RunningCount() != 3 {
		t.Fatalf("want 3 runners, got %d", sched.RunningCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if sched.RunningCount() != 0 {
		t.Fatalf("runners left after StopAll: %d", sched.RunningCount())
	}
}

func TestStartAllLoadsActiveTasks(t *testing.T) {
	repo := memory.NewTaskRepo()
	ev := NewEvaluator(&fakeQuotes{prices: []float64{10}}, nil, time.Second, time.Second)
	sched := NewScheduler(repo, ev, &fakeDispatcher{}, nil, time.Second)

	activeID, _ := repo.Create(context.Background(), monitor.Task{Symbol: "SH600000", IntervalSeconds: 60, Status: monitor.StatusActive})
	pausedID, _ := repo.Create(context.Background(), monitor.Task{Symbol: "SZ000001", IntervalSeconds: 60, Status: monitor.StatusPaused})

	if err := sched.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	defer sched.StopAll(context.Background())

	if !sched.IsRunning(activeID) {
		t.Fatalf("active task should be scheduled")
	}
	if sched.IsRunning(pausedID) {
		t.Fatalf("paused task should not be scheduled")
	}
}
