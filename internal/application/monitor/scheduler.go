package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"stock-monitor/internal/domain/alert"
	"stock-monitor/internal/domain/market"
	"stock-monitor/internal/domain/monitor"
)

// TaskRepository 為任務存取的單一真相來源。
type TaskRepository interface {
	Create(ctx context.Context, task monitor.Task) (string, error)
	Get(ctx context.Context, id string) (monitor.Task, error)
	List(ctx context.Context, filter monitor.Filter) ([]monitor.Task, error)
	Update(ctx context.Context, id string, patch monitor.Patch) (monitor.Task, error)
	SoftDelete(ctx context.Context, id string) error
	RecordRun(ctx context.Context, id string, at time.Time, summary monitor.RunSummary) error
}

// Dispatcher 將觸發訊號送往各通知通道。
type Dispatcher interface {
	Dispatch(ctx context.Context, signal alert.Signal) []alert.Outcome
}

// OrderPlacer 對接券商下單，僅在任務開啟自動交易且評級為 BUY/SELL 時呼叫。
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, symbol, side string, qty int) (string, error)
}

// SessionFunc 回傳目前的交易時段，預設為 market.State。
type SessionFunc func(now time.Time) market.SessionState

// Scheduler 擁有「任務 id → 執行中 runner」的對應表。
// 每個啟用中的任務有自己的 goroutine 與 ticker；任務之間互不影響，
// 同一任務保證同時間最多一次評估在跑（runner 逐 tick 處理，
// ticker 會丟棄來不及消化的 tick，慢評估只會讓下一個 tick 被跳過）。
type Scheduler struct {
	repo         TaskRepository
	evaluator    *Evaluator
	dispatcher   Dispatcher
	broker       OrderPlacer
	session      SessionFunc
	orderTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	runners map[string]*taskRunner
}

// taskRunner 是單一任務的排程單元。
type taskRunner struct {
	taskID string
	cancel context.CancelFunc
	done   chan struct{}
	reload chan struct{}
}

// NewScheduler 建立排程器。broker 可為 nil（純監控模式）。
func NewScheduler(repo TaskRepository, evaluator *Evaluator, dispatcher Dispatcher, broker OrderPlacer, orderTimeout time.Duration) *Scheduler {
	if orderTimeout <= 0 {
		orderTimeout = 15 * time.Second
	}
	return &Scheduler{
		repo:         repo,
		evaluator:    evaluator,
		dispatcher:   dispatcher,
		broker:       broker,
		session:      market.State,
		orderTimeout: orderTimeout,
		now:          time.Now,
		runners:      make(map[string]*taskRunner),
	}
}

// Start 啟動指定任務的排程；已在跑則為 no-op。
func (s *Scheduler) Start(taskID string) error {
	task, err := s.repo.Get(context.Background(), taskID)
	if err != nil {
		return fmt.Errorf("get task %s: %w", taskID, err)
	}
	if !task.Schedulable() {
		return fmt.Errorf("task %s is not active", taskID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runners[taskID]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &taskRunner{
		taskID: taskID,
		cancel: cancel,
		done:   make(chan struct{}),
		reload: make(chan struct{}, 1),
	}
	s.runners[taskID] = r
	go s.runLoop(ctx, r, task.Interval())
	log.Printf("[Scheduler] task %s started (interval=%ds)", taskID, task.IntervalSeconds)
	return nil
}

// Stop 立即取消任務的 timer；進行中的評估讓它自然結束，不強制中斷。
func (s *Scheduler) Stop(taskID string) {
	s.mu.Lock()
	r, ok := s.runners[taskID]
	if ok {
		delete(s.runners, taskID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
	log.Printf("[Scheduler] task %s stopped", taskID)
}

// StartAll 從存儲載入所有 active 任務並啟動。
func (s *Scheduler) StartAll(ctx context.Context) error {
	tasks, err := s.repo.List(ctx, monitor.Filter{Status: monitor.StatusActive})
	if err != nil {
		return fmt.Errorf("list active tasks: %w", err)
	}
	for _, t := range tasks {
		if err := s.Start(t.ID); err != nil {
			log.Printf("[Scheduler] start task %s failed: %v", t.ID, err)
		}
	}
	return nil
}

// StopAll 停止全部任務，等待所有 runner 收尾或 ctx 逾時。
// 行程關閉時呼叫，保證不留下孤兒 timer。
func (s *Scheduler) StopAll(ctx context.Context) error {
	s.mu.Lock()
	runners := make([]*taskRunner, 0, len(s.runners))
	for id, r := range s.runners {
		runners = append(runners, r)
		delete(s.runners, id)
	}
	s.mu.Unlock()

	for _, r := range runners {
		r.cancel()
	}
	for _, r := range runners {
		select {
		case <-r.done:
		case <-ctx.Done():
			return fmt.Errorf("scheduler shutdown timed out: %w", ctx.Err())
		}
	}
	log.Printf("[Scheduler] all tasks stopped (%d)", len(runners))
	return nil
}

// Reload 讓 runner 在下一輪立即重讀設定（例如 interval 變更）。
// 進行中的評估不受影響；變更只作用於之後的 tick。
func (s *Scheduler) Reload(taskID string) {
	s.mu.Lock()
	r, ok := s.runners[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case r.reload <- struct{}{}:
	default: // 已有待處理的 reload
	}
}

// IsRunning 回傳任務是否在排程器的活動集合內。
func (s *Scheduler) IsRunning(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runners[taskID]
	return ok
}

// RunningCount 回傳啟動中的任務數。
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// Health 回傳任務是否處於降級狀態（連續三次以上評估失敗）。
// 降級只是可觀察的旗標，任務不會被自動暫停。
func (s *Scheduler) Health(ctx context.Context, taskID string) (degraded bool, consecutiveErrors int, err error) {
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return false, 0, err
	}
	return task.LastSummary.Degraded(), task.LastSummary.ConsecutiveErrors, nil
}

// runLoop 是單一任務的 timer 迴圈。interval 變更時重建 ticker。
func (s *Scheduler) runLoop(ctx context.Context, r *taskRunner, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	current := interval

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reload:
			// 只重讀設定、調整 ticker，不額外觸發評估
			task, err := s.repo.Get(ctx, r.taskID)
			if err != nil {
				log.Printf("[Scheduler] task %s reload failed: %v", r.taskID, err)
				continue
			}
			if next := task.Interval(); next != current {
				ticker.Reset(next)
				current = next
				log.Printf("[Scheduler] task %s interval changed to %s", r.taskID, next)
			}
			continue
		case <-ticker.C:
		}

		next := s.runOnce(r.taskID)
		if next <= 0 {
			return // 任務已不可排程，runner 自行退場
		}
		if next != current {
			ticker.Reset(next)
			current = next
			log.Printf("[Scheduler] task %s interval changed to %s", r.taskID, next)
		}
	}
}

// runOnce 執行一個 tick，回傳下個 tick 應使用的間隔；回傳 0 表示結束排程。
// 任何評估/派發/下單錯誤都被關在這個 tick 內，絕不外溢也不終止 timer。
// 刻意不用 runner 的 ctx：Stop 取消 timer 後，進行中的 tick 要自然跑完，
// 各外部呼叫由自己的 timeout 保底。
func (s *Scheduler) runOnce(taskID string) time.Duration {
	ctx := context.Background()
	// (a) 每個 tick 重讀當前持久化設定，編輯在下一個 tick 生效
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		log.Printf("[Scheduler] task %s reload failed: %v", taskID, err)
		return time.Duration(monitor.MinIntervalSeconds) * time.Second
	}

	// (b) 非 ACTIVE 直接跳過；deleted 任務讓 runner 收場
	if task.Status == monitor.StatusDeleted {
		s.mu.Lock()
		delete(s.runners, taskID)
		s.mu.Unlock()
		return 0
	}
	if task.Status != monitor.StatusActive {
		return task.Interval()
	}

	now := s.now()
	prev := task.LastSummary

	// (c) 交易時段閘門。被擋下的 tick 仍更新 last_run_at，
	// 並把前次條件狀態帶過去，邊緣觸發的記憶不能被洗掉。
	if task.TradingHoursOnly {
		if state := s.session(now); state != market.SessionOpen {
			skipped := prev
			skipped.Note = fmt.Sprintf("skipped: market %s", state)
			skipped.Triggered = nil
			skipped.At = now
			s.recordRun(task.ID, now, skipped)
			return task.Interval()
		}
	}

	// (d) 評估
	res := s.evaluator.Evaluate(ctx, task, prev)

	summary := monitor.RunSummary{At: now}
	if res.Failed() {
		summary.Note = res.Err.Error()
		summary.ErrorCode = res.ErrorCode
		summary.ConsecutiveErrors = prev.ConsecutiveErrors + 1
		// 失敗的 tick 不得改寫條件記憶，否則恢復後會重複觸發
		summary.Active = prev.Active
		summary.Rating = prev.Rating
		if summary.Degraded() {
			log.Printf("[Scheduler] task %s degraded: %d consecutive errors (%s)", task.ID, summary.ConsecutiveErrors, res.ErrorCode)
		} else {
			log.Printf("[Scheduler] task %s evaluation failed: %v", task.ID, res.Err)
		}
		s.recordRun(task.ID, now, summary)
		return task.Interval()
	}

	summary.Note = "evaluated"
	summary.Price = res.Price
	summary.Rating = res.Rating
	summary.Active = res.Active
	summary.Triggered = res.Triggered
	summary.ConsecutiveErrors = 0

	// (e) 觸發 → 通知與可選的自動下單
	if len(res.Triggered) > 0 {
		signal := alert.Signal{
			TaskID:     task.ID,
			TaskName:   task.Name,
			Symbol:     task.Symbol,
			Price:      res.Price,
			Rating:     res.Rating,
			Confidence: res.Confidence,
			Conditions: res.Triggered,
			Advice:     res.Advice,
			At:         now,
		}
		if task.NotifyEnabled && s.dispatcher != nil {
			outcomes := s.dispatcher.Dispatch(ctx, signal)
			if !alert.Delivered(outcomes) {
				log.Printf("[Scheduler] task %s: all notification channels failed", task.ID)
			}
		}
		if task.AutoTradeEnabled && s.broker != nil && (res.Rating == monitor.RatingBuy || res.Rating == monitor.RatingSell) {
			s.placeOrder(task, res)
		}
	}

	// (f) 不論結果如何都把 run metadata 寫回存儲
	s.recordRun(task.ID, now, summary)
	return task.Interval()
}

// placeOrder 執行自動下單。下單失敗有財務後果，必須醒目記錄，絕不吞掉。
func (s *Scheduler) placeOrder(task monitor.Task, res monitor.Result) {
	side := "BUY"
	if res.Rating == monitor.RatingSell {
		side = "SELL"
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.orderTimeout)
	defer cancel()
	orderID, err := s.broker.PlaceOrder(ctx, task.Symbol, side, task.OrderQty)
	if err != nil {
		log.Printf("[Scheduler] ORDER_FAILURE task=%s symbol=%s side=%s qty=%d: %v", task.ID, task.Symbol, side, task.OrderQty, err)
		return
	}
	log.Printf("[Scheduler] order placed task=%s symbol=%s side=%s qty=%d order_id=%s", task.ID, task.Symbol, side, task.OrderQty, orderID)
}

func (s *Scheduler) recordRun(taskID string, at time.Time, summary monitor.RunSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.RecordRun(ctx, taskID, at, summary); err != nil {
		log.Printf("[Scheduler] task %s record run failed: %v", taskID, err)
	}
}
