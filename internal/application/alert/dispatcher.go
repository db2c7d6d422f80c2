package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stock-monitor/internal/domain/alert"
)

// Sender 為單一通知通道的發送介面，由 infrastructure/notify 各 client 實作。
type Sender interface {
	Channel() alert.Channel
	Send(ctx context.Context, title, body string) error
}

// SignalRecorder 持久化送出的訊號與各通道結果，供稽核查詢；可為 nil。
type SignalRecorder interface {
	SaveSignal(ctx context.Context, signal alert.Signal, outcomes []alert.Outcome) error
}

// Dispatcher 把一個訊號扇出到所有啟用的通道。
// scatter/gather：各通道獨立嘗試、單通道失敗不影響其他通道、
// 任一成功即視為整體送達。每次嘗試有固定逾時，tick 內不重試。
type Dispatcher struct {
	senders        []Sender
	recorder       SignalRecorder
	attemptTimeout time.Duration
	now            func() time.Time
}

// NewDispatcher 建立派發器。senders 為已通過設定檢查的通道
// （設定不完整的通道屬 CONFIG_ERROR，在組裝階段就被剔除，不會進到這裡）。
func NewDispatcher(senders []Sender, recorder SignalRecorder, attemptTimeout time.Duration) *Dispatcher {
	if attemptTimeout <= 0 {
		attemptTimeout = 10 * time.Second
	}
	return &Dispatcher{
		senders:        senders,
		recorder:       recorder,
		attemptTimeout: attemptTimeout,
		now:            time.Now,
	}
}

// Dispatch 對所有通道並行送出，回傳每個通道的結果。
func (d *Dispatcher) Dispatch(ctx context.Context, signal alert.Signal) []alert.Outcome {
	if len(d.senders) == 0 {
		log.Printf("[Dispatcher] no notification channels configured, signal for %s dropped", signal.Symbol)
		return nil
	}

	title := signal.Title()
	body := signal.Body()
	outcomes := make([]alert.Outcome, len(d.senders))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, sender := range d.senders {
		i, sender := i, sender
		g.Go(func() error {
			attemptCtx, cancel := context.WithTimeout(gctx, d.attemptTimeout)
			defer cancel()

			outcome := alert.Outcome{
				Channel:     sender.Channel(),
				AttemptedAt: d.now(),
			}
			if err := sender.Send(attemptCtx, title, body); err != nil {
				outcome.ErrorDetail = err.Error()
				log.Printf("[Dispatcher] channel %s delivery failed: %v", sender.Channel(), err)
			} else {
				outcome.Success = true
			}
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			// 失敗不回傳 error：一個通道掛掉不能取消其他通道的嘗試
			return nil
		})
	}
	_ = g.Wait()

	if d.recorder != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.recorder.SaveSignal(saveCtx, signal, outcomes); err != nil {
			log.Printf("[Dispatcher] save signal record failed: %v", err)
		}
	}
	return outcomes
}
