package monitor

import (
	"context"
	"fmt"
	"time"

	"stock-monitor/internal/domain/monitor"
)

// QuoteProvider 取得即時行情，由外部行情來源實作。
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (monitor.Quote, error)
}

// DecisionProvider 取得 AI 決策評級，對評估器而言是不透明的外部呼叫。
type DecisionProvider interface {
	Decide(ctx context.Context, symbol string, price float64) (monitor.Decision, error)
}

// Evaluator 執行單一任務的一次檢查：抓行情、（可選）問 AI、算觸發條件。
// AI 評級只是可選的增強輸入，AI 失敗時降級為純價格判斷，
// 絕不因 AI 不可用而漏掉價格門檻告警。
type Evaluator struct {
	quotes       QuoteProvider
	decisions    DecisionProvider
	quoteTimeout time.Duration
	aiTimeout    time.Duration
	now          func() time.Time
}

// NewEvaluator 建立評估器。decisions 可為 nil，此時所有任務都走純價格判斷。
func NewEvaluator(quotes QuoteProvider, decisions DecisionProvider, quoteTimeout, aiTimeout time.Duration) *Evaluator {
	if quoteTimeout <= 0 {
		quoteTimeout = 10 * time.Second
	}
	if aiTimeout <= 0 {
		aiTimeout = 30 * time.Second
	}
	return &Evaluator{
		quotes:       quotes,
		decisions:    decisions,
		quoteTimeout: quoteTimeout,
		aiTimeout:    aiTimeout,
		now:          time.Now,
	}
}

// Evaluate 執行一次評估。prev 為上一次寫回任務的 summary，
// 提供邊緣觸發去重所需的前次條件集合與前次評級。
func (e *Evaluator) Evaluate(ctx context.Context, task monitor.Task, prev monitor.RunSummary) monitor.Result {
	res := monitor.Result{
		TaskID:    task.ID,
		Timestamp: e.now(),
		Rating:    monitor.RatingUnknown,
	}

	quoteCtx, cancel := context.WithTimeout(ctx, e.quoteTimeout)
	defer cancel()
	quote, err := e.quotes.GetQuote(quoteCtx, task.Symbol)
	if err != nil {
		res.ErrorCode = monitor.ErrCodeDataUnavailable
		res.Err = fmt.Errorf("get quote %s: %w", task.Symbol, err)
		return res
	}
	res.Price = quote.Price

	aiOK := false
	if task.AIEnabled && e.decisions != nil {
		aiCtx, cancelAI := context.WithTimeout(ctx, e.aiTimeout)
		decision, aiErr := e.decisions.Decide(aiCtx, task.Symbol, quote.Price)
		cancelAI()
		if aiErr == nil {
			res.Rating = decision.Rating
			res.Confidence = decision.Confidence
			res.Advice = decision.Advice
			aiOK = true
		}
		// AI 失敗只降級，不中斷本次評估
	}

	// 條件各自獨立判斷，全部算完，不短路
	active := make([]monitor.Condition, 0, 4)
	if task.EntryMin != nil && task.EntryMax != nil &&
		quote.Price >= *task.EntryMin && quote.Price <= *task.EntryMax {
		active = append(active, monitor.CondEntryZone)
	}
	if task.TakeProfit != nil && quote.Price >= *task.TakeProfit {
		active = append(active, monitor.CondTakeProfit)
	}
	if task.StopLoss != nil && quote.Price <= *task.StopLoss {
		active = append(active, monitor.CondStopLoss)
	}
	if aiOK && prev.Rating != "" && prev.Rating != monitor.RatingUnknown && res.Rating != prev.Rating {
		active = append(active, monitor.CondRatingChange)
	}
	res.Active = active

	// 邊緣觸發：只回報「本次才進入」的條件。
	// RATING_CHANGE 本身就是對前次評級的比較，不再套用集合去重。
	for _, c := range active {
		if c == monitor.CondRatingChange || !prev.HasActive(c) {
			res.Triggered = append(res.Triggered, c)
		}
	}
	return res
}
