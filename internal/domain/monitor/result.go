package monitor

import (
	"encoding/json"
	"time"
)

// Rating 為 AI 決策評級。AI 未啟用或呼叫失敗時為 RatingUnknown。
type Rating string

const (
	RatingBuy     Rating = "BUY"
	RatingSell    Rating = "SELL"
	RatingHold    Rating = "HOLD"
	RatingUnknown Rating = "UNKNOWN"
)

// Condition 列舉單次評估可能成立的觸發條件。
type Condition string

const (
	CondEntryZone    Condition = "ENTRY_ZONE"
	CondTakeProfit   Condition = "TAKE_PROFIT"
	CondStopLoss     Condition = "STOP_LOSS"
	CondRatingChange Condition = "RATING_CHANGE"
)

// ErrorCode 對應錯誤分類；空字串代表本次評估成功。
type ErrorCode string

const (
	ErrCodeNone            ErrorCode = ""
	ErrCodeDataUnavailable ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeAIUnavailable   ErrorCode = "AI_UNAVAILABLE"
	ErrCodeConfig          ErrorCode = "CONFIG_ERROR"
	ErrCodeOrderFailure    ErrorCode = "ORDER_FAILURE"
)

// Result 為一次評估的輸出。Triggered 只包含「本次才進入」的條件
// （邊緣觸發）；Active 為當下全部成立的條件，用來更新任務狀態。
// 不變式：ErrorCode 非空時 Triggered 必為空。
type Result struct {
	TaskID     string
	Timestamp  time.Time
	Price      float64
	Rating     Rating
	Confidence float64
	Advice     string
	Triggered  []Condition
	Active     []Condition
	ErrorCode  ErrorCode
	Err        error
}

// Failed 回傳本次評估是否失敗。
func (r Result) Failed() bool {
	return r.ErrorCode != ErrCodeNone
}

// RunSummary 是寫回任務 last_result_summary 的狀態，以 JSON 持久化。
// Active 集合是邊緣觸發去重的記憶，必須跨程序重啟存活，
// 因此放在任務紀錄上而不是排程器的記憶體裡。
type RunSummary struct {
	Note              string      `json:"note,omitempty"`
	Price             float64     `json:"price,omitempty"`
	Rating            Rating      `json:"rating,omitempty"`
	Active            []Condition `json:"active,omitempty"`
	Triggered         []Condition `json:"triggered,omitempty"`
	ErrorCode         ErrorCode   `json:"error_code,omitempty"`
	ConsecutiveErrors int         `json:"consecutive_errors,omitempty"`
	At                time.Time   `json:"at,omitempty"`
}

// Degraded 回傳任務是否進入健康度降級（連續三次以上評估失敗）。
func (s RunSummary) Degraded() bool {
	return s.ConsecutiveErrors >= 3
}

// HasActive 回傳條件 c 在上一次成功評估時是否已成立。
func (s RunSummary) HasActive(c Condition) bool {
	for _, a := range s.Active {
		if a == c {
			return true
		}
	}
	return false
}

// Encode 序列化為 JSON 字串；失敗時回傳空字串（summary 僅供顯示與去重，不致命）。
func (s RunSummary) Encode() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeSummary 解析 JSON 字串；空字串或壞資料回傳零值 summary，
// 讓舊紀錄（schema 演進前）仍可讀。
func DecodeSummary(raw string) RunSummary {
	if raw == "" {
		return RunSummary{}
	}
	var s RunSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return RunSummary{}
	}
	return s
}

// Quote 為行情快照，由外部行情來源取得。
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// Decision 為 AI 決策回覆，僅在任務啟用 AI 時取得。
type Decision struct {
	Rating     Rating
	Confidence float64
	EntryLow   float64
	EntryHigh  float64
	TakeProfit float64
	StopLoss   float64
	Advice     string
}
