package monitor

import (
	"fmt"
	"strings"
	"time"
)

// Status 列舉監控任務狀態。deleted 為軟刪除，永不排程。
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusDeleted Status = "deleted"
)

// MinIntervalSeconds 為任務輪詢間隔下限，避免外部行情/AI 呼叫過於頻繁。
const MinIntervalSeconds = 30

// ErrTaskNotFound 由各 repository 實作在查無任務時回傳。
var ErrTaskNotFound = fmt.Errorf("task not found")

// Task 代表一筆使用者設定的監控任務：一檔標的、一組觸發門檻、一個輪詢週期。
type Task struct {
	ID              string
	Symbol          string // 交易所前綴代號，例如 SH600519
	Name            string // 顯示用名稱，不參與判斷邏輯
	IntervalSeconds int
	TradingHoursOnly bool

	// 價格門檻，未設定時以 nil 表示（對應 DB NULL）。
	EntryMin   *float64
	EntryMax   *float64
	TakeProfit *float64
	StopLoss   *float64

	AIEnabled        bool // 是否呼叫 AI 決策取得評級
	NotifyEnabled    bool
	AutoTradeEnabled bool
	OrderQty         int // 自動下單股數，AutoTradeEnabled 時使用

	Status      Status
	LastRunAt   *time.Time
	LastSummary RunSummary

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval 回傳輪詢週期。
func (t Task) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Schedulable 回傳任務是否應該被排程器接管。
func (t Task) Schedulable() bool {
	return t.Status == StatusActive
}

// Validate 檢查任務欄位的基本一致性。
func (t Task) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if t.IntervalSeconds < MinIntervalSeconds {
		return fmt.Errorf("interval_seconds must be >= %d", MinIntervalSeconds)
	}
	if t.EntryMin != nil && t.EntryMax != nil && *t.EntryMin > *t.EntryMax {
		return fmt.Errorf("entry_min must be <= entry_max")
	}
	if t.TakeProfit != nil && *t.TakeProfit <= 0 {
		return fmt.Errorf("take_profit must be positive")
	}
	if t.StopLoss != nil && *t.StopLoss <= 0 {
		return fmt.Errorf("stop_loss must be positive")
	}
	if t.AutoTradeEnabled && t.OrderQty <= 0 {
		return fmt.Errorf("order_qty must be positive when auto trade is enabled")
	}
	switch t.Status {
	case StatusActive, StatusPaused, StatusDeleted, "":
	default:
		return fmt.Errorf("unsupported status: %s", t.Status)
	}
	return nil
}

// Patch 描述一次部分更新；nil 欄位代表不變更。
type Patch struct {
	Name             *string
	IntervalSeconds  *int
	TradingHoursOnly *bool
	EntryMin         *float64
	ClearEntryMin    bool
	EntryMax         *float64
	ClearEntryMax    bool
	TakeProfit       *float64
	ClearTakeProfit  bool
	StopLoss         *float64
	ClearStopLoss    bool
	AIEnabled        *bool
	NotifyEnabled    *bool
	AutoTradeEnabled *bool
	OrderQty         *int
	Status           *Status
}

// Apply 將 patch 合併到任務上，回傳合併後的副本。
func (p Patch) Apply(t Task) Task {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.IntervalSeconds != nil {
		t.IntervalSeconds = *p.IntervalSeconds
	}
	if p.TradingHoursOnly != nil {
		t.TradingHoursOnly = *p.TradingHoursOnly
	}
	if p.ClearEntryMin {
		t.EntryMin = nil
	} else if p.EntryMin != nil {
		t.EntryMin = p.EntryMin
	}
	if p.ClearEntryMax {
		t.EntryMax = nil
	} else if p.EntryMax != nil {
		t.EntryMax = p.EntryMax
	}
	if p.ClearTakeProfit {
		t.TakeProfit = nil
	} else if p.TakeProfit != nil {
		t.TakeProfit = p.TakeProfit
	}
	if p.ClearStopLoss {
		t.StopLoss = nil
	} else if p.StopLoss != nil {
		t.StopLoss = p.StopLoss
	}
	if p.AIEnabled != nil {
		t.AIEnabled = *p.AIEnabled
	}
	if p.NotifyEnabled != nil {
		t.NotifyEnabled = *p.NotifyEnabled
	}
	if p.AutoTradeEnabled != nil {
		t.AutoTradeEnabled = *p.AutoTradeEnabled
	}
	if p.OrderQty != nil {
		t.OrderQty = *p.OrderQty
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}

// Filter 供任務列表查詢使用。
type Filter struct {
	Status         Status // 空字串代表不過濾（但永遠排除 deleted，除非明確指定）
	Symbol         string
	IncludeDeleted bool
}
