package alert

import (
	"fmt"
	"strings"
	"time"

	"stock-monitor/internal/domain/monitor"
)

// Channel 支援的通知通道。
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelDingTalk Channel = "dingtalk"
	ChannelFeishu   Channel = "feishu"
	ChannelTelegram Channel = "telegram"
)

// Signal 封裝一次需要通知的觸發事件，由評估器產出、派發器送出。
type Signal struct {
	TaskID     string
	TaskName   string
	Symbol     string
	Price      float64
	Rating     monitor.Rating
	Confidence float64
	Conditions []monitor.Condition
	Advice     string
	At         time.Time
}

// Title 組出通知標題。
func (s Signal) Title() string {
	name := s.TaskName
	if name == "" {
		name = s.Symbol
	}
	return fmt.Sprintf("%s 触发提醒", name)
}

// Body 組出通知正文（純文字，各通道自行決定包裝格式）。
func (s Signal) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "标的: %s\n", s.Symbol)
	fmt.Fprintf(&b, "现价: %.2f\n", s.Price)
	if s.Rating != "" && s.Rating != monitor.RatingUnknown {
		fmt.Fprintf(&b, "AI评级: %s (置信度 %.0f%%)\n", s.Rating, s.Confidence*100)
	}
	conds := make([]string, 0, len(s.Conditions))
	for _, c := range s.Conditions {
		conds = append(conds, condLabel(c))
	}
	fmt.Fprintf(&b, "触发条件: %s\n", strings.Join(conds, ", "))
	if s.Advice != "" {
		fmt.Fprintf(&b, "建议: %s\n", s.Advice)
	}
	fmt.Fprintf(&b, "时间: %s", s.At.Format("2006-01-02 15:04:05"))
	return b.String()
}

func condLabel(c monitor.Condition) string {
	switch c {
	case monitor.CondEntryZone:
		return "进入买入区间"
	case monitor.CondTakeProfit:
		return "到达止盈位"
	case monitor.CondStopLoss:
		return "跌破止损位"
	case monitor.CondRatingChange:
		return "AI评级变化"
	default:
		return string(c)
	}
}

// Outcome 記錄單一通道的投遞結果。
type Outcome struct {
	Channel     Channel
	Success     bool
	ErrorDetail string
	AttemptedAt time.Time
}

// Record 是一筆已派發訊號的稽核紀錄。
type Record struct {
	ID        string
	Signal    Signal
	Outcomes  []Outcome
	CreatedAt time.Time
}

// Delivered 回傳整體投遞是否成功：任一通道成功即視為已送達。
func Delivered(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Success {
			return true
		}
	}
	return false
}
