package market

import "time"

// SessionState 描述目前時間落在交易日曆的哪個區段。
type SessionState string

const (
	SessionOpen       SessionState = "OPEN"
	SessionPreMarket  SessionState = "PRE_MARKET"
	SessionAfterHours SessionState = "AFTER_HOURS"
	SessionClosed     SessionState = "CLOSED"
)

// 上交所/深交所常規時段：09:30–11:30、13:00–15:00，週一至週五。
// 節假日表不在範圍內，僅以星期過濾。
const (
	morningOpen    = 9*60 + 30
	morningClose   = 11*60 + 30
	afternoonOpen  = 13 * 60
	afternoonClose = 15 * 60
)

var exchangeLoc = mustLoadLocation()

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// 無 tzdata 時退回固定偏移，判斷邏輯不受影響
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// State 為純函式：只看牆鐘時間與固定日曆，永不報錯。
// 無法辨識的時間（零值等）一律視為 CLOSED，寧可不評估也不誤評估。
func State(now time.Time) SessionState {
	if now.IsZero() {
		return SessionClosed
	}
	local := now.In(exchangeLoc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return SessionClosed
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes < morningOpen:
		return SessionPreMarket
	case minutes < morningClose:
		return SessionOpen
	case minutes < afternoonOpen:
		// 午間休市
		return SessionClosed
	case minutes < afternoonClose:
		return SessionOpen
	default:
		return SessionAfterHours
	}
}

// IsOpen 回傳現在是否為連續競價時段。
func IsOpen(now time.Time) bool {
	return State(now) == SessionOpen
}
