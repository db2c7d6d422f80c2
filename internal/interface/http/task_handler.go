package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stock-monitor/internal/domain/monitor"

	"github.com/gin-gonic/gin"
)

// taskRequest 對應建立任務的 JSON body。指標欄位缺省時不設門檻。
type taskRequest struct {
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	IntervalSeconds  int      `json:"interval_seconds"`
	TradingHoursOnly bool     `json:"trading_hours_only"`
	EntryMin         *float64 `json:"entry_min"`
	EntryMax         *float64 `json:"entry_max"`
	TakeProfit       *float64 `json:"take_profit"`
	StopLoss         *float64 `json:"stop_loss"`
	AIEnabled        bool     `json:"ai_enabled"`
	NotifyEnabled    *bool    `json:"notify_enabled"`
	AutoTradeEnabled bool     `json:"auto_trade_enabled"`
	OrderQty         int      `json:"order_qty"`
}

// taskPatchRequest 對應部分更新；nil 欄位代表不變更，clear_* 可清除門檻。
type taskPatchRequest struct {
	Name             *string  `json:"name"`
	IntervalSeconds  *int     `json:"interval_seconds"`
	TradingHoursOnly *bool    `json:"trading_hours_only"`
	EntryMin         *float64 `json:"entry_min"`
	ClearEntryMin    bool     `json:"clear_entry_min"`
	EntryMax         *float64 `json:"entry_max"`
	ClearEntryMax    bool     `json:"clear_entry_max"`
	TakeProfit       *float64 `json:"take_profit"`
	ClearTakeProfit  bool     `json:"clear_take_profit"`
	StopLoss         *float64 `json:"stop_loss"`
	ClearStopLoss    bool     `json:"clear_stop_loss"`
	AIEnabled        *bool    `json:"ai_enabled"`
	NotifyEnabled    *bool    `json:"notify_enabled"`
	AutoTradeEnabled *bool    `json:"auto_trade_enabled"`
	OrderQty         *int     `json:"order_qty"`
	Status           *string  `json:"status"`
}

func taskToMap(t monitor.Task) gin.H {
	out := gin.H{
		"id":                 t.ID,
		"symbol":             t.Symbol,
		"name":               t.Name,
		"interval_seconds":   t.IntervalSeconds,
		"trading_hours_only": t.TradingHoursOnly,
		"entry_min":          t.EntryMin,
		"entry_max":          t.EntryMax,
		"take_profit":        t.TakeProfit,
		"stop_loss":          t.StopLoss,
		"ai_enabled":         t.AIEnabled,
		"notify_enabled":     t.NotifyEnabled,
		"auto_trade_enabled": t.AutoTradeEnabled,
		"order_qty":          t.OrderQty,
		"status":             string(t.Status),
	}
	if t.LastRunAt != nil {
		out["last_run_at"] = t.LastRunAt.Format(time.RFC3339)
	}
	if !t.LastSummary.At.IsZero() {
		out["last_result"] = gin.H{
			"note":               t.LastSummary.Note,
			"price":              t.LastSummary.Price,
			"rating":             string(t.LastSummary.Rating),
			"active":             t.LastSummary.Active,
			"triggered":          t.LastSummary.Triggered,
			"error_code":         string(t.LastSummary.ErrorCode),
			"consecutive_errors": t.LastSummary.ConsecutiveErrors,
		}
	}
	return out
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var body taskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "error_code": errCodeBadRequest})
		return
	}

	notify := true
	if body.NotifyEnabled != nil {
		notify = *body.NotifyEnabled
	}
	task, err := s.tasks.Create(c.Request.Context(), monitor.Task{
		Symbol:           body.Symbol,
		Name:             body.Name,
		IntervalSeconds:  body.IntervalSeconds,
		TradingHoursOnly: body.TradingHoursOnly,
		EntryMin:         body.EntryMin,
		EntryMax:         body.EntryMax,
		TakeProfit:       body.TakeProfit,
		StopLoss:         body.StopLoss,
		AIEnabled:        body.AIEnabled,
		NotifyEnabled:    notify,
		AutoTradeEnabled: body.AutoTradeEnabled,
		OrderQty:         body.OrderQty,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "error_code": errCodeBadRequest})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "task": taskToMap(task)})
}

func (s *Server) handleListTasks(c *gin.Context) {
	filter := monitor.Filter{
		Status: monitor.Status(c.Query("status")),
		Symbol: c.Query("symbol"),
	}
	if v, err := strconv.ParseBool(c.DefaultQuery("include_deleted", "false")); err == nil {
		filter.IncludeDeleted = v
	}
	tasks, err := s.tasks.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "error_code": errCodeInternal})
		return
	}
	out := make([]gin.H, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToMap(t))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tasks": out, "total": len(out)})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": taskToMap(task)})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var body taskPatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "error_code": errCodeBadRequest})
		return
	}

	patch := monitor.Patch{
		Name:             body.Name,
		IntervalSeconds:  body.IntervalSeconds,
		TradingHoursOnly: body.TradingHoursOnly,
		EntryMin:         body.EntryMin,
		ClearEntryMin:    body.ClearEntryMin,
		EntryMax:         body.EntryMax,
		ClearEntryMax:    body.ClearEntryMax,
		TakeProfit:       body.TakeProfit,
		ClearTakeProfit:  body.ClearTakeProfit,
		StopLoss:         body.StopLoss,
		ClearStopLoss:    body.ClearStopLoss,
		AIEnabled:        body.AIEnabled,
		NotifyEnabled:    body.NotifyEnabled,
		AutoTradeEnabled: body.AutoTradeEnabled,
		OrderQty:         body.OrderQty,
	}
	if body.Status != nil {
		status := monitor.Status(*body.Status)
		patch.Status = &status
	}

	task, err := s.tasks.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": taskToMap(task)})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handlePauseTask(c *gin.Context) {
	task, err := s.tasks.Pause(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": taskToMap(task)})
}

func (s *Server) handleResumeTask(c *gin.Context) {
	task, err := s.tasks.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": taskToMap(task)})
}

func (s *Server) handleTaskHealth(c *gin.Context) {
	id := c.Param("id")
	degraded, consecutive, err := s.scheduler.Health(c.Request.Context(), id)
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"task_id":            id,
		"running":            s.scheduler.IsRunning(id),
		"degraded":           degraded,
		"consecutive_errors": consecutive,
	})
}

func (s *Server) handleRecentSignals(c *gin.Context) {
	n := 20
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		n = v
	}
	records, err := s.signals.Recent(c.Request.Context(), n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "error_code": errCodeInternal})
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		outcomes := make([]gin.H, 0, len(rec.Outcomes))
		for _, o := range rec.Outcomes {
			outcomes = append(outcomes, gin.H{
				"channel": string(o.Channel),
				"success": o.Success,
				"error":   o.ErrorDetail,
			})
		}
		out = append(out, gin.H{
			"task_id":    rec.Signal.TaskID,
			"task_name":  rec.Signal.TaskName,
			"symbol":     rec.Signal.Symbol,
			"price":      rec.Signal.Price,
			"rating":     string(rec.Signal.Rating),
			"conditions": rec.Signal.Conditions,
			"advice":     rec.Signal.Advice,
			"at":         rec.Signal.At.Format(time.RFC3339),
			"outcomes":   outcomes,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "signals": out, "total": len(out)})
}

func (s *Server) handleSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"running_tasks":  s.scheduler.RunningCount(),
		"market_session": string(s.session(time.Now())),
	})
}

func (s *Server) handleSchedulerStart(c *gin.Context) {
	if err := s.scheduler.StartAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "error_code": errCodeInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "running_tasks": s.scheduler.RunningCount()})
}

func (s *Server) handleSchedulerStop(c *gin.Context) {
	if err := s.scheduler.StopAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "error_code": errCodeInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "running_tasks": s.scheduler.RunningCount()})
}

func (s *Server) writeTaskError(c *gin.Context, err error) {
	if errors.Is(err, monitor.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "task not found", "error_code": errCodeNotFound})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error(), "error_code": errCodeBadRequest})
}
