package httpapi

import (
	"context"
	"net/http"
	"time"

	appauth "stock-monitor/internal/application/auth"
	appmonitor "stock-monitor/internal/application/monitor"
	"stock-monitor/internal/domain/alert"
	"stock-monitor/internal/domain/auth"
	"stock-monitor/internal/domain/market"
	authinfra "stock-monitor/internal/infrastructure/auth"
	"stock-monitor/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
)

const (
	errCodeBadRequest         = "BAD_REQUEST"
	errCodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	errCodeUnauthorized       = "AUTH_UNAUTHORIZED"
	errCodeForbidden          = "AUTH_FORBIDDEN"
	errCodeNotFound           = "NOT_FOUND"
	errCodeInternal           = "INTERNAL_ERROR"
	refreshCookieName         = "refresh_token"
)

// SignalReader 查詢最近派發的訊號稽核紀錄。
type SignalReader interface {
	Recent(ctx context.Context, n int) ([]alert.Record, error)
}

// Deps 集中 Server 需要的外部依賴，由 main 組裝後注入。
type Deps struct {
	Tasks     *appmonitor.Service
	Scheduler *appmonitor.Scheduler
	Signals   SignalReader
	Users     appauth.UserRepository
	Sessions  auth.SessionStore
}

// Server 封裝 HTTP 路由與依賴。
type Server struct {
	engine    *gin.Engine
	tasks     *appmonitor.Service
	scheduler *appmonitor.Scheduler
	signals   SignalReader
	loginUC   *appauth.LoginUseCase
	refreshUC *appauth.RefreshUseCase
	logoutUC  *appauth.LogoutUseCase
	tokenSvc  *authinfra.JWTIssuer
	session   func(time.Time) market.SessionState
	started   time.Time
}

// NewServer 建立 API 伺服器。
func NewServer(cfg config.Config, deps Deps) *Server {
	tokenSvc := authinfra.NewJWTIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.RefreshTTL, deps.Sessions, userFinderAdapter{deps.Users})

	s := &Server{
		engine:    gin.New(),
		tasks:     deps.Tasks,
		scheduler: deps.Scheduler,
		signals:   deps.Signals,
		loginUC:   appauth.NewLoginUseCase(deps.Users, authinfra.BcryptHasher{}, tokenSvc),
		refreshUC: appauth.NewRefreshUseCase(tokenSvc),
		logoutUC:  appauth.NewLogoutUseCase(tokenSvc),
		tokenSvc:  tokenSvc,
		session:   market.State,
		started:   time.Now(),
	}
	s.engine.Use(gin.Recovery(), s.ginLogger(), corsMiddleware())
	s.registerRoutes()
	return s
}

// userFinderAdapter 讓應用層 UserRepository 相容 JWTIssuer 的 UserFinder。
type userFinderAdapter struct {
	users appauth.UserRepository
}

func (a userFinderAdapter) FindByID(ctx context.Context, id string) (auth.User, error) {
	return a.users.FindByID(ctx, id)
}

// Handler 回傳路由處理器，供 HTTP server 掛載。
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/ping", s.handlePing)
	api.GET("/health", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/refresh", s.handleRefresh)
	api.POST("/auth/logout", s.handleLogout)

	authed := api.Group("", s.requireAuth())
	authed.GET("/session", s.handleSession)
	authed.GET("/tasks", s.handleListTasks)
	authed.GET("/tasks/:id", s.handleGetTask)
	authed.GET("/tasks/:id/health", s.handleTaskHealth)
	authed.GET("/signals", s.handleRecentSignals)
	authed.GET("/scheduler/status", s.handleSchedulerStatus)

	admin := api.Group("", s.requireAuth(auth.RoleAdmin))
	admin.POST("/tasks", s.handleCreateTask)
	admin.PUT("/tasks/:id", s.handleUpdateTask)
	admin.PATCH("/tasks/:id", s.handleUpdateTask)
	admin.DELETE("/tasks/:id", s.handleDeleteTask)
	admin.POST("/tasks/:id/pause", s.handlePauseTask)
	admin.POST("/tasks/:id/resume", s.handleResumeTask)
	admin.POST("/scheduler/start", s.handleSchedulerStart)
	admin.POST("/scheduler/stop", s.handleSchedulerStop)
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "pong"})
}

func (s *Server) handleHealth(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"uptime_seconds": int(now.Sub(s.started).Seconds()),
		"scheduler": gin.H{
			"running_tasks": s.scheduler.RunningCount(),
		},
		"market_session": string(s.session(now)),
	})
}

func (s *Server) handleSession(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   string(s.session(now)),
		"at":      now.Format(time.RFC3339),
	})
}
