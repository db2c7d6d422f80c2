package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appalert "stock-monitor/internal/application/alert"
	appauth "stock-monitor/internal/application/auth"
	appmonitor "stock-monitor/internal/application/monitor"
	"stock-monitor/internal/domain/auth"
	"stock-monitor/internal/infra/memory"
	"stock-monitor/internal/infrastructure/ai"
	authinfra "stock-monitor/internal/infrastructure/auth"
	"stock-monitor/internal/infrastructure/broker"
	"stock-monitor/internal/infrastructure/config"
	"stock-monitor/internal/infrastructure/db"
	"stock-monitor/internal/infrastructure/marketdata"
	"stock-monitor/internal/infrastructure/notify"
	"stock-monitor/internal/infrastructure/persistence/postgres"
	httpapi "stock-monitor/internal/interface/http"
)

func main() {
	cfg, err := config.LoadFromFile("config.yaml")
	if err != nil {
		log.Fatalf("CRITICAL: load config failed: %v", err)
	}
	log.Printf("configuration loaded (HTTP_ADDR=%s)", cfg.HTTP.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, cfg.DB)
	cancel()
	if err != nil {
		log.Printf("warning: database connection failed, falling back to in-memory store: %v", err)
		pool = nil
	} else if pool == nil {
		log.Printf("no DB_DSN provided; running with in-memory store only")
	} else {
		defer pool.Close()
		log.Printf("database connected successfully")
	}

	var taskRepo appmonitor.TaskRepository
	var recorder appalert.SignalRecorder
	var signals httpapi.SignalReader
	var users appauth.UserRepository
	var sessions auth.SessionStore
	if pool != nil {
		taskRepo = postgres.NewTaskRepo(pool)
		signalRepo := postgres.NewSignalRepo(pool)
		recorder, signals = signalRepo, signalRepo
		authRepo := postgres.NewAuthRepo(pool)
		users, sessions = authRepo, authRepo

		seedCtx, seedCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := authRepo.SeedDefaults(seedCtx); err != nil {
			log.Printf("warning: seed default admin failed: %v", err)
		}
		seedCancel()
	} else {
		taskRepo = memory.NewTaskRepo()
		signalRepo := memory.NewSignalRepo(200)
		recorder, signals = signalRepo, signalRepo
		store := memory.NewAuthStore()
		if hash, err := authinfra.HashPassword("password123"); err == nil {
			store.AddUser("admin@example.com", "Admin", auth.RoleAdmin, hash)
		}
		users, sessions = store, store
	}

	quotes := marketdata.NewClient(cfg.Quote.BaseURL, cfg.Quote.Token)
	var decisions appmonitor.DecisionProvider
	if cfg.AI.Enabled {
		decisions = ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey)
	}
	evaluator := appmonitor.NewEvaluator(quotes, decisions, cfg.Monitor.QuoteTimeout, cfg.Monitor.AITimeout)

	dispatcher := appalert.NewDispatcher(buildSenders(cfg.Notifier), recorder, cfg.Monitor.NotifyTimeout)

	var orders appmonitor.OrderPlacer
	if cfg.Broker.Enabled {
		orders = broker.NewClient(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.APISecret)
	}

	scheduler := appmonitor.NewScheduler(taskRepo, evaluator, dispatcher, orders, cfg.Monitor.OrderTimeout)
	tasks := appmonitor.NewService(taskRepo, scheduler, cfg.Monitor.DefaultInterval)

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := scheduler.StartAll(startCtx); err != nil {
		log.Printf("warning: schedule existing tasks failed: %v", err)
	}
	startCancel()
	log.Printf("[Scheduler] %d tasks scheduled", scheduler.RunningCount())

	apiServer := httpapi.NewServer(cfg, httpapi.Deps{
		Tasks:     tasks,
		Scheduler: scheduler,
		Signals:   signals,
		Users:     users,
		Sessions:  sessions,
	})

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: apiServer.Handler(),
	}
	go func() {
		log.Printf("starting HTTP server on %s", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Monitor.StopTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := scheduler.StopAll(shutdownCtx); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
	log.Printf("bye")
}

// buildSenders 組出已通過設定檢查的通知通道。
// 設定不完整的通道在這裡就被剔除（CONFIG_ERROR），不會進入派發流程。
func buildSenders(cfg config.NotifierConfig) []appalert.Sender {
	var senders []appalert.Sender
	if cfg.DingTalk.Enabled {
		if cfg.DingTalk.WebhookURL == "" {
			log.Printf("[Notify] CONFIG_ERROR: dingtalk enabled but webhook_url missing, channel disabled")
		} else {
			senders = append(senders, notify.NewDingTalkClient(cfg.DingTalk.WebhookURL, cfg.DingTalk.Keyword))
		}
	}
	if cfg.Feishu.Enabled {
		if cfg.Feishu.WebhookURL == "" {
			log.Printf("[Notify] CONFIG_ERROR: feishu enabled but webhook_url missing, channel disabled")
		} else {
			senders = append(senders, notify.NewFeishuClient(cfg.Feishu.WebhookURL))
		}
	}
	if cfg.Email.Enabled {
		client, err := notify.NewEmailClient(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			From:     cfg.Email.From,
			Password: cfg.Email.Password,
			To:       cfg.Email.To,
		})
		if err != nil {
			log.Printf("[Notify] CONFIG_ERROR: email channel disabled: %v", err)
		} else {
			senders = append(senders, client)
		}
	}
	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
			log.Printf("[Notify] CONFIG_ERROR: telegram enabled but bot_token or chat_id missing, channel disabled")
		} else {
			senders = append(senders, notify.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
		}
	}
	if len(senders) == 0 {
		log.Printf("[Notify] no notification channels configured")
	}
	return senders
}
