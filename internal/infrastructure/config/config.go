package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 儲存 HTTP API、監控核心及外部相依的執行設定。
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	DB       DBConfig       `yaml:"db"`
	Auth     AuthConfig     `yaml:"auth"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Quote    QuoteConfig    `yaml:"quote"`
	AI       AIConfig       `yaml:"ai"`
	Broker   BrokerConfig   `yaml:"broker"`
	Notifier NotifierConfig `yaml:"notifier"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DBConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	MaxIdleTime  time.Duration `yaml:"max_idle_time"`
}

type AuthConfig struct {
	TokenTTL   time.Duration `yaml:"token_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
	Secret     string        `yaml:"secret"`
}

// MonitorConfig 控制排程器與評估流程的逾時及預設值。
type MonitorConfig struct {
	DefaultInterval time.Duration `yaml:"default_interval"`
	QuoteTimeout    time.Duration `yaml:"quote_timeout"`
	AITimeout       time.Duration `yaml:"ai_timeout"`
	NotifyTimeout   time.Duration `yaml:"notify_timeout"`
	OrderTimeout    time.Duration `yaml:"order_timeout"`
	StopTimeout     time.Duration `yaml:"stop_timeout"`
}

type QuoteConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type AIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type BrokerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

type NotifierConfig struct {
	Email    EmailConfig    `yaml:"email"`
	DingTalk DingTalkConfig `yaml:"dingtalk"`
	Feishu   FeishuConfig   `yaml:"feishu"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
}

type DingTalkConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Keyword    string `yaml:"keyword"`
}

type FeishuConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// LoadFromFile 從 YAML 組態檔載入設定。
func LoadFromFile(path string) (Config, error) {
	// 嘗試載入 .env 檔案（如果存在）
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg = applyDefaults(cfg)
	cfg = applyEnv(cfg)
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 5
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 2
	}
	if cfg.DB.MaxIdleTime == 0 {
		cfg.DB.MaxIdleTime = 15 * time.Minute
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 30 * time.Minute
	}
	if cfg.Auth.RefreshTTL == 0 {
		cfg.Auth.RefreshTTL = 24 * time.Hour * 30
	}
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = "dev-secret-change-me"
	}
	if cfg.Monitor.DefaultInterval == 0 {
		cfg.Monitor.DefaultInterval = 5 * time.Minute
	}
	if cfg.Monitor.QuoteTimeout == 0 {
		cfg.Monitor.QuoteTimeout = 10 * time.Second
	}
	if cfg.Monitor.AITimeout == 0 {
		cfg.Monitor.AITimeout = 30 * time.Second
	}
	if cfg.Monitor.NotifyTimeout == 0 {
		cfg.Monitor.NotifyTimeout = 10 * time.Second
	}
	if cfg.Monitor.OrderTimeout == 0 {
		cfg.Monitor.OrderTimeout = 15 * time.Second
	}
	if cfg.Monitor.StopTimeout == 0 {
		cfg.Monitor.StopTimeout = 30 * time.Second
	}
	if cfg.Notifier.Email.Port == 0 {
		cfg.Notifier.Email.Port = 465
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if val := os.Getenv("HTTP_ADDR"); val != "" {
		cfg.HTTP.Addr = val
	}
	if val := os.Getenv("PORT"); val != "" {
		cfg.HTTP.Addr = ":" + val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DB.DSN = val
	}
	if val := os.Getenv("AUTH_SECRET"); val != "" {
		cfg.Auth.Secret = val
	}
	if val := os.Getenv("QUOTE_BASE_URL"); val != "" {
		cfg.Quote.BaseURL = val
	}
	if val := os.Getenv("QUOTE_TOKEN"); val != "" {
		cfg.Quote.Token = val
	}
	if val := os.Getenv("AI_ENABLED"); val != "" {
		cfg.AI.Enabled = (val == "true")
	}
	if val := os.Getenv("AI_BASE_URL"); val != "" {
		cfg.AI.BaseURL = val
	}
	if val := os.Getenv("AI_API_KEY"); val != "" {
		cfg.AI.APIKey = val
	}
	if val := os.Getenv("BROKER_ENABLED"); val != "" {
		cfg.Broker.Enabled = (val == "true")
	}
	if val := os.Getenv("BROKER_BASE_URL"); val != "" {
		cfg.Broker.BaseURL = val
	}
	if val := os.Getenv("BROKER_API_KEY"); val != "" {
		cfg.Broker.APIKey = val
	}
	if val := os.Getenv("BROKER_API_SECRET"); val != "" {
		cfg.Broker.APISecret = val
	}
	if val := os.Getenv("EMAIL_ENABLED"); val != "" {
		cfg.Notifier.Email.Enabled = (val == "true")
	}
	if val := os.Getenv("EMAIL_HOST"); val != "" {
		cfg.Notifier.Email.Host = val
	}
	if val := os.Getenv("EMAIL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Notifier.Email.Port = port
		}
	}
	if val := os.Getenv("EMAIL_FROM"); val != "" {
		cfg.Notifier.Email.From = val
	}
	if val := os.Getenv("EMAIL_PASSWORD"); val != "" {
		cfg.Notifier.Email.Password = val
	}
	if val := os.Getenv("EMAIL_TO"); val != "" {
		cfg.Notifier.Email.To = val
	}
	if val := os.Getenv("DINGTALK_ENABLED"); val != "" {
		cfg.Notifier.DingTalk.Enabled = (val == "true")
	}
	if val := os.Getenv("DINGTALK_WEBHOOK_URL"); val != "" {
		cfg.Notifier.DingTalk.WebhookURL = val
	}
	if val := os.Getenv("DINGTALK_KEYWORD"); val != "" {
		cfg.Notifier.DingTalk.Keyword = val
	}
	if val := os.Getenv("FEISHU_ENABLED"); val != "" {
		cfg.Notifier.Feishu.Enabled = (val == "true")
	}
	if val := os.Getenv("FEISHU_WEBHOOK_URL"); val != "" {
		cfg.Notifier.Feishu.WebhookURL = val
	}
	if val := os.Getenv("TELEGRAM_ENABLED"); val != "" {
		cfg.Notifier.Telegram.Enabled = (val == "true")
	}
	if val := os.Getenv("TELEGRAM_BOT_TOKEN"); val != "" {
		cfg.Notifier.Telegram.BotToken = val
	}
	if val := os.Getenv("TELEGRAM_CHAT_ID"); val != "" {
		if id, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Notifier.Telegram.ChatID = id
		}
	}
	return cfg
}
