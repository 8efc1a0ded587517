package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrConfiguration marks missing or unusable settings.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	App      AppConfig      `toml:"app"`
	Admin    AdminConfig    `toml:"admin"`
	LLM      LLMConfig      `toml:"llm"`
	Line     LineConfig     `toml:"line"`
	Greeting GreetingConfig `toml:"greeting"`
	Store    StoreConfig    `toml:"store"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
}

type AppConfig struct {
	Name             string `toml:"name"`
	Env              string `toml:"env"`
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	GinMode          string `toml:"gin_mode"`
	LogLevel         string `toml:"log_level"`
	MetricsNamespace string `toml:"metrics_namespace"`
}

type AdminConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type LLMConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	APIStyle       string `toml:"api_style"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type LineConfig struct {
	ChannelAccessToken string `toml:"channel_access_token"`
	DefaultUserID      string `toml:"default_user_id"`
	ReplyURL           string `toml:"reply_url"`
	PushURL            string `toml:"push_url"`
}

type GreetingConfig struct {
	Style string `toml:"style"`
}

type StoreConfig struct {
	URL string `toml:"url"`
}

type RedisConfig struct {
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
	HistoryWindow          int    `toml:"history_window"`
}

type RabbitMQConfig struct {
	URL            string `toml:"url"`
	TurnEventQueue string `toml:"turn_event_queue"`
}

// MissingSettingsError lists every required setting that is empty.
type MissingSettingsError struct {
	Missing []string
}

func (e *MissingSettingsError) Error() string {
	return "missing required env vars: " + strings.Join(e.Missing, ", ")
}

func (e *MissingSettingsError) Unwrap() error {
	return ErrConfiguration
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	normalize(cfg)
	return cfg, nil
}

// Validate checks the settings every send-capable operation needs. It reports
// all missing names at once.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Line.ChannelAccessToken == "" {
		missing = append(missing, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	if c.Line.DefaultUserID == "" {
		missing = append(missing, "LINE_USER_ID")
	}
	if len(missing) > 0 {
		return &MissingSettingsError{Missing: missing}
	}
	return nil
}

// ValidateReply checks the subset the webhook reply path needs.
func (c *Config) ValidateReply() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Line.ChannelAccessToken == "" {
		missing = append(missing, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		return &MissingSettingsError{Missing: missing}
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c *Config) AdminTokenTTL() time.Duration {
	return time.Duration(c.Admin.JWTExpireMinute) * time.Minute
}

func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != ""
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:             "line-relay",
			Env:              "dev",
			Host:             "0.0.0.0",
			Port:             8080,
			GinMode:          "release",
			LogLevel:         "info",
			MetricsNamespace: "line_relay",
		},
		Admin: AdminConfig{
			JWTExpireMinute: 120,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-5.2",
			APIStyle:       "responses",
			TimeoutSeconds: 60,
		},
		Line: LineConfig{
			ReplyURL: "https://api.line.me/v2/bot/message/reply",
			PushURL:  "https://api.line.me/v2/bot/message/push",
		},
		Greeting: GreetingConfig{
			Style: "warm",
		},
		Store: StoreConfig{
			URL: "sqlite://chat_history.db",
		},
		Redis: RedisConfig{
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
			HistoryWindow:          50,
		},
		RabbitMQ: RabbitMQConfig{
			TurnEventQueue: "line.turn.events",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.App.MetricsNamespace)

	cfg.Admin.JWTSecret = getEnv("ADMIN_JWT_SECRET", cfg.Admin.JWTSecret)
	cfg.Admin.JWTExpireMinute = getEnvAsInt("ADMIN_JWT_EXPIRE_MINUTE", cfg.Admin.JWTExpireMinute)

	cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
	cfg.LLM.APIStyle = getEnv("OPENAI_API_STYLE", cfg.LLM.APIStyle)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("OPENAI_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Line.ChannelAccessToken = getEnv("LINE_CHANNEL_ACCESS_TOKEN", cfg.Line.ChannelAccessToken)
	cfg.Line.DefaultUserID = getEnv("LINE_USER_ID", cfg.Line.DefaultUserID)
	cfg.Line.ReplyURL = getEnv("LINE_REPLY_URL", cfg.Line.ReplyURL)
	cfg.Line.PushURL = getEnv("LINE_PUSH_URL", cfg.Line.PushURL)

	cfg.Greeting.Style = getEnv("GREETING_STYLE", cfg.Greeting.Style)

	cfg.Store.URL = getEnv("CHAT_DB_URL", cfg.Store.URL)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)
	cfg.Redis.HistoryWindow = getEnvAsInt("REDIS_HISTORY_WINDOW", cfg.Redis.HistoryWindow)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.TurnEventQueue = getEnv("RABBITMQ_TURN_EVENT_QUEUE", cfg.RabbitMQ.TurnEventQueue)
}

// normalize trims credentials and identifiers so that whitespace-only values
// count as missing.
func normalize(cfg *Config) {
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.Model = strings.TrimSpace(cfg.LLM.Model)
	cfg.LLM.APIStyle = strings.ToLower(strings.TrimSpace(cfg.LLM.APIStyle))
	cfg.Line.ChannelAccessToken = strings.TrimSpace(cfg.Line.ChannelAccessToken)
	cfg.Line.DefaultUserID = strings.TrimSpace(cfg.Line.DefaultUserID)
	cfg.Admin.JWTSecret = strings.TrimSpace(cfg.Admin.JWTSecret)
	cfg.Greeting.Style = strings.TrimSpace(cfg.Greeting.Style)
	if cfg.Greeting.Style == "" {
		cfg.Greeting.Style = "warm"
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Admin.JWTExpireMinute <= 0 {
		cfg.Admin.JWTExpireMinute = 120
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
