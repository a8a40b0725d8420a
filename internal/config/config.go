package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/titanous/json5"
)

// Config is the root configuration for the LeadFlow worker.
type Config struct {
	Redis     RedisConfig     `json:"redis"`
	Worker    WorkerConfig    `json:"worker"`
	Sessions  SessionsConfig  `json:"sessions"`
	Provider  ProviderConfig  `json:"provider"`
	CRM       CRMConfig       `json:"crm"`
	Messenger MessengerConfig `json:"messenger"`
	Topics    TopicsConfig    `json:"topics"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// RedisConfig points at the shared store backing sessions and both queues.
type RedisConfig struct {
	URL string `json:"url"`
}

// WorkerConfig tunes the event loop and the handoff state machine.
type WorkerConfig struct {
	HandoffTimeoutSec int    `json:"handoff_timeout_sec"` // admin silence before the bot resumes
	PollTimeoutSec    int    `json:"poll_timeout_sec"`    // blocking dequeue wait
	ErrorBackoffMs    int    `json:"error_backoff_ms"`    // pause after a failed event
	BotAppID          string `json:"-"`                   // from env LEADFLOW_BOT_APP_ID only
}

// SessionsConfig tunes session persistence.
type SessionsConfig struct {
	TTLHours      int `json:"ttl_hours"`      // store-enforced session expiry
	HistoryMax    int `json:"history_max"`    // sliding window kept per user
	HistoryWindow int `json:"history_window"` // entries read for completion context
}

// ProviderConfig configures the completion service (OpenAI-compatible).
// APIKey is never read from the config file.
type ProviderConfig struct {
	APIKey     string `json:"-"` // from env LEADFLOW_PROVIDER_API_KEY only
	APIBase    string `json:"api_base,omitempty"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_sec"`
}

// CRMConfig configures the lead upsert endpoint.
type CRMConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"-"` // from env LEADFLOW_CRM_API_KEY only
	TimeoutSec int    `json:"timeout_sec"`
}

// MessengerConfig configures the outbound send client.
type MessengerConfig struct {
	APIBase   string  `json:"api_base,omitempty"`
	PageToken string  `json:"-"` // from env LEADFLOW_PAGE_TOKEN only
	SendRPS   float64 `json:"send_rps,omitempty"`
}

// TopicsConfig maps page IDs to topic pack files.
type TopicsConfig struct {
	Dir   string            `json:"dir"`
	Pages map[string]string `json:"pages"` // page id → pack filename
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Protocol    string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{URL: "redis://localhost:6379/0"},
		Worker: WorkerConfig{
			HandoffTimeoutSec: 60,
			PollTimeoutSec:    5,
			ErrorBackoffMs:    1000,
		},
		Sessions: SessionsConfig{
			TTLHours:      72,
			HistoryMax:    50,
			HistoryWindow: 10,
		},
		Provider: ProviderConfig{
			Model:      "gpt-4o-mini",
			TimeoutSec: 10,
		},
		CRM: CRMConfig{
			URL:        "http://127.0.0.1:8000/mock-crm/leads",
			TimeoutSec: 10,
		},
		Messenger: MessengerConfig{
			APIBase: "https://graph.facebook.com/v19.0",
			SendRPS: 5,
		},
		Topics: TopicsConfig{Dir: "configs"},
	}
}

// Load reads config from a JSON file, then overlays env vars.
// A missing file yields defaults (env vars still apply).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("LEADFLOW_REDIS_URL", &c.Redis.URL)
	envStr("REDIS_URL", &c.Redis.URL) // legacy name used by deploy scripts
	envStr("LEADFLOW_BOT_APP_ID", &c.Worker.BotAppID)
	envStr("BOT_APP_ID", &c.Worker.BotAppID)
	envStr("LEADFLOW_PROVIDER_API_KEY", &c.Provider.APIKey)
	envStr("LEADFLOW_PROVIDER_API_BASE", &c.Provider.APIBase)
	envStr("LEADFLOW_MODEL", &c.Provider.Model)
	envStr("LEADFLOW_CRM_URL", &c.CRM.URL)
	envStr("LEADFLOW_CRM_API_KEY", &c.CRM.APIKey)
	envStr("LEADFLOW_PAGE_TOKEN", &c.Messenger.PageToken)
	envStr("LEADFLOW_TOPICS_DIR", &c.Topics.Dir)
	envStr("LEADFLOW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("LEADFLOW_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("LEADFLOW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("LEADFLOW_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LEADFLOW_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
	if v := os.Getenv("LEADFLOW_HANDOFF_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			c.Worker.HandoffTimeoutSec = sec
		}
	}
}

// HandoffTimeout returns the admin-silence duration after which the bot
// resumes a conversation.
func (c *Config) HandoffTimeout() time.Duration {
	return time.Duration(c.Worker.HandoffTimeoutSec) * time.Second
}

// PollTimeout returns the blocking-dequeue wait for one poll cycle.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Worker.PollTimeoutSec) * time.Second
}

// ErrorBackoff returns the pause applied after a failed event.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Worker.ErrorBackoffMs) * time.Millisecond
}

// SessionTTL returns the store-enforced session expiry.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTLHours) * time.Hour
}
