package config

import (
	"campaigner/internal/campaign"
)

// Config is the root document of campaigner.yaml (or .json).
type Config struct {
	Logging   LoggingConfig    `json:"logging"`
	Storage   StorageConfig    `json:"storage"`
	Dispatch  DispatchConfig   `json:"dispatch"`
	Gateway   GatewayConfig    `json:"gateway"`
	Metrics   MetricsConfig    `json:"metrics,omitempty"`
	Scheduler SchedulerConfig  `json:"scheduler,omitempty"`
	Campaigns []CampaignConfig `json:"campaigns"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the delivery log backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./campaign_logs.json" }
type StorageConfig struct {
	Driver      string    `json:"driver"`
	Path        string    `json:"path"`
	BusyTimeout *Duration `json:"busy_timeout,omitempty"` // sqlite
}

// DispatchConfig holds pacing and retry settings. Pointer fields distinguish
// "omitted" (use the default) from an explicit zero.
//
// Defaults:
//   - batch_size: 10
//   - delay_between_messages: 1s
//   - delay_between_batches: 5s
//   - max_retries: 3
//   - retry_cooldown: 2s
//   - retry_policy: "blanket"
type DispatchConfig struct {
	BatchSize            *int      `json:"batch_size,omitempty"`
	DelayBetweenMessages *Duration `json:"delay_between_messages,omitempty"`
	DelayBetweenBatches  *Duration `json:"delay_between_batches,omitempty"`
	MaxRetries           *int      `json:"max_retries,omitempty"`
	RetryCooldown        *Duration `json:"retry_cooldown,omitempty"`
	RetryPolicy          string    `json:"retry_policy,omitempty"` // "blanket" | "permanent_aware"
	RatePerSec           int       `json:"rate_per_sec,omitempty"`
	SkipFinalDelay       *bool     `json:"skip_final_delay,omitempty"`
}

// GatewayConfig selects and configures the message gateway.
// Secrets left empty are filled from the environment (see ApplyEnv).
type GatewayConfig struct {
	Kind     string         `json:"kind"` // "resend" | "smtp" | "telegram" | "dryrun"
	Resend   ResendConfig   `json:"resend,omitempty"`
	SMTP     SMTPConfig     `json:"smtp,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

type ResendConfig struct {
	APIKey  string            `json:"api_key,omitempty"`
	BaseURL string            `json:"base_url,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

type SMTPConfig struct {
	Host               string    `json:"host,omitempty"`
	Port               int       `json:"port,omitempty"`
	Username           string    `json:"username,omitempty"`
	Password           string    `json:"password,omitempty"`
	MaxConns           int       `json:"max_conns,omitempty"`
	SendTimeout        *Duration `json:"send_timeout,omitempty"`
	TLS                bool      `json:"tls,omitempty"`
	InsecureSkipVerify bool      `json:"insecure_skip_verify,omitempty"`
}

type TelegramConfig struct {
	Token          string    `json:"token,omitempty"`
	APIURL         string    `json:"api_url,omitempty"`
	ParseMode      string    `json:"parse_mode,omitempty"`
	DisablePreview bool      `json:"disable_preview,omitempty"`
	Timeout        *Duration `json:"timeout,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint served in schedule mode.
// A non-loopback addr requires token or allow_insecure.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// SchedulerConfig applies to campaigns that carry a schedule.
type SchedulerConfig struct {
	Timezone string    `json:"timezone,omitempty"` // IANA TZ, e.g. "Asia/Jakarta"
	Timeout  *Duration `json:"timeout,omitempty"`  // per run; omitted means no limit
}

// CampaignConfig describes one campaign: who receives what, and optionally when.
type CampaignConfig struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Sender  string `json:"sender,omitempty"`

	// Template is an inline html/template; TemplateFile points to one.
	// Both empty selects the built-in layout.
	Template     string `json:"template,omitempty"`
	TemplateFile string `json:"template_file,omitempty"`
	TextTemplate string `json:"text_template,omitempty"`
	// Format is "html" (default for email gateways) or "text" (default for telegram).
	Format string            `json:"format,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	// StrictParams turns references to unknown params into render failures.
	StrictParams bool `json:"strict_params,omitempty"`

	Recipients     []campaign.Recipient `json:"recipients,omitempty"`
	RecipientsFile string               `json:"recipients_file,omitempty"`
	// CountryCode enables phone number normalization (e.g. "62").
	CountryCode string `json:"country_code,omitempty"`

	// Schedule is a cron expression ("0 9 * * 1", "@every 1h"), "daily:08:30",
	// or an interval given as a duration ("90m") or HH:MM ("01:30").
	Schedule string `json:"schedule,omitempty"`

	// Dispatch overrides the global dispatch section for this campaign.
	Dispatch *DispatchConfig `json:"dispatch,omitempty"`
}

// Campaign returns the campaign named name.
func (c *Config) Campaign(name string) (CampaignConfig, bool) {
	for _, cc := range c.Campaigns {
		if cc.Name == name {
			return cc, true
		}
	}
	return CampaignConfig{}, false
}
