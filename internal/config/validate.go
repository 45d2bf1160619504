package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campaigner/internal/dispatch"
	"campaigner/internal/scheduler"
)

// Gateway kinds.
const (
	GatewayResend   = "resend"
	GatewaySMTP     = "smtp"
	GatewayTelegram = "telegram"
	GatewayDryRun   = "dryrun"
)

// Merge returns d with every field set in o taking precedence.
func (d DispatchConfig) Merge(o *DispatchConfig) DispatchConfig {
	if o == nil {
		return d
	}
	out := d
	if o.BatchSize != nil {
		out.BatchSize = o.BatchSize
	}
	if o.DelayBetweenMessages != nil {
		out.DelayBetweenMessages = o.DelayBetweenMessages
	}
	if o.DelayBetweenBatches != nil {
		out.DelayBetweenBatches = o.DelayBetweenBatches
	}
	if o.MaxRetries != nil {
		out.MaxRetries = o.MaxRetries
	}
	if o.RetryCooldown != nil {
		out.RetryCooldown = o.RetryCooldown
	}
	if o.RetryPolicy != "" {
		out.RetryPolicy = o.RetryPolicy
	}
	if o.RatePerSec != 0 {
		out.RatePerSec = o.RatePerSec
	}
	if o.SkipFinalDelay != nil {
		out.SkipFinalDelay = o.SkipFinalDelay
	}
	return out
}

// Resolve fills defaults and returns the validated dispatcher settings.
func (d DispatchConfig) Resolve() (dispatch.Config, dispatch.RetryPolicy, error) {
	def := dispatch.DefaultConfig()
	cfg := dispatch.Config{
		BatchSize:            def.BatchSize,
		DelayBetweenMessages: durationOr(d.DelayBetweenMessages, def.DelayBetweenMessages),
		DelayBetweenBatches:  durationOr(d.DelayBetweenBatches, def.DelayBetweenBatches),
		MaxRetries:           def.MaxRetries,
		RetryCooldown:        durationOr(d.RetryCooldown, def.RetryCooldown),
		RatePerSec:           d.RatePerSec,
	}
	if d.BatchSize != nil {
		cfg.BatchSize = *d.BatchSize
	}
	if d.MaxRetries != nil {
		cfg.MaxRetries = *d.MaxRetries
	}
	if d.SkipFinalDelay != nil {
		cfg.SkipFinalDelay = *d.SkipFinalDelay
	}
	if err := cfg.Validate(); err != nil {
		return dispatch.Config{}, nil, err
	}
	policy, ok := dispatch.PolicyByName(strings.TrimSpace(d.RetryPolicy))
	if !ok {
		return dispatch.Config{}, nil, fmt.Errorf("%w: unknown retry_policy %q", dispatch.ErrInvalidConfig, d.RetryPolicy)
	}
	return cfg, policy, nil
}

// ResolveDispatch returns the effective dispatch settings for cc.
func (c *Config) ResolveDispatch(cc CampaignConfig) (dispatch.Config, dispatch.RetryPolicy, error) {
	return c.Dispatch.Merge(cc.Dispatch).Resolve()
}

// Validate reports every structural problem at once. It does not touch the
// network or the filesystem.
func Validate(cfg *Config) error {
	return validate(cfg, true)
}

// ValidateDryRun is Validate without the gateway credential checks; a dry run
// never contacts the configured gateway.
func ValidateDryRun(cfg *Config) error {
	return validate(cfg, false)
}

func validate(cfg *Config, credentials bool) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	switch cfg.Gateway.Kind {
	case GatewayResend:
		if credentials && strings.TrimSpace(cfg.Gateway.Resend.APIKey) == "" {
			errs = append(errs, errors.New("gateway.resend.api_key (or RESEND_API_KEY) is required"))
		}
	case GatewaySMTP:
		if credentials && strings.TrimSpace(cfg.Gateway.SMTP.Host) == "" {
			errs = append(errs, errors.New("gateway.smtp.host is required"))
		}
	case GatewayTelegram:
		if credentials && strings.TrimSpace(cfg.Gateway.Telegram.Token) == "" {
			errs = append(errs, errors.New("gateway.telegram.token (or TELEGRAM_TOKEN) is required"))
		}
	case GatewayDryRun:
	case "":
		errs = append(errs, errors.New("gateway.kind is required"))
	default:
		errs = append(errs, fmt.Errorf("gateway.kind: unknown gateway %q", cfg.Gateway.Kind))
	}

	if _, _, err := cfg.Dispatch.Resolve(); err != nil {
		errs = append(errs, fmt.Errorf("dispatch: %w", err))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	if len(cfg.Campaigns) == 0 {
		errs = append(errs, errors.New("campaigns: at least one campaign is required"))
	}
	seen := make(map[string]bool, len(cfg.Campaigns))
	for i, cc := range cfg.Campaigns {
		where := fmt.Sprintf("campaigns[%d]", i)
		if strings.TrimSpace(cc.Name) == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", where))
		} else {
			where = fmt.Sprintf("campaigns[%s]", cc.Name)
			if seen[cc.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate campaign name", where))
			}
			seen[cc.Name] = true
		}
		if len(cc.Recipients) == 0 && strings.TrimSpace(cc.RecipientsFile) == "" {
			errs = append(errs, fmt.Errorf("%s: recipients or recipients_file is required", where))
		}
		if cc.Template != "" && cc.TemplateFile != "" {
			errs = append(errs, fmt.Errorf("%s: template and template_file are mutually exclusive", where))
		}
		switch cc.Format {
		case "", "html", "text":
		default:
			errs = append(errs, fmt.Errorf("%s.format: unknown format %q", where, cc.Format))
		}
		if (cfg.Gateway.Kind == GatewayResend || cfg.Gateway.Kind == GatewaySMTP) && strings.TrimSpace(cc.Sender) == "" {
			errs = append(errs, fmt.Errorf("%s: sender is required for email gateways", where))
		}
		if (cc.Format == "text" || cfg.Gateway.Kind == GatewayTelegram) && cc.TextTemplate == "" {
			errs = append(errs, fmt.Errorf("%s: text format requires text_template", where))
		}
		if cfg.Gateway.Kind == GatewayTelegram && strings.TrimSpace(cc.CountryCode) != "" {
			errs = append(errs, fmt.Errorf("%s: country_code does not apply to telegram chat ids", where))
		}
		if strings.TrimSpace(cc.Schedule) != "" {
			if _, err := scheduler.ParseSchedule(cc.Schedule); err != nil {
				errs = append(errs, fmt.Errorf("%s.schedule: %w", where, err))
			}
		}
		if _, _, err := cfg.ResolveDispatch(cc); err != nil {
			errs = append(errs, fmt.Errorf("%s.dispatch: %w", where, err))
		}
	}
	return errors.Join(errs...)
}
