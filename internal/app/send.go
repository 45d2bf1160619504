package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"campaigner/internal/campaign"
	"campaigner/internal/config"
	"campaigner/internal/dispatch"
	"campaigner/internal/gateway"
	"campaigner/internal/gateway/dryrun"
	"campaigner/internal/gateway/resend"
	"campaigner/internal/gateway/smtp"
	"campaigner/internal/gateway/telegram"
	"campaigner/internal/storage"
	logx "campaigner/pkg/logx"
)

type SendOptions struct {
	Campaign string
	// Yes skips the interactive confirmation.
	Yes bool
}

// prepared is a campaign resolved against the config: recipients loaded,
// templates compiled, pacing resolved. It holds no gateway yet.
type prepared struct {
	name       string
	recipients []campaign.Recipient
	render     dispatch.RenderFunc
	dispatch   dispatch.Config
	policy     dispatch.RetryPolicy
}

func (p prepared) job(sender gateway.Sender) dispatch.Job {
	return dispatch.Job{Name: p.name, Recipients: p.recipients, Render: p.render, Sender: sender}
}

// Send runs one campaign interactively: previous stats, confirmation,
// live progress and a final report. Declining the prompt is not an error.
func (a *App) Send(ctx context.Context, so SendOptions) (err error) {
	cfg := a.Config()
	cc, err := selectCampaign(cfg, so.Campaign)
	if err != nil {
		return err
	}
	defer a.recoverFatal(ctx, cc.Name, &err)

	p, err := a.prepare(cfg, cc)
	if err != nil {
		a.recordFatal(ctx, cc.Name, err, nil)
		return err
	}

	if st, serr := a.store.Stats(ctx); serr != nil {
		a.log.Warn("read delivery log stats failed", logx.Err(serr))
	} else {
		writeStats(a.out, st)
	}
	kind := a.gatewayKind(cfg)
	fmt.Fprintf(a.out, "\nCampaign %q via %s\n", cc.Name, kind)
	fmt.Fprintf(a.out, "  Recipients: %d in %d batch(es) of up to %d\n",
		len(p.recipients), dispatch.BatchCount(len(p.recipients), p.dispatch.BatchSize), p.dispatch.BatchSize)
	fmt.Fprintf(a.out, "  Estimated duration: %s\n", p.dispatch.EstimatedDuration(len(p.recipients)))

	if !so.Yes && !a.confirm("Start sending?") {
		fmt.Fprintln(a.out, "Aborted.")
		a.log.Info("campaign declined by operator", logx.Campaign(cc.Name))
		return nil
	}

	sender, closeSender, err := a.buildSender(cfg, cc)
	if err != nil {
		a.recordFatal(ctx, cc.Name, err, nil)
		return err
	}
	defer closeSender()

	_, err = a.run(ctx, p, sender, dispatch.NewProgress(a.out))
	return err
}

// run dispatches p and stores the campaign record. A cancelled run still
// stores what was delivered before returning ctx's error.
func (a *App) run(ctx context.Context, p prepared, sender gateway.Sender, observers ...dispatch.Observer) (dispatch.Summary, error) {
	opts := []dispatch.Option{
		dispatch.WithLogger(a.log),
		dispatch.WithSink(a.store),
		dispatch.WithRetryPolicy(p.policy),
	}
	for _, o := range observers {
		opts = append(opts, dispatch.WithObserver(o))
	}
	d, err := dispatch.New(p.dispatch, opts...)
	if err != nil {
		a.recordFatal(ctx, p.name, err, nil)
		return dispatch.Summary{}, err
	}

	sum, err := d.Run(ctx, p.job(sender))
	if sum.RunID != "" {
		rec := storage.CampaignRecord{
			Timestamp: sum.StartedAt.Add(sum.Duration),
			Campaign:  sum.Campaign,
			RunID:     sum.RunID,
			Total:     sum.Total,
			Success:   sum.SuccessCount,
			Failed:    sum.FailureCount(),
			TookMS:    sum.Duration.Milliseconds(),
		}
		if serr := a.store.SaveCampaign(context.WithoutCancel(ctx), rec); serr != nil {
			a.log.Warn("save campaign record failed", logx.Campaign(p.name), logx.Err(serr))
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return sum, fmt.Errorf("campaign %s interrupted: %w", p.name, err)
		}
		a.recordFatal(ctx, p.name, err, nil)
		return sum, fmt.Errorf("campaign %s: %w", p.name, err)
	}
	return sum, nil
}

// prepare loads recipients and compiles templates for cc.
func (a *App) prepare(cfg *config.Config, cc config.CampaignConfig) (prepared, error) {
	dcfg, policy, err := cfg.ResolveDispatch(cc)
	if err != nil {
		return prepared{}, fmt.Errorf("campaign %s: %w", cc.Name, err)
	}

	session := strings.EqualFold(strings.TrimSpace(cfg.Gateway.Kind), config.GatewayTelegram)
	lo := campaign.LoadOptions{
		CountryCode: strings.TrimSpace(cc.CountryCode),
		RequireName: session,
		Log:         a.log.With(logx.Campaign(cc.Name)),
	}
	recipients := campaign.Normalize(cc.Recipients, lo)
	if f := strings.TrimSpace(cc.RecipientsFile); f != "" {
		loaded, err := campaign.LoadFile(a.resolvePath(f), lo)
		if err != nil {
			return prepared{}, fmt.Errorf("campaign %s: %w", cc.Name, err)
		}
		recipients = append(recipients, loaded...)
	}
	if len(recipients) == 0 {
		return prepared{}, fmt.Errorf("campaign %s: %w", cc.Name, dispatch.ErrNoRecipients)
	}

	html := cc.Template
	if f := strings.TrimSpace(cc.TemplateFile); f != "" {
		b, err := os.ReadFile(a.resolvePath(f))
		if err != nil {
			return prepared{}, fmt.Errorf("campaign %s: read template: %w", cc.Name, err)
		}
		html = string(b)
	}

	format := campaign.Format(strings.ToLower(strings.TrimSpace(cc.Format)))
	if format == "" {
		format = campaign.FormatHTML
		if session {
			format = campaign.FormatText
		}
	}

	r, err := campaign.NewRenderer(campaign.Definition{
		Name:    cc.Name,
		Subject: cc.Subject,
		Sender:  cc.Sender,
		HTML:    html,
		Text:    cc.TextTemplate,
		Params:  cc.Params,
		Format:  format,
		Strict:  cc.StrictParams,
	})
	if err != nil {
		return prepared{}, fmt.Errorf("campaign %s: %w", cc.Name, err)
	}

	return prepared{
		name:       cc.Name,
		recipients: recipients,
		render:     r.Render,
		dispatch:   dcfg,
		policy:     policy,
	}, nil
}

// resolvePath resolves p against the config file's directory.
func (a *App) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(a.cfgm.Path()), p)
}

// buildSender connects the configured gateway for cc. The returned close
// func is always non-nil.
func (a *App) buildSender(cfg *config.Config, cc config.CampaignConfig) (gateway.Sender, func(), error) {
	nop := func() {}
	gc := cfg.Gateway
	log := a.log.With(logx.String("comp", "gateway"))
	session := strings.EqualFold(strings.TrimSpace(gc.Kind), config.GatewayTelegram)

	switch a.gatewayKind(cfg) {
	case config.GatewayDryRun:
		g := dryrun.New(a.out, false)
		if session {
			return gateway.ForSession(g), nop, nil
		}
		return gateway.ForTransactional(g, cc.Sender), nop, nil

	case config.GatewayResend:
		g, err := resend.New(resend.Config{
			APIKey:   gc.Resend.APIKey,
			BaseURL:  gc.Resend.BaseURL,
			Tags:     gc.Resend.Tags,
			Campaign: cc.Name,
		}, log)
		if err != nil {
			return nil, nop, fmt.Errorf("resend gateway: %w", err)
		}
		return gateway.ForTransactional(g, cc.Sender), nop, nil

	case config.GatewaySMTP:
		var timeout time.Duration
		if gc.SMTP.SendTimeout != nil {
			timeout = gc.SMTP.SendTimeout.Std()
		}
		g, err := smtp.New(smtp.Config{
			Host:               gc.SMTP.Host,
			Port:               gc.SMTP.Port,
			Username:           gc.SMTP.Username,
			Password:           gc.SMTP.Password,
			MaxConns:           gc.SMTP.MaxConns,
			SendTimeout:        timeout,
			InsecureSkipVerify: gc.SMTP.InsecureSkipVerify,
			TLS:                gc.SMTP.TLS,
		}, log)
		if err != nil {
			return nil, nop, fmt.Errorf("smtp gateway: %w", err)
		}
		return gateway.ForTransactional(g, cc.Sender), func() {
			if err := g.Close(); err != nil {
				log.Debug("smtp pool close failed", logx.Err(err))
			}
		}, nil

	case config.GatewayTelegram:
		var timeout time.Duration
		if gc.Telegram.Timeout != nil {
			timeout = gc.Telegram.Timeout.Std()
		}
		g, err := telegram.New(telegram.Config{
			Token:          gc.Telegram.Token,
			APIURL:         gc.Telegram.APIURL,
			ParseMode:      gc.Telegram.ParseMode,
			DisablePreview: gc.Telegram.DisablePreview,
			Timeout:        timeout,
		}, log)
		if err != nil {
			return nil, nop, fmt.Errorf("telegram gateway: %w", err)
		}
		return gateway.ForSession(g), nop, nil

	default:
		return nil, nop, fmt.Errorf("unknown gateway kind %q", gc.Kind)
	}
}

// recordFatal writes a best-effort fatal_error entry. stack nil means the
// current goroutine's stack.
func (a *App) recordFatal(ctx context.Context, name string, err error, stack []byte) {
	if stack == nil {
		stack = debug.Stack()
	}
	a.log.Error("campaign aborted", logx.Campaign(name), logx.Err(err))
	e := storage.Entry{
		Timestamp: time.Now().UTC(),
		Kind:      storage.KindFatalError,
		Campaign:  name,
		Error:     err.Error(),
		Stack:     string(stack),
	}
	if aerr := a.store.Append(context.WithoutCancel(ctx), e); aerr != nil {
		a.log.Warn("write fatal error entry failed", logx.Err(aerr))
	}
}

func (a *App) recoverFatal(ctx context.Context, name string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic: %v", r)
	a.recordFatal(ctx, name, err, debug.Stack())
	*errp = err
}

// Validate loads every campaign's recipients and templates without sending
// and prints one line per campaign.
func (a *App) Validate() error {
	cfg := a.Config()
	var failed int
	for _, cc := range cfg.Campaigns {
		p, err := a.prepare(cfg, cc)
		if err != nil {
			failed++
			fmt.Fprintf(a.out, "✗ %s: %v\n", cc.Name, err)
			continue
		}
		if _, err := renderSample(p); err != nil {
			failed++
			fmt.Fprintf(a.out, "✗ %s: %v\n", cc.Name, err)
			continue
		}
		line := fmt.Sprintf("✓ %s: %d recipients, %d batch(es), est. %s",
			cc.Name, len(p.recipients), dispatch.BatchCount(len(p.recipients), p.dispatch.BatchSize),
			p.dispatch.EstimatedDuration(len(p.recipients)))
		if s := strings.TrimSpace(cc.Schedule); s != "" {
			line += ", schedule " + s
		}
		fmt.Fprintln(a.out, line)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d campaign(s) invalid", failed, len(cfg.Campaigns))
	}
	return nil
}

// renderSample renders the first recipient so template errors that only show
// at execution time surface before a real run.
func renderSample(p prepared) (gateway.Envelope, error) {
	env, err := p.render(p.recipients[0])
	if err != nil {
		return gateway.Envelope{}, fmt.Errorf("render %s: %w", p.recipients[0].Label(), err)
	}
	return env, nil
}
