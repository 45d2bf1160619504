package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaigner/internal/config"
	"campaigner/internal/observability"
	"campaigner/internal/runtime/supervisor"
	"campaigner/internal/scheduler"
	logx "campaigner/pkg/logx"
)

// Schedule runs every campaign that carries a schedule until ctx is
// cancelled. The config file is watched; valid changes re-register
// schedules and apply logging without a restart.
func (a *App) Schedule(ctx context.Context) error {
	cfg := a.Config()
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	sched := scheduler.New(mapSchedulerConfig(cfg.Scheduler), a.log)

	var (
		metrics *observability.Metrics
		server  *observability.Server
	)
	if cfg.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		srv := observability.NewServer(observability.ServerConfig{
			Addr:          cfg.Metrics.Addr,
			Token:         cfg.Metrics.Token,
			AllowInsecure: cfg.Metrics.AllowInsecure,
		}, m.Handler(), a.log)
		if err := srv.Start(sup.Context()); err != nil {
			_ = m.Shutdown(context.Background())
			return fmt.Errorf("metrics: %w", err)
		}
		metrics, server = m, srv
	}

	if n := a.syncSchedules(sched, cfg, metrics); n == 0 {
		a.log.Warn("no campaign has a schedule; waiting for config changes")
	}
	if err := sched.Start(sup.Context()); err != nil {
		if server != nil {
			server.Stop(context.Background())
		}
		return err
	}

	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return validateFor(c, a.opts.DryRun)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				newCfg = latest(sub, newCfg)
				a.applyReload(lastApplied, newCfg, sched, metrics)
				lastApplied = newCfg
			}
		}
	})

	sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("schedule mode started",
		logx.Int("schedules", len(sched.Names())),
		logx.Bool("metrics", server != nil),
		logx.Bool("dry_run", a.opts.DryRun),
	)
	for _, it := range sched.Snapshot() {
		a.log.Info("campaign scheduled", logx.Campaign(it.Name), logx.String("schedule", it.Schedule), logx.Time("next", it.Next))
	}

	<-sup.Context().Done()
	a.log.Info("stopping")

	_ = a.stopStep("scheduler", 30*time.Second, func(c context.Context) error { sched.Stop(c); return nil })
	_ = a.stopStep("metrics", time.Second, func(c context.Context) error {
		if server != nil {
			server.Stop(c)
		}
		if metrics != nil {
			return metrics.Shutdown(c)
		}
		return nil
	})
	supErr := a.stopStep("supervisor", 2*time.Second, sup.Stop)

	a.log.Info("stopped")
	if ctx.Err() != nil {
		// signal shutdown is a normal exit
		return nil
	}
	return supErr
}

func latest(sub chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer := <-sub:
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

func (a *App) applyReload(oldCfg, newCfg *config.Config, sched *scheduler.Service, metrics *observability.Metrics) {
	sections, attrs, campaigns := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)
	if len(campaigns) > 0 {
		a.log.Debug("campaign changes detected", logx.Any("campaigns", campaigns))
	}

	for _, s := range sections {
		switch s {
		case "storage", "metrics", "scheduler":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}

	if a.logs != nil {
		a.logs.Apply(mapLoggingConfig(newCfg.Logging))
	}
	a.syncSchedules(sched, newCfg, metrics)

	a.log.Info("config reloaded", fields...)
}

// syncSchedules makes the registered schedules match cfg and returns how many
// campaigns are scheduled. Jobs read the campaign from the current config at
// fire time, so only schedule changes need a re-registration.
func (a *App) syncSchedules(sched *scheduler.Service, cfg *config.Config, metrics *observability.Metrics) int {
	want := make(map[string]string, len(cfg.Campaigns))
	for _, cc := range cfg.Campaigns {
		if s := strings.TrimSpace(cc.Schedule); s != "" {
			want[cc.Name] = s
		}
	}

	current := make(map[string]string)
	for _, it := range sched.Snapshot() {
		current[it.Name] = it.Schedule
	}
	for name := range current {
		if _, ok := want[name]; !ok {
			sched.Remove(name)
			a.log.Info("campaign unscheduled", logx.Campaign(name))
		}
	}
	for name, s := range want {
		if current[name] == s {
			continue
		}
		if err := sched.Upsert(name, s, a.scheduledJob(name, metrics)); err != nil {
			a.log.Error("schedule campaign failed", logx.Campaign(name), logx.String("schedule", s), logx.Err(err))
		}
	}
	return len(want)
}

func (a *App) scheduledJob(name string, metrics *observability.Metrics) scheduler.Job {
	return func(ctx context.Context) error {
		return a.runScheduled(ctx, name, metrics)
	}
}

// runScheduled runs name unattended: no prompt and no terminal progress.
func (a *App) runScheduled(ctx context.Context, name string, metrics *observability.Metrics) (err error) {
	cfg := a.Config()
	cc, ok := cfg.Campaign(name)
	if !ok {
		return fmt.Errorf("campaign %s is no longer configured", name)
	}
	defer a.recoverFatal(ctx, name, &err)

	p, err := a.prepare(cfg, cc)
	if err != nil {
		a.recordFatal(ctx, name, err, nil)
		return err
	}
	sender, closeSender, err := a.buildSender(cfg, cc)
	if err != nil {
		a.recordFatal(ctx, name, err, nil)
		return err
	}
	defer closeSender()

	sum, err := a.run(ctx, p, sender, metrics.Observer())
	if err != nil {
		return err
	}
	a.log.Info("campaign summary",
		logx.Campaign(name),
		logx.RunID(sum.RunID),
		logx.Int("total", sum.Total),
		logx.Int("success", sum.SuccessCount),
		logx.Int("failed", sum.FailureCount()),
		logx.Float64("success_rate", sum.SuccessRate()),
	)
	return nil
}

func mapSchedulerConfig(sc config.SchedulerConfig) scheduler.Config {
	out := scheduler.Config{Timezone: strings.TrimSpace(sc.Timezone)}
	if sc.Timeout != nil {
		out.Timeout = sc.Timeout.Std()
	}
	return out
}

// stopStep runs fn bounded by timeout and returns its error. fn must honor its
// context; a step that overruns is logged and left to finish in the background.
func (a *App) stopStep(name string, timeout time.Duration, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn(stepCtx) }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		if took := time.Since(start); took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
		return err
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
		return stepCtx.Err()
	}
}
