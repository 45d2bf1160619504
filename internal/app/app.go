package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"campaigner/internal/config"
	"campaigner/internal/storage"
	logx "campaigner/pkg/logx"
)

// ErrUsage marks errors caused by how the command was invoked. The CLI maps
// it to exit code 2.
var ErrUsage = errors.New("usage error")

type Options struct {
	ConfigPath string
	// EnvFiles are loaded before the config is decoded. Empty means ".env"
	// when it exists.
	EnvFiles []string
	// DryRun replaces the configured gateway with the dry-run gateway.
	DryRun bool

	Out io.Writer // operator output; defaults to stdout
	In  io.Reader // confirmation input; defaults to stdin

	// Logger, when set, is used instead of the one built from the logging section.
	Logger logx.Logger
}

// App wires config, logging and the delivery log for the CLI commands.
type App struct {
	opts Options

	cfgm  *config.ConfigManager
	logs  *logx.Service
	log   logx.Logger
	store storage.Store

	out io.Writer
	in  *bufio.Reader
}

func New(opts Options) (*App, error) {
	if err := config.LoadEnv(opts.EnvFiles...); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgm.Path(), err)
	}
	if err := validateFor(cfg, opts.DryRun); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgm.Path(), err)
	}

	a := &App{opts: opts, cfgm: cfgm, out: opts.Out}
	if a.out == nil {
		a.out = logx.Stdout()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	a.in = bufio.NewReader(in)

	if opts.Logger.IsZero() {
		a.logs, a.log = logx.New(mapLoggingConfig(cfg.Logging))
	} else {
		a.log = opts.Logger
	}
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	sc := mapStorageConfig(cfg.Storage)
	if sc.Path != "" {
		sc.Path = a.resolvePath(sc.Path)
	}
	store, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		a.closeLogs()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	a.log.Debug("app initialized",
		logx.String("config", cfgm.Path()),
		logx.String("gateway", a.gatewayKind(cfg)),
		logx.Int("campaigns", len(cfg.Campaigns)),
	)
	return a, nil
}

// Config is the currently committed config.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	a.closeLogs()
	return err
}

func (a *App) closeLogs() {
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

func (a *App) gatewayKind(cfg *config.Config) string {
	if a.opts.DryRun {
		return config.GatewayDryRun
	}
	return strings.ToLower(strings.TrimSpace(cfg.Gateway.Kind))
}

// validateFor validates cfg. A dry run needs no gateway credentials.
func validateFor(cfg *config.Config, dryRun bool) error {
	if dryRun {
		return config.ValidateDryRun(cfg)
	}
	return config.Validate(cfg)
}

// selectCampaign returns the named campaign. An empty name is accepted only
// when the config holds exactly one campaign.
func selectCampaign(cfg *config.Config, name string) (config.CampaignConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		switch len(cfg.Campaigns) {
		case 0:
			return config.CampaignConfig{}, fmt.Errorf("%w: no campaigns configured", ErrUsage)
		case 1:
			return cfg.Campaigns[0], nil
		default:
			return config.CampaignConfig{}, fmt.Errorf("%w: --campaign is required (one of: %s)", ErrUsage, strings.Join(campaignNames(cfg), ", "))
		}
	}
	cc, ok := cfg.Campaign(name)
	if !ok {
		return config.CampaignConfig{}, fmt.Errorf("%w: unknown campaign %q (one of: %s)", ErrUsage, name, strings.Join(campaignNames(cfg), ", "))
	}
	return cc, nil
}

func campaignNames(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Campaigns))
	for _, cc := range cfg.Campaigns {
		out = append(out, cc.Name)
	}
	sort.Strings(out)
	return out
}

func mapLoggingConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

func mapStorageConfig(sc config.StorageConfig) storage.Config {
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "json":
		driver = "file"
	case "sqlite3":
		driver = "sqlite"
	}
	if path == "" {
		switch driver {
		case "file":
			path = storage.DefaultFilePath
		case "sqlite":
			path = "./campaign_logs.db"
		}
	}
	var busy time.Duration
	if sc.BusyTimeout != nil {
		busy = sc.BusyTimeout.Std()
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}
}

// confirm asks the operator to proceed. Only "y" and "yes" accept.
func (a *App) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(a.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Stats prints the aggregate counters of the delivery log.
func (a *App) Stats(ctx context.Context) error {
	st, err := a.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	writeStats(a.out, st)
	return nil
}

func writeStats(w io.Writer, st storage.Stats) {
	fmt.Fprintln(w, "Delivery log:")
	fmt.Fprintf(w, "  Total:   %d\n", st.Total)
	fmt.Fprintf(w, "  Success: %d\n", st.Success)
	fmt.Fprintf(w, "  Failed:  %d\n", st.Failed)
	if st.LastRun.IsZero() {
		fmt.Fprintln(w, "  Last:    never")
	} else {
		fmt.Fprintf(w, "  Last:    %s\n", st.LastRun.Local().Format(time.DateTime))
	}
}

// History prints the most recent campaign runs, oldest first.
func (a *App) History(ctx context.Context, limit int) error {
	recs, err := a.store.Campaigns(ctx, limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No campaign runs recorded.")
		return nil
	}
	for _, r := range recs {
		rate := 0.0
		if r.Total > 0 {
			rate = float64(r.Success) / float64(r.Total) * 100
		}
		fmt.Fprintf(a.out, "%s  %-20s  total=%d success=%d failed=%d rate=%.1f%% took=%s  run=%s\n",
			r.Timestamp.Local().Format(time.DateTime),
			r.Campaign,
			r.Total, r.Success, r.Failed, rate,
			(time.Duration(r.TookMS) * time.Millisecond).Round(time.Millisecond),
			r.RunID,
		)
	}
	return nil
}
