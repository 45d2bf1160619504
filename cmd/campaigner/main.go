package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"campaigner/internal/app"
	"campaigner/internal/config"
)

const usage = `usage: campaigner [--config path] [--env file] <command> [flags]

commands:
  send      run one campaign (--campaign name, --yes, --dry-run)
  stats     show delivery log counters
  history   show recent campaign runs (--limit n)
  schedule  run scheduled campaigns until interrupted (--dry-run)
  validate  check config, recipients and templates without sending
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one command and returns the process exit code:
// 0 on completion, 1 on fatal errors, 2 on usage errors.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("campaigner", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := global.String("config", config.DefaultPath, "path to config yaml/json")
	var envFiles multiFlag
	global.Var(&envFiles, "env", "dotenv file to load (repeatable, default .env)")
	if err := global.Parse(args); err != nil {
		return exitUsage(err)
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		campaign = fs.String("campaign", "", "campaign name (optional when only one is configured)")
		yes      = fs.Bool("yes", false, "skip the confirmation prompt")
		dryRun   = fs.Bool("dry-run", false, "print messages instead of sending them")
		limit    = fs.Int("limit", 20, "number of runs to show")
	)
	switch cmd {
	case "send", "stats", "history", "schedule", "validate":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err := fs.Parse(rest); err != nil {
		return exitUsage(err)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}

	a, err := app.New(app.Options{
		ConfigPath: *cfgPath,
		EnvFiles:   envFiles,
		DryRun:     *dryRun,
		Out:        stdout,
		In:         stdin,
	})
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	defer a.Close()

	switch cmd {
	case "send":
		err = a.Send(ctx, app.SendOptions{Campaign: *campaign, Yes: *yes})
	case "stats":
		err = a.Stats(ctx)
	case "history":
		err = a.History(ctx, *limit)
	case "schedule":
		err = a.Schedule(ctx)
	case "validate":
		err = a.Validate()
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrUsage):
		fmt.Fprintln(stderr, err)
		return 2
	default:
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
}

func exitUsage(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 2
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
