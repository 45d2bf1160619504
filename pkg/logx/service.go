package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config mirrors the logging section of campaigner.yaml.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string // default ./campaigner.log
}

const (
	defaultFilePath   = "./campaigner.log"
	consoleTimeFormat = "15:04:05.000"
)

// Service owns the log outputs. Apply swaps them atomically; loggers handed
// out earlier pick up the change on their next line.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	file *os.File

	root atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the Service together with a root Logger bound to it.
func New(cfg Config) (*Service, Logger) {
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply switches level and outputs. It is safe to call while other
// goroutines log (config reloads in schedule mode). When neither console nor
// file is enabled, console output is used.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var outs []io.Writer
	if cfg.Console || !cfg.File.Enabled {
		outs = append(outs, consoleWriter(Stderr()))
	}

	// Reopen only when the path changed; reopening on every reload would drop
	// lines written concurrently to the old handle.
	path := strings.TrimSpace(cfg.File.Path)
	if path == "" {
		path = defaultFilePath
	}
	if !cfg.File.Enabled || (s.file != nil && s.file.Name() != path) {
		s.closeFileLocked()
	}
	if cfg.File.Enabled && s.file == nil {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: open log file %q: %v\n", path, err)
		} else {
			s.file = f
		}
	}
	if s.file != nil {
		outs = append(outs, zerolog.SyncWriter(s.file))
	}
	if len(outs) == 0 {
		outs = append(outs, consoleWriter(Stderr()))
	}

	zl := build(cfg.Level, LevelInfo, zerolog.MultiLevelWriter(outs...))
	s.root.Store(&zl)
	s.cfg = cfg
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFileLocked()
}

func (s *Service) closeFileLocked() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func build(level string, def Level, w io.Writer) zerolog.Logger {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).Level(parseLevel(level, def)).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: !isTerminal(w)}
	cw.FormatCaller = func(i any) string {
		s, _ := i.(string)
		return s
	}
	return cw
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// parseLevel accepts zerolog level names plus "warning". Unknown or empty
// values yield def.
func parseLevel(s string, def Level) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if s == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}

// Stdout is where operator-facing output (prompts, progress, summaries) is written.
func Stdout() io.Writer { return os.Stdout }

// Stderr receives console logs so they don't interleave with the progress bar.
func Stderr() io.Writer { return os.Stderr }
