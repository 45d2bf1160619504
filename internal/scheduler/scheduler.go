// Package scheduler runs campaigns unattended on cron or interval schedules.
//
// Schedules are registered under the campaign name and replaced (upserted) on
// config reload. A campaign never overlaps with itself: a tick that fires
// while the previous run is still sending is skipped and logged.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "campaigner/pkg/logx"
)

// Job is one scheduled campaign run.
type Job func(ctx context.Context) error

// Config controls the scheduler service.
type Config struct {
	Timezone string        // IANA TZ, e.g. "Asia/Jakarta"; empty means local time
	Timeout  time.Duration // per run; 0 disables the limit
}

type entry struct {
	name    string
	raw     string
	spec    string
	job     Job
	id      cron.EntryID
	running atomic.Bool
	skipped atomic.Uint64
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron

	entries map[string]*entry

	runCtx    context.Context
	runCancel context.CancelFunc
}

type ScheduleInfo struct {
	Name     string
	Schedule string
	Spec     string
	Running  bool
	Skipped  uint64
	Next     time.Time
	Prev     time.Time
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log.With(logx.String("comp", "scheduler")),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: map[string]*entry{},
	}
}

// Upsert registers job under name, replacing any previous schedule with the
// same name. Registering while stopped is allowed; the schedule is applied on
// Start.
func (s *Service) Upsert(name, schedule string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("campaign %s: %w", name, err)
	}
	spec := ps.CronSpec()
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("campaign %s: invalid cron spec %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	e := &entry{name: name, raw: schedule, spec: spec, job: job}
	s.entries[name] = e
	if s.c != nil {
		if err := s.addLocked(e); err != nil {
			delete(s.entries, name)
			return err
		}
		s.log.Debug("schedule registered",
			logx.Campaign(name),
			logx.String("spec", spec),
			logx.Time("next", s.c.Entry(e.id).Next),
		)
	}
	return nil
}

// Remove unschedules name. It returns true if something was removed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("schedule removed", logx.Campaign(name))
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	if s.c != nil && e.id != 0 {
		s.c.Remove(e.id)
	}
	delete(s.entries, name)
	return true
}

// Names returns the registered campaign names, sorted.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	s.loc = loc
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, e := range s.entries {
		if err := s.addLocked(e); err != nil {
			s.log.Error("schedule register failed", logx.Campaign(e.name), logx.String("spec", e.spec), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", loc.String()), logx.Int("schedules", len(s.entries)))
	return nil
}

// Stop cancels in-flight runs and waits for them to return, or for ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	for _, e := range s.entries {
		e.id = 0
	}
	s.mu.Unlock()
	if c == nil {
		return
	}

	start := time.Now()
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; runs still in flight", logx.Err(ctx.Err()))
	}
}

func (s *Service) addLocked(e *entry) error {
	id, err := s.c.AddFunc(e.spec, func() { s.fire(e) })
	if err != nil {
		return err
	}
	e.id = id
	return nil
}

// fire runs one tick of e unless the previous run is still in flight.
func (s *Service) fire(e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		n := e.skipped.Add(1)
		s.log.Warn("campaign run skipped; previous run still in progress",
			logx.Campaign(e.name),
			logx.Int64("skipped_total", int64(n)),
		)
		return
	}
	defer e.running.Store(false)

	s.mu.Lock()
	ctx := s.runCtx
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in scheduled campaign",
				logx.Campaign(e.name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	s.log.Info("scheduled campaign started", logx.Campaign(e.name))
	if err := e.job(ctx); err != nil {
		s.log.Error("scheduled campaign failed", logx.Campaign(e.name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Info("scheduled campaign finished", logx.Campaign(e.name), logx.Duration("took", time.Since(start)))
}

func (s *Service) Snapshot() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduleInfo, 0, len(s.entries))
	for _, e := range s.entries {
		it := ScheduleInfo{
			Name:     e.name,
			Schedule: e.raw,
			Spec:     e.spec,
			Running:  e.running.Load(),
			Skipped:  e.skipped.Load(),
		}
		if s.c != nil && e.id != 0 {
			ce := s.c.Entry(e.id)
			it.Next = ce.Next
			it.Prev = ce.Prev
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", tz, err)
	}
	return loc, nil
}
