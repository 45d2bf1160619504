// Package dispatch runs a campaign: it walks the recipient list in fixed-size
// batches, sends strictly one message at a time through a gateway, retries
// failed sends up to a cap, paces sends with fixed delays and records exactly
// one Result per recipient.
//
// # Delivery semantics
//
// A campaign never aborts because of a single recipient. Gateway errors are
// retried according to the RetryPolicy and then downgraded to a recorded
// failure. Senders that implement gateway.Prechecker are asked about
// reachability first; unreachable destinations fail without any send attempt
// and without consuming retries.
//
// Delivery log writes are best-effort: a failing Sink is reported through the
// logger and the campaign keeps going.
//
// Cancelling the context stops all pacing waits. Recipients that were not
// processed yet are recorded as failed with "campaign cancelled", so the
// summary still accounts for every input entry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"campaigner/internal/campaign"
	"campaigner/internal/gateway"
	"campaigner/internal/storage"
	logx "campaigner/pkg/logx"
)

// RenderFunc builds the message for one recipient. It must not have side effects.
type RenderFunc func(r campaign.Recipient) (gateway.Envelope, error)

// Sink receives one delivery log entry per recipient.
type Sink interface {
	Append(ctx context.Context, e storage.Entry) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Job is one campaign run.
type Job struct {
	Name       string
	Recipients []campaign.Recipient
	Render     RenderFunc
	Sender     gateway.Sender
}

type Dispatcher struct {
	cfg       Config
	log       logx.Logger
	sink      Sink
	policy    RetryPolicy
	observers observers
	sleep     SleepFunc
	now       func() time.Time
	newRunID  func() string
	limiter   *rate.Limiter
}

type Option func(*Dispatcher)

func WithLogger(log logx.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithSink sets where delivery log entries go. Defaults to discarding them.
func WithSink(s Sink) Option {
	return func(d *Dispatcher) { d.sink = s }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithObserver adds o to the observers notified during Run. May be repeated.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// WithSleep replaces the pacing wait. Tests use it to record delays.
func WithSleep(fn SleepFunc) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithRunID(fn func() string) Option {
	return func(d *Dispatcher) { d.newRunID = fn }
}

// New validates cfg and builds a Dispatcher.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		cfg:      cfg,
		policy:   BlanketRetry{},
		sleep:    sleepCtx,
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.log.IsZero() {
		d.log = logx.Nop()
	}
	if d.sink == nil {
		d.sink = nopSink{}
	}
	if d.policy == nil {
		d.policy = BlanketRetry{}
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return d, nil
}

func (d *Dispatcher) Config() Config { return d.cfg }

// Run delivers j and returns the summary. The returned error is non-nil only
// when j is invalid (nothing was sent) or ctx was cancelled mid-run (the
// summary is still complete).
func (d *Dispatcher) Run(ctx context.Context, j Job) (Summary, error) {
	switch {
	case len(j.Recipients) == 0:
		return Summary{}, ErrNoRecipients
	case j.Render == nil:
		return Summary{}, errors.New("dispatch: job has no render function")
	case j.Sender == nil:
		return Summary{}, errors.New("dispatch: job has no sender")
	}

	runID := d.newRunID()
	log := d.log.With(logx.Campaign(j.Name), logx.RunID(runID))
	batches := Batches(j.Recipients, d.cfg.BatchSize)
	total := len(j.Recipients)
	pc, _ := j.Sender.(gateway.Prechecker)

	sum := Summary{
		RunID:     runID,
		Campaign:  j.Name,
		Total:     total,
		Batches:   len(batches),
		StartedAt: d.now(),
		Results:   make([]Result, 0, total),
	}

	log.Info("campaign started",
		logx.Int("total", total),
		logx.Int("batches", len(batches)),
		logx.Int("batch_size", d.cfg.BatchSize),
		logx.Duration("delay_message", d.cfg.DelayBetweenMessages),
		logx.Duration("delay_batch", d.cfg.DelayBetweenBatches),
		logx.Int("max_retries", d.cfg.MaxRetries),
		logx.Bool("precheck", pc != nil),
	)
	d.observers.runStarted(RunInfo{RunID: runID, Campaign: j.Name, Total: total, Batches: len(batches), Config: d.cfg})

	var runErr error
	for bi, batch := range batches {
		if runErr == nil {
			d.observers.batchStarted(bi+1, len(batches), len(batch))
			log.Debug("batch started", logx.Int("batch", bi+1), logx.Int("size", len(batch)))
		}
		for _, r := range batch {
			var res Result
			if runErr != nil {
				res = d.failed(r, 0, errCancelled)
			} else {
				res = d.deliver(ctx, log, j, pc, r)
			}
			sum.add(res)
			d.record(ctx, log, j.Name, runID, res)
			d.observers.resultRecorded(res, len(sum.Results), total)

			if runErr != nil {
				continue
			}
			if d.cfg.SkipFinalDelay && len(sum.Results) == total {
				// no pacing wait left to observe a cancellation
				runErr = ctx.Err()
				continue
			}
			if err := d.sleep(ctx, d.cfg.DelayBetweenMessages); err != nil {
				runErr = err
			}
		}
		if runErr == nil && bi < len(batches)-1 {
			log.Debug("waiting before next batch", logx.Duration("delay", d.cfg.DelayBetweenBatches))
			if err := d.sleep(ctx, d.cfg.DelayBetweenBatches); err != nil {
				runErr = err
			}
		}
	}

	sum.Duration = d.now().Sub(sum.StartedAt)
	fields := []logx.Field{
		logx.Int("total", sum.Total),
		logx.Int("success", sum.SuccessCount),
		logx.Int("failed", sum.FailureCount()),
		logx.Duration("dur", sum.Duration),
	}
	switch {
	case runErr != nil:
		log.Warn("campaign cancelled", append(fields, logx.Err(runErr))...)
	case sum.FailureCount() > 0:
		log.Warn("campaign finished with failures", fields...)
	default:
		log.Info("campaign finished", fields...)
	}
	d.observers.runFinished(sum)
	return sum, runErr
}

var (
	errCancelled        = errors.New("campaign cancelled")
	errEmptyDestination = errors.New("destination is empty")
)

func (d *Dispatcher) deliver(ctx context.Context, log logx.Logger, j Job, pc gateway.Prechecker, r campaign.Recipient) Result {
	if strings.TrimSpace(r.Destination) == "" {
		return d.failed(r, 0, errEmptyDestination)
	}
	env, err := j.Render(r)
	if err != nil {
		return d.failed(r, 0, fmt.Errorf("render: %w", err))
	}
	if env.Destination == "" {
		env.Destination = r.Destination
	}

	if pc != nil {
		ok, err := pc.Reachable(ctx, r.Destination)
		if err != nil {
			return d.failed(r, 0, fmt.Errorf("reachability check: %w", err))
		}
		if !ok {
			log.Warn("destination not reachable; skipped", logx.String("destination", r.Destination))
			return d.failed(r, 0, gateway.ErrUnreachable)
		}
	}

	attempts := 0
	var last error
	for attempt := 0; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				last = err
				break
			}
		}
		attempts++
		id, err := j.Sender.Send(ctx, env)
		if err == nil {
			return Result{Recipient: r, Outcome: OutcomeSuccess, MessageID: id, Attempts: attempts, At: d.now()}
		}
		last = err
		if !d.policy.ShouldRetry(attempt, d.cfg.MaxRetries, err) {
			break
		}
		log.Debug("send retry scheduled",
			logx.String("destination", r.Destination),
			logx.Int("attempt", attempt+2),
			logx.Int("max_attempts", d.cfg.MaxRetries+1),
			logx.Duration("delay", d.cfg.RetryCooldown),
			logx.Err(err),
		)
		if err := d.sleep(ctx, d.cfg.RetryCooldown); err != nil {
			break
		}
	}
	return d.failed(r, attempts, last)
}

func (d *Dispatcher) failed(r campaign.Recipient, attempts int, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{Recipient: r, Outcome: OutcomeFailure, Error: msg, Attempts: attempts, At: d.now()}
}

func (d *Dispatcher) record(ctx context.Context, log logx.Logger, name, runID string, res Result) {
	e := storage.Entry{
		Timestamp:   res.At,
		Kind:        storage.KindSuccess,
		Destination: res.Recipient.Destination,
		Name:        res.Recipient.Name,
		Group:       res.Recipient.Group,
		Campaign:    name,
		RunID:       runID,
		MessageID:   res.MessageID,
		Attempts:    res.Attempts,
	}
	if !res.Succeeded() {
		e.Kind = storage.KindError
		e.Error = res.Error
	}
	// Log writes outlive cancellation so cancelled recipients are still persisted.
	if err := d.sink.Append(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("delivery log write failed", logx.String("destination", res.Recipient.Destination), logx.Err(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopSink struct{}

func (nopSink) Append(context.Context, storage.Entry) error { return nil }
