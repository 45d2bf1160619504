package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"campaigner/internal/dispatch"
)

// Metrics holds the campaign instruments:
//   - campaign_messages_total{campaign,outcome}: terminal results per recipient
//   - campaign_send_attempts_total{campaign}: gateway send calls, retries included
//   - campaign_run_duration_seconds{campaign}: wall time of a whole run
//   - campaign_runs_active{campaign}: runs currently sending
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	MessagesTotal metric.Int64Counter
	AttemptsTotal metric.Int64Counter
	RunDuration   metric.Float64Histogram
	RunsActive    metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on a private Prometheus registry, so
// repeated construction (tests, reloads) never collides.
func NewMetrics() (*Metrics, error) {
	reg := promclient.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("campaigner")

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	m.MessagesTotal, err = meter.Int64Counter(
		"campaign_messages_total",
		metric.WithDescription("Recipients processed, by final outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.AttemptsTotal, err = meter.Int64Counter(
		"campaign_send_attempts_total",
		metric.WithDescription("Gateway send calls, retries included"),
	)
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"campaign_run_duration_seconds",
		metric.WithDescription("Campaign run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	m.RunsActive, err = meter.Int64UpDownCounter(
		"campaign_runs_active",
		metric.WithDescription("Campaign runs currently sending"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Handler serves the Prometheus text exposition.
func (m *Metrics) Handler() http.Handler { return m.handler }

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// RecordResult records one recipient's terminal result.
func (m *Metrics) RecordResult(ctx context.Context, campaign string, res dispatch.Result) {
	m.MessagesTotal.Add(ctx, 1, metric.WithAttributes(campaignAttr(campaign), outcomeAttr(res.Outcome)))
	if res.Attempts > 0 {
		m.AttemptsTotal.Add(ctx, int64(res.Attempts), metric.WithAttributes(campaignAttr(campaign)))
	}
}

func (m *Metrics) RecordRunStarted(ctx context.Context, campaign string) {
	m.RunsActive.Add(ctx, 1, metric.WithAttributes(campaignAttr(campaign)))
}

func (m *Metrics) RecordRunFinished(ctx context.Context, sum dispatch.Summary) {
	attrs := metric.WithAttributes(campaignAttr(sum.Campaign))
	m.RunDuration.Record(ctx, sum.Duration.Seconds(), attrs)
	m.RunsActive.Add(ctx, -1, attrs)
}

// Observer returns a dispatch observer for a single run. A nil *Metrics
// yields a nil observer, which the dispatcher ignores.
func (m *Metrics) Observer() dispatch.Observer {
	if m == nil {
		return nil
	}
	return &runObserver{m: m}
}

type runObserver struct {
	m        *Metrics
	campaign string
}

func (o *runObserver) RunStarted(info dispatch.RunInfo) {
	o.campaign = info.Campaign
	o.m.RecordRunStarted(context.Background(), info.Campaign)
}

func (o *runObserver) BatchStarted(int, int, int) {}

func (o *runObserver) ResultRecorded(res dispatch.Result, _, _ int) {
	o.m.RecordResult(context.Background(), o.campaign, res)
}

func (o *runObserver) RunFinished(sum dispatch.Summary) {
	o.m.RecordRunFinished(context.Background(), sum)
}
