package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// WebhookOutcome labels what the dispatcher did with one delivery.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
	WebhookOutcomeRejected  WebhookOutcome = "rejected"
)

const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records sync activity. A nil *SyncMetrics is valid and records nothing,
// so services can hold one unconditionally.
type SyncMetrics struct {
	logger *zap.Logger

	entitiesTotal   *Counter
	webhooksTotal   *Counter
	passesTotal     *Counter
	passDuration    *Histogram
	lastPassUnix    *Gauge
	remoteCalls     *Counter
	remoteCallTimes *Histogram
}

// NewSyncMetrics registers the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter, logger *zap.Logger) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SyncMetrics{logger: logger}

	var err error
	if m.entitiesTotal, err = NewCounter(meter,
		"shopsync_entities_total",
		"Entities processed by sync stage and outcome",
		"{entities}",
	); err != nil {
		return nil, err
	}
	if m.webhooksTotal, err = NewCounter(meter,
		"shopsync_webhooks_total",
		"Inbound webhook deliveries by topic and outcome",
		"{deliveries}",
	); err != nil {
		return nil, err
	}
	if m.passesTotal, err = NewCounter(meter,
		"shopsync_passes_total",
		"Scheduled or manual sync passes by outcome",
		"{passes}",
	); err != nil {
		return nil, err
	}
	if m.passDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "shopsync_pass_duration_seconds",
		Description: "Wall time of a sync pass",
		Unit:        "s",
		Boundaries:  PassDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.lastPassUnix, err = NewGauge(meter,
		"shopsync_last_pass_timestamp",
		"Unix time the last sync pass finished",
		"s",
	); err != nil {
		return nil, err
	}
	if m.remoteCalls, err = NewCounter(meter,
		"shopsync_remote_requests_total",
		"Requests sent to the remote store API",
		"{requests}",
	); err != nil {
		return nil, err
	}
	if m.remoteCallTimes, err = NewHistogram(meter, HistogramOpts{
		Name:        "shopsync_remote_request_duration_seconds",
		Description: "Latency of remote store API requests",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordEntity counts one entity handled by a stage.
func (m *SyncMetrics) RecordEntity(ctx context.Context, stage string, err error) {
	if m == nil {
		return
	}
	m.entitiesTotal.Inc(ctx, AttrStage.String(stage), AttrOutcome.String(outcomeOf(err)))
}

// RecordWebhook counts one webhook delivery.
func (m *SyncMetrics) RecordWebhook(ctx context.Context, topic string, outcome WebhookOutcome) {
	if m == nil {
		return
	}
	m.webhooksTotal.Inc(ctx, AttrTopic.String(topic), AttrOutcome.String(string(outcome)))
}

// RecordPass records the duration and outcome of a sync pass.
func (m *SyncMetrics) RecordPass(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := AttrOutcome.String(outcomeOf(err))
	m.passesTotal.Inc(ctx, outcome)
	m.passDuration.RecordDuration(ctx, d, outcome)
	m.lastPassUnix.Record(ctx, time.Now().Unix())
}

// RecordRemoteCall records one request to the remote API.
func (m *SyncMetrics) RecordRemoteCall(ctx context.Context, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrHTTPMethod.String(method),
		AttrHTTPStatusCode.String(strconv.Itoa(status)),
	}
	m.remoteCalls.Inc(ctx, attrs...)
	m.remoteCallTimes.RecordDuration(ctx, d, attrs...)
}

func outcomeOf(err error) string {
	if err != nil {
		return outcomeFailed
	}
	return outcomeSuccess
}
