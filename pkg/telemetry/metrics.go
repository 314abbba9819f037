// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/pkg/logger"
)

const (
	// MeterName is the default meter name for the application
	MeterName = "github.com/reviewflow/reviewflow"
)

// Metrics holds all application metrics
type Metrics struct {
	// Review pipeline metrics
	ReviewSuccess     metric.Int64Counter
	ReviewFailure     metric.Int64Counter
	ProviderUsed      metric.Int64Counter
	ReviewDegradation metric.Int64Counter
	ReviewDuration    metric.Float64Histogram
	ActiveReviews     metric.Int64UpDownCounter

	// Queue metrics
	QueueEnqueued metric.Int64Counter
	QueueDequeued metric.Int64Counter
	QueueDepth    metric.Int64UpDownCounter
	LockConflicts metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Task retry metrics
	TaskRetries          metric.Int64Counter
	TaskPermanentFailure metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = initMetrics()
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			// Return empty metrics to avoid nil pointer
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

// initMetrics initializes all application metrics
func initMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)
	m := &Metrics{}

	var err error

	// Review pipeline metrics
	m.ReviewSuccess, err = meter.Int64Counter(
		"ai.review.success",
		metric.WithDescription("Total number of successfully completed reviews"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReviewFailure, err = meter.Int64Counter(
		"ai.review.failure",
		metric.WithDescription("Total number of failed reviews"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, err
	}

	m.ProviderUsed, err = meter.Int64Counter(
		"ai.review.provider.used",
		metric.WithDescription("Reviews served per AI provider"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReviewDegradation, err = meter.Int64Counter(
		"ai.review.degradation",
		metric.WithDescription("Fallback transitions from a failed primary provider"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReviewDuration, err = meter.Float64Histogram(
		"ai.review.duration",
		metric.WithDescription("Duration of review pipeline executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveReviews, err = meter.Int64UpDownCounter(
		"ai.review.active",
		metric.WithDescription("Number of currently running reviews"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, err
	}

	// Queue metrics
	m.QueueEnqueued, err = meter.Int64Counter(
		"reviewflow_queue_enqueued_total",
		metric.WithDescription("Total number of tasks added to the queue"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	m.QueueDequeued, err = meter.Int64Counter(
		"reviewflow_queue_dequeued_total",
		metric.WithDescription("Total number of tasks removed from the queue"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	m.QueueDepth, err = meter.Int64UpDownCounter(
		"reviewflow_queue_depth",
		metric.WithDescription("Approximate number of tasks waiting in the queue"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	m.LockConflicts, err = meter.Int64Counter(
		"reviewflow_queue_lock_conflicts_total",
		metric.WithDescription("Dequeue attempts that lost the task lock race"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, err
	}

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"reviewflow_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"reviewflow_http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	// Task retry metrics
	m.TaskRetries, err = meter.Int64Counter(
		"reviewflow_task_retries_total",
		metric.WithDescription("Total number of task retry attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskPermanentFailure, err = meter.Int64Counter(
		"reviewflow_task_permanent_failures_total",
		metric.WithDescription("Tasks marked failed with no further retries"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Metrics initialized successfully")
	return m, nil
}

// RecordReviewSuccess records a completed review and the provider that served it
func (m *Metrics) RecordReviewSuccess(ctx context.Context, provider string, durationSeconds float64) {
	if m == nil {
		return
	}
	if m.ReviewSuccess != nil {
		m.ReviewSuccess.Add(ctx, 1)
	}
	if m.ProviderUsed != nil {
		m.ProviderUsed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
	if m.ReviewDuration != nil {
		m.ReviewDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
}

// RecordReviewFailure records a review that exhausted all providers
func (m *Metrics) RecordReviewFailure(ctx context.Context, reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	if m.ReviewFailure != nil {
		m.ReviewFailure.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", reason)),
		)
	}
	if m.ReviewDuration != nil {
		m.ReviewDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.String("provider", "none")),
		)
	}
}

// RecordDegradation records a fallback transition between providers
func (m *Metrics) RecordDegradation(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	if m.ReviewDegradation == nil {
		return
	}
	m.ReviewDegradation.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordReviewStarted tracks an in-flight review
func (m *Metrics) RecordReviewStarted(ctx context.Context) {
	if m == nil {
		return
	}
	if m.ActiveReviews != nil {
		m.ActiveReviews.Add(ctx, 1)
	}
}

// RecordReviewFinished releases an in-flight review slot
func (m *Metrics) RecordReviewFinished(ctx context.Context) {
	if m == nil {
		return
	}
	if m.ActiveReviews != nil {
		m.ActiveReviews.Add(ctx, -1)
	}
}

// RecordEnqueue records a task pushed to the queue
func (m *Metrics) RecordEnqueue(ctx context.Context, priority string) {
	if m == nil {
		return
	}
	if m.QueueEnqueued != nil {
		m.QueueEnqueued.Add(ctx, 1,
			metric.WithAttributes(attribute.String("priority", priority)),
		)
	}
	if m.QueueDepth != nil {
		m.QueueDepth.Add(ctx, 1)
	}
}

// RecordDequeue records a task popped from the queue
func (m *Metrics) RecordDequeue(ctx context.Context) {
	if m == nil {
		return
	}
	if m.QueueDequeued != nil {
		m.QueueDequeued.Add(ctx, 1)
	}
	if m.QueueDepth != nil {
		m.QueueDepth.Add(ctx, -1)
	}
}

// RecordLockConflict records a dequeue that lost the lock race
func (m *Metrics) RecordLockConflict(ctx context.Context) {
	if m == nil {
		return
	}
	if m.LockConflicts != nil {
		m.LockConflicts.Add(ctx, 1)
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	if m.HTTPRequestsTotal != nil {
		m.HTTPRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
				attribute.Int("status_code", statusCode),
			),
		)
	}
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
			),
		)
	}
}

// RecordTaskRetry records a retry attempt with its failure classification
func (m *Metrics) RecordTaskRetry(ctx context.Context, failureType string) {
	if m == nil {
		return
	}
	if m.TaskRetries == nil {
		return
	}
	m.TaskRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("failure_type", failureType)),
	)
}

// RecordPermanentFailure records a task that will not be retried again
func (m *Metrics) RecordPermanentFailure(ctx context.Context, failureType string) {
	if m == nil {
		return
	}
	if m.TaskPermanentFailure == nil {
		return
	}
	m.TaskPermanentFailure.Add(ctx, 1,
		metric.WithAttributes(attribute.String("failure_type", failureType)),
	)
}
