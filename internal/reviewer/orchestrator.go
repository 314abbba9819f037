package reviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/consts"
	"github.com/reviewflow/reviewflow/internal/ai"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/logger"
	"github.com/reviewflow/reviewflow/pkg/telemetry"
)

// allProvidersFailedMessage is returned when neither the primary nor
// the fallback provider produced a result.
const allProvidersFailedMessage = "All AI providers failed"

// ContextAssembler builds the review context for a task.
type ContextAssembler interface {
	AssembleContext(ctx context.Context, task *model.ReviewTask) (*CodeContext, error)
}

// ProviderSource resolves AI providers for a review.
type ProviderSource interface {
	DefaultProvider() (ai.Provider, error)
	Provider(id string) (ai.Provider, error)
	FallbackID() string
}

// TemplateSource looks up the enabled prompt template for a category.
type TemplateSource interface {
	FindByCategoryAndEnabled(category string) (*model.PromptTemplate, error)
}

// RecordWriter persists completed review results.
type RecordWriter interface {
	Create(record *model.ReviewRecord) error
}

// Outcome is the terminal result of a review run. Failed runs carry a
// message instead of a result; degradation events record provider
// fallback transitions either way.
type Outcome struct {
	Success           bool
	Message           string
	Result            *ai.Result
	DegradationEvents []string

	// FailureType classifies failed outcomes so retry handling can
	// decide whether the task is worth another attempt.
	FailureType ai.FailureType
}

// Orchestrator runs the review pipeline for a single task: assemble
// context, render the prompt, call the primary provider, and fall back
// to a secondary provider on qualifying failures.
type Orchestrator struct {
	assembler ContextAssembler
	providers ProviderSource
	templates TemplateSource
	records   RecordWriter
	renderer  *Renderer
	metrics   *telemetry.Metrics
}

// NewOrchestrator wires the review pipeline collaborators.
func NewOrchestrator(assembler ContextAssembler, providers ProviderSource, templates TemplateSource, records RecordWriter, metrics *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		assembler: assembler,
		providers: providers,
		templates: templates,
		records:   records,
		renderer:  NewRenderer(),
		metrics:   metrics,
	}
}

// Review runs the pipeline for a task. Every failure path resolves to a
// failed Outcome except a missing prompt template, which is a
// configuration error and escalates to the caller.
func (o *Orchestrator) Review(ctx context.Context, task *model.ReviewTask) (*Outcome, error) {
	start := time.Now()
	o.metrics.RecordReviewStarted(ctx)
	defer o.metrics.RecordReviewFinished(ctx)

	cc, err := o.assembler.AssembleContext(ctx, task)
	if err != nil {
		return o.failed(ctx, task, start, nil, ai.FailureValidation,
			"failed to assemble review context: "+err.Error()), nil
	}

	tmpl, err := o.templates.FindByCategoryAndEnabled(consts.TemplateCategoryCodeReview)
	if err != nil {
		return nil, err
	}

	prompt, err := o.renderer.Render(tmpl, cc)
	if err != nil {
		return o.failed(ctx, task, start, nil, ai.FailureValidation, err.Error()), nil
	}

	primary, err := o.providers.DefaultProvider()
	if err != nil {
		return o.failed(ctx, task, start, nil, ai.FailureValidation,
			"no AI provider available: "+err.Error()), nil
	}

	result, analyzeErr := primary.Analyze(ctx, prompt)
	if analyzeErr == nil {
		return o.succeeded(ctx, task, start, primary, result, nil), nil
	}

	logger.Warn("Primary AI provider failed",
		zap.String("task_id", task.ID),
		zap.String("provider", primary.ID()),
		zap.String("failure_type", string(ai.FailureTypeOf(analyzeErr))),
		zap.Error(analyzeErr),
	)

	var providerErr *ai.ProviderError
	if !errors.As(analyzeErr, &providerErr) {
		return o.failed(ctx, task, start, nil, ai.FailureTypeOf(analyzeErr), analyzeErr.Error()), nil
	}

	events := []string{fmt.Sprintf("%s failed: %v", primary.ID(), analyzeErr)}

	fallback := o.resolveFallback(task, primary)
	if fallback == nil {
		return o.failed(ctx, task, start, events, providerErr.Type, allProvidersFailedMessage), nil
	}

	o.metrics.RecordDegradation(ctx, primary.ID(), fallback.ID())
	result, analyzeErr = fallback.Analyze(ctx, prompt)
	if analyzeErr != nil {
		logger.Warn("Fallback AI provider failed",
			zap.String("task_id", task.ID),
			zap.String("provider", fallback.ID()),
			zap.Error(analyzeErr),
		)
		return o.failed(ctx, task, start, events, ai.FailureTypeOf(analyzeErr), allProvidersFailedMessage), nil
	}
	return o.succeeded(ctx, task, start, fallback, result, events), nil
}

// resolveFallback returns a usable fallback provider, or nil when none
// is configured, it matches the primary, it is not registered, or it
// reports itself unavailable. Eligibility is evaluated fresh per review.
func (o *Orchestrator) resolveFallback(task *model.ReviewTask, primary ai.Provider) ai.Provider {
	fallbackID := o.providers.FallbackID()
	if fallbackID == "" || fallbackID == primary.ID() {
		return nil
	}
	fallback, err := o.providers.Provider(fallbackID)
	if err != nil {
		logger.Warn("Fallback AI provider not configured",
			zap.String("task_id", task.ID),
			zap.String("provider", fallbackID),
			zap.Error(err),
		)
		return nil
	}
	if !fallback.IsAvailable() {
		logger.Warn("Fallback AI provider unavailable",
			zap.String("task_id", task.ID),
			zap.String("provider", fallbackID),
		)
		return nil
	}
	return fallback
}

func (o *Orchestrator) succeeded(ctx context.Context, task *model.ReviewTask, start time.Time, provider ai.Provider, result *ai.Result, events []string) *Outcome {
	duration := time.Since(start)
	o.metrics.RecordReviewSuccess(ctx, provider.ID(), duration.Seconds())
	o.persistRecord(task, result, events, duration)

	logger.Info("Review completed",
		zap.String("task_id", task.ID),
		zap.String("provider", provider.ID()),
		zap.Int("issues", len(result.Issues)),
		zap.Duration("duration", duration),
	)
	return &Outcome{Success: true, Result: result, DegradationEvents: events}
}

func (o *Orchestrator) failed(ctx context.Context, task *model.ReviewTask, start time.Time, events []string, ft ai.FailureType, message string) *Outcome {
	o.metrics.RecordReviewFailure(ctx, message, time.Since(start).Seconds())

	logger.Error("Review failed",
		zap.String("task_id", task.ID),
		zap.String("failure_type", string(ft)),
		zap.String("reason", message),
	)
	return &Outcome{Success: false, Message: message, DegradationEvents: events, FailureType: ft}
}

// persistRecord writes the review record as a best-effort side effect.
// A storage failure is logged and does not fail the review.
func (o *Orchestrator) persistRecord(task *model.ReviewTask, result *ai.Result, events []string, duration time.Duration) {
	if o.records == nil {
		return
	}
	record := &model.ReviewRecord{
		TaskID:            task.ID,
		Provider:          result.Provider,
		Model:             result.Model,
		Summary:           result.Summary,
		Issues:            issuesPayload(result.Issues),
		IssuesCount:       len(result.Issues),
		InputTokens:       result.InputTokens,
		OutputTokens:      result.OutputTokens,
		DegradationEvents: events,
		Duration:          duration.Milliseconds(),
	}
	if err := o.records.Create(record); err != nil {
		logger.Error("Failed to persist review record",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}
}

// issuesPayload converts issues into the JSON column shape.
func issuesPayload(issues []ai.Issue) model.JSONMap {
	if len(issues) == 0 {
		return model.JSONMap{}
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return model.JSONMap{}
	}
	var list []interface{}
	if err := json.Unmarshal(data, &list); err != nil {
		return model.JSONMap{}
	}
	return model.JSONMap{"issues": list}
}
