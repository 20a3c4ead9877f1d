// Package application coordinates the verification flow: provider
// invocation with retry and backoff, criteria evaluation, cost
// accounting, persistence, and audit logging.
package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

// defaultBackoffBase is the first retry delay; each subsequent retry
// doubles it (1s, 2s, 4s, ...).
const defaultBackoffBase = time.Second

// Orchestrator runs photo verifications end to end. Each request is an
// independent, stateless unit of work; the only shared state is the
// registry's immutable clients and the stores, which are designed for
// concurrent access.
type Orchestrator struct {
	registry      ports.VisionRegistry
	verifications ports.VerificationStore
	tasks         ports.TaskStore
	audit         ports.AuditStore
	prices        *domain.PriceTable
	metrics       ports.MetricsCollector
	logger        *zap.Logger
	backoffBase   time.Duration
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithBackoffBase overrides the first retry delay. Tests use millisecond
// bases to exercise the retry schedule without real sleeps.
func WithBackoffBase(base time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.backoffBase = base }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector ports.MetricsCollector) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = collector }
}

// NewOrchestrator wires the verification flow.
func NewOrchestrator(
	registry ports.VisionRegistry,
	verifications ports.VerificationStore,
	tasks ports.TaskStore,
	audit ports.AuditStore,
	prices *domain.PriceTable,
	logger *zap.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		registry:      registry,
		verifications: verifications,
		tasks:         tasks,
		audit:         audit,
		prices:        prices,
		logger:        logger,
		backoffBase:   defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// taskBinding carries the task identity a verification is bound to:
// either an internally-owned task row or an opaque external reference,
// never both.
type taskBinding struct {
	mode      domain.VerificationMode
	taskID    string
	reference string
	fallback  bool
}

// Verify runs an internal-mode verification against a stored task.
// The task must belong to the caller's tenant, be a photo verification
// task, and not already be terminal. A supplied configOverride replaces
// the task's stored config for this run only.
func (o *Orchestrator) Verify(
	ctx context.Context,
	taskID string,
	image domain.ImageInput,
	auth ports.AuthContext,
	configOverride *domain.VerifyConfig,
) (*domain.VerificationResult, error) {
	task, err := o.tasks.GetTask(ctx, auth.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Type != domain.TaskTypePhotoVerification {
		return nil, fmt.Errorf("%w: task %s has type %q", domain.ErrInvalidTaskType, taskID, task.Type)
	}
	if task.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", domain.ErrTaskTerminal, taskID, task.Status)
	}

	config := task.Config
	if configOverride != nil {
		config = *configOverride
	}

	return o.runVerification(ctx, image, config, auth, taskBinding{
		mode:      domain.ModeInternal,
		taskID:    task.ID,
		reference: task.ID,
		fallback:  config.FallbackToManual,
	})
}

// VerifyExternal runs an external-mode verification against a task owned
// elsewhere. The config is mandatory since there is no task to load it
// from; the handler rejects requests without one before reaching here.
func (o *Orchestrator) VerifyExternal(
	ctx context.Context,
	externalTaskID string,
	image domain.ImageInput,
	config domain.VerifyConfig,
	auth ports.AuthContext,
) (*domain.VerificationResult, error) {
	return o.runVerification(ctx, image, config, auth, taskBinding{
		mode:      domain.ModeExternal,
		reference: externalTaskID,
		fallback:  config.FallbackToManual,
	})
}

// runVerification is the shared core: validate, analyze with retry and
// exponential backoff, evaluate, price, persist, audit.
func (o *Orchestrator) runVerification(
	ctx context.Context,
	image domain.ImageInput,
	config domain.VerifyConfig,
	auth ports.AuthContext,
	binding taskBinding,
) (*domain.VerificationResult, error) {
	start := time.Now()

	if err := image.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := o.registry.Client(config.Provider, config.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	analysis, usage, attemptsUsed, err := o.analyzeWithRetry(ctx, client, image, config)
	if err != nil {
		// Caller cancellation aborts the run outright; a partial
		// verification is never persisted.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !config.FallbackToManual {
			return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrVerificationExhausted, attemptsUsed, err)
		}

		result := &domain.VerificationResult{
			Passed:            false,
			OverallConfidence: 0,
			CriteriaResults:   []domain.CriterionResult{},
			ModelUsed:         client.Model(),
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
			ProcessedAt:       time.Now().UTC(),
			RetryCount:        config.MaxRetries,
			InputTokens:       usage.InputTokens,
			OutputTokens:      usage.OutputTokens,
			EstimatedCostUSD:  o.prices.EstimateCost(client.Model(), usage),
			Mode:              binding.mode,
			TaskReference:     binding.reference,
		}
		o.logger.Warn("verification fell back to manual review",
			zap.String("tenant_id", auth.TenantID),
			zap.String("task_reference", binding.reference),
			zap.Int("attempts", attemptsUsed),
			zap.Error(err))

		if err := o.finalize(ctx, result, config, image, auth, binding); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Evaluation is pure and never retried; a defect here is fatal.
	evaluation := domain.Evaluate(analysis, config)

	result := &domain.VerificationResult{
		Passed:            evaluation.Passed,
		OverallConfidence: evaluation.OverallConfidence,
		CriteriaResults:   evaluation.Results,
		ModelUsed:         client.Model(),
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
		ProcessedAt:       time.Now().UTC(),
		RetryCount:        attemptsUsed - 1,
		InputTokens:       usage.InputTokens,
		OutputTokens:      usage.OutputTokens,
		EstimatedCostUSD:  o.prices.EstimateCost(client.Model(), usage),
		Mode:              binding.mode,
		TaskReference:     binding.reference,
	}

	if err := o.finalize(ctx, result, config, image, auth, binding); err != nil {
		return nil, err
	}
	return result, nil
}

// analyzeWithRetry invokes the provider up to 1+MaxRetries times with
// exponential backoff between attempts. Token usage from every attempt,
// failed or not, accumulates into the returned total, so the accumulator
// is correct even when no attempt succeeds.
func (o *Orchestrator) analyzeWithRetry(
	ctx context.Context,
	client ports.VisionClient,
	image domain.ImageInput,
	config domain.VerifyConfig,
) (domain.VisionAnalysis, domain.TokenUsage, int, error) {
	var total domain.TokenUsage
	var lastErr error

	attempts := config.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		analysis, usage, err := client.Analyze(ctx, image, config)
		total.Add(usage)
		if err == nil {
			return analysis, total, attempt, nil
		}
		lastErr = err

		o.logger.Warn("vision analysis attempt failed",
			zap.String("model", client.Model()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
		if attempt == attempts {
			break
		}

		// 1s, 2s, 4s, ... The sleep suspends only this request's
		// goroutine and aborts immediately on cancellation.
		delay := o.backoffBase << uint(attempt-1)
		select {
		case <-ctx.Done():
			return domain.VisionAnalysis{}, total, attempt, ctx.Err()
		case <-time.After(delay):
		}
	}

	return domain.VisionAnalysis{}, total, attempts, lastErr
}

// finalize persists the verification, transitions the bound task in
// internal mode, and writes the audit entry. Failures propagate: an
// unrecorded verification is never presented as a success.
func (o *Orchestrator) finalize(
	ctx context.Context,
	result *domain.VerificationResult,
	config domain.VerifyConfig,
	image domain.ImageInput,
	auth ports.AuthContext,
	binding taskBinding,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	record := &ports.VerificationRecord{
		TenantID:   auth.TenantID,
		TaskID:     binding.taskID,
		ImageURL:   image.Reference(),
		ConfigUsed: config,
		Result:     *result,
	}
	if err := o.verifications.CreateVerification(ctx, record); err != nil {
		return err
	}

	if binding.mode == domain.ModeInternal {
		status := domain.NextStatus(result.Passed, binding.fallback)
		if err := o.tasks.UpdateTaskStatus(ctx, auth.TenantID, binding.taskID, status); err != nil {
			return err
		}
	}

	entry := &domain.AuditLogEntry{
		TenantID:   auth.TenantID,
		Action:     "photo_verification.processed",
		EntityType: "verification",
		EntityID:   record.ID,
		UserID:     auth.UserID,
		Details: map[string]any{
			"mode":               string(result.Mode),
			"task_reference":     result.TaskReference,
			"passed":             result.Passed,
			"overall_confidence": result.OverallConfidence,
			"model_used":         result.ModelUsed,
			"processing_time_ms": result.ProcessingTimeMs,
			"input_tokens":       result.InputTokens,
			"output_tokens":      result.OutputTokens,
			"estimated_cost_usd": result.EstimatedCostUSD,
			"retry_count":        result.RetryCount,
		},
	}
	if err := o.audit.AppendAudit(ctx, entry); err != nil {
		return err
	}

	if o.metrics != nil {
		verdict := "failed"
		if result.Passed {
			verdict = "passed"
		}
		o.metrics.RecordCounter("verifications_total", 1, map[string]string{
			"mode":    string(result.Mode),
			"verdict": verdict,
		})
	}

	o.logger.Info("verification processed",
		zap.String("tenant_id", auth.TenantID),
		zap.String("mode", string(result.Mode)),
		zap.String("task_reference", result.TaskReference),
		zap.Bool("passed", result.Passed),
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.String("model", result.ModelUsed),
		zap.Int64("processing_time_ms", result.ProcessingTimeMs),
		zap.Int("retry_count", result.RetryCount))

	return nil
}
