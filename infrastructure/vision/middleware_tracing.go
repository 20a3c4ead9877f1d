package vision

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedVision wraps provider calls in OpenTelemetry spans.
type tracedVision struct {
	next     CoreVision
	provider string
	tracer   trace.Tracer
}

// TracingMiddleware creates middleware that records one span per provider
// invocation, carrying the provider, model, and token counts.
func TracingMiddleware(provider string) Middleware {
	tracer := otel.Tracer("fieldproof/vision")
	return func(next CoreVision) CoreVision {
		return &tracedVision{next: next, provider: provider, tracer: tracer}
	}
}

// DoAnalyze executes the request within a trace span.
func (t *tracedVision) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "vision.analyze",
		trace.WithAttributes(
			attribute.String("vision.provider", t.provider),
			attribute.String("vision.model", t.next.GetModel()),
			attribute.Int("vision.prompt.length", len(req.Prompt)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoAnalyze(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("vision.tokens.input", tokensIn),
			attribute.Int("vision.tokens.output", tokensOut),
		)
	}

	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedVision) GetModel() string { return t.next.GetModel() }
