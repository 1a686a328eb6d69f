// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/observability"
)

var pipelineTracer = otel.Tracer("regatlas.orchestrator.pipeline")

// maxSourceContentBytes truncates passage content in API responses. The full
// text stays in the index; the response only needs enough for attribution.
const maxSourceContentBytes = 300

// StageTimeouts bounds each pipeline stage independently. Synthesis gets the
// largest budget since local model generation dominates request latency.
type StageTimeouts struct {
	Classify   time.Duration
	Retrieve   time.Duration
	Synthesize time.Duration
	Validate   time.Duration
}

// DefaultStageTimeouts returns the stage budgets, each overridable through
// an environment variable holding a Go duration string
// (CLASSIFY_TIMEOUT, RETRIEVE_TIMEOUT, SYNTHESIZE_TIMEOUT, VALIDATE_TIMEOUT).
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Classify:   durationFromEnv("CLASSIFY_TIMEOUT", 30*time.Second),
		Retrieve:   durationFromEnv("RETRIEVE_TIMEOUT", 30*time.Second),
		Synthesize: durationFromEnv("SYNTHESIZE_TIMEOUT", 120*time.Second),
		Validate:   durationFromEnv("VALIDATE_TIMEOUT", 60*time.Second),
	}
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration in environment, using default",
			"key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}

// Controller owns the state machine for one service instance. It is
// stateless between requests; each Ask call builds its own PipelineState,
// so a Controller is safe for concurrent use.
type Controller struct {
	classifier  *QueryClassifier
	planner     *RetrievalPlanner
	synthesizer *AnswerSynthesizer
	validator   *ComplianceValidator
	timeouts    StageTimeouts
	metrics     *observability.PipelineMetrics
}

// NewController wires the four stages into a controller. metrics may be nil
// (tests run without a Prometheus registry).
func NewController(
	classifier *QueryClassifier,
	planner *RetrievalPlanner,
	synthesizer *AnswerSynthesizer,
	validator *ComplianceValidator,
	timeouts StageTimeouts,
	metrics *observability.PipelineMetrics,
) *Controller {
	return &Controller{
		classifier:  classifier,
		planner:     planner,
		synthesizer: synthesizer,
		validator:   validator,
		timeouts:    timeouts,
		metrics:     metrics,
	}
}

// Ask runs the full pipeline for one question.
//
// # Description
//
// Drives the state machine from CLASSIFY to FINALIZE. Classification happens
// once; the retrieve/synthesize/validate unit repeats with widened retrieval
// while confidence stays below threshold and retries remain. The context is
// checked before every stage so cancellation stops the machine between
// stages without emitting a response.
//
// # Outputs
//
//   - *datatypes.FinalResponse: the answer with sources, confidence, query
//     type, and verification detail. Emitted even when confidence stayed low.
//   - error: SearchError (retrieval backend unreachable), SynthesisError
//     (generation failed twice in one stage visit), ValidationError
//     (verifier output unusable), or the context's error on cancellation.
func (c *Controller) Ask(ctx context.Context, question string) (*datatypes.FinalResponse, error) {
	ctx, span := pipelineTracer.Start(ctx, "Controller.Ask")
	defer span.End()

	if c.metrics != nil {
		c.metrics.RequestStarted()
		defer c.metrics.RequestEnded()
	}

	ps := &PipelineState{Query: datatypes.Query{Text: question}}
	state := StateClassify
	passes := 0

	for state != StateFinalize {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "request cancelled")
			c.recordOutcome(ps, observability.StatusError)
			return nil, err
		}

		stageStart := time.Now()
		var err error

		switch state {
		case StateClassify:
			err = c.runClassify(ctx, ps)
		case StateRetrieve:
			passes++
			err = c.runRetrieve(ctx, ps)
		case StateSynthesize:
			err = c.runSynthesize(ctx, ps)
		case StateValidate:
			err = c.runValidate(ctx, ps)
		}

		if c.metrics != nil {
			c.metrics.RecordStageDuration(state.String(), time.Since(stageStart).Seconds())
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("%s failed", state))
			c.recordOutcome(ps, observability.StatusError)
			return nil, err
		}

		next := Next(state, ps)
		if state == StateValidate && next == StateRetrieve {
			ps.RetryCount++
			slog.InfoContext(ctx, "Confidence below threshold, widening retrieval",
				"confidence", ps.Compliance.Confidence,
				"retry_count", ps.RetryCount,
			)
		}
		state = next
	}

	final := c.finalize(ps)
	span.SetAttributes(
		attribute.String("ask.query_type", string(final.QueryType)),
		attribute.Float64("ask.confidence", final.Confidence),
		attribute.Int("ask.passes", passes),
	)
	if c.metrics != nil {
		c.metrics.RecordPasses(passes)
		c.metrics.RecordConfidence(string(final.QueryType), final.Confidence)
	}
	if final.Confidence >= ConfidenceThreshold {
		c.recordOutcome(ps, observability.StatusSuccess)
	} else {
		c.recordOutcome(ps, observability.StatusLowConfidence)
	}
	return final, nil
}

func (c *Controller) recordOutcome(ps *PipelineState, status observability.RequestStatus) {
	if c.metrics == nil {
		return
	}
	queryType := string(ps.QueryType)
	if queryType == "" {
		queryType = "unknown"
	}
	c.metrics.RecordRequest(queryType, status)
}

func (c *Controller) runClassify(ctx context.Context, ps *PipelineState) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Classify)
	defer cancel()
	ps.QueryType = c.classifier.Classify(ctx, ps.Query)
	return nil
}

func (c *Controller) runRetrieve(ctx context.Context, ps *PipelineState) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Retrieve)
	defer cancel()
	passages, err := c.planner.Retrieve(ctx, ps.Query, ps.QueryType, ps.RetryCount)
	if err != nil {
		return err
	}
	ps.Passages = passages
	// A new pass invalidates the previous pass's draft and verdict.
	ps.Draft = nil
	ps.Compliance = nil
	return nil
}

// runSynthesize retries a failed generation once within the same stage
// visit. A second failure surfaces as a SynthesisError; generation flakiness
// beyond one retry is a backend problem, not something more passes fix.
func (c *Controller) runSynthesize(ctx context.Context, ps *PipelineState) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Synthesize)
	defer cancel()

	draft, err := c.synthesizer.Synthesize(ctx, ps.Query, ps.QueryType, ps.Passages)
	if err != nil {
		slog.WarnContext(ctx, "Synthesis failed, retrying once", "error", err)
		draft, err = c.synthesizer.Synthesize(ctx, ps.Query, ps.QueryType, ps.Passages)
		if err != nil {
			return &SynthesisError{Cause: err}
		}
	}
	ps.Draft = draft
	return nil
}

func (c *Controller) runValidate(ctx context.Context, ps *PipelineState) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Validate)
	defer cancel()

	result, err := c.validator.Validate(ctx, ps.Draft, ps.Passages)
	if err != nil {
		return &ValidationError{Cause: err}
	}
	ps.Compliance = result
	return nil
}

// finalize assembles the FinalResponse from the last pass's state.
func (c *Controller) finalize(ps *PipelineState) *datatypes.FinalResponse {
	sources := make([]datatypes.SourceDocument, 0, len(ps.Passages))
	for _, p := range ps.Passages {
		sources = append(sources, datatypes.SourceDocument{
			Regulation: p.Regulation,
			Page:       p.Page,
			Content:    truncate(p.Content, maxSourceContentBytes),
		})
	}

	final := &datatypes.FinalResponse{
		QueryType: ps.QueryType,
		Sources:   sources,
	}
	if ps.Draft != nil {
		final.Answer = ps.Draft.Text
	}
	if ps.Compliance != nil {
		final.Confidence = ps.Compliance.Confidence
		final.Verification = &datatypes.VerificationDetail{
			Claims:     ps.Compliance.Claims(),
			Confidence: ps.Compliance.Confidence,
			Summary:    ps.Compliance.Summary,
		}
	}
	return final
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
