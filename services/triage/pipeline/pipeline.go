// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline sequences the triage stages around the router's
// decision.
//
// A request runs synchronously through INTENT -> (conditional) ->
// [RETRIEVE ->] GENERATE -> DONE; the transition function lives in
// state.go. Each stage owns a partition of the PipelineContext fields
// (see datatypes.PipelineContext) and never touches fields owned by an
// earlier stage.
//
// Failure policy: classification and generation failures are
// request-fatal and propagate as typed errors; retrieval failures are
// downgraded to an empty grounding context and surfaced only through
// logs and metrics. A silently wrong answer is worse than a visible
// failure for a support system, but an ungrounded answer from the
// economical model is still better than no answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kodiakai/kodiak/services/llm"
	"github.com/kodiakai/kodiak/services/retrieval"
	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/kodiakai/kodiak/services/triage/observability"
	"github.com/kodiakai/kodiak/services/triage/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("kodiak.triage.pipeline")

// NoRetrievalContext is the grounding marker used when the retrieve stage
// had to degrade. The wording matters: the economical model sees this
// string and must answer from general knowledge instead of citing
// documents that are not there.
const NoRetrievalContext = "No retrieval system available."

// Stage timeout defaults. Escalation calls get a longer budget than
// economical ones: the expensive model is slower and its requests are the
// ones least worth abandoning.
const (
	defaultRetrieveTimeout  = 10 * time.Second
	defaultGenerateTimeoutB = 60 * time.Second
	defaultGenerateTimeoutC = 180 * time.Second
)

// Config tunes pipeline timeouts and retrieval depth. Zero values fall
// back to the defaults above.
type Config struct {
	RetrieveTimeout  time.Duration
	GenerateTimeoutB time.Duration
	GenerateTimeoutC time.Duration
	RetrievalTopK    int
}

// Pipeline orchestrates one request at a time through the triage stages.
// Safe for concurrent use: the only shared mutable state is the LLM
// factory's handle cache, which synchronizes internally.
type Pipeline struct {
	router    *router.Router
	retriever retrieval.Service // nil when the capability is absent
	present   bool
	factory   *llm.Factory
	direct    *DirectResponder
	metrics   *observability.TriageMetrics
	cfg       Config
}

// NewPipeline wires the pipeline from its collaborators.
//
// A nil retriever forces lightweight mode regardless of present: every
// BUCKET_B request then takes the degrade path instead of panicking in the
// retrieve stage.
func NewPipeline(
	rt *router.Router,
	retriever retrieval.Service,
	present bool,
	factory *llm.Factory,
	direct *DirectResponder,
	metrics *observability.TriageMetrics,
	cfg Config,
) *Pipeline {
	if retriever == nil {
		present = false
	}
	if cfg.RetrieveTimeout <= 0 {
		cfg.RetrieveTimeout = defaultRetrieveTimeout
	}
	if cfg.GenerateTimeoutB <= 0 {
		cfg.GenerateTimeoutB = defaultGenerateTimeoutB
	}
	if cfg.GenerateTimeoutC <= 0 {
		cfg.GenerateTimeoutC = defaultGenerateTimeoutC
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = retrieval.DefaultTopK
	}
	return &Pipeline{
		router:    rt,
		retriever: retriever,
		present:   present,
		factory:   factory,
		direct:    direct,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Process runs one request end-to-end and returns the completed context.
//
// The returned PipelineContext is owned by the caller once Process
// returns; the pipeline keeps no reference to it. On error the context is
// nil -- no partial FinalResponse is ever handed out.
func (p *Pipeline) Process(ctx context.Context, query string, history []datatypes.Turn) (*datatypes.PipelineContext, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Process")
	defer span.End()

	pc := &datatypes.PipelineContext{
		UserQuery: query,
		History:   history,
	}

	for stage := StageIntent; stage != StageDone; stage = NextStage(stage, pc.Bucket) {
		start := time.Now()
		var err error
		switch stage {
		case StageIntent:
			err = p.runIntent(ctx, pc)
		case StageRetrieve:
			p.runRetrieve(ctx, pc) // degrades, never fails
		case StageGenerate:
			err = p.runGenerate(ctx, pc)
		}
		p.metrics.StageDurationSeconds.WithLabelValues(string(stage)).
			Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("stage %s failed", stage))
			return nil, err
		}
	}

	p.metrics.RequestsTotal.WithLabelValues(string(pc.Bucket), pc.Action).Inc()
	span.SetAttributes(
		attribute.String("triage.bucket", string(pc.Bucket)),
		attribute.String("triage.action", pc.Action),
		attribute.Bool("triage.retrieval_degraded", pc.RetrievalDegraded),
	)
	return pc, nil
}

// runIntent invokes the router and merges its decision into the context.
// Owns the routing fields of the context.
func (p *Pipeline) runIntent(ctx context.Context, pc *datatypes.PipelineContext) error {
	decision, err := p.router.Route(ctx, pc.UserQuery)
	if err != nil {
		p.metrics.ErrorsTotal.WithLabelValues(string(StageIntent), "classifier_unavailable").Inc()
		return err
	}
	pc.ApplyRouting(decision)

	if decision.Action == datatypes.ActionLowConfidenceFallback {
		p.metrics.FallbacksTotal.WithLabelValues(decision.Intent).Inc()
		slog.Info("Confidence gate fired",
			"intent", decision.Intent,
			"confidence", decision.Confidence,
			"reason", decision.Reason)
	}
	return nil
}

// runRetrieve populates the retrieval fields for BUCKET_B requests. Owns
// RetrievedDocuments, RetrievedContext and RetrievalDegraded. Never
// returns an error: every failure mode lands on the degrade path.
func (p *Pipeline) runRetrieve(ctx context.Context, pc *datatypes.PipelineContext) {
	if !p.present {
		p.degrade(pc, "absent", nil)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RetrieveTimeout)
	defer cancel()

	docs, err := p.retriever.Retrieve(ctx, pc.UserQuery, p.cfg.RetrievalTopK)
	if err != nil {
		cause := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			cause = "timeout"
		}
		p.degrade(pc, cause, err)
		return
	}

	pc.RetrievedDocuments = docs
	pc.RetrievedContext = retrieval.FormatContext(docs)
}

// degrade applies the non-fatal retrieval fallback: empty documents, the
// explicit marker context, and a warning for monitoring.
func (p *Pipeline) degrade(pc *datatypes.PipelineContext, cause string, err error) {
	pc.RetrievedDocuments = nil
	pc.RetrievedContext = NoRetrievalContext
	pc.RetrievalDegraded = true
	p.metrics.RetrievalDegradesTotal.WithLabelValues(cause).Inc()
	slog.Warn("Retrieval degraded, continuing without grounding",
		"cause", cause, "error", err)
}

// runGenerate dispatches to the backend for the context's bucket and
// populates FinalResponse. Owns FinalResponse. The bucket-to-backend
// mapping is exact: an unknown bucket is an error, never a default
// backend.
func (p *Pipeline) runGenerate(ctx context.Context, pc *datatypes.PipelineContext) error {
	switch pc.Bucket {
	case datatypes.BucketA:
		// Zero-cost tier: answer from the policy table, no model call.
		pc.FinalResponse = p.direct.Respond(pc.Intent)
		return nil

	case datatypes.BucketB:
		return p.generateWithModel(ctx, pc, llm.TierEconomical, p.cfg.GenerateTimeoutB,
			buildGroundedPrompt(pc))

	case datatypes.BucketC:
		return p.generateWithModel(ctx, pc, llm.TierEscalation, p.cfg.GenerateTimeoutC,
			buildEscalationPrompt(pc))

	default:
		err := &GenerationError{Bucket: pc.Bucket,
			Err: fmt.Errorf("no backend mapped for bucket %q", pc.Bucket)}
		p.metrics.ErrorsTotal.WithLabelValues(string(StageGenerate), "generation_failure").Inc()
		return err
	}
}

// generateWithModel runs one model call under the tier's timeout budget.
func (p *Pipeline) generateWithModel(ctx context.Context, pc *datatypes.PipelineContext,
	tier llm.Tier, timeout time.Duration, prompt string) error {

	client, err := p.factory.ForTier(tier)
	if err != nil {
		p.metrics.ErrorsTotal.WithLabelValues(string(StageGenerate), "generation_failure").Inc()
		return &GenerationError{Bucket: pc.Bucket, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answer, err := client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		p.metrics.ErrorsTotal.WithLabelValues(string(StageGenerate), "generation_failure").Inc()
		return &GenerationError{Bucket: pc.Bucket, Err: err}
	}

	pc.FinalResponse = answer
	return nil
}

// buildGroundedPrompt assembles the economical model's prompt with the
// retrieved context injected.
func buildGroundedPrompt(pc *datatypes.PipelineContext) string {
	refs := pc.RetrievedContext
	if refs == "" {
		refs = NoRetrievalContext
	}
	return fmt.Sprintf(
		"You are a customer support assistant. Answer the customer's question "+
			"using the reference material below. If the material does not cover "+
			"the question, say so and give general guidance.\n\n"+
			"Reference material:\n%s\n\nCustomer question: %s",
		refs, pc.UserQuery)
}

// buildEscalationPrompt assembles the escalation model's prompt. The
// classified intent is included so the large model knows why the request
// was escalated.
func buildEscalationPrompt(pc *datatypes.PipelineContext) string {
	return fmt.Sprintf(
		"You are a senior customer support specialist handling an escalated "+
			"request (detected intent: %s). Respond with care, acknowledge the "+
			"customer's situation, and offer a concrete next step. If the issue "+
			"needs a human agent, say that one will follow up.\n\n"+
			"Customer message: %s",
		pc.Intent, pc.UserQuery)
}

// GenerationError reports that the selected backend failed or timed out.
// Request-fatal: handlers map it to HTTP 502 and no partial response is
// returned.
type GenerationError struct {
	Bucket datatypes.Bucket
	Err    error
}

// Error implements the error interface for GenerationError.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Bucket, e.Err)
}

// Unwrap exposes the backend error.
func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError checks if an error is a *GenerationError. Useful for
// handlers to pick the HTTP status code.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
