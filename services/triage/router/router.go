// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router applies the triage policy to classified messages.
//
// Routing is two rules on top of the policy table:
//
//  1. Intent lookup. The policy table maps each known intent to its
//     primary bucket. An intent absent from the table escalates to
//     BUCKET_C: when the system does not recognize a request it fails
//     toward human review, never toward an unsupervised direct answer.
//
//  2. Confidence gate. When the classifier's confidence is below the
//     router's threshold, the final bucket is BUCKET_B regardless of the
//     table result -- including when the table said BUCKET_C. A low
//     confidence makes a direct answer risky (wrong fact) and an
//     immediate escalation wasteful (unnecessary cost); the grounded
//     economical model is the safe middle path. The gate dominates the
//     table by design.
//
// The threshold is per-router configuration so that routers with
// different risk postures can coexist, which the evaluate command uses
// for threshold-sensitivity sweeps.
package router

import (
	"context"
	"fmt"

	"github.com/kodiakai/kodiak/services/classifier"
	"github.com/kodiakai/kodiak/services/policy"
	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("kodiak.triage.router")

// DefaultConfidenceThreshold is the confidence below which the safety
// fallback fires. Matches the threshold the routing policy was tuned with.
const DefaultConfidenceThreshold = 0.5

// Router turns a raw message into a RoutingDecision. Stateless apart from
// its injected dependencies; safe for concurrent use.
type Router struct {
	classifier classifier.Service
	table      *policy.Table
	threshold  float64
}

// NewRouter builds a Router with the default confidence threshold.
func NewRouter(cls classifier.Service, table *policy.Table) *Router {
	return NewRouterWithThreshold(cls, table, DefaultConfidenceThreshold)
}

// NewRouterWithThreshold builds a Router with an explicit threshold.
// Thresholds outside (0, 1] are almost certainly configuration mistakes
// and are rejected by Validate at startup rather than here.
func NewRouterWithThreshold(cls classifier.Service, table *policy.Table, threshold float64) *Router {
	return &Router{classifier: cls, table: table, threshold: threshold}
}

// Threshold returns the router's confidence threshold.
func (r *Router) Threshold() float64 { return r.threshold }

// Validate checks the router's configuration. Called once at startup.
func (r *Router) Validate() error {
	if r.classifier == nil {
		return fmt.Errorf("router has no classifier")
	}
	if r.table == nil {
		return fmt.Errorf("router has no policy table")
	}
	if r.threshold <= 0 || r.threshold > 1 {
		return fmt.Errorf("confidence threshold %f outside (0, 1]", r.threshold)
	}
	return nil
}

// Route classifies one message and applies the bucket policy.
//
// Classification failure propagates as *classifier.UnavailableError; it is
// never converted into a low-confidence routing, because the caller must
// be able to tell "the model is down" apart from "the model is unsure".
func (r *Router) Route(ctx context.Context, query string) (datatypes.RoutingDecision, error) {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	pred, err := r.classifier.Classify(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return datatypes.RoutingDecision{}, fmt.Errorf("classification failed: %w", err)
	}

	decision := r.decide(pred)
	span.SetAttributes(
		attribute.String("routing.intent", decision.Intent),
		attribute.Float64("routing.confidence", decision.Confidence),
		attribute.String("routing.bucket", string(decision.Bucket)),
		attribute.String("routing.action", decision.Action),
	)
	return decision, nil
}

// BatchRoute applies Route elementwise, preserving order. Messages are
// independent: no cross-message state is carried, so the result is exactly
// [Route(m1), ..., Route(mn)]. The first classification failure aborts the
// batch; partial results are not returned.
func (r *Router) BatchRoute(ctx context.Context, queries []string) ([]datatypes.RoutingDecision, error) {
	ctx, span := tracer.Start(ctx, "Router.BatchRoute")
	defer span.End()
	span.SetAttributes(attribute.Int("routing.batch_size", len(queries)))

	decisions := make([]datatypes.RoutingDecision, 0, len(queries))
	for i, q := range queries {
		d, err := r.Route(ctx, q)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch aborted")
			return nil, fmt.Errorf("batch routing failed at message %d: %w", i, err)
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// decide is the pure policy core: prediction in, decision out. Split from
// Route so tests can pin the policy without a classifier.
func (r *Router) decide(pred classifier.Prediction) datatypes.RoutingDecision {
	primary, known := r.table.Lookup(pred.Intent)
	var reason string
	if known {
		reason = fmt.Sprintf("intent %q mapped to %s", pred.Intent, primary)
	} else {
		// Fail safe: unrecognized intents go to escalation, not to a guess.
		primary = datatypes.BucketC
		reason = fmt.Sprintf("intent %q not in policy table, defaulting to %s",
			pred.Intent, datatypes.BucketC)
	}

	bucket := primary
	action := datatypes.ActionPolicyMatch
	if pred.Confidence < r.threshold {
		// The gate overrides every table result, BUCKET_C included: an
		// ambiguous "maybe complaint" gets a grounded answer before it gets
		// an expensive escalation.
		bucket = datatypes.BucketB
		action = datatypes.ActionLowConfidenceFallback
		reason = fmt.Sprintf("confidence %.2f below threshold %.2f, falling back to %s (primary was %s)",
			pred.Confidence, r.threshold, datatypes.BucketB, primary)
	}

	return datatypes.RoutingDecision{
		Intent:     pred.Intent,
		Confidence: pred.Confidence,
		Bucket:     bucket,
		CostTier:   bucket.CostTier(),
		Action:     action,
		Reason:     reason,
	}
}
