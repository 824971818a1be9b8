// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the triage service.
//
// This file contains the routing decision and pipeline state types.
// For HTTP request/response types, see chat.go.
package datatypes

import "fmt"

// =============================================================================
// Buckets and Cost Tiers
// =============================================================================

// Bucket identifies which downstream capability answers a request.
type Bucket string

const (
	// BucketA is answered directly from the policy table with no model call.
	BucketA Bucket = "BUCKET_A"

	// BucketB is answered by the economical model, grounded with retrieved
	// reference material.
	BucketB Bucket = "BUCKET_B"

	// BucketC is escalated to the expensive model or a human agent.
	BucketC Bucket = "BUCKET_C"
)

// CostTier is the cost label for a bucket. It is always derived from the
// bucket via Bucket.CostTier and never stored independently.
type CostTier string

const (
	CostTierZero CostTier = "zero"
	CostTierLow  CostTier = "low"
	CostTierHigh CostTier = "high"
)

// Valid reports whether b is one of the three known buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketA, BucketB, BucketC:
		return true
	}
	return false
}

// CostTier returns the cost tier for the bucket.
//
// The mapping is fixed: A is zero cost (no model call), B is low cost
// (economical model), C is high cost (escalation). Callers must never set
// a cost tier by hand; this method is the single source of truth.
func (b Bucket) CostTier() CostTier {
	switch b {
	case BucketA:
		return CostTierZero
	case BucketB:
		return CostTierLow
	case BucketC:
		return CostTierHigh
	default:
		// Unknown buckets are treated as escalation everywhere else in the
		// system, so the tier follows.
		return CostTierHigh
	}
}

// ParseBucket converts a wire string into a Bucket.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", fmt.Errorf("unknown bucket %q", s)
	}
	return b, nil
}

// =============================================================================
// Routing Decision
// =============================================================================

// Routing action tags. Action records how a decision was reached so that
// dashboards can separate normal policy matches from safety fallbacks.
const (
	// ActionPolicyMatch means the policy table result was used as-is.
	ActionPolicyMatch = "policy_match"

	// ActionLowConfidenceFallback means the confidence gate fired and the
	// request was forced into BucketB regardless of the table result.
	ActionLowConfidenceFallback = "low_confidence_fallback"
)

// RoutingDecision is the outcome of routing a single message. It is built
// once per request by the router and never mutated afterwards.
type RoutingDecision struct {
	// Intent is the label produced by the classification service.
	Intent string `json:"intent"`

	// Confidence is the classifier's confidence in [0.0, 1.0].
	Confidence float64 `json:"confidence"`

	// Bucket is the final triage bucket after the confidence gate.
	Bucket Bucket `json:"bucket"`

	// CostTier is always Bucket.CostTier(); stored for the wire format.
	CostTier CostTier `json:"cost_tier"`

	// Action records which rule produced the bucket (policy_match or
	// low_confidence_fallback).
	Action string `json:"action"`

	// Reason is a short human-readable justification, e.g.
	// "intent 'check_payment_methods' mapped to BUCKET_A".
	Reason string `json:"reason"`
}

// =============================================================================
// Documents
// =============================================================================

// Document is a single retrieval result from the vector store.
type Document struct {
	// Id is opaque and unique within the index.
	Id string `json:"id"`

	// Text is the document content used for grounding.
	Text string `json:"text"`

	// Score is the relevance score reported by the vector store.
	Score float64 `json:"score"`

	// Metadata carries arbitrary sidecar fields (intent, category, source).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Pipeline Context
// =============================================================================

// Turn is a single prior conversation exchange. History is read-only input
// to the pipeline; higher layers append to it between requests.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PipelineContext is the per-request state threaded through the pipeline
// stages. One instance exists per request, owned exclusively by the
// pipeline for the request's duration, and is discarded when the request
// completes.
//
// Field ownership is partitioned by stage:
//
//   - UserQuery and History are inputs, set before the pipeline runs.
//   - The routing fields (Intent..Reason) are owned by the intent stage.
//   - RetrievedDocuments, RetrievedContext and RetrievalDegraded are owned
//     by the retrieve stage.
//   - FinalResponse is owned by the generate stage.
//
// A stage may read fields written by earlier stages but must only write
// the fields it owns. This discipline is what keeps the pipeline auditable
// despite sharing one mutable object.
type PipelineContext struct {
	// UserQuery is the input text. Immutable once set.
	UserQuery string `json:"user_query"`

	// History holds prior conversation turns. Read-only for the pipeline.
	History []Turn `json:"history,omitempty"`

	// Routing fields, mirrored from the RoutingDecision by the intent stage.
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Bucket     Bucket   `json:"bucket"`
	CostTier   CostTier `json:"cost_tier"`
	Action     string   `json:"action"`
	Reason     string   `json:"reason"`

	// RetrievedDocuments is non-empty only when Bucket is BucketB and
	// retrieval succeeded.
	RetrievedDocuments []Document `json:"retrieved_documents,omitempty"`

	// RetrievedContext is the formatted grounding string. Empty when no
	// retrieval occurred; set to the degrade marker when retrieval was
	// attempted but unavailable.
	RetrievedContext string `json:"retrieved_context,omitempty"`

	// RetrievalDegraded is true when the retrieve stage ran but had to fall
	// back to an empty context. Surfaced for monitoring only; it never
	// fails the request.
	RetrievalDegraded bool `json:"retrieval_degraded,omitempty"`

	// FinalResponse is the answer text. Terminal field, populated only by
	// the generate stage.
	FinalResponse string `json:"final_response"`
}

// ApplyRouting copies the routing decision into the context's routing
// fields. Called exactly once per request, by the intent stage.
func (c *PipelineContext) ApplyRouting(d RoutingDecision) {
	c.Intent = d.Intent
	c.Confidence = d.Confidence
	c.Bucket = d.Bucket
	c.CostTier = d.CostTier
	c.Action = d.Action
	c.Reason = d.Reason
}
