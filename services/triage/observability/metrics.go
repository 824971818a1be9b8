// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the triage service.
//
// Metrics cover the cost-routing decisions (requests by bucket and action,
// confidence-gate fallbacks), the retrieval degrade path, and per-stage
// latency. Exposed via the /metrics endpoint; all operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "kodiak"

// Subsystem for triage metrics
const triageSubsystem = "triage"

// TriageMetrics holds all Prometheus metrics for the triage pipeline.
type TriageMetrics struct {
	// RequestsTotal counts completed pipeline runs.
	// Labels: bucket (BUCKET_A/B/C), action (policy_match, low_confidence_fallback)
	RequestsTotal *prometheus.CounterVec

	// FallbacksTotal counts confidence-gate activations.
	// Labels: intent (the classified intent that was overridden)
	FallbacksTotal *prometheus.CounterVec

	// RetrievalDegradesTotal counts retrieve-stage degrades (capability
	// absent, failed, or timed out). Degrades are non-fatal by contract;
	// this counter is how they stay visible.
	// Labels: cause (absent, error, timeout)
	RetrievalDegradesTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (intent, retrieve, generate)
	StageDurationSeconds *prometheus.HistogramVec

	// ErrorsTotal counts request-fatal pipeline errors.
	// Labels: stage, error_code (classifier_unavailable, generation_failure)
	ErrorsTotal *prometheus.CounterVec
}

// NewTriageMetrics creates and registers all triage metrics on the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use a
// fresh registry for isolation.
func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	factory := promauto.With(reg)

	return &TriageMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: triageSubsystem,
				Name:      "requests_total",
				Help:      "Completed triage pipeline runs by bucket and routing action.",
			},
			[]string{"bucket", "action"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: triageSubsystem,
				Name:      "confidence_fallbacks_total",
				Help:      "Confidence-gate activations by classified intent.",
			},
			[]string{"intent"},
		),
		RetrievalDegradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: triageSubsystem,
				Name:      "retrieval_degrades_total",
				Help:      "Retrieve-stage degrades to empty context, by cause.",
			},
			[]string{"cause"},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: triageSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Latency per pipeline stage.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms .. ~40s
			},
			[]string{"stage"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: triageSubsystem,
				Name:      "errors_total",
				Help:      "Request-fatal pipeline errors by stage and code.",
			},
			[]string{"stage", "error_code"},
		),
	}
}
