// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
)

// DefaultServiceHost and DefaultServicePort locate a locally running
// triage service when nothing else is configured.
const (
	DefaultServiceHost = "localhost"
	DefaultServicePort = 12310
)

// Config is the optional kodiak.yaml file for the CLI. Every field has a
// working default; the file only overrides them.
type Config struct {
	// ServiceURL is the base URL of the triage service.
	ServiceURL string `yaml:"service_url"`

	// Evaluate holds defaults for the evaluate command.
	Evaluate EvaluateConfig `yaml:"evaluate"`
}

// EvaluateConfig tunes the dry-run evaluation.
type EvaluateConfig struct {
	// Thresholds to sweep when --thresholds is not given.
	Thresholds []float64 `yaml:"thresholds"`

	// Per-request cost assumptions in dollars, by bucket.
	CostBucketA float64 `yaml:"cost_bucket_a"`
	CostBucketB float64 `yaml:"cost_bucket_b"`
	CostBucketC float64 `yaml:"cost_bucket_c"`
}

// DefaultConfig returns the CLI defaults: a local service and the cost
// model the routing policy was designed around.
func DefaultConfig() Config {
	return Config{
		Evaluate: EvaluateConfig{
			Thresholds:  []float64{0.3, 0.5, 0.7},
			CostBucketA: 0.0,
			CostBucketB: 0.001,
			CostBucketC: 0.02,
		},
	}
}

// getServiceBaseURL resolves the triage service base URL.
//
// Priority: KODIAK_SERVICE_URL env var, then kodiak.yaml, then the local
// default.
func getServiceBaseURL() string {
	if url := os.Getenv("KODIAK_SERVICE_URL"); url != "" {
		return url
	}
	if config.ServiceURL != "" {
		return config.ServiceURL
	}
	return fmt.Sprintf("http://%s:%d", DefaultServiceHost, DefaultServicePort)
}
