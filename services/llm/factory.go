// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"fmt"
	"log/slog"
	"sync"
)

// Builder constructs a backend client. Construction is the expensive part
// (credential reads, connection setup), which is why the Factory defers it
// to first use.
type Builder func() (LLMClient, error)

// Factory hands out one long-lived LLM handle per tier.
//
// Handles are built lazily under the lock on first request for a tier and
// reused across concurrent requests afterwards. The factory is an explicit
// injected object, not process-global state; tests and credential rotation
// use Reset to force reconstruction.
type Factory struct {
	mu       sync.Mutex
	builders map[Tier]Builder
	handles  map[Tier]LLMClient
}

// NewFactory builds a Factory from per-tier builders.
func NewFactory(builders map[Tier]Builder) *Factory {
	return &Factory{
		builders: builders,
		handles:  make(map[Tier]LLMClient),
	}
}

// NewFactoryFromEnv wires the default tier backends: Ollama for the
// economical tier, OpenAI for the escalation tier. Backend construction
// errors surface on first use of the tier, not here.
func NewFactoryFromEnv() *Factory {
	return NewFactory(map[Tier]Builder{
		TierEconomical: func() (LLMClient, error) { return NewOllamaClient() },
		TierEscalation: func() (LLMClient, error) { return NewOpenAIClient() },
	})
}

// ForTier returns the handle for a tier, constructing it on first use.
//
// A failed construction is not cached: the next call retries, so a
// transient credential problem does not wedge the tier until restart.
func (f *Factory) ForTier(tier Tier) (LLMClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.handles[tier]; ok {
		return client, nil
	}
	builder, ok := f.builders[tier]
	if !ok {
		return nil, fmt.Errorf("no backend configured for tier %q", tier)
	}
	client, err := builder()
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s backend: %w", tier, err)
	}
	slog.Info("Constructed LLM backend", "tier", string(tier))
	f.handles[tier] = client
	return client, nil
}

// Reset discards all cached handles so the next ForTier call rebuilds
// them. Used for test isolation and credential rotation.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles = make(map[Tier]LLMClient)
}
