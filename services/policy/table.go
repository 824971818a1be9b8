// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package policy holds the intent routing policy table.
//
// The table maps intent categories to their primary triage bucket. It is
// loaded once at startup from the YAML embedded in the enforcement
// subpackage and is read-only afterwards; hot reload is deliberately not
// supported. A malformed table is a fatal configuration error, caught
// before any request is accepted.
package policy

import (
	"fmt"
	"sort"

	"github.com/kodiakai/kodiak/services/policy/enforcement"
	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"gopkg.in/yaml.v3"
)

// Table is the compiled routing policy. Safe for concurrent use: all state
// is immutable after NewTable returns.
type Table struct {
	rules   map[string]Rule
	buckets map[string]BucketInfo
	ordered []Rule
}

// NewTable parses and validates the embedded routing policy.
//
// It performs the following operations:
//  1. Unmarshals the embedded YAML data.
//  2. Rejects duplicate intents and rules for unknown buckets.
//  3. Builds the intent lookup index.
//
// Returns an error if the embedded YAML is malformed; callers treat that
// as fatal at process start.
func NewTable() (*Table, error) {
	return newTableFromBytes(enforcement.RoutingPolicy)
}

func newTableFromBytes(raw []byte) (*Table, error) {
	var file RoutingPolicyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the routing policy file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("routing policy contains no rules")
	}

	rules := make(map[string]Rule, len(file.Rules))
	for _, rule := range file.Rules {
		if _, dup := rules[rule.Intent]; dup {
			return nil, fmt.Errorf("duplicate routing rule for intent %q", rule.Intent)
		}
		if rule.Bucket == datatypes.BucketA && rule.DirectAnswer == "" {
			return nil, fmt.Errorf("BUCKET_A rule %q is missing a direct_answer", rule.Intent)
		}
		rules[rule.Intent] = rule
	}

	ordered := make([]Rule, len(file.Rules))
	copy(ordered, file.Rules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Intent < ordered[j].Intent })

	return &Table{rules: rules, buckets: file.Buckets, ordered: ordered}, nil
}

// Lookup returns the primary bucket for an intent. The second return value
// is false when the intent has no rule; callers must apply the fail-safe
// escalation default themselves so the choice stays visible at the call
// site.
func (t *Table) Lookup(intent string) (datatypes.Bucket, bool) {
	rule, ok := t.rules[intent]
	if !ok {
		return "", false
	}
	return rule.Bucket, true
}

// DirectAnswer returns the canned answer for a BUCKET_A intent. The second
// return value is false when the intent is unknown or has no direct answer.
func (t *Table) DirectAnswer(intent string) (string, bool) {
	rule, ok := t.rules[intent]
	if !ok || rule.DirectAnswer == "" {
		return "", false
	}
	return rule.DirectAnswer, true
}

// Rules returns the rules sorted by intent. The slice is a copy; mutating
// it does not affect the table.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// BucketDescription returns the operator description for a bucket.
func (t *Table) BucketDescription(b datatypes.Bucket) string {
	return t.buckets[string(b)].Description
}

// Summary aggregates rule counts per bucket for the /v1/intents endpoint.
type Summary struct {
	TotalIntents int                         `json:"total_intents"`
	Buckets      map[string]BucketSummary    `json:"buckets"`
	Intents      map[string]datatypes.Bucket `json:"intents"`
}

// BucketSummary is one bucket's entry in the Summary.
type BucketSummary struct {
	Count       int      `json:"count"`
	Description string   `json:"description"`
	Intents     []string `json:"intents"`
}

// Summarize builds the intent inventory exposed to operators.
func (t *Table) Summarize() Summary {
	summary := Summary{
		TotalIntents: len(t.ordered),
		Buckets:      make(map[string]BucketSummary),
		Intents:      make(map[string]datatypes.Bucket, len(t.ordered)),
	}
	for _, rule := range t.ordered {
		key := string(rule.Bucket)
		bs := summary.Buckets[key]
		bs.Count++
		bs.Description = t.BucketDescription(rule.Bucket)
		bs.Intents = append(bs.Intents, rule.Intent)
		summary.Buckets[key] = bs
		summary.Intents[rule.Intent] = rule.Bucket
	}
	return summary
}
