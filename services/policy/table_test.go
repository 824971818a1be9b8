// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package policy

import (
	"testing"

	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = `
buckets:
  BUCKET_A:
    description: "Direct answers"
  BUCKET_B:
    description: "Grounded answers"
  BUCKET_C:
    description: "Escalations"
rules:
  - intent: check_refund_policy
    bucket: BUCKET_A
    direct_answer: "Refunds are accepted within 30 days of purchase."
  - intent: track_order
    bucket: BUCKET_B
  - intent: complaint
    bucket: BUCKET_C
`

func TestNewTable_Embedded(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)
	require.NotNil(t, table)

	// The shipped policy covers the full Bitext intent set.
	summary := table.Summarize()
	assert.Equal(t, 27, summary.TotalIntents)
	assert.NotZero(t, summary.Buckets[string(datatypes.BucketA)].Count)
	assert.NotZero(t, summary.Buckets[string(datatypes.BucketB)].Count)
	assert.NotZero(t, summary.Buckets[string(datatypes.BucketC)].Count)
}

func TestNewTable_EveryBucketARuleHasDirectAnswer(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	for _, rule := range table.Rules() {
		if rule.Bucket == datatypes.BucketA {
			assert.NotEmpty(t, rule.DirectAnswer, "intent %s", rule.Intent)
		}
	}
}

func TestTable_Lookup(t *testing.T) {
	table, err := newTableFromBytes([]byte(testPolicy))
	require.NoError(t, err)

	bucket, ok := table.Lookup("track_order")
	assert.True(t, ok)
	assert.Equal(t, datatypes.BucketB, bucket)

	bucket, ok = table.Lookup("complaint")
	assert.True(t, ok)
	assert.Equal(t, datatypes.BucketC, bucket)

	_, ok = table.Lookup("made_up_intent")
	assert.False(t, ok)
}

func TestTable_DirectAnswer(t *testing.T) {
	table, err := newTableFromBytes([]byte(testPolicy))
	require.NoError(t, err)

	answer, ok := table.DirectAnswer("check_refund_policy")
	assert.True(t, ok)
	assert.Contains(t, answer, "30 days")

	_, ok = table.DirectAnswer("track_order")
	assert.False(t, ok)

	_, ok = table.DirectAnswer("made_up_intent")
	assert.False(t, ok)
}

func TestTable_Summarize(t *testing.T) {
	table, err := newTableFromBytes([]byte(testPolicy))
	require.NoError(t, err)

	summary := table.Summarize()
	assert.Equal(t, 3, summary.TotalIntents)
	assert.Equal(t, 1, summary.Buckets[string(datatypes.BucketA)].Count)
	assert.Equal(t, "Direct answers", summary.Buckets[string(datatypes.BucketA)].Description)
	assert.Equal(t, datatypes.BucketB, summary.Intents["track_order"])
}

func TestNewTable_RejectsEmptyRules(t *testing.T) {
	_, err := newTableFromBytes([]byte("buckets: {}\nrules: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rules")
}

func TestNewTable_RejectsDuplicateIntent(t *testing.T) {
	dup := `
rules:
  - intent: track_order
    bucket: BUCKET_B
  - intent: track_order
    bucket: BUCKET_C
`
	_, err := newTableFromBytes([]byte(dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewTable_RejectsBucketAWithoutDirectAnswer(t *testing.T) {
	bad := `
rules:
  - intent: check_refund_policy
    bucket: BUCKET_A
`
	_, err := newTableFromBytes([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direct_answer")
}

func TestNewTable_RejectsInvalidBucket(t *testing.T) {
	bad := `
rules:
  - intent: track_order
    bucket: BUCKET_Q
`
	_, err := newTableFromBytes([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bucket")
}

func TestNewTable_RejectsMalformedYAML(t *testing.T) {
	_, err := newTableFromBytes([]byte("rules: [intent: {{"))
	assert.Error(t, err)
}

func TestTable_RulesReturnsCopy(t *testing.T) {
	table, err := newTableFromBytes([]byte(testPolicy))
	require.NoError(t, err)

	rules := table.Rules()
	require.NotEmpty(t, rules)
	rules[0].Intent = "mutated"

	fresh := table.Rules()
	assert.NotEqual(t, "mutated", fresh[0].Intent)
}
