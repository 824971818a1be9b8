// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_CostTier(t *testing.T) {
	tests := []struct {
		bucket Bucket
		want   CostTier
	}{
		{BucketA, CostTierZero},
		{BucketB, CostTierLow},
		{BucketC, CostTierHigh},
		{Bucket("BUCKET_X"), CostTierHigh}, // unknown escalates
		{Bucket(""), CostTierHigh},
	}

	for _, tt := range tests {
		t.Run(string(tt.bucket), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bucket.CostTier())
		})
	}
}

func TestBucket_Valid(t *testing.T) {
	assert.True(t, BucketA.Valid())
	assert.True(t, BucketB.Valid())
	assert.True(t, BucketC.Valid())
	assert.False(t, Bucket("bucket_a").Valid())
	assert.False(t, Bucket("").Valid())
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("BUCKET_B")
	require.NoError(t, err)
	assert.Equal(t, BucketB, b)

	_, err = ParseBucket("BUCKET_D")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUCKET_D")
}

func TestPipelineContext_ApplyRouting(t *testing.T) {
	decision := RoutingDecision{
		Intent:     "track_order",
		Confidence: 0.92,
		Bucket:     BucketB,
		CostTier:   BucketB.CostTier(),
		Action:     ActionPolicyMatch,
		Reason:     "intent \"track_order\" mapped to BUCKET_B",
	}

	pc := &PipelineContext{UserQuery: "where is my order"}
	pc.ApplyRouting(decision)

	assert.Equal(t, "track_order", pc.Intent)
	assert.Equal(t, 0.92, pc.Confidence)
	assert.Equal(t, BucketB, pc.Bucket)
	assert.Equal(t, CostTierLow, pc.CostTier)
	assert.Equal(t, ActionPolicyMatch, pc.Action)
	assert.NotEmpty(t, pc.Reason)

	// Input fields are untouched.
	assert.Equal(t, "where is my order", pc.UserQuery)
	assert.Empty(t, pc.FinalResponse)
}
