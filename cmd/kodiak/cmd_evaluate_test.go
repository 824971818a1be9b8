// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	old := config
	config = DefaultConfig()
	t.Cleanup(func() { config = old })
}

func TestSummarize_BucketDistributionAndCost(t *testing.T) {
	setTestConfig(t)

	decisions := []datatypes.RoutingDecision{
		{Bucket: datatypes.BucketA, Action: datatypes.ActionPolicyMatch},
		{Bucket: datatypes.BucketA, Action: datatypes.ActionPolicyMatch},
		{Bucket: datatypes.BucketB, Action: datatypes.ActionLowConfidenceFallback},
		{Bucket: datatypes.BucketC, Action: datatypes.ActionPolicyMatch},
	}

	report := summarize(0.5, decisions)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.ByBucket[datatypes.BucketA])
	assert.Equal(t, 1, report.ByBucket[datatypes.BucketB])
	assert.Equal(t, 1, report.ByBucket[datatypes.BucketC])
	assert.Equal(t, 1, report.Fallbacks)

	// 2*0 + 1*0.001 + 1*0.02 projected; baseline 4*0.02
	assert.InDelta(t, 0.021, report.ProjectedCost, 1e-9)
	assert.InDelta(t, 0.08, report.BaselineCost, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	setTestConfig(t)

	report := summarize(0.5, nil)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0.0, report.ProjectedCost)
	assert.Equal(t, 0.0, report.BaselineCost)
}

func TestBucketCost_UnknownBucketChargedAsEscalation(t *testing.T) {
	setTestConfig(t)

	assert.Equal(t, config.Evaluate.CostBucketC, bucketCost(datatypes.Bucket("BUCKET_X")))
}

func TestReadMessageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.txt")
	content := "where is my order\n\n# a comment\n  I want a refund  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	messages, err := readMessageFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"where is my order", "I want a refund"}, messages)
}

func TestReadMessageFile_Missing(t *testing.T) {
	_, err := readMessageFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestReadSupportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	content := "flags,instruction,category,intent,response\n" +
		"B,where is my order,ORDER,track_order,You can track your order from the account page.\n" +
		"B,empty row,ORDER,track_order,\n" +
		"B,cancel it,ORDER,cancel_order,Visit the order page and choose cancel.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := readSupportCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "track_order", records[0].Intent)
	assert.Equal(t, "ORDER", records[0].Category)
	assert.Equal(t, "where is my order", records[0].Instruction)
	assert.Contains(t, records[0].Response, "track your order")
	assert.Equal(t, "cancel_order", records[1].Intent)
}

func TestReadSupportCSV_NoResponseColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0644))

	_, err := readSupportCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response")
}

func TestGetServiceBaseURL_Priority(t *testing.T) {
	setTestConfig(t)
	t.Setenv("KODIAK_SERVICE_URL", "")

	assert.Equal(t, "http://localhost:12310", getServiceBaseURL())

	config.ServiceURL = "http://triage.internal:8080"
	assert.Equal(t, "http://triage.internal:8080", getServiceBaseURL())

	t.Setenv("KODIAK_SERVICE_URL", "http://override:9999")
	assert.Equal(t, "http://override:9999", getServiceBaseURL())
}
