// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kodiakai/kodiak/pkg/logging"
	"github.com/kodiakai/kodiak/services/classifier"
	"github.com/kodiakai/kodiak/services/policy"
	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/kodiakai/kodiak/services/triage/router"
	"github.com/spf13/cobra"
)

// evaluationReport aggregates one threshold's dry run.
type evaluationReport struct {
	Threshold     float64
	Total         int
	ByBucket      map[datatypes.Bucket]int
	Fallbacks     int
	ProjectedCost float64
	BaselineCost  float64
}

// runEvaluateCommand routes every message in the file without generating
// anything, once per threshold, and prints the cost impact. The classifier
// sidecar must be reachable; generation backends are never touched.
func runEvaluateCommand(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "cli",
	})
	defer logger.Close()

	messages, err := readMessageFile(messagesPath)
	if err != nil {
		log.Fatalf("Error reading %s: %v", messagesPath, err)
	}
	if len(messages) == 0 {
		log.Fatalf("No messages found in %s", messagesPath)
	}
	logger.Info("Loaded evaluation messages", "path", messagesPath, "count", len(messages))

	table, err := policy.NewTable()
	if err != nil {
		log.Fatalf("Error loading the routing policy table: %v", err)
	}
	cls, err := classifier.NewClientFromEnv()
	if err != nil {
		log.Fatalf("Error configuring the intent classifier: %v", err)
	}

	thresholds := thresholdList
	if len(thresholds) == 0 {
		thresholds = config.Evaluate.Thresholds
	}

	ctx := context.Background()
	var reports []evaluationReport
	for _, threshold := range thresholds {
		rt := router.NewRouterWithThreshold(cls, table, threshold)
		if err := rt.Validate(); err != nil {
			log.Fatalf("Invalid threshold %.2f: %v", threshold, err)
		}

		decisions, err := rt.BatchRoute(ctx, messages)
		if err != nil {
			log.Fatalf("Routing failed at threshold %.2f: %v", threshold, err)
		}
		reports = append(reports, summarize(threshold, decisions))
	}

	printReports(reports)
}

// summarize folds one threshold's decisions into a report.
func summarize(threshold float64, decisions []datatypes.RoutingDecision) evaluationReport {
	report := evaluationReport{
		Threshold: threshold,
		Total:     len(decisions),
		ByBucket:  map[datatypes.Bucket]int{},
	}
	for _, d := range decisions {
		report.ByBucket[d.Bucket]++
		if d.Action == datatypes.ActionLowConfidenceFallback {
			report.Fallbacks++
		}
		report.ProjectedCost += bucketCost(d.Bucket)
		// The baseline sends everything to escalation.
		report.BaselineCost += bucketCost(datatypes.BucketC)
	}
	return report
}

func bucketCost(b datatypes.Bucket) float64 {
	switch b {
	case datatypes.BucketA:
		return config.Evaluate.CostBucketA
	case datatypes.BucketB:
		return config.Evaluate.CostBucketB
	default:
		return config.Evaluate.CostBucketC
	}
}

func printReports(reports []evaluationReport) {
	for _, r := range reports {
		fmt.Printf("\n=== Threshold %.2f ===\n", r.Threshold)
		fmt.Printf("Messages routed: %d\n", r.Total)
		for _, b := range []datatypes.Bucket{datatypes.BucketA, datatypes.BucketB, datatypes.BucketC} {
			count := r.ByBucket[b]
			pct := 0.0
			if r.Total > 0 {
				pct = float64(count) / float64(r.Total) * 100
			}
			fmt.Printf("  %s: %d (%.1f%%)\n", b, count, pct)
		}
		fmt.Printf("Low-confidence fallbacks: %d\n", r.Fallbacks)
		fmt.Printf("Projected cost: $%.4f (baseline all-%s: $%.4f)\n",
			r.ProjectedCost, datatypes.BucketC, r.BaselineCost)
		if r.BaselineCost > 0 {
			savings := (1 - r.ProjectedCost/r.BaselineCost) * 100
			fmt.Printf("Savings vs baseline: %.1f%%\n", savings)
		}
	}
	fmt.Println()
}

// readMessageFile loads one customer message per line; blank lines and
// '#' comments are skipped.
func readMessageFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		messages = append(messages, line)
	}
	return messages, scanner.Err()
}
