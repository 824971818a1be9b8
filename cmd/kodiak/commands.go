// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	sessionID     string
	messagesPath  string
	thresholdList []float64

	rootCmd = &cobra.Command{
		Use:   "kodiak",
		Short: "A cli to operate the Kodiak support triage service",
		Long: `Kodiak routes customer support requests into cost buckets and
				answers them with the cheapest backend that is safe for the
				request. This CLI talks to a running triage service and manages
				its retrieval index.`,
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive support triage session",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks a single question and prints the routed answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in cmd_chat.go
	}

	// --- Index management ---
	ingestCmd = &cobra.Command{
		Use:   "ingest [csv-file]",
		Short: "Builds the retrieval index from a support dataset CSV",
		Args:  cobra.ExactArgs(1),
		Run:   runIngestCommand, // Defined in cmd_ingest.go
	}

	// --- Offline evaluation ---
	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Dry-runs the router over a message file and reports cost impact",
		Long: `Routes every message in the file without generating any answers,
				then prints the bucket distribution, the projected cost against
				the all-escalation baseline, and a confidence threshold sweep.`,
		Run: runEvaluateCommand, // Defined in cmd_evaluate.go
	}

	// --- Inventory ---
	intentsCmd = &cobra.Command{
		Use:   "intents",
		Short: "Lists the intents and buckets of the running service's policy",
		Run:   runIntentsCommand, // Defined in cmd_chat.go
	}
)

func init() {
	chatCmd.Flags().StringVar(&sessionID, "resume", "", "Resume an existing session id")

	evaluateCmd.Flags().StringVar(&messagesPath, "messages", "",
		"Path to a file with one customer message per line (required)")
	evaluateCmd.Flags().Float64SliceVar(&thresholdList, "thresholds", nil,
		"Confidence thresholds to sweep (default from config)")
	_ = evaluateCmd.MarkFlagRequired("messages")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(intentsCmd)
}
