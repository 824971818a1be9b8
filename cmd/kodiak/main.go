// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var config Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		loadConfig("kodiak.yaml")
	}
}

// loadConfig reads the optional config file. Absence is fine: every value
// has an env or flag fallback, the file just saves typing them.
func loadConfig(path string) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		config = DefaultConfig()
		return
	}
	config = DefaultConfig()
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		log.Fatalf("Error parsing %s: %v", path, err)
	}
}
