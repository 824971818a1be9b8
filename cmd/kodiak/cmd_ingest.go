// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/kodiakai/kodiak/services/retrieval"
	"github.com/spf13/cobra"
)

func runIngestCommand(cmd *cobra.Command, args []string) {
	csvPath := args[0]

	records, err := readSupportCSV(csvPath)
	if err != nil {
		log.Fatalf("Error reading %s: %v", csvPath, err)
	}
	if len(records) == 0 {
		log.Fatalf("No usable rows in %s", csvPath)
	}
	fmt.Printf("Read %d records from %s\n", len(records), csvPath)

	ingestor, err := retrieval.NewIngestorFromEnv()
	if err != nil {
		log.Fatalf("Error configuring ingestion: %v", err)
	}

	ctx := context.Background()
	if err := ingestor.EnsureSchema(ctx); err != nil {
		log.Fatalf("Error preparing the weaviate schema: %v", err)
	}

	written, err := ingestor.IngestRecords(ctx, records)
	if err != nil {
		log.Fatalf("Error ingesting records: %v", err)
	}
	fmt.Printf("Done. %d chunks written to the %s index.\n",
		written, retrieval.SupportDocumentClass)
}

// readSupportCSV parses the support dataset. The header row names the
// columns; instruction/response/intent/category are matched by name so
// column order does not matter. Rows missing a response are skipped.
func readSupportCSV(path string) ([]retrieval.SupportRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read the CSV header: %w", err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	respIdx, ok := col["response"]
	if !ok {
		return nil, fmt.Errorf("CSV has no 'response' column (header: %v)", header)
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []retrieval.SupportRecord
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if respIdx >= len(row) || strings.TrimSpace(row[respIdx]) == "" {
			skipped++
			continue
		}
		records = append(records, retrieval.SupportRecord{
			Instruction: field(row, "instruction"),
			Response:    field(row, "response"),
			Intent:      field(row, "intent"),
			Category:    field(row, "category"),
		})
	}

	if skipped > 0 {
		fmt.Printf("Skipped %d rows without a response\n", skipped)
	}
	return records, nil
}
