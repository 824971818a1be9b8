// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

var (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10
)

// SupportRecord is one row of the support-corpus dataset: a customer
// question, the reference answer, and its labels.
type SupportRecord struct {
	Instruction string
	Response    string
	Intent      string
	Category    string
}

// Ingestor writes the support corpus into weaviate for the retriever to
// search. Used by the ingest command, not by the request path.
type Ingestor struct {
	client   *weaviate.Client
	embedder Embedder
}

// NewIngestor builds an Ingestor over an existing client and embedder.
func NewIngestor(client *weaviate.Client, embedder Embedder) *Ingestor {
	return &Ingestor{client: client, embedder: embedder}
}

// NewIngestorFromEnv constructs an Ingestor from the same environment the
// retriever uses. Unlike the retriever, retrieval being unconfigured is an
// error here: there is nothing to ingest into.
func NewIngestorFromEnv() (*Ingestor, error) {
	retriever, present, err := NewRetrieverFromEnv()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL must be set to ingest documents")
	}
	return NewIngestor(retriever.client, retriever.embedder), nil
}

// supportDocumentSchema is the weaviate class written by ingestion and
// read by Retriever.Retrieve; the property names must stay in sync with
// the fields requested there.
func supportDocumentSchema() *models.Class {
	return &models.Class{
		Class:       SupportDocumentClass,
		Description: "Indexed support corpus used to ground economical-tier answers.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:        "text",
				DataType:    []string{"text"},
				Description: "The reference answer chunk",
			},
			{
				Name:        "intent",
				DataType:    []string{"text"},
				Description: "Intent label of the source record",
			},
			{
				Name:        "category",
				DataType:    []string{"text"},
				Description: "Category label of the source record",
			},
			{
				Name:        "doc_id",
				DataType:    []string{"text"},
				Description: "Stable id of the chunk",
			},
			{
				Name:        "ingested_at",
				DataType:    []string{"int"},
				Description: "Unix millis of ingestion",
			},
		},
	}
}

// EnsureSchema creates the SupportDocument class if it does not exist.
func (in *Ingestor) EnsureSchema(ctx context.Context) error {
	_, err := in.client.Schema().ClassGetter().
		WithClassName(SupportDocumentClass).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", SupportDocumentClass)
		return nil
	}

	slog.Info("Schema not found, creating it...", "class", SupportDocumentClass)
	if err := in.client.Schema().ClassCreator().
		WithClass(supportDocumentSchema()).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", SupportDocumentClass, err)
	}
	return nil
}

// chunkDocID builds the doc_id for one chunk. The record index keeps ids
// unique across records sharing an intent label; the support dataset has
// thousands of rows per intent.
func chunkDocID(intent string, record, part int) string {
	return fmt.Sprintf("%s_%d_part_%d", intent, record+1, part+1)
}

// IngestRecords chunks, embeds and batch-imports the records. Returns the
// number of chunks successfully written. Individual batch-item failures
// are logged and counted, not fatal; a failed embed call is fatal because
// it usually means every following call would fail too.
func (in *Ingestor) IngestRecords(ctx context.Context, records []SupportRecord) (int, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	var objects []*models.Object
	for ri, rec := range records {
		text := strings.TrimSpace(rec.Response)
		if text == "" {
			continue
		}

		chunks, err := splitter.SplitText(text)
		if err != nil {
			return 0, fmt.Errorf("failed to split record for intent %q: %w", rec.Intent, err)
		}

		for i, chunk := range chunks {
			vector, err := in.embedder.Embed(ctx, chunk)
			if err != nil {
				return 0, fmt.Errorf("failed to embed chunk for intent %q: %w", rec.Intent, err)
			}

			// Content-addressed id keeps re-ingestion idempotent.
			hash := sha256.Sum256([]byte(chunk))
			docUUID, _ := uuid.FromBytes(hash[:16])
			docId := chunkDocID(rec.Intent, ri, i)

			objects = append(objects, &models.Object{
				Class:  SupportDocumentClass,
				ID:     strfmt.UUID(docUUID.String()),
				Vector: vector,
				Properties: map[string]interface{}{
					"text":        chunk,
					"intent":      rec.Intent,
					"category":    rec.Category,
					"doc_id":      docId,
					"ingested_at": time.Now().UnixMilli(),
				},
			})
		}
	}

	if len(objects) == 0 {
		slog.Warn("No chunks produced from the dataset")
		return 0, nil
	}

	resp, err := in.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to save objects to weaviate: %w", err)
	}

	written := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			written++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in weaviate batch item", "error", errItem.Message)
			}
		}
	}

	slog.Info("Ingested support corpus", "records", len(records), "chunks_written", written)
	return written, nil
}
