// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval provides the optional vector-store lookup used to
// ground BUCKET_B responses.
//
// Retrieval is a best-effort enhancement, not a hard dependency: the
// service runs in "lightweight mode" without it, and the pipeline degrades
// to ungrounded generation when it is absent or failing. Whether the
// capability exists is decided exactly once, at construction
// (NewRetrieverFromEnv), rather than by swallowing errors at call time.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("kodiak.retrieval")

// SupportDocumentClass is the weaviate class holding the indexed support
// corpus. Written by `kodiak ingest`, read here.
const SupportDocumentClass = "SupportDocument"

// DefaultTopK is the number of documents retrieved per query.
const DefaultTopK = 3

// Service is the retrieval capability as consumed by the pipeline.
type Service interface {
	Retrieve(ctx context.Context, query string, k int) ([]datatypes.Document, error)
}

// Retriever performs NearVector search against weaviate, embedding the
// query via the embedding sidecar first.
type Retriever struct {
	client   *weaviate.Client
	embedder Embedder
}

// Compile-time interface implementation check.
var _ Service = (*Retriever)(nil)

// NewRetriever builds a Retriever from an existing weaviate client and
// embedder. Used by tests and by the ingest command.
func NewRetriever(client *weaviate.Client, embedder Embedder) *Retriever {
	return &Retriever{client: client, embedder: embedder}
}

// NewRetrieverFromEnv constructs the retrieval capability from the
// environment.
//
// The second return value reports presence: (nil, false, nil) means the
// capability is deliberately absent (WEAVIATE_SERVICE_URL unset) and the
// service should run in lightweight mode. A non-nil error means retrieval
// was configured but misconfigured, which is a startup failure -- a half
// configured capability should not be silently dropped.
func NewRetrieverFromEnv() (*Retriever, bool, error) {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" {
		slog.Info("WEAVIATE_SERVICE_URL not set. Running in lightweight mode (no retrieval).")
		return nil, false, nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, false, fmt.Errorf("WEAVIATE_SERVICE_URL %q is not a valid URL", weaviateURL)
	}

	embeddingURL := strings.Trim(os.Getenv("EMBEDDING_SERVICE_URL"), "\"' ")
	if embeddingURL == "" {
		return nil, false, fmt.Errorf("EMBEDDING_SERVICE_URL must be set when retrieval is enabled")
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	slog.Info("Retrieval capability enabled", "weaviate", weaviateURL)
	return NewRetriever(client, NewHTTPEmbedder(embeddingURL)), true, nil
}

// Retrieve embeds the query and returns the k most similar documents.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]datatypes.Document, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()

	if k <= 0 {
		k = DefaultTopK
	}
	span.SetAttributes(attribute.Int("retrieval.top_k", k))

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	// Certainty is requested instead of distance: it is always in [0,1]
	// regardless of the index's distance metric.
	fields := []graphql.Field{
		{Name: "text"},
		{Name: "intent"},
		{Name: "category"},
		{Name: "doc_id"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(SupportDocumentClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate search failed")
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		span.SetStatus(codes.Error, "weaviate returned GraphQL errors")
		return nil, fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}

	raw := make(map[string]any, len(result.Data))
	for k, v := range result.Data {
		raw[k] = v
	}
	docs := parseSearchResults(raw)
	span.SetAttributes(attribute.Int("retrieval.documents", len(docs)))
	slog.Debug("Retrieved documents", "count", len(docs))
	return docs, nil
}

// parseSearchResults converts the raw GraphQL payload into Documents.
// Malformed entries are skipped rather than failing the whole result set.
func parseSearchResults(data map[string]any) []datatypes.Document {
	var docs []datatypes.Document

	get, ok := data["Get"].(map[string]any)
	if !ok {
		return docs
	}
	items, ok := get[SupportDocumentClass].([]any)
	if !ok {
		return docs
	}

	for _, item := range items {
		props, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := datatypes.Document{
			Metadata: map[string]any{},
		}
		if text, ok := props["text"].(string); ok {
			doc.Text = text
		}
		if id, ok := props["doc_id"].(string); ok {
			doc.Id = id
		}
		if intent, ok := props["intent"].(string); ok {
			doc.Metadata["intent"] = intent
		}
		if category, ok := props["category"].(string); ok {
			doc.Metadata["category"] = category
		}
		if add, ok := props["_additional"].(map[string]any); ok {
			if certainty, ok := add["certainty"].(float64); ok {
				doc.Score = certainty
			}
		}
		if doc.Text == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
