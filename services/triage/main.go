// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kodiakai/kodiak/services/classifier"
	"github.com/kodiakai/kodiak/services/llm"
	"github.com/kodiakai/kodiak/services/policy"
	"github.com/kodiakai/kodiak/services/retrieval"
	"github.com/kodiakai/kodiak/services/triage/observability"
	"github.com/kodiakai/kodiak/services/triage/pipeline"
	"github.com/kodiakai/kodiak/services/triage/router"
	"github.com/kodiakai/kodiak/services/triage/routes"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "kodiak-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("triage-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// confidenceThreshold reads the gate threshold override, falling back to
// the router default on absence or garbage.
func confidenceThreshold() float64 {
	raw := os.Getenv("CONFIDENCE_THRESHOLD")
	if raw == "" {
		return router.DefaultConfidenceThreshold
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("CONFIDENCE_THRESHOLD is not a number, using default",
			"value", raw, "default", router.DefaultConfidenceThreshold)
		return router.DefaultConfidenceThreshold
	}
	return v
}

func main() {
	port := os.Getenv("TRIAGE_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// The routing policy and the classifier are hard requirements: without
	// either, no request can be triaged, so both are fatal at startup.
	table, err := policy.NewTable()
	if err != nil {
		log.Fatalf("FATAL: Could not load the routing policy table: %v", err)
	}
	slog.Info("Loaded routing policy table", "intents", table.Summarize().TotalIntents)

	cls, err := classifier.NewClientFromEnv()
	if err != nil {
		log.Fatalf("FATAL: Could not configure the intent classifier: %v", err)
	}

	rt := router.NewRouterWithThreshold(cls, table, confidenceThreshold())
	if err := rt.Validate(); err != nil {
		log.Fatalf("FATAL: Invalid router configuration: %v", err)
	}

	// Retrieval is an optional capability: decided once here, never probed
	// again per-request.
	retriever, present, err := retrieval.NewRetrieverFromEnv()
	if err != nil {
		log.Fatalf("FATAL: Could not configure retrieval: %v", err)
	}
	var retrievalService retrieval.Service
	if present {
		retrievalService = retriever
		slog.Info("Retrieval capability enabled")
	} else {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running in lightweight mode (grounding disabled).")
	}

	factory := llm.NewFactoryFromEnv()
	metrics := observability.NewTriageMetrics(prometheus.DefaultRegisterer)
	direct := pipeline.NewDirectResponder(table)

	p := pipeline.NewPipeline(rt, retrievalService, present, factory, direct,
		metrics, pipeline.Config{})

	engine := gin.Default()
	engine.Use(otelgin.Middleware("triage-service"))

	routes.SetupRoutes(engine, p, table)

	log.Println("Starting the triage server on port ", port)
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
