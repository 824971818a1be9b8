// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier is the HTTP adapter to the intent-classifier sidecar.
//
// The sidecar hosts the fine-tuned intent model and exposes a single
// /classify endpoint returning an (intent, confidence) pair. This package
// deliberately knows nothing about buckets or routing policy; it only
// produces predictions. A sidecar failure surfaces as *UnavailableError
// and is never silently recovered -- the router must be able to tell a
// failed classification apart from a successful low-confidence one.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("kodiak.classifier")

// Prediction is the classifier's output for one message.
type Prediction struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Service is the classification capability as consumed by the router.
type Service interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Client calls the intent-classifier sidecar over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Compile-time interface implementation check.
var _ Service = (*Client)(nil)

// NewClientFromEnv builds a Client from CLASSIFIER_SERVICE_URL.
//
// A missing URL is a configuration error: the triage service cannot route
// anything without classification, so main treats this as fatal at startup.
func NewClientFromEnv() (*Client, error) {
	baseURL := strings.Trim(os.Getenv("CLASSIFIER_SERVICE_URL"), "\"' ")
	if baseURL == "" {
		return nil, fmt.Errorf("CLASSIFIER_SERVICE_URL environment variable not set")
	}
	return NewClient(baseURL), nil
}

// NewClient builds a Client for the given sidecar base URL.
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing intent classifier client", "base_url", baseURL)
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify sends the text to the sidecar and returns its prediction.
//
// Any transport failure, non-200 status or malformed body is wrapped in
// *UnavailableError. A confidence outside [0,1] counts as malformed: a
// model server that reports impossible confidences cannot be trusted for
// cost routing.
func (c *Client) Classify(ctx context.Context, text string) (Prediction, error) {
	ctx, span := tracer.Start(ctx, "Client.Classify")
	defer span.End()

	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify",
		bytes.NewBuffer(payload))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Prediction{}, &UnavailableError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Prediction{}, &UnavailableError{Reason: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.Int("classifier.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, "non-200 from classifier")
		return Prediction{}, &UnavailableError{
			Reason: fmt.Sprintf("classifier returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var pred Prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed classifier response")
		return Prediction{}, &UnavailableError{Reason: "malformed response body", Err: err}
	}
	if pred.Intent == "" || pred.Confidence < 0 || pred.Confidence > 1 {
		span.SetStatus(codes.Error, "invalid prediction values")
		return Prediction{}, &UnavailableError{
			Reason: fmt.Sprintf("invalid prediction (intent=%q, confidence=%f)",
				pred.Intent, pred.Confidence),
		}
	}

	span.SetAttributes(
		attribute.String("classifier.intent", pred.Intent),
		attribute.Float64("classifier.confidence", pred.Confidence),
	)
	return pred, nil
}

// UnavailableError reports that the classification capability could not be
// reached or returned output the router cannot use. Handlers map it to
// HTTP 503.
type UnavailableError struct {
	Reason string
	Err    error
}

// Error implements the error interface for UnavailableError.
func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classifier unavailable: %s", e.Reason)
}

// Unwrap exposes the underlying transport error, if any.
func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable checks if an error is an *UnavailableError. Useful for
// handlers to pick the HTTP status code.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
