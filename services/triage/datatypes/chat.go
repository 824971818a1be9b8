// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes: request and response types for the chat endpoint.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxMessageBytes is the maximum size of a chat message. Checked in bytes,
// not runes, to bound memory for pathological payloads.
const MaxMessageBytes = 32 * 1024 // 32KB

// chatValidate is the shared validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageBytes on a string field.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

// ChatRequest is the body of POST /v1/chat.
//
// Message is the user's support question. SessionId groups turns of one
// conversation; when empty a new session id is generated. History carries
// prior turns of the conversation and is optional.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,maxbytes"`
	SessionId string `json:"session_id"`
	RequestId string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	History   []Turn `json:"history,omitempty"`
}

// EnsureDefaults populates RequestId and Timestamp when the caller omitted
// them. Returns the request for chaining.
func (r *ChatRequest) EnsureDefaults() *ChatRequest {
	if r.RequestId == "" {
		r.RequestId = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UTC().UnixMilli()
	}
	return r
}

// EnsureSessionId returns the session id, generating one when absent.
func (r *ChatRequest) EnsureSessionId() string {
	if r.SessionId == "" {
		r.SessionId = "sess_" + uuid.NewString()
	}
	return r.SessionId
}

// Validate checks the request against the validation rules.
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid chat request: %w", err)
	}
	return nil
}

// ChatResponse is the body returned by POST /v1/chat. Its shape mirrors the
// routing metadata so callers can log cost decisions per request.
type ChatResponse struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Bucket     Bucket   `json:"bucket"`
	CostTier   CostTier `json:"cost_tier"`
	Response   string   `json:"response"`
	SessionId  string   `json:"session_id"`

	// RetrievalDegraded is surfaced so monitoring can alert on the degrade
	// path without treating it as a request failure.
	RetrievalDegraded bool `json:"retrieval_degraded,omitempty"`
}

// NewChatResponse builds a ChatResponse from a completed pipeline context.
func NewChatResponse(pc *PipelineContext, sessionId string) *ChatResponse {
	return &ChatResponse{
		Intent:            pc.Intent,
		Confidence:        pc.Confidence,
		Bucket:            pc.Bucket,
		CostTier:          pc.CostTier,
		Response:          pc.FinalResponse,
		SessionId:         sessionId,
		RetrievalDegraded: pc.RetrievalDegraded,
	}
}
