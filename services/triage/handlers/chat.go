// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kodiakai/kodiak/services/classifier"
	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"github.com/kodiakai/kodiak/services/triage/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var chatTracer = otel.Tracer("kodiak.triage.handlers")

// HandleChat runs one support request through the triage pipeline.
//
// Error mapping: a classifier outage is 503 (the caller should retry
// later), a generation failure is 502 (an upstream model failed), and a
// malformed request is 400. Retrieval problems never surface here; the
// pipeline degrades them internally.
func HandleChat(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sessionId := req.EnsureSessionId()

		pc, err := p.Process(ctx, req.Message, req.History)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			switch {
			case classifier.IsUnavailable(err):
				slog.Error("Classifier unavailable", "request_id", req.RequestId, "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "intent classifier unavailable"})
			case pipeline.IsGenerationError(err):
				slog.Error("Generation failed", "request_id", req.RequestId, "error", err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "response generation failed"})
			default:
				slog.Error("Pipeline failed", "request_id", req.RequestId, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, datatypes.NewChatResponse(pc, sessionId))
	}
}
