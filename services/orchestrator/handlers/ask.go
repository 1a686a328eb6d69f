// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the orchestrator's HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/pipeline"
	"github.com/regatlas/regatlas/services/orchestrator/retrieval"
)

var askTracer = otel.Tracer("regatlas.orchestrator.handlers")

// defaultRequestDeadline bounds the whole request including every retry
// pass. Overridable via REQUEST_DEADLINE (a Go duration string).
const defaultRequestDeadline = 4 * time.Minute

func requestDeadline() time.Duration {
	raw := os.Getenv("REQUEST_DEADLINE")
	if raw == "" {
		return defaultRequestDeadline
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Invalid REQUEST_DEADLINE, using default", "value", raw)
		return defaultRequestDeadline
	}
	return d
}

// HandleAsk runs the full question pipeline.
//
// # Description
//
// Binds and validates the AskRequest, runs the pipeline under an overall
// deadline, and maps pipeline errors to HTTP statuses:
//
//   - retrieval.SearchError   -> 503, the vector store is unreachable
//   - pipeline.SynthesisError -> 500, generation backend degraded
//   - pipeline.ValidationError -> 500, verification backend degraded
//   - context cancellation    -> client is gone, nothing to send
//
// A low-confidence answer is NOT an error: it returns 200 with the
// confidence field telling the caller how much to trust it.
func HandleAsk(controller *pipeline.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := askTracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		requestID := uuid.New().String()
		span.SetAttributes(attribute.String("ask.request_id", requestID))
		log := slog.With("request_id", requestID)

		var request datatypes.AskRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Failed to bind ask request JSON", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := request.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		span.SetAttributes(attribute.Int("ask.question_bytes", len(request.Question)))
		log.Info("Received ask request", "question_bytes", len(request.Question))

		ctx, cancel := context.WithTimeout(ctx, requestDeadline())
		defer cancel()

		final, err := controller.Ask(ctx, request.Question)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			switch {
			case errors.Is(err, context.Canceled):
				// Client disconnected; there is nobody to answer.
				log.Warn("Ask request cancelled by client")
				return
			case retrieval.IsSearchError(err):
				log.Error("Retrieval backend unreachable", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error": "cannot reach retrieval service",
				})
			case pipeline.IsSynthesisError(err):
				log.Error("Synthesis failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "answer generation is degraded, try again later",
				})
			case pipeline.IsValidationError(err):
				log.Error("Validation failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "answer verification is degraded, try again later",
				})
			default:
				log.Error("Ask pipeline failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		span.SetAttributes(
			attribute.String("ask.query_type", string(final.QueryType)),
			attribute.Float64("ask.confidence", final.Confidence),
		)
		c.JSON(http.StatusOK, datatypes.NewAskResponse(final))
	}
}
