// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/regatlas/regatlas/services/llm"
	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel/attribute"
)

// classificationPrompt is the first of the three generation contracts: a
// closed four-label set, nothing else in the reply.
const classificationPrompt = `You are a regulatory compliance query classifier.

Classify the following question into exactly ONE of these categories:

- LOOKUP: The user wants a specific fact or detail from one regulation.
  Example: "What does SR 11-7 say about model documentation?"

- COMPARE: The user wants to compare across multiple regulations.
  Example: "How do NIST AI RMF and SR 11-7 differ on risk assessment?"

- CHECKLIST: The user wants a list of requirements, steps, or action items.
  Example: "What do I need to comply with NAIC AI guidelines?"

- EXPLAIN: The user wants a concept or term explained.
  Example: "What is effective challenge in model validation?"

Question: %s

Respond with ONLY the category name (LOOKUP, COMPARE, CHECKLIST, or EXPLAIN).
Nothing else.`

// QueryClassifier maps raw question text to a QueryType with a single
// generation call. It runs exactly once per request and never errors: any
// failure, whether an unreachable backend or an unparseable label,
// resolves to the LOOKUP fallback, the narrowest retrieval strategy, and is
// logged rather than surfaced.
type QueryClassifier struct {
	llmClient llm.LLMClient
}

// NewQueryClassifier creates a classifier backed by the given client.
func NewQueryClassifier(llmClient llm.LLMClient) *QueryClassifier {
	return &QueryClassifier{llmClient: llmClient}
}

// Classify determines the query type for a question.
func (c *QueryClassifier) Classify(ctx context.Context, query datatypes.Query) datatypes.QueryType {
	ctx, span := pipelineTracer.Start(ctx, "QueryClassifier.Classify")
	defer span.End()

	prompt := fmt.Sprintf(classificationPrompt, query.Text)

	temp := float32(0.0)
	maxTokens := 16
	raw, err := c.llmClient.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		slog.Warn("Classification call failed, falling back to LOOKUP", "error", err)
		span.SetAttributes(attribute.Bool("classify.fallback", true))
		return datatypes.QueryTypeLookup
	}

	queryType, ok := datatypes.ParseQueryType(raw)
	if !ok {
		slog.Warn("Classifier returned an unparseable label, falling back to LOOKUP",
			"raw", raw)
		span.SetAttributes(attribute.Bool("classify.fallback", true))
		return datatypes.QueryTypeLookup
	}

	span.SetAttributes(attribute.String("classify.query_type", string(queryType)))
	slog.Debug("Classified query", "query_type", queryType)
	return queryType
}
