// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval implements the retrieval capability consumed by the
// pipeline: semantic passage search over the Weaviate index built by the
// ingest CLI. The pipeline only sees the PassageSearcher interface; the
// Weaviate wiring stays here.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("regatlas.orchestrator.retrieval")

// Compile-time interface implementation check.
var _ PassageSearcher = (*WeaviateSearcher)(nil)

// Filters restricts a passage search.
type Filters struct {
	// Regulation restricts results to one regulation. Empty means no filter.
	Regulation string
	// OrderByPage re-sorts results into document order after retrieval.
	// Used for CHECKLIST queries where requirement sequence matters.
	OrderByPage bool
}

// PassageSearcher is the retrieval capability the pipeline consumes: given a
// query, filters, and a result budget, return ranked passages.
//
// An empty result is a valid outcome, not an error. Errors mean the index or
// its dependencies are unreachable; callers surface those as
// service-unavailable, never as an empty answer.
//
// Implementations must be safe for concurrent use.
type PassageSearcher interface {
	Search(ctx context.Context, query string, f Filters, topK int) ([]datatypes.Passage, error)
}

// SearchError wraps failures of the retrieval backend. The handler maps it
// to 503 so clients can tell "cannot reach retrieval" apart from a
// server-side failure.
type SearchError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("retrieval unavailable during %s: %v", e.Op, e.Cause)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *SearchError) Unwrap() error { return e.Cause }

// IsSearchError checks if an error is a *SearchError.
func IsSearchError(err error) bool {
	_, ok := err.(*SearchError)
	return ok
}

// WeaviateSearcher implements PassageSearcher against the RegulationChunk
// class using nearVector search, with query vectors computed by the injected
// EmbeddingProvider.
type WeaviateSearcher struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
}

// NewWeaviateSearcher creates a searcher. Both arguments must be non-nil.
func NewWeaviateSearcher(client *weaviate.Client, embedder EmbeddingProvider) *WeaviateSearcher {
	return &WeaviateSearcher{client: client, embedder: embedder}
}

// Search implements PassageSearcher.
func (s *WeaviateSearcher) Search(ctx context.Context, query string, f Filters, topK int) ([]datatypes.Passage, error) {
	ctx, span := tracer.Start(ctx, "WeaviateSearcher.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.regulation_filter", f.Regulation),
		attribute.Int("search.top_k", topK),
	)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, &SearchError{Op: "embed", Cause: err}
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "regulation"},
		{Name: "source"},
		{Name: "page"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	builder := s.client.GraphQL().Get().
		WithClassName(datatypes.RegulationChunkClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK)

	if f.Regulation != "" {
		where := filters.Where().
			WithPath([]string{"regulation"}).
			WithOperator(filters.Equal).
			WithValueString(f.Regulation)
		builder = builder.WithWhere(where)
	}

	result, err := builder.Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate query failed")
		slog.Error("Failed to search RegulationChunk class", "error", err)
		return nil, &SearchError{Op: "search", Cause: err}
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.RegulationChunkQueryResponse](result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, &SearchError{Op: "parse", Cause: err}
	}

	passages := make([]datatypes.Passage, 0, len(parsed.Get.RegulationChunk))
	for _, chunk := range parsed.Get.RegulationChunk {
		passages = append(passages, chunk.ToPassage())
	}

	if f.OrderByPage {
		// Weaviate cannot combine nearVector with sort, so re-order here.
		sort.SliceStable(passages, func(i, j int) bool {
			if passages[i].Regulation != passages[j].Regulation {
				return passages[i].Regulation < passages[j].Regulation
			}
			return passages[i].Page < passages[j].Page
		})
	}

	span.SetAttributes(attribute.Int("search.results", len(passages)))
	slog.Debug("Passage search complete", "query_len", len(query), "results", len(passages))
	return passages, nil
}
