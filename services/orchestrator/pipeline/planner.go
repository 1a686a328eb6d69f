// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"log/slog"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/retrieval"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Base result budgets per strategy. Retries widen these; see widenTopK.
const (
	lookupTopK        = 5
	comparePerRegTopK = 5
	compareBroadTopK  = 10
	checklistTopK     = 7
	explainTopK       = 7
)

// checklistBias is appended to the search query for CHECKLIST questions to
// pull requirement-style passages ahead of narrative ones.
const checklistBias = " requirements obligations steps that must be completed"

// RetrievalPlanner maps (query, type, retry count) to a retrieval strategy
// and executes it against the PassageSearcher capability. Results are always
// deduplicated by (regulation, page) before they leave the planner.
type RetrievalPlanner struct {
	searcher retrieval.PassageSearcher
}

// NewRetrievalPlanner creates a planner backed by the given searcher.
func NewRetrievalPlanner(searcher retrieval.PassageSearcher) *RetrievalPlanner {
	return &RetrievalPlanner{searcher: searcher}
}

// widenTopK grows the result budget on each retry. Doubling per retry
// guarantees the retrieved set's scope strictly increases: retry 1 fetches
// twice the passages, retry 2 four times. Retry 2 additionally drops
// any regulation filter (see Retrieve), so the same query is never reissued.
func widenTopK(base, retryCount int) int {
	return base << retryCount
}

// dropFilterOnRetry reports whether the regulation filter should be relaxed
// for this attempt. The last retry searches the whole corpus.
func dropFilterOnRetry(retryCount int) bool {
	return retryCount >= MaxRetries
}

// Retrieve executes the strategy for the query type and retry count.
//
// Strategies:
//   - LOOKUP: the single best-matching regulation (first keyword hit in the
//     question), small topK. No keyword hit means no filter.
//   - COMPARE: one search per detected regulation when at least two are
//     mentioned, so both sides are represented instead of one regulation
//     dominating the ranking; otherwise a single broad search.
//   - CHECKLIST: detected regulation filter, requirement-biased query,
//     results in document order.
//   - EXPLAIN: no filter, broader semantic search.
//
// Empty results are a valid outcome and propagate downstream as-is.
func (p *RetrievalPlanner) Retrieve(
	ctx context.Context,
	query datatypes.Query,
	queryType datatypes.QueryType,
	retryCount int,
) (datatypes.RetrievalResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "RetrievalPlanner.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("plan.query_type", string(queryType)),
		attribute.Int("plan.retry_count", retryCount),
	)

	regulations := datatypes.DetectRegulations(query.Text)
	span.SetAttributes(attribute.StringSlice("plan.regulations", regulations))

	var (
		raw []datatypes.Passage
		err error
	)

	switch {
	case queryType == datatypes.QueryTypeCompare && len(regulations) >= 2 && !dropFilterOnRetry(retryCount):
		raw, err = p.retrievePerRegulation(ctx, query.Text, regulations, retryCount)

	case queryType == datatypes.QueryTypeCompare:
		raw, err = p.searcher.Search(ctx, query.Text, retrieval.Filters{},
			widenTopK(compareBroadTopK, retryCount))

	case queryType == datatypes.QueryTypeChecklist:
		f := retrieval.Filters{OrderByPage: true}
		if len(regulations) > 0 && !dropFilterOnRetry(retryCount) {
			f.Regulation = regulations[0]
		}
		raw, err = p.searcher.Search(ctx, query.Text+checklistBias, f,
			widenTopK(checklistTopK, retryCount))

	case queryType == datatypes.QueryTypeExplain:
		raw, err = p.searcher.Search(ctx, query.Text, retrieval.Filters{},
			widenTopK(explainTopK, retryCount))

	default: // LOOKUP
		f := retrieval.Filters{}
		if len(regulations) > 0 && !dropFilterOnRetry(retryCount) {
			f.Regulation = regulations[0]
		}
		raw, err = p.searcher.Search(ctx, query.Text, f, widenTopK(lookupTopK, retryCount))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	result := datatypes.DedupPassages(raw)
	span.SetAttributes(attribute.Int("plan.passages", len(result)))
	slog.Debug("Retrieval pass complete",
		"query_type", queryType,
		"retry_count", retryCount,
		"passages", len(result),
	)
	return result, nil
}

// retrievePerRegulation runs one filtered search per regulation and
// concatenates the results in detection order. A failure of any single
// search fails the whole pass: a one-sided COMPARE answer is worse than a
// retried one.
func (p *RetrievalPlanner) retrievePerRegulation(
	ctx context.Context,
	queryText string,
	regulations []string,
	retryCount int,
) ([]datatypes.Passage, error) {
	topK := widenTopK(comparePerRegTopK, retryCount)
	var all []datatypes.Passage
	for _, reg := range regulations {
		f := retrieval.Filters{Regulation: reg}
		passages, err := p.searcher.Search(ctx, queryText, f, topK)
		if err != nil {
			return nil, err
		}
		all = append(all, passages...)
	}
	return all, nil
}
