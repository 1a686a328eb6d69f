// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type. The target type T must have json tags matching the response shape.
//
// Weaviate's client returns Data as map[string]models.JSONObject; the only
// safe way to a typed struct is a marshal round-trip, which this wraps.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// RegulationChunkQueryResponse is the typed shape of a Get query against the
// RegulationChunk class.
type RegulationChunkQueryResponse struct {
	Get struct {
		RegulationChunk []RegulationChunkResult `json:"RegulationChunk"`
	} `json:"Get"`
}

// RegulationChunkResult is a single chunk from a query. Certainty is
// requested instead of distance because it is always in [0,1] regardless of
// the index's distance metric.
type RegulationChunkResult struct {
	Content    string `json:"content"`
	Regulation string `json:"regulation"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// ToPassage converts a query result into the pipeline's Passage type.
func (r RegulationChunkResult) ToPassage() Passage {
	return Passage{
		Regulation: r.Regulation,
		Source:     r.Source,
		Page:       r.Page,
		Content:    r.Content,
		Score:      r.Additional.Certainty,
	}
}
