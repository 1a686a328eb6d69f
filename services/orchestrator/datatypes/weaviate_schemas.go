// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// RegulationChunkClass is the Weaviate class holding the ingested corpus.
// Every chunk carries the regulation name and page it came from; retrieval
// filters and citations both key off those two properties.
const RegulationChunkClass = "RegulationChunk"

// GetRegulationChunkSchema returns the class definition for the corpus.
// Vectors are supplied at import time by the ingest CLI (Vectorizer "none"),
// so the orchestrator and the index never need a vectorizer module.
func GetRegulationChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       RegulationChunkClass,
		Description: "A chunk of regulatory text with its regulation and page of origin.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text.",
				Tokenization: "word",
			},
			{
				Name:            "regulation",
				DataType:        []string{"text"},
				Description:     "Regulation the chunk belongs to (e.g., 'SR 11-7').",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Original corpus filename.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "page",
				DataType:        []string{"int"},
				Description:     "Page number within the source document.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the chunk was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates the RegulationChunk class if it does not
// exist. Called by both the orchestrator at startup and the ingest CLI.
func EnsureWeaviateSchema(ctx context.Context, client *weaviate.Client) error {
	class := GetRegulationChunkSchema()
	slog.Info("Checking schema", "class", class.Class)

	// If the class is missing the getter returns an error; create it then.
	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}
