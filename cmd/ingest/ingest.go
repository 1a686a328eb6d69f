// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
	"gopkg.in/yaml.v3"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/retrieval"
)

var (
	chunkSize    = 800
	chunkOverlap = 200

	regulationSeparators = []string{"\n\n", "\n", ". ", " ", ""}
)

// loadRegulationMap reads the filename -> regulation name mapping.
func loadRegulationMap(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading regulation map: %w", err)
	}
	m := map[string]string{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing regulation map: %w", err)
	}
	return m, nil
}

// regulationFor resolves a file's regulation name: explicit mapping first,
// filename keyword detection second, the bare filename as a last resort.
func regulationFor(filename string, m map[string]string) string {
	if name, ok := m[filename]; ok {
		return name
	}
	if name := datatypes.DetectRegulationFromFilename(filename); name != "Unknown" {
		return name
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// splitPages treats form feed as the page delimiter. A file without form
// feeds is a single page.
func splitPages(content string) []string {
	return strings.Split(content, "\f")
}

func newIngestWeaviateClient() (*weaviate.Client, error) {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" {
		weaviateURL = "http://localhost:8080"
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil {
		return nil, err
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
}

func runIngest(ctx context.Context, dir, mapPath string) error {
	regMap, err := loadRegulationMap(mapPath)
	if err != nil {
		return err
	}

	client, err := newIngestWeaviateClient()
	if err != nil {
		return fmt.Errorf("creating Weaviate client: %w", err)
	}
	if err := datatypes.EnsureWeaviateSchema(ctx, client); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	embedder, err := retrieval.NewOllamaEmbedder()
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(regulationSeparators),
	)

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".md" {
			slog.Info("Skipping unsupported file", "file", entry.Name())
			continue
		}

		count, err := ingestFile(ctx, client, embedder, splitter,
			filepath.Join(dir, entry.Name()), regulationFor(entry.Name(), regMap))
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", entry.Name(), err)
		}
		total += count
	}

	slog.Info("Ingestion complete", "chunks_indexed", total)
	return nil
}

// ingestFile chunks one regulation, embeds each chunk, and batch-loads the
// objects. Object IDs are derived from a content hash so re-running the
// ingester updates in place instead of duplicating.
func ingestFile(
	ctx context.Context,
	client *weaviate.Client,
	embedder retrieval.EmbeddingProvider,
	splitter textsplitter.TextSplitter,
	path string,
	regulation string,
) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	source := filepath.Base(path)
	slog.Info("Ingesting regulation", "file", source, "regulation", regulation)

	var objects []*models.Object
	for pageIdx, page := range splitPages(string(content)) {
		pageNum := pageIdx + 1
		chunks, err := splitter.SplitText(page)
		if err != nil {
			return 0, fmt.Errorf("splitting page %d: %w", pageNum, err)
		}
		for _, chunk := range chunks {
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}
			vector, err := embedder.Embed(ctx, chunk)
			if err != nil {
				return 0, fmt.Errorf("embedding chunk on page %d: %w", pageNum, err)
			}

			hash := sha256.Sum256([]byte(regulation + chunk))
			docUUID, _ := uuid.FromBytes(hash[:16])

			objects = append(objects, &models.Object{
				Class:  datatypes.RegulationChunkClass,
				ID:     strfmt.UUID(docUUID.String()),
				Vector: vector,
				Properties: map[string]interface{}{
					"content":     chunk,
					"regulation":  regulation,
					"source":      source,
					"page":        pageNum,
					"ingested_at": time.Now().UnixMilli(),
				},
			})
		}
	}
	if len(objects) == 0 {
		slog.Warn("No chunks produced", "file", source)
		return 0, nil
	}

	resp, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch import failed: %w", err)
	}

	indexed := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			indexed++
		} else if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "file", source, "error", errItem.Message)
			}
		}
	}
	slog.Info("Indexed regulation", "file", source, "chunks", indexed)
	return indexed, nil
}
