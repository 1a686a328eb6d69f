// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaEmbedder_RequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	_, err := NewOllamaEmbedder()
	assert.Error(t, err)
}

func TestNewOllamaEmbedder_DefaultsModel(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
	t.Setenv("EMBEDDING_MODEL_NAME", "")

	e, err := NewOllamaEmbedder()
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", e.model)
}

func TestEmbed_SendsModelAndPrompt(t *testing.T) {
	var got ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("EMBEDDING_MODEL_NAME", "nomic-embed-text")
	e, err := NewOllamaEmbedder()
	require.NoError(t, err)

	vector, err := e.Embed(context.Background(), "model risk management")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, "model risk management", got.Prompt)
}

func TestEmbed_NonOKStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	e, err := NewOllamaEmbedder()
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEmbed_EmptyVectorIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	e, err := NewOllamaEmbedder()
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}
