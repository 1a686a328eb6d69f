// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"sync"

	"github.com/regatlas/regatlas/services/llm"
	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/retrieval"
)

// MockLLMClient implements llm.LLMClient for pipeline testing. Responses
// are scripted per call through GenerateFunc; the default returns
// GenerateResponse every time.
type MockLLMClient struct {
	mu               sync.Mutex
	GenerateResponse string
	GenerateError    error
	GenerateFunc     func(call int, prompt string) (string, error)
	Calls            []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.mu.Lock()
	call := len(m.Calls)
	m.Calls = append(m.Calls, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(call, prompt)
	}
	return m.GenerateResponse, m.GenerateError
}

func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// searchCall records one Search invocation for assertion.
type searchCall struct {
	Query   string
	Filters retrieval.Filters
	TopK    int
}

// StubSearcher implements retrieval.PassageSearcher with scripted results.
type StubSearcher struct {
	mu       sync.Mutex
	Results  []datatypes.Passage
	Err      error
	SearchFn func(call searchCall) ([]datatypes.Passage, error)
	Calls    []searchCall
}

func (s *StubSearcher) Search(ctx context.Context, query string, f retrieval.Filters, topK int) ([]datatypes.Passage, error) {
	call := searchCall{Query: query, Filters: f, TopK: topK}
	s.mu.Lock()
	s.Calls = append(s.Calls, call)
	s.mu.Unlock()

	if s.SearchFn != nil {
		return s.SearchFn(call)
	}
	return s.Results, s.Err
}

// stubMatcher implements ClaimMatcher with a fixed verdict function.
type stubMatcher struct {
	fn  func(claims []string) []ClaimMatch
	err error
}

func (m *stubMatcher) MatchClaims(ctx context.Context, claims []string, passages datatypes.RetrievalResult) ([]ClaimMatch, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.fn != nil {
		return m.fn(claims), nil
	}
	return make([]ClaimMatch, len(claims)), nil
}

// somePassages is a small retrieval fixture shared across tests.
func somePassages() datatypes.RetrievalResult {
	return datatypes.RetrievalResult{
		{
			Regulation: "SR 11-7",
			Source:     "sr1107.txt",
			Page:       12,
			Content:    "Banks should conduct model validation including effective challenge of model assumptions and outcomes analysis.",
			Score:      0.91,
		},
		{
			Regulation: "NIST AI RMF",
			Source:     "nist_ai_rmf.txt",
			Page:       4,
			Content:    "Organizations should establish risk management processes for AI systems across the lifecycle.",
			Score:      0.84,
		},
	}
}
