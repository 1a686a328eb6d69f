// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regatlas/regatlas/services/llm"
	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/pipeline"
	"github.com/regatlas/regatlas/services/orchestrator/retrieval"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// MockLLMClient implements llm.LLMClient for handler testing. The first call
// answers classification; later calls answer synthesis.
type MockLLMClient struct {
	Answer        string
	SynthesisErr  error
	generateCalls int
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.generateCalls++
	if m.generateCalls == 1 {
		return "LOOKUP", nil
	}
	if m.SynthesisErr != nil {
		return "", m.SynthesisErr
	}
	return m.Answer, nil
}

// stubSearcher implements retrieval.PassageSearcher.
type stubSearcher struct {
	results []datatypes.Passage
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, f retrieval.Filters, topK int) ([]datatypes.Passage, error) {
	return s.results, s.err
}

func testPassages() []datatypes.Passage {
	return []datatypes.Passage{
		{
			Regulation: "SR 11-7",
			Source:     "sr1107.txt",
			Page:       12,
			Content:    "Banks should conduct model validation including effective challenge.",
			Score:      0.9,
		},
	}
}

const handlerTestAnswer = "Banks should conduct model validation including " +
	"effective challenge [Source: SR 11-7, Page 12]."

func newAskRouter(llmClient llm.LLMClient, searcher retrieval.PassageSearcher) *gin.Engine {
	controller := pipeline.NewController(
		pipeline.NewQueryClassifier(llmClient),
		pipeline.NewRetrievalPlanner(searcher),
		pipeline.NewAnswerSynthesizer(llmClient),
		pipeline.NewComplianceValidator(pipeline.NewLexicalClaimMatcher()),
		pipeline.DefaultStageTimeouts(),
		nil,
	)
	router := gin.New()
	router.POST("/api/ask", HandleAsk(controller))
	return router
}

func postAsk(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/ask", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HandleAsk Tests
// =============================================================================

func TestHandleAsk_Success(t *testing.T) {
	router := newAskRouter(
		&MockLLMClient{Answer: handlerTestAnswer},
		&stubSearcher{results: testPassages()},
	)

	w := postAsk(router, `{"question": "What does SR 11-7 require?"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, handlerTestAnswer, resp.Answer)
	assert.Equal(t, datatypes.QueryTypeLookup, resp.QueryType)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
	assert.NotNil(t, resp.Sources)
}

func TestHandleAsk_InvalidJSON(t *testing.T) {
	router := newAskRouter(&MockLLMClient{Answer: handlerTestAnswer}, &stubSearcher{})

	w := postAsk(router, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	router := newAskRouter(&MockLLMClient{Answer: handlerTestAnswer}, &stubSearcher{})

	w := postAsk(router, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAsk_BlankQuestion(t *testing.T) {
	router := newAskRouter(&MockLLMClient{Answer: handlerTestAnswer}, &stubSearcher{})

	w := postAsk(router, `{"question": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAsk_OversizedQuestion(t *testing.T) {
	router := newAskRouter(&MockLLMClient{Answer: handlerTestAnswer}, &stubSearcher{})

	body, _ := json.Marshal(map[string]string{
		"question": strings.Repeat("a", datatypes.MaxQuestionBytes+1),
	})
	w := postAsk(router, string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAsk_SearchErrorReturns503(t *testing.T) {
	router := newAskRouter(
		&MockLLMClient{Answer: handlerTestAnswer},
		&stubSearcher{err: &retrieval.SearchError{Op: "near_vector", Cause: errors.New("refused")}},
	)

	w := postAsk(router, `{"question": "What does SR 11-7 require?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "retrieval")
}

func TestHandleAsk_SynthesisErrorReturns500(t *testing.T) {
	router := newAskRouter(
		&MockLLMClient{SynthesisErr: errors.New("model overloaded")},
		&stubSearcher{results: testPassages()},
	)

	w := postAsk(router, `{"question": "What does SR 11-7 require?"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleAsk_LowConfidenceIsStill200(t *testing.T) {
	// An answer with no lexical overlap against the passages validates at
	// zero confidence, which is reported, not treated as a failure.
	router := newAskRouter(
		&MockLLMClient{Answer: "Penguins migrate across the Antarctic shelf every winter."},
		&stubSearcher{results: testPassages()},
	)

	w := postAsk(router, `{"question": "What does SR 11-7 require?"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Less(t, resp.Confidence, pipeline.ConfidenceThreshold)
	require.NotNil(t, resp.Verification)
	assert.NotEmpty(t, resp.Verification.Claims)
}
