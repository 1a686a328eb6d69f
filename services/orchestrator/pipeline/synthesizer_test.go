// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
)

func TestSynthesize_EmptyRetrievalSkipsGeneration(t *testing.T) {
	mock := &MockLLMClient{GenerateResponse: "should never be used"}
	s := NewAnswerSynthesizer(mock)

	draft, err := s.Synthesize(context.Background(),
		datatypes.Query{Text: "anything"}, datatypes.QueryTypeLookup, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, mock.CallCount())
	assert.Equal(t, noPassagesAnswer, draft.Text)
	assert.Empty(t, draft.Citations)
}

func TestSynthesize_ParsesCitationsFromAnswer(t *testing.T) {
	mock := &MockLLMClient{
		GenerateResponse: "Model validation requires effective challenge " +
			"[Source: SR 11-7, Page 12]. Risk processes span the lifecycle " +
			"[Source: NIST AI RMF, Page 4].",
	}
	s := NewAnswerSynthesizer(mock)

	draft, err := s.Synthesize(context.Background(),
		datatypes.Query{Text: "What is required?"}, datatypes.QueryTypeLookup, somePassages())
	require.NoError(t, err)

	require.Len(t, draft.Citations, 2)
	assert.Equal(t, datatypes.Citation{Regulation: "SR 11-7", Page: 12}, draft.Citations[0])
	assert.Equal(t, datatypes.Citation{Regulation: "NIST AI RMF", Page: 4}, draft.Citations[1])
}

func TestSynthesize_PromptContainsPassagesAndQuestion(t *testing.T) {
	mock := &MockLLMClient{GenerateResponse: "answer"}
	s := NewAnswerSynthesizer(mock)

	question := "What does SR 11-7 require for validation?"
	_, err := s.Synthesize(context.Background(),
		datatypes.Query{Text: question}, datatypes.QueryTypeLookup, somePassages())
	require.NoError(t, err)

	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0], question)
	assert.Contains(t, mock.Calls[0], "[Source: SR 11-7 | Page 12]")
	assert.Contains(t, mock.Calls[0], "[Source: NIST AI RMF | Page 4]")
}

func TestSynthesize_GenerateErrorPropagates(t *testing.T) {
	mock := &MockLLMClient{GenerateError: errors.New("model overloaded")}
	s := NewAnswerSynthesizer(mock)

	_, err := s.Synthesize(context.Background(),
		datatypes.Query{Text: "anything"}, datatypes.QueryTypeLookup, somePassages())
	assert.Error(t, err)
}

func TestFormatPassages_BlockLayout(t *testing.T) {
	formatted := FormatPassages(somePassages())
	assert.Contains(t, formatted, "[Source: SR 11-7 | Page 12]")
	assert.Contains(t, formatted, "---")
	assert.Contains(t, formatted, "Banks should conduct model validation")
}
