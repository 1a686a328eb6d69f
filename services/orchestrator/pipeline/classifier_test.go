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

func TestClassify_ReturnsParsedLabel(t *testing.T) {
	mock := &MockLLMClient{GenerateResponse: "COMPARE"}
	c := NewQueryClassifier(mock)

	got := c.Classify(context.Background(), datatypes.Query{
		Text: "How do NIST AI RMF and SR 11-7 differ?",
	})

	assert.Equal(t, datatypes.QueryTypeCompare, got)
	assert.Equal(t, 1, mock.CallCount())
}

func TestClassify_AcceptsNoisyLabel(t *testing.T) {
	mock := &MockLLMClient{GenerateResponse: "The category is CHECKLIST.\n"}
	c := NewQueryClassifier(mock)

	got := c.Classify(context.Background(), datatypes.Query{Text: "what do I need?"})
	assert.Equal(t, datatypes.QueryTypeChecklist, got)
}

func TestClassify_FallsBackOnGarbage(t *testing.T) {
	mock := &MockLLMClient{GenerateResponse: "I'm not sure how to categorize this."}
	c := NewQueryClassifier(mock)

	got := c.Classify(context.Background(), datatypes.Query{Text: "anything"})
	assert.Equal(t, datatypes.QueryTypeLookup, got)
}

func TestClassify_FallsBackOnGenerateError(t *testing.T) {
	mock := &MockLLMClient{GenerateError: errors.New("backend down")}
	c := NewQueryClassifier(mock)

	got := c.Classify(context.Background(), datatypes.Query{Text: "anything"})
	assert.Equal(t, datatypes.QueryTypeLookup, got)
}

func TestClassify_PromptContainsQuestion(t *testing.T) {
	mock := &MockLLMClient{GenerateResponse: "LOOKUP"}
	c := NewQueryClassifier(mock)

	question := "What does SR 11-7 say about documentation?"
	c.Classify(context.Background(), datatypes.Query{Text: question})

	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0], question)
}
