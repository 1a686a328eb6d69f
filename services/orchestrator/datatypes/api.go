// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Request and response types for the public /api endpoints.
package datatypes

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxQuestionBytes caps the size of a question. Checked as byte length
	// (not rune count) so oversized payloads are rejected before any model
	// call is made.
	MaxQuestionBytes = 8 * 1024
)

// askValidate is the validator instance for API datatypes.
var askValidate *validator.Validate

func init() {
	askValidate = validator.New()
	_ = askValidate.RegisterValidation("maxbytes", validateQuestionBytes)
}

func validateQuestionBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQuestionBytes
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question" validate:"required,maxbytes"`
}

// Validate checks the request against the declared constraints. A blank or
// whitespace-only question is rejected here, before the pipeline starts.
func (r *AskRequest) Validate() error {
	if err := askValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid ask request: %w", err)
	}
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("invalid ask request: question is blank")
	}
	return nil
}

// AskResponse is the body of a successful POST /api/ask. The shape mirrors
// FinalResponse; confidence is always present and in [0,1] even when the
// pipeline exhausted its retries below threshold.
type AskResponse struct {
	Answer       string              `json:"answer"`
	Sources      []SourceDocument    `json:"sources"`
	Confidence   float64             `json:"confidence"`
	QueryType    QueryType           `json:"query_type"`
	Verification *VerificationDetail `json:"verification,omitempty"`
}

// NewAskResponse converts a FinalResponse into the wire shape. Sources is
// never null in JSON, even when retrieval came back empty.
func NewAskResponse(final *FinalResponse) *AskResponse {
	sources := final.Sources
	if sources == nil {
		sources = []SourceDocument{}
	}
	return &AskResponse{
		Answer:       final.Answer,
		Sources:      sources,
		Confidence:   final.Confidence,
		QueryType:    final.QueryType,
		Verification: final.Verification,
	}
}
