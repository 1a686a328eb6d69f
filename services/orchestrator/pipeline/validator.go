// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
)

// minClaimLength filters out fragments too short to carry a verifiable
// statement ("Yes.", "See above.").
const minClaimLength = 20

// listMarkerPattern strips leading bullet and numbered-list markers before
// a line is treated as a claim.
var listMarkerPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// sentenceEndPattern splits prose into sentences on terminal punctuation
// followed by whitespace. Good enough for generated answers; we do not need
// a full segmenter here.
var sentenceEndPattern = regexp.MustCompile(`([.!?])\s+`)

// ComplianceValidator decomposes a draft answer into claims and verifies
// each against the retrieved passages through a ClaimMatcher. Claim
// extraction is deterministic so that validating the same draft against the
// same passages always yields the same confidence.
type ComplianceValidator struct {
	matcher ClaimMatcher
}

// NewComplianceValidator creates a validator using the given matcher.
func NewComplianceValidator(matcher ClaimMatcher) *ComplianceValidator {
	return &ComplianceValidator{matcher: matcher}
}

// ExtractClaims splits an answer into individually verifiable statements.
// Each non-empty line is stripped of list markers, then split on sentence
// boundaries. Fragments shorter than minClaimLength are dropped.
func ExtractClaims(answer string) []string {
	var claims []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(listMarkerPattern.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		// Put a marker after each sentence end, then cut on it.
		marked := sentenceEndPattern.ReplaceAllString(line, "$1\x1f")
		for _, sentence := range strings.Split(marked, "\x1f") {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) >= minClaimLength {
				claims = append(claims, sentence)
			}
		}
	}
	return claims
}

// Validate verifies the draft answer against the pass's retrieved passages.
//
// # Description
//
// Claims are extracted deterministically, checked for fabricated citations
// (a citation naming a regulation and page absent from the retrieval set is
// unsupported without consulting the matcher), and the remainder is handed
// to the ClaimMatcher in one batch. Confidence is the fraction of claims
// verified, clamped to [0, 1].
//
// # Outputs
//
//   - *datatypes.ComplianceResult: never nil on success. A draft with no
//     verifiable claims scores 0.0 so the pipeline widens retrieval rather
//     than shipping an unverified answer.
//   - error: matcher failure. The caller wraps it in a ValidationError.
func (v *ComplianceValidator) Validate(
	ctx context.Context,
	draft *datatypes.DraftAnswer,
	passages datatypes.RetrievalResult,
) (*datatypes.ComplianceResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "validator.Validate")
	defer span.End()

	claims := ExtractClaims(draft.Text)
	span.SetAttributes(attribute.Int("validate.claim_count", len(claims)))

	if len(claims) == 0 {
		slog.WarnContext(ctx, "draft contained no verifiable claims")
		return &datatypes.ComplianceResult{
			Confidence: 0.0,
			Summary:    "Answer contained no verifiable claims.",
		}, nil
	}

	// Fabricated citations are settled before the matcher runs. A claim
	// citing a source the pipeline never retrieved cannot be supported,
	// whatever its textual overlap with the passages.
	fabricated := make([]bool, len(claims))
	for i, claim := range claims {
		for _, cit := range datatypes.ParseCitations(claim) {
			if !passages.Contains(cit) {
				fabricated[i] = true
				break
			}
		}
	}

	toMatch := make([]string, 0, len(claims))
	matchIdx := make([]int, 0, len(claims))
	for i, claim := range claims {
		if !fabricated[i] {
			toMatch = append(toMatch, claim)
			matchIdx = append(matchIdx, i)
		}
	}

	matches := make([]ClaimMatch, len(claims))
	if len(toMatch) > 0 {
		batch, err := v.matcher.MatchClaims(ctx, toMatch, passages)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "claim matching failed")
			return nil, err
		}
		if len(batch) != len(toMatch) {
			err := fmt.Errorf("matcher returned %d results for %d claims", len(batch), len(toMatch))
			span.RecordError(err)
			span.SetStatus(codes.Error, "claim matching failed")
			return nil, err
		}
		for j, m := range batch {
			matches[matchIdx[j]] = m
		}
	}

	result := &datatypes.ComplianceResult{}
	for i, claim := range claims {
		c := datatypes.Claim{Text: claim, Source: matches[i].Source}
		if !fabricated[i] && matches[i].Supported {
			c.Status = datatypes.ClaimSupported
			result.Verified = append(result.Verified, c)
		} else {
			c.Status = datatypes.ClaimUnsupported
			c.Source = ""
			result.Unsupported = append(result.Unsupported, c)
		}
	}

	result.Confidence = float64(len(result.Verified)) / float64(len(claims))
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	result.Summary = fmt.Sprintf("%d of %d claims verified against retrieved sources.",
		len(result.Verified), len(claims))

	span.SetAttributes(attribute.Float64("validate.confidence", result.Confidence))
	return result, nil
}
