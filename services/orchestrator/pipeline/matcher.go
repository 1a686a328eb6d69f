// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/regatlas/regatlas/services/llm"
	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
)

// ClaimMatch is one claim's verification outcome from a matcher.
type ClaimMatch struct {
	Supported bool
	// Source names the supporting passage ("SR 11-7, Page 12") when
	// Supported is true.
	Source string
}

// ClaimMatcher checks extracted claims against retrieved passages. The
// matching strategy sits behind this interface so lexical and model-based
// matching are swappable and independently testable.
//
// MatchClaims must return exactly one ClaimMatch per input claim, in order.
type ClaimMatcher interface {
	MatchClaims(ctx context.Context, claims []string, passages datatypes.RetrievalResult) ([]ClaimMatch, error)
}

// =============================================================================
// Lexical matcher
// =============================================================================

// DefaultLexicalThreshold is the minimum token-overlap ratio for a claim to
// count as supported by a passage.
const DefaultLexicalThreshold = 0.35

// Compile-time interface implementation checks.
var (
	_ ClaimMatcher = (*LexicalClaimMatcher)(nil)
	_ ClaimMatcher = (*LLMClaimMatcher)(nil)
)

// LexicalClaimMatcher verifies claims by token overlap: the fraction of a
// claim's content tokens that appear in a passage, scored against a fixed
// threshold. Fully deterministic and needing no model call, it is the
// matcher used in tests and the no-LLM deployment option.
type LexicalClaimMatcher struct {
	Threshold float64
}

// NewLexicalClaimMatcher creates a matcher with the default threshold.
func NewLexicalClaimMatcher() *LexicalClaimMatcher {
	return &LexicalClaimMatcher{Threshold: DefaultLexicalThreshold}
}

// stopwords are dropped before overlap scoring; they match everything and
// say nothing.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "with": true,
}

// tokenize lowercases, strips punctuation, and drops stopwords.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, strings.ToLower(text))

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// overlapScore is the fraction of claim tokens present in the passage.
func overlapScore(claimTokens []string, passageTokens map[string]bool) float64 {
	if len(claimTokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range claimTokens {
		if passageTokens[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(claimTokens))
}

// MatchClaims implements ClaimMatcher.
func (m *LexicalClaimMatcher) MatchClaims(
	_ context.Context,
	claims []string,
	passages datatypes.RetrievalResult,
) ([]ClaimMatch, error) {
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultLexicalThreshold
	}

	// Pre-tokenize passages once; claims are scored against each.
	passageTokens := make([]map[string]bool, len(passages))
	for i, p := range passages {
		set := make(map[string]bool)
		for _, tok := range tokenize(p.Content) {
			set[tok] = true
		}
		passageTokens[i] = set
	}

	matches := make([]ClaimMatch, len(claims))
	for i, claim := range claims {
		claimTokens := tokenize(claim)
		bestScore := 0.0
		bestIdx := -1
		for j := range passages {
			if score := overlapScore(claimTokens, passageTokens[j]); score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}
		if bestScore >= threshold && bestIdx >= 0 {
			matches[i] = ClaimMatch{
				Supported: true,
				Source:    fmt.Sprintf("%s, Page %d", passages[bestIdx].Regulation, passages[bestIdx].Page),
			}
		}
	}
	return matches, nil
}

// =============================================================================
// LLM matcher
// =============================================================================

// verificationPrompt is the third generation contract: strict JSON, one
// verdict per numbered claim. Partial support is deliberately mapped to
// UNSUPPORTED: in compliance guidance a half-backed statement is not a
// verified one.
const verificationPrompt = `You are a fact-checker for regulatory compliance content.

Your job: Compare each CLAIM against the SOURCE DOCUMENTS and decide whether it is supported.

For each claim, decide:
- SUPPORTED: The claim is directly backed by text in the source documents.
- UNSUPPORTED: No source document fully supports this claim. Claims that are
  only partially or loosely related to source content are UNSUPPORTED.

SOURCE DOCUMENTS:
%s

CLAIMS:
%s

Respond with valid JSON only (no markdown, no extra text):
{
  "claims": [
    {"index": 0, "status": "SUPPORTED", "source": "Regulation Name, Page X"},
    {"index": 1, "status": "UNSUPPORTED", "source": null}
  ]
}

Return exactly one entry per claim, in order, using the claim's index.`

// LLMClaimMatcher verifies all claims of a pass with a single generation
// call. Unparseable verifier output is an error; the caller turns it into a
// ValidationError rather than guessing a confidence.
type LLMClaimMatcher struct {
	llmClient llm.LLMClient
}

// NewLLMClaimMatcher creates a matcher backed by the given client.
func NewLLMClaimMatcher(llmClient llm.LLMClient) *LLMClaimMatcher {
	return &LLMClaimMatcher{llmClient: llmClient}
}

type verifierVerdict struct {
	Index  int     `json:"index"`
	Status string  `json:"status"`
	Source *string `json:"source"`
}

type verifierResponse struct {
	Claims []verifierVerdict `json:"claims"`
}

// stripCodeFence removes a surrounding markdown code fence if present.
// Models wrap JSON in fences often enough that rejecting it outright would
// fail far too many otherwise valid verdicts.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 3 {
		return trimmed
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

// MatchClaims implements ClaimMatcher.
func (m *LLMClaimMatcher) MatchClaims(
	ctx context.Context,
	claims []string,
	passages datatypes.RetrievalResult,
) ([]ClaimMatch, error) {
	if len(claims) == 0 {
		return nil, nil
	}

	var numbered strings.Builder
	for i, claim := range claims {
		fmt.Fprintf(&numbered, "%d. %s\n", i, claim)
	}

	prompt := fmt.Sprintf(verificationPrompt, FormatPassages(passages), numbered.String())

	temp := float32(0.0)
	raw, err := m.llmClient.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("verification generation failed: %w", err)
	}

	var parsed verifierResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("verifier returned unparseable output: %w", err)
	}
	if len(parsed.Claims) != len(claims) {
		return nil, fmt.Errorf("verifier returned %d verdicts for %d claims",
			len(parsed.Claims), len(claims))
	}

	matches := make([]ClaimMatch, len(claims))
	for _, verdict := range parsed.Claims {
		if verdict.Index < 0 || verdict.Index >= len(claims) {
			return nil, fmt.Errorf("verifier returned out-of-range claim index %d", verdict.Index)
		}
		if strings.EqualFold(verdict.Status, "SUPPORTED") {
			source := ""
			if verdict.Source != nil {
				source = *verdict.Source
			}
			matches[verdict.Index] = ClaimMatch{Supported: true, Source: source}
		}
	}
	return matches, nil
}
