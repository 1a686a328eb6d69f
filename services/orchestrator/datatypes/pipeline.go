// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared data model for the orchestrator:
// query types, retrieved passages, draft answers, claims, and the wire
// types of the public API.
//
// Everything here is a plain value. Mutation and sequencing live in the
// pipeline package; Weaviate access lives in the retrieval package.
package datatypes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Query classification
// =============================================================================

// QueryType is the classification of an incoming question. It controls the
// retrieval strategy and the synthesis style.
type QueryType string

const (
	// QueryTypeLookup is a request for a specific fact from one regulation.
	QueryTypeLookup QueryType = "LOOKUP"
	// QueryTypeCompare is a request to compare across regulations.
	QueryTypeCompare QueryType = "COMPARE"
	// QueryTypeChecklist is a request for requirements, steps, or action items.
	QueryTypeChecklist QueryType = "CHECKLIST"
	// QueryTypeExplain is a request to explain a concept or term.
	QueryTypeExplain QueryType = "EXPLAIN"
)

// AllQueryTypes lists every valid QueryType. The order matters for prompt
// construction: it is the order the labels are presented to the model.
var AllQueryTypes = []QueryType{
	QueryTypeLookup,
	QueryTypeCompare,
	QueryTypeChecklist,
	QueryTypeExplain,
}

// ParseQueryType maps raw model output to a QueryType. It trims whitespace
// and upper-cases before matching, and accepts output where the label is
// embedded in surrounding text ("The answer is LOOKUP.").
//
// Returns false when no label (or more than one label) can be resolved, in
// which case the classifier applies its documented fallback.
func ParseQueryType(raw string) (QueryType, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", false
	}

	for _, qt := range AllQueryTypes {
		if cleaned == string(qt) {
			return qt, true
		}
	}

	// Fall back to substring matching, but reject ambiguous output that
	// mentions more than one label.
	var found []QueryType
	for _, qt := range AllQueryTypes {
		if strings.Contains(cleaned, string(qt)) {
			found = append(found, qt)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}

// Query is one incoming question. It is immutable and lives for exactly one
// request; there is no conversation linkage and nothing is persisted.
type Query struct {
	Text string
}

// =============================================================================
// Retrieval
// =============================================================================

// Passage is one retrieved chunk of regulatory text. Produced only by the
// retrieval capability and never modified afterwards.
type Passage struct {
	Regulation string  `json:"regulation"`
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Key returns the (regulation, page) identity used for deduplication and
// for resolving citations.
func (p Passage) Key() string {
	return fmt.Sprintf("%s|%d", p.Regulation, p.Page)
}

// RetrievalResult is an ordered sequence of passages, deduplicated by
// (regulation, page). It may be empty; an empty result is a valid outcome,
// not an error.
type RetrievalResult []Passage

// DedupPassages removes duplicate (regulation, page) entries, keeping the
// first occurrence so the searcher's ranking is preserved.
func DedupPassages(in []Passage) RetrievalResult {
	seen := make(map[string]bool, len(in))
	out := make(RetrievalResult, 0, len(in))
	for _, p := range in {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		out = append(out, p)
	}
	return out
}

// Contains reports whether the result holds a passage matching the citation.
func (r RetrievalResult) Contains(c Citation) bool {
	for _, p := range r {
		if p.Regulation == c.Regulation && p.Page == c.Page {
			return true
		}
	}
	return false
}

// Regulations returns the distinct regulation names present in the result,
// in first-seen order.
func (r RetrievalResult) Regulations() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range r {
		if !seen[p.Regulation] {
			seen[p.Regulation] = true
			out = append(out, p.Regulation)
		}
	}
	return out
}

// =============================================================================
// Synthesis
// =============================================================================

// Citation is an inline reference in a draft answer, e.g.
// "[Source: SR 11-7, Page 12]". Every citation must resolve to a passage in
// the RetrievalResult that produced the draft; the validator treats anything
// else as fabricated grounding.
type Citation struct {
	Regulation string `json:"regulation"`
	Page       int    `json:"page"`
}

// citationPattern matches the inline citation contract. The synthesis prompt
// asks for "[Source: <regulation>, Page <n>]" but models occasionally echo
// the context-block form with a pipe, so both separators are accepted.
var citationPattern = regexp.MustCompile(`\[Source:\s*([^,|\]]+?)\s*[,|]\s*Page\s*(\d+)\]`)

// ParseCitations extracts all inline citations from answer text. Duplicates
// are collapsed; order of first appearance is preserved.
func ParseCitations(text string) []Citation {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[Citation]bool, len(matches))
	var out []Citation
	for _, m := range matches {
		page, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		c := Citation{Regulation: strings.TrimSpace(m[1]), Page: page}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// DraftAnswer is the synthesizer's output for one pass: the generated text
// plus the citations parsed out of it.
type DraftAnswer struct {
	Text      string
	Citations []Citation
}

// =============================================================================
// Validation
// =============================================================================

// ClaimStatus is the verification outcome for a single claim.
type ClaimStatus string

const (
	// ClaimSupported means a retrieved passage backs the claim.
	ClaimSupported ClaimStatus = "SUPPORTED"
	// ClaimUnsupported means no retrieved passage backs the claim. Partial
	// support is deliberately counted here: in compliance guidance a half-
	// backed statement is not a verified one.
	ClaimUnsupported ClaimStatus = "UNSUPPORTED"
)

// Claim is one atomic factual statement extracted from a draft answer.
type Claim struct {
	Text   string      `json:"text"`
	Status ClaimStatus `json:"status"`
	// Source names the supporting passage ("SR 11-7, Page 12") when the
	// claim is supported; empty otherwise.
	Source string `json:"source,omitempty"`
}

// ComplianceResult is the validator's output for one pass.
type ComplianceResult struct {
	// Confidence is verified claims over total claims, clamped to [0,1].
	// Zero extracted claims resolve to 0.0 (nothing was verified), so an
	// answer with no checkable content triggers the widened-retrieval retry
	// rather than sailing through.
	Confidence  float64 `json:"confidence"`
	Verified    []Claim `json:"verified"`
	Unsupported []Claim `json:"unsupported"`
	Summary     string  `json:"summary"`
}

// Claims returns all claims, verified first, preserving extraction order
// within each group.
func (c ComplianceResult) Claims() []Claim {
	out := make([]Claim, 0, len(c.Verified)+len(c.Unsupported))
	out = append(out, c.Verified...)
	out = append(out, c.Unsupported...)
	return out
}

// =============================================================================
// Final response
// =============================================================================

// SourceDocument is one entry in the API response's sources list. Content is
// truncated for readability; the full text stays in the index.
type SourceDocument struct {
	Regulation string `json:"regulation"`
	Page       int    `json:"page"`
	Content    string `json:"content"`
}

// VerificationDetail is the optional verification object in the API
// response: every claim with its status, plus the validator's summary.
type VerificationDetail struct {
	Claims     []Claim `json:"claims"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

// FinalResponse is the pipeline's terminal output. It is always emitted by
// FINALIZE, even when confidence stayed below threshold after every retry;
// low confidence is surfaced, never hidden.
type FinalResponse struct {
	Answer       string
	Sources      []SourceDocument
	Confidence   float64
	QueryType    QueryType
	Verification *VerificationDetail
}
