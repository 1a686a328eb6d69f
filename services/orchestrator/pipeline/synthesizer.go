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
	"strings"

	"github.com/regatlas/regatlas/services/llm"
	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// synthesisSystemPrompt is the second generation contract: answer strictly
// from the supplied sources, with inline citations.
const synthesisSystemPrompt = `You are a regulatory compliance expert specializing in AI and model risk management.

Your task: Answer the user's question using ONLY the provided source documents.

Rules:
1. ONLY use information from the provided sources. Never add external knowledge.
2. Include inline citations in the format [Source: Regulation Name, Page X].
3. If the sources don't contain enough information to fully answer, explicitly state what is missing.
4. Be precise - regulatory guidance requires accuracy.

Style guidance based on question type:
- LOOKUP: Be concise and direct. Get to the point quickly.
- COMPARE: Use a structured format. Compare point by point.
- CHECKLIST: Return a numbered list of requirements or steps.
- EXPLAIN: Provide a clear, thorough explanation. Define key terms.`

const synthesisUserPrompt = `Question type: %s

Source documents:
%s

Question: %s

Provide your answer with inline citations.`

// noPassagesAnswer is emitted, without a generation call, when retrieval
// came back empty. Inventing an answer from nothing would be exactly the
// failure mode the validator exists to catch.
const noPassagesAnswer = "No supporting passages were found in the regulatory corpus for this " +
	"question. I cannot provide a grounded answer. Try rephrasing the question or naming the " +
	"regulation you are asking about."

// AnswerSynthesizer produces a grounded, cited draft answer from retrieved
// passages. One generation call per pass; citations in the output are parsed
// and attached to the draft so the validator can check them against the
// retrieval set.
type AnswerSynthesizer struct {
	llmClient llm.LLMClient
}

// NewAnswerSynthesizer creates a synthesizer backed by the given client.
func NewAnswerSynthesizer(llmClient llm.LLMClient) *AnswerSynthesizer {
	return &AnswerSynthesizer{llmClient: llmClient}
}

// FormatPassages renders retrieved passages into labeled context blocks:
//
//	[Source: SR 11-7 | Page 12]
//	...chunk text...
//
// The label format is what makes citing specific sources easy for the model.
// Shared with the claim matcher, which presents sources the same way.
func FormatPassages(passages datatypes.RetrievalResult) string {
	blocks := make([]string, 0, len(passages))
	for _, p := range passages {
		blocks = append(blocks, fmt.Sprintf("[Source: %s | Page %d]\n%s", p.Regulation, p.Page, p.Content))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// Synthesize generates the draft answer for one pass. With an empty
// RetrievalResult it returns the canned no-passages answer and makes no
// generation call.
func (s *AnswerSynthesizer) Synthesize(
	ctx context.Context,
	query datatypes.Query,
	queryType datatypes.QueryType,
	passages datatypes.RetrievalResult,
) (*datatypes.DraftAnswer, error) {
	ctx, span := pipelineTracer.Start(ctx, "AnswerSynthesizer.Synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("synthesize.query_type", string(queryType)),
		attribute.Int("synthesize.passages", len(passages)),
	)

	if len(passages) == 0 {
		slog.Info("No passages retrieved, returning no-sources answer")
		span.SetAttributes(attribute.Bool("synthesize.empty_retrieval", true))
		return &datatypes.DraftAnswer{Text: noPassagesAnswer}, nil
	}

	prompt := fmt.Sprintf(synthesisUserPrompt, queryType, FormatPassages(passages), query.Text)

	temp := float32(0.0)
	text, err := s.llmClient.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		System:      synthesisSystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, fmt.Errorf("synthesis generation failed: %w", err)
	}

	draft := &datatypes.DraftAnswer{
		Text:      text,
		Citations: datatypes.ParseCitations(text),
	}
	span.SetAttributes(attribute.Int("synthesize.citations", len(draft.Citations)))
	return draft, nil
}
