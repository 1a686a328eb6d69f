// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline implements the agent orchestration core: query
// classification, type-specific retrieval planning, grounded answer
// synthesis, claim-level compliance validation, and the confidence-gated
// retry loop that sequences them.
//
// The control flow is an explicit finite-state machine:
//
//	CLASSIFY -> RETRIEVE -> SYNTHESIZE -> VALIDATE -> {RETRIEVE | FINALIZE}
//
// CLASSIFY runs exactly once per request. The RETRIEVE/SYNTHESIZE/VALIDATE
// unit runs one to three times; after VALIDATE the transition function
// re-enters RETRIEVE with widened parameters when confidence is below
// threshold and retries remain, and FINALIZE otherwise. FINALIZE always
// emits a FinalResponse, even when confidence stayed low.
//
// Stages are pure functions of their inputs plus the injected capabilities
// (LLMClient, PassageSearcher); the Controller is the single owner of
// PipelineState mutation. The transition function is a pure function of the
// state value, so the whole machine is testable without any capability.
package pipeline

import "github.com/regatlas/regatlas/services/orchestrator/datatypes"

// State is one node of the orchestration state machine.
type State int

const (
	// StateClassify determines the query type. Entered exactly once.
	StateClassify State = iota
	// StateRetrieve executes the type-specific retrieval strategy.
	StateRetrieve
	// StateSynthesize produces the grounded draft answer.
	StateSynthesize
	// StateValidate checks every claim and computes confidence.
	StateValidate
	// StateFinalize emits the FinalResponse. Terminal.
	StateFinalize
)

// String returns the state's name for logs and span attributes.
func (s State) String() string {
	switch s {
	case StateClassify:
		return "CLASSIFY"
	case StateRetrieve:
		return "RETRIEVE"
	case StateSynthesize:
		return "SYNTHESIZE"
	case StateValidate:
		return "VALIDATE"
	case StateFinalize:
		return "FINALIZE"
	default:
		return "UNKNOWN"
	}
}

const (
	// ConfidenceThreshold gates the retry loop: a pass below this re-enters
	// RETRIEVE with widened parameters while retries remain.
	ConfidenceThreshold = 0.7

	// MaxRetries bounds the retry loop. With two retries the
	// RETRIEVE/SYNTHESIZE/VALIDATE unit runs at most three times.
	MaxRetries = 2
)

// PipelineState is the value threaded through the state machine for one
// request. It is owned exclusively by one in-flight request's Controller and
// is never shared; concurrent requests each get their own.
type PipelineState struct {
	Query      datatypes.Query
	QueryType  datatypes.QueryType
	RetryCount int
	Passages   datatypes.RetrievalResult
	Draft      *datatypes.DraftAnswer
	Compliance *datatypes.ComplianceResult
}

// Next is the transition table. It is a pure function of the current state
// and the pipeline value, with no capability calls, so the machine's shape
// can be verified in isolation.
//
// RetryCount is read, never written, here: the Controller increments it when
// Next sends VALIDATE back to RETRIEVE.
func Next(s State, ps *PipelineState) State {
	switch s {
	case StateClassify:
		return StateRetrieve
	case StateRetrieve:
		return StateSynthesize
	case StateSynthesize:
		return StateValidate
	case StateValidate:
		if ps.Compliance != nil &&
			ps.Compliance.Confidence < ConfidenceThreshold &&
			ps.RetryCount < MaxRetries {
			return StateRetrieve
		}
		return StateFinalize
	default:
		return StateFinalize
	}
}
