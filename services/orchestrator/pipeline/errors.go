// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "fmt"

// SynthesisError is returned when the generation capability fails during
// answer synthesis after the single stage-level retry. It is distinct from
// the confidence-gated retry loop: a synthesis failure is an infrastructure
// problem, not a quality problem.
type SynthesisError struct {
	Cause error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("answer synthesis failed: %v", e.Cause)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *SynthesisError) Unwrap() error { return e.Cause }

// IsSynthesisError checks if an error is a *SynthesisError.
func IsSynthesisError(err error) bool {
	_, ok := err.(*SynthesisError)
	return ok
}

// ValidationError is returned when the compliance checker itself fails
// (generation error or unparseable verifier output). It is always fatal for
// the request: absorbing it into a default confidence would silently
// misrepresent reliability.
type ValidationError struct {
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("compliance validation failed: %v", e.Cause)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *ValidationError) Unwrap() error { return e.Cause }

// IsValidationError checks if an error is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}
