// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "strings"

// KnownRegulations lists every regulation the corpus is tagged with. Order
// matters: when a question mentions several, DetectRegulations returns them
// in this order, and the planner's LOOKUP strategy takes the first.
var KnownRegulations = []string{
	"SR 11-7",
	"NIST AI RMF",
	"ISO 42001",
	"NAIC Model Bulletin",
	"Colorado SB21-169",
}

// regulationKeywords maps each regulation to the lowercase spellings it
// shows up under in user questions and filenames. When a new regulation is
// ingested, add its aliases here so detection and filtering work.
var regulationKeywords = map[string][]string{
	"SR 11-7":             {"sr 11-7", "sr11-7", "sr1107", "sr 1107"},
	"NIST AI RMF":         {"nist", "ai rmf", "ai 100-1", "ai100"},
	"ISO 42001":           {"iso 42001", "iso42001", "iso_42001"},
	"NAIC Model Bulletin": {"naic", "model bulletin"},
	"Colorado SB21-169":   {"colorado", "sb21-169", "sb 21-169", "sb21169"},
}

// DetectRegulations finds the regulations a question mentions by keyword
// matching. Returns an empty slice when none match; that is a normal outcome
// and means the planner searches without a regulation filter.
func DetectRegulations(question string) []string {
	lower := strings.ToLower(question)
	var found []string
	for _, regulation := range KnownRegulations {
		for _, kw := range regulationKeywords[regulation] {
			if strings.Contains(lower, kw) {
				found = append(found, regulation)
				break
			}
		}
	}
	return found
}

// DetectRegulationFromFilename maps a corpus filename to its regulation
// name, or "Unknown" when nothing matches. Used by the ingest CLI when no
// explicit mapping is configured.
func DetectRegulationFromFilename(filename string) string {
	lower := strings.ToLower(filename)
	for _, regulation := range KnownRegulations {
		for _, kw := range regulationKeywords[regulation] {
			if strings.Contains(lower, strings.ReplaceAll(kw, " ", "")) ||
				strings.Contains(lower, kw) {
				return regulation
			}
		}
	}
	return "Unknown"
}
