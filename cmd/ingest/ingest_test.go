// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegulationMap_EmptyPathGivesEmptyMap(t *testing.T) {
	m, err := loadRegulationMap("")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestLoadRegulationMap_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	content := "custom_reg.txt: My Custom Regulation\nsr1107.txt: SR 11-7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := loadRegulationMap(path)
	require.NoError(t, err)
	assert.Equal(t, "My Custom Regulation", m["custom_reg.txt"])
	assert.Equal(t, "SR 11-7", m["sr1107.txt"])
}

func TestLoadRegulationMap_MissingFile(t *testing.T) {
	_, err := loadRegulationMap("/nonexistent/map.yaml")
	assert.Error(t, err)
}

func TestRegulationFor_MapTakesPrecedence(t *testing.T) {
	m := map[string]string{"sr1107.txt": "Overridden Name"}
	assert.Equal(t, "Overridden Name", regulationFor("sr1107.txt", m))
}

func TestRegulationFor_FallsBackToFilenameDetection(t *testing.T) {
	assert.Equal(t, "SR 11-7", regulationFor("sr1107_guidance.txt", nil))
}

func TestRegulationFor_UnknownUsesBareFilename(t *testing.T) {
	assert.Equal(t, "whitepaper", regulationFor("whitepaper.txt", nil))
}

func TestSplitPages_FormFeedDelimited(t *testing.T) {
	pages := splitPages("page one text\fpage two text\fpage three")
	require.Len(t, pages, 3)
	assert.Equal(t, "page one text", pages[0])
}

func TestSplitPages_NoFormFeedIsSinglePage(t *testing.T) {
	pages := splitPages("just one page of text")
	assert.Len(t, pages, 1)
}
