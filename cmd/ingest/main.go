// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command ingest loads regulation documents into the Weaviate index.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	ingestDir     string
	regulationMap string
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest regulation documents into the RegAtlas index",
	Long: `Reads regulation text files from a directory, chunks them, embeds each
chunk, and batch-loads the result into Weaviate.

Documents are plain text or markdown, one file per regulation, with pages
separated by form feed characters. Regulation names come from a YAML map
(filename -> regulation name) or, absent a mapping, from keyword detection
on the filename.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), ingestDir, regulationMap)
	},
}

func init() {
	rootCmd.Flags().StringVar(&ingestDir, "dir", "./regulations",
		"Directory containing regulation text files")
	rootCmd.Flags().StringVar(&regulationMap, "map", "",
		"Optional YAML file mapping filenames to regulation names")
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
