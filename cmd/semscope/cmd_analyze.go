// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/semscope/services/semindex/retrieve"
)

// newIndexCommand builds the "index" subcommand: full analysis of one
// repository root.
func newIndexCommand() *cobra.Command {
	var rootPath, repoID string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan a source tree and build its graph and embedding index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}

			g, index, err := svc.AnalyzeRepo(cmd.Context(), rootPath, repoID)
			if err != nil {
				return err
			}

			fmt.Printf("Indexed %s\n", repoID)
			fmt.Printf("  Files:      %d\n", len(g.Files))
			fmt.Printf("  Symbols:    %d\n", len(g.Symbols))
			fmt.Printf("  Edges:      %d\n", len(g.Edges))
			fmt.Printf("  Embeddings: %d\n", len(index.Embeddings))
			if len(g.SyntaxFixes) > 0 {
				fmt.Printf("  Repairs:    %d\n", len(g.SyntaxFixes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rootPath, "root", ".", "repository root to scan")
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier")
	cmd.MarkFlagRequired("repo-id")
	return cmd
}

// newSearchCommand builds the "search" subcommand: raw similarity search
// against a previously persisted index.
func newSearchCommand() *cobra.Command {
	var repoID string
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Run a similarity search against a persisted index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			results, err := svc.FindSimilar(cmd.Context(), repoID, query, topK)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%2d. %-30s %-10s %s:%d  (%.3f)\n",
					i+1, r.SymbolName, r.SymbolType, r.File, r.Line, r.Similarity)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier")
	cmd.Flags().IntVar(&topK, "top-k", 10, "number of results")
	cmd.MarkFlagRequired("repo-id")
	return cmd
}

// newContextCommand builds the "context" subcommand: analyze a root and
// print the rendered context bundle.
func newContextCommand() *cobra.Command {
	var rootPath, repoID, query, intent string
	var maxFiles, tokenBudget int
	var fullFiles, keepIndex bool

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Assemble and print a context bundle for a query or intent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if query == "" && intent == "" {
				return fmt.Errorf("either --query or --intent is required")
			}

			svc, _, err := newService()
			if err != nil {
				return err
			}
			if _, _, err := svc.AnalyzeRepo(cmd.Context(), rootPath, repoID); err != nil {
				return err
			}

			opts := retrieve.Options{
				Query:            query,
				MaxFiles:         maxFiles,
				IncludeFullFiles: fullFiles,
				TokenBudget:      tokenBudget,
			}
			var bundle *retrieve.ContextBundle
			if intent != "" {
				bundle, err = svc.RetrieveForIntent(cmd.Context(), repoID, retrieve.Intent(intent), opts)
			} else {
				bundle, err = svc.RetrieveContext(cmd.Context(), repoID, opts)
			}
			if err != nil {
				return err
			}

			fmt.Print(retrieve.FormatForConsumption(bundle))

			// The index is ephemeral for one consuming run unless the caller
			// asks to keep it.
			if !keepIndex {
				return svc.DeleteIndex(repoID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rootPath, "root", ".", "repository root to scan")
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier")
	cmd.Flags().StringVar(&query, "query", "", "free-text query")
	cmd.Flags().StringVar(&intent, "intent", "", "named intent (security, performance, ...)")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "max files in the bundle")
	cmd.Flags().IntVar(&tokenBudget, "token-budget", 0, "token budget for compaction")
	cmd.Flags().BoolVar(&fullFiles, "full-files", false, "include whole files instead of snippets")
	cmd.Flags().BoolVar(&keepIndex, "keep-index", false, "keep the persisted index after the run")
	cmd.MarkFlagRequired("repo-id")
	return cmd
}

// newDeleteCommand builds the "delete" subcommand.
func newDeleteCommand() *cobra.Command {
	var repoID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a persisted embedding index",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			if err := svc.DeleteIndex(repoID); err != nil {
				return err
			}
			fmt.Printf("Deleted index for %s\n", repoID)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier")
	cmd.MarkFlagRequired("repo-id")
	return cmd
}
