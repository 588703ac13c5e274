// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command semscope is the semantic code index CLI and API server.
//
// Usage:
//
//	semscope index --root /path/to/repo --repo-id owner/repo
//	semscope search --repo-id owner/repo "security vulnerabilities"
//	semscope context --root /path/to/repo --repo-id owner/repo --query "auth flow"
//	semscope delete --repo-id owner/repo
//	semscope serve --config config.yaml
//
// With Ollama embeddings:
//
//	SEMSCOPE_EMBEDDING_PROVIDER=ollama OLLAMA_URL=http://localhost:11434 semscope index ...
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/semscope/services/semindex"
)

// Persistent flag values.
var (
	configPath string
	debugMode  bool
)

func main() {
	root := &cobra.Command{
		Use:           "semscope",
		Short:         "Local semantic code index",
		Long:          "semscope builds a symbol graph and embedding index over a source tree\nand answers similarity and structural queries against it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if debugMode {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	root.AddCommand(
		newIndexCommand(),
		newSearchCommand(),
		newContextCommand(),
		newDeleteCommand(),
		newServeCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newService loads config and builds the service for one command run.
func newService() (*semindex.Service, semindex.Config, error) {
	cfg, err := semindex.LoadConfig(configPath)
	if err != nil {
		return nil, cfg, err
	}
	svc, err := semindex.NewService(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return svc, cfg, nil
}
