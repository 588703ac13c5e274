// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan walks a source tree and produces the file snapshot the
// indexing core consumes.
//
// The walk respects the root .gitignore plus a fixed skip list, filters
// to source extensions, and reads file contents with bounded
// concurrency. Paths in the snapshot are slash-separated and relative to
// the root.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// Scan defaults.
const (
	defaultMaxFileSize = 1 * 1024 * 1024
	defaultReadWorkers = 8
)

// alwaysSkippedDirs are pruned regardless of gitignore rules.
var alwaysSkippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
}

// defaultExtensions are the source suffixes included when the caller
// does not narrow the set.
var defaultExtensions = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true,
	".py": true,
	".go": true, ".rb": true, ".java": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".cs": true, ".php": true,
}

// Options configures a Scanner.
type Options struct {
	// MaxFileSize skips files larger than this many bytes. Zero gets the
	// default.
	MaxFileSize int64

	// Extensions narrows the included suffixes. Empty keeps the default
	// source set.
	Extensions []string

	// ReadWorkers bounds concurrent file reads. Zero gets the default.
	ReadWorkers int
}

// Scanner produces file snapshots of a source tree.
type Scanner struct {
	opts Options
	exts map[string]bool
}

// NewScanner creates a Scanner with the given options.
func NewScanner(opts Options) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.ReadWorkers <= 0 {
		opts.ReadWorkers = defaultReadWorkers
	}
	exts := defaultExtensions
	if len(opts.Extensions) > 0 {
		exts = make(map[string]bool, len(opts.Extensions))
		for _, e := range opts.Extensions {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[strings.ToLower(e)] = true
		}
	}
	return &Scanner{opts: opts, exts: exts}
}

// Scan walks root and returns the snapshot, sorted by path.
//
// Unreadable individual files are logged and skipped; only a failed walk
// or read fan-out fails the scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]repair.SourceFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	var matcher *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		matcher = gi
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if alwaysSkippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > s.opts.MaxFileSize {
			if err == nil {
				slog.Debug("skipping oversize file",
					slog.String("file", rel),
					slog.Int64("size", info.Size()),
				)
			}
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	files := make([]repair.SourceFile, 0, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ReadWorkers)
	for _, rel := range paths {
		rel := rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				slog.Warn("skipping unreadable file",
					slog.String("file", rel),
					slog.String("stage", "scan"),
					slog.Any("error", err),
				)
				return nil
			}
			mu.Lock()
			files = append(files, repair.SourceFile{Path: rel, Content: string(content)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read files under %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	slog.Info("scan complete",
		slog.String("root", root),
		slog.Int("files", len(files)),
	)
	return files, nil
}
