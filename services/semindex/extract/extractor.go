// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// ExtractorOptions configures Extractor behavior.
type ExtractorOptions struct {
	// MaxFileSize is the maximum file size in bytes to run AST extraction
	// on. Larger files go straight to the generic extractor.
	// Default: 10MB
	MaxFileSize int
}

// DefaultExtractorOptions returns the default options.
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		MaxFileSize: 10 * 1024 * 1024,
	}
}

// ExtractorOption is a functional option for configuring Extractor.
type ExtractorOption func(*ExtractorOptions)

// WithMaxFileSize sets the maximum file size for AST extraction.
func WithMaxFileSize(size int) ExtractorOption {
	return func(o *ExtractorOptions) {
		o.MaxFileSize = size
	}
}

// Extractor extracts symbols from source files, dispatching by extension.
//
// Thread Safety:
//
//	Extractor is safe for concurrent use. Each Extract call creates its own
//	tree-sitter parser instance.
type Extractor struct {
	options ExtractorOptions
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	options := DefaultExtractorOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Extractor{options: options}
}

// Extract produces the normalized symbol list for one file.
//
// Description:
//
//	Dispatches by extension: JavaScript and TypeScript files get full AST
//	extraction via tree-sitter; Python gets line-oriented pattern
//	extraction; every other extension gets generic per-line signature
//	matching. On AST parse failure the syntax repair pipeline runs once and
//	the parse is retried with identical extraction logic; if the retry still
//	fails, extraction degrades to the generic path over the repaired
//	content.
//
//	Extract is total: it always returns a Result with a non-nil (possibly
//	empty) symbol list and never an error. Degraded extraction is reported
//	on the Result and logged, not raised.
//
// Inputs:
//
//	ctx      - Context for cancellation of the tree-sitter parse.
//	filePath - Path relative to the scan root; drives dispatch and ids.
//	content  - The file's source text. May be arbitrarily malformed.
//
// Outputs:
//
//	*Result - Extraction outcome. Never nil.
func (e *Extractor) Extract(ctx context.Context, filePath, content string) *Result {
	ext := strings.ToLower(filepath.Ext(filePath))

	result := &Result{
		File:    filePath,
		Symbols: make([]*Symbol, 0),
	}

	if lang, langName := grammarFor(ext); lang != nil && len(content) <= e.options.MaxFileSize {
		result.Language = langName
		e.extractAST(ctx, lang, filePath, content, result)
		return result
	}

	if ext == ".py" {
		result.Language = "python"
		extractPython(content, filePath, result)
		return result
	}

	result.Language = "generic"
	extractGeneric(content, filePath, result)
	return result
}

// extractAST runs the parse, repair, retry, degrade protocol for a file
// with a full grammar.
func (e *Extractor) extractAST(ctx context.Context, lang *sitter.Language, filePath, content string, result *Result) {
	state := &astState{
		content:  []byte(content),
		lines:    strings.Split(content, "\n"),
		filePath: filePath,
		result:   result,
	}

	tree, ok := parseAST(ctx, lang, state.content)
	if ok {
		defer tree.Close()
		walkAST(tree.RootNode(), state)
		return
	}
	if tree != nil {
		tree.Close()
	}

	// Parse failed: repair once and retry with identical extraction logic.
	repaired := repair.RepairSyntax(content, filePath)
	if repaired.Fixed {
		result.FixApplied = true
		result.Fix = &repair.Fix{
			FilePath:        filePath,
			OriginalContent: content,
			FixedContent:    repaired.Content,
			Fixes:           repaired.Fixes,
			ShouldCommit:    repaired.ShouldCommit,
		}
		state.content = []byte(repaired.Content)
		state.lines = strings.Split(repaired.Content, "\n")

		tree, ok = parseAST(ctx, lang, state.content)
		if ok {
			defer tree.Close()
			slog.Debug("extraction recovered after syntax repair",
				slog.String("file", filePath),
				slog.Int("fix_count", len(repaired.Fixes)),
			)
			walkAST(tree.RootNode(), state)
			return
		}
		if tree != nil {
			tree.Close()
		}
	}

	// Still unparsable: degrade to generic extraction so the file always
	// yields a symbol list, however impoverished.
	slog.Warn("AST parse failed after repair, degrading to generic extraction",
		slog.String("file", filePath),
		slog.String("stage", "extract"),
	)
	result.Degraded = true
	extractGeneric(string(state.content), filePath, result)
}
