// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieve executes similarity and structural queries over an
// embedding index plus symbol graph and assembles a token-bounded context
// bundle for a downstream consumer.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/semscope/services/semindex/embed"
	"github.com/AleutianAI/semscope/services/semindex/graph"
)

// Retrieval defaults.
const (
	DefaultMaxFiles   = 10
	DefaultMaxSymbols = 30

	snippetContextLines = 5
	snippetsPerFile     = 5
	referencesPerSymbol = 5
	topFilesInSummary   = 5
)

// Options controls one retrieval.
type Options struct {
	// Query is the free-text similarity query.
	Query string

	// MaxFiles bounds the number of files in the bundle. Zero gets the
	// default.
	MaxFiles int

	// MaxSymbols bounds the similarity search result count. Zero gets the
	// default.
	MaxSymbols int

	// IncludeFullFiles embeds whole file contents instead of snippets.
	IncludeFullFiles bool

	// TokenBudget triggers compaction when the rendered bundle's estimated
	// token count exceeds it. Zero disables the budget check.
	TokenBudget int
}

// MatchedSymbol is one search hit attributed to a file.
type MatchedSymbol struct {
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	Line          int     `json:"line"`
	Similarity    float64 `json:"similarity"`
	Documentation string  `json:"documentation,omitempty"`
	Signature     string  `json:"signature,omitempty"`
}

// Snippet is one bounded code excerpt.
type Snippet struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// FileContext is one file's share of the bundle.
type FileContext struct {
	Path        string          `json:"path"`
	Language    string          `json:"language"`
	MatchCount  int             `json:"match_count"`
	Symbols     []MatchedSymbol `json:"symbols"`
	FullContent string          `json:"full_content,omitempty"`
	Snippets    []Snippet       `json:"snippets,omitempty"`
	Imports     []string        `json:"imports,omitempty"`
	Exports     []string        `json:"exports,omitempty"`
}

// Dependency is one import relationship of a bundled file.
type Dependency struct {
	File     string `json:"file"`
	Module   string `json:"module"`
	Resolved bool   `json:"resolved"`
}

// Reference lists graph edges touching one matched symbol.
type Reference struct {
	Symbol string       `json:"symbol"`
	Edges  []graph.Edge `json:"edges"`
}

// Summary aggregates bundle statistics.
type Summary struct {
	TotalFiles   int            `json:"total_files"`
	TotalSymbols int            `json:"total_symbols"`
	Languages    []string       `json:"languages"`
	SymbolKinds  map[string]int `json:"symbol_kinds"`
	TopFiles     []string       `json:"top_files"`
}

// ContextBundle is the ranked, size-bounded retrieval product.
type ContextBundle struct {
	Query        string        `json:"query"`
	Files        []FileContext `json:"files"`
	Dependencies []Dependency  `json:"dependencies,omitempty"`
	References   []Reference   `json:"references,omitempty"`
	Summary      Summary       `json:"summary"`
	Compacted    bool          `json:"compacted,omitempty"`
}

// Engine runs retrievals against one index/graph pair.
type Engine struct {
	builder *embed.Builder
}

// NewEngine creates an Engine using the given builder for similarity
// search. A nil builder gets the default embedder.
func NewEngine(builder *embed.Builder) *Engine {
	if builder == nil {
		builder = embed.NewBuilder(nil)
	}
	return &Engine{builder: builder}
}

// RetrieveContext assembles the context bundle for one query.
//
// Description:
//
//	Runs a similarity search, groups hits by file, ranks files by match
//	count, then loads content for the surviving files as either full text
//	or bounded snippets. Dependency and reference lists come from the
//	graph's edges. When a token budget is set and the rendered estimate
//	exceeds it, the bundle is compacted under fixed caps.
//
//	Unreadable files are logged and omitted; the bundle is always
//	well-formed.
//
// Outputs:
//
//	*ContextBundle - The assembled bundle. Nil only when err is non-nil.
//	error          - Search failure (embedder unavailable) only.
func (e *Engine) RetrieveContext(ctx context.Context, index *embed.EmbeddingIndex, g *graph.SymbolGraph, rootPath string, opts Options) (*ContextBundle, error) {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.MaxSymbols <= 0 {
		opts.MaxSymbols = DefaultMaxSymbols
	}

	results, err := e.builder.Search(ctx, index, opts.Query, opts.MaxSymbols)
	if err != nil {
		return nil, fmt.Errorf("context retrieval for %q: %w", opts.Query, err)
	}

	bundle := &ContextBundle{Query: opts.Query}

	// Group hits by file and rank files by match count.
	byFile := make(map[string][]embed.SearchResult)
	var order []string
	for _, r := range results {
		if _, seen := byFile[r.File]; !seen {
			order = append(order, r.File)
		}
		byFile[r.File] = append(byFile[r.File], r)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(byFile[order[i]]) > len(byFile[order[j]])
	})
	if len(order) > opts.MaxFiles {
		order = order[:opts.MaxFiles]
	}

	for _, path := range order {
		fc := e.buildFileContext(g, rootPath, path, byFile[path], opts.IncludeFullFiles)
		bundle.Files = append(bundle.Files, fc)
	}

	bundle.Dependencies = e.buildDependencies(g, bundle.Files)
	bundle.References = e.buildReferences(g, results)
	bundle.Summary = e.buildSummary(g, bundle.Files)

	if opts.TokenBudget > 0 && EstimateTokens(bundle) > opts.TokenBudget {
		bundle = CreateCompactContext(bundle)
	}
	return bundle, nil
}

// buildFileContext loads one file's content and carves snippets around its
// top matched symbols.
func (e *Engine) buildFileContext(g *graph.SymbolGraph, rootPath, path string, hits []embed.SearchResult, fullFiles bool) FileContext {
	fc := FileContext{Path: path, MatchCount: len(hits)}
	if rec, ok := g.Files[path]; ok {
		fc.Language = rec.Language
		fc.Imports = rec.Imports
		fc.Exports = rec.Exports
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	for _, h := range hits {
		fc.Symbols = append(fc.Symbols, MatchedSymbol{
			Name:          h.SymbolName,
			Kind:          h.SymbolType,
			Line:          h.Line,
			Similarity:    h.Similarity,
			Documentation: h.Documentation,
			Signature:     h.Signature,
		})
	}

	content, err := os.ReadFile(filepath.Join(rootPath, filepath.FromSlash(path)))
	if err != nil {
		slog.Warn("omitting unreadable file from context",
			slog.String("file", path),
			slog.String("stage", "retrieve"),
			slog.Any("error", err),
		)
		return fc
	}

	if fullFiles {
		fc.FullContent = string(content)
		return fc
	}
	fc.Snippets = carveSnippets(string(content), hits)
	return fc
}

// carveSnippets extracts up to snippetsPerFile excerpts of
// snippetContextLines before and after each matched symbol's line,
// merging overlapping ranges.
func carveSnippets(content string, hits []embed.SearchResult) []Snippet {
	lines := strings.Split(content, "\n")

	type span struct{ start, end int }
	var spans []span
	count := 0
	for _, h := range hits {
		if h.Line <= 0 {
			continue
		}
		if count >= snippetsPerFile {
			break
		}
		count++
		start := h.Line - snippetContextLines
		if start < 1 {
			start = 1
		}
		end := h.Line + snippetContextLines
		if end > len(lines) {
			end = len(lines)
		}
		spans = append(spans, span{start, end})
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end+1 {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	snippets := make([]Snippet, 0, len(merged))
	for _, s := range merged {
		snippets = append(snippets, Snippet{
			StartLine: s.start,
			EndLine:   s.end,
			Content:   strings.Join(lines[s.start-1:s.end], "\n"),
		})
	}
	return snippets
}

// buildDependencies cross-references each bundled file's imports against
// the graph's edges. A module is resolved only when a resolved imports
// edge from the file points into the file that module maps to; bare
// package specifiers always stay unresolved.
func (e *Engine) buildDependencies(g *graph.SymbolGraph, files []FileContext) []Dependency {
	var deps []Dependency
	for _, fc := range files {
		for _, module := range fc.Imports {
			dep := Dependency{File: fc.Path, Module: module}
			if target := g.ResolveModulePath(fc.Path, module); target != "" {
				for _, edge := range g.Edges {
					if edge.Kind == graph.EdgeKindImports &&
						strings.HasPrefix(edge.From, fc.Path+"::") &&
						edge.To.Resolved() &&
						strings.HasPrefix(edge.To.SymbolID, target+"::") {
						dep.Resolved = true
						break
					}
				}
			}
			deps = append(deps, dep)
		}
	}
	return deps
}

// buildReferences looks up edges whose endpoints textually contain each
// matched symbol's name, capped per symbol.
func (e *Engine) buildReferences(g *graph.SymbolGraph, results []embed.SearchResult) []Reference {
	seen := make(map[string]bool)
	var refs []Reference
	for _, r := range results {
		if r.SymbolType == "file" || r.SymbolName == "" || seen[r.SymbolName] {
			continue
		}
		seen[r.SymbolName] = true

		edges := g.FindReferences(r.SymbolName)
		if len(edges) == 0 {
			continue
		}
		if len(edges) > referencesPerSymbol {
			edges = edges[:referencesPerSymbol]
		}
		refs = append(refs, Reference{Symbol: r.SymbolName, Edges: edges})
	}
	return refs
}

// buildSummary aggregates statistics over the bundled files.
func (e *Engine) buildSummary(g *graph.SymbolGraph, files []FileContext) Summary {
	s := Summary{SymbolKinds: make(map[string]int)}
	langs := make(map[string]bool)

	for _, fc := range files {
		s.TotalFiles++
		s.TotalSymbols += len(fc.Symbols)
		if fc.Language != "" {
			langs[fc.Language] = true
		}
		for _, sym := range fc.Symbols {
			s.SymbolKinds[sym.Kind]++
		}
		if len(s.TopFiles) < topFilesInSummary {
			s.TopFiles = append(s.TopFiles, fc.Path)
		}
	}
	for lang := range langs {
		s.Languages = append(s.Languages, lang)
	}
	sort.Strings(s.Languages)
	return s
}
