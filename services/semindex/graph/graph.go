// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph merges per-file symbol lists into one repository-wide
// symbol graph: symbol table, file table, relationship edges.
//
// The graph is built once per analysis run and is read-only afterward.
// Downstream components (embedding, retrieval) only read it.
package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/semscope/services/semindex/extract"
	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// EdgeKind classifies a relationship edge.
type EdgeKind string

// Edge kinds.
const (
	EdgeKindImports EdgeKind = "imports"
	EdgeKindExtends EdgeKind = "extends"
)

// EdgeTarget is the destination of an edge. Exactly one of SymbolID or
// ModuleSpecifier is set: a resolved target names a symbol that exists in
// this graph, an unresolved target carries the raw module specifier of an
// external or unmatched dependency. Dangling edges are valid data, not
// errors.
type EdgeTarget struct {
	// SymbolID is set when the target resolved to a symbol in the graph.
	SymbolID string `json:"symbol_id,omitempty"`

	// ModuleSpecifier is set when the target did not resolve. It holds the
	// raw import specifier, e.g. "react" or "./missing".
	ModuleSpecifier string `json:"module_specifier,omitempty"`
}

// Resolved reports whether the target names a symbol in the graph.
func (t EdgeTarget) Resolved() bool {
	return t.SymbolID != ""
}

// ResolvedTarget builds a target pointing at a graph symbol.
func ResolvedTarget(symbolID string) EdgeTarget {
	return EdgeTarget{SymbolID: symbolID}
}

// UnresolvedTarget builds a dangling target carrying the raw specifier.
func UnresolvedTarget(specifier string) EdgeTarget {
	return EdgeTarget{ModuleSpecifier: specifier}
}

// String returns the target in a form usable for text matching.
func (t EdgeTarget) String() string {
	if t.Resolved() {
		return t.SymbolID
	}
	return t.ModuleSpecifier
}

// Edge is one directed relationship between a symbol and a target.
// Edges are not deduplicated.
type Edge struct {
	From string     `json:"from"`
	To   EdgeTarget `json:"to"`
	Kind EdgeKind   `json:"kind"`
}

// FileRecord summarizes one analyzed file. Derived entirely from the
// file's symbols.
type FileRecord struct {
	Path        string   `json:"path"`
	Language    string   `json:"language"`
	SymbolCount int      `json:"symbol_count"`
	Size        int      `json:"size"`
	Imports     []string `json:"imports,omitempty"`
	Exports     []string `json:"exports,omitempty"`
}

// SymbolGraph is the aggregate root for one analysis run.
//
// Thread Safety:
//
//	A SymbolGraph is immutable once Assemble returns it. Concurrent reads
//	are safe; nothing mutates it afterward.
type SymbolGraph struct {
	// RunID identifies the analysis run that built this graph.
	RunID string `json:"run_id"`

	// Symbols maps symbol id ("file::name") to the symbol. Id collisions
	// within one file resolve last-write-wins.
	Symbols map[string]*extract.Symbol `json:"symbols"`

	// Files maps file path to its record.
	Files map[string]*FileRecord `json:"files"`

	// Edges holds every relationship edge, dangling targets included.
	Edges []Edge `json:"edges"`

	// SyntaxFixes aggregates every fix either repair stage produced, so
	// the calling workflow can decide whether to persist repaired content.
	SyntaxFixes []repair.Fix `json:"syntax_fixes,omitempty"`
}

// NewSymbolGraph returns an empty graph with allocated containers.
func NewSymbolGraph(runID string) *SymbolGraph {
	return &SymbolGraph{
		RunID:   runID,
		Symbols: make(map[string]*extract.Symbol),
		Files:   make(map[string]*FileRecord),
		Edges:   make([]Edge, 0),
	}
}

// FindByName returns every symbol whose name contains the query,
// case-insensitive. Usable independently of full retrieval.
func (g *SymbolGraph) FindByName(query string) []*extract.Symbol {
	query = strings.ToLower(query)
	var out []*extract.Symbol
	for _, sym := range g.Symbols {
		if strings.Contains(strings.ToLower(sym.Name), query) {
			out = append(out, sym)
		}
	}
	return out
}

// FindReferences returns every edge whose endpoint textually contains the
// symbol name.
func (g *SymbolGraph) FindReferences(symbolName string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if strings.Contains(e.From, symbolName) || strings.Contains(e.To.String(), symbolName) {
			out = append(out, e)
		}
	}
	return out
}

// SymbolsInFile returns the symbols belonging to one file path, in
// declaration-line order.
func (g *SymbolGraph) SymbolsInFile(filePath string) []*extract.Symbol {
	var out []*extract.Symbol
	for _, sym := range g.Symbols {
		if sym.File == filePath {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// sourceExtensions are the suffixes tried when a relative specifier omits
// the extension.
var sourceExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".py"}

// ResolveModulePath resolves a relative module specifier against the file
// table, trying the bare path, the known source extensions, and an index
// file. Bare (package) specifiers and relative paths that reference no
// analyzed file return "".
func (g *SymbolGraph) ResolveModulePath(fromFile, specifier string) string {
	if !strings.HasPrefix(specifier, ".") {
		return ""
	}
	base := path.Clean(path.Join(path.Dir(fromFile), specifier))

	if _, ok := g.Files[base]; ok {
		return base
	}
	for _, ext := range sourceExtensions {
		if _, ok := g.Files[base+ext]; ok {
			return base + ext
		}
	}
	for _, ext := range sourceExtensions {
		idx := base + "/index" + ext
		if _, ok := g.Files[idx]; ok {
			return idx
		}
	}
	return ""
}

// Languages returns the distinct language tags present in the file table.
func (g *SymbolGraph) Languages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range g.Files {
		if !seen[f.Language] {
			seen[f.Language] = true
			out = append(out, f.Language)
		}
	}
	return out
}
