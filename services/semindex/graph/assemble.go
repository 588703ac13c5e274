// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AleutianAI/semscope/services/semindex/extract"
	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// Assembler builds a SymbolGraph from a set of source files.
//
// Description:
//
//	Assembly runs in two phases. Phase one runs naming repair across all
//	files, using the full file set as cross-reference context, and keeps
//	repaired content in memory for phase two. Phase two extracts symbols
//	per file and merges them into the graph, constructing import and
//	extends edges as it goes.
//
// Thread Safety:
//
//	An Assembler is safe for concurrent use; each Assemble call builds an
//	independent graph.
type Assembler struct {
	extractor *extract.Extractor
}

// NewAssembler creates an Assembler using the given extractor. A nil
// extractor gets the defaults.
func NewAssembler(extractor *extract.Extractor) *Assembler {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	return &Assembler{extractor: extractor}
}

// Assemble builds the repository-wide symbol graph for one analysis run.
//
// Inputs:
//
//	ctx   - Context threaded through per-file extraction.
//	files - The snapshot of the source tree, paths relative to the root.
//
// Outputs:
//
//	*SymbolGraph - The merged graph. Never nil, well-formed even when
//	               individual files failed to parse.
func (a *Assembler) Assemble(ctx context.Context, files []repair.SourceFile) *SymbolGraph {
	g := NewSymbolGraph(uuid.New().String())

	// Phase 1: naming repair across the whole file set. Repaired content
	// replaces the original in memory so extraction sees corrected names.
	working := make([]repair.SourceFile, len(files))
	copy(working, files)
	for i := range working {
		res := repair.RepairNaming(working[i].Content, working[i].Path, working)
		if !res.Fixed {
			continue
		}
		g.SyntaxFixes = append(g.SyntaxFixes, repair.Fix{
			FilePath:        working[i].Path,
			OriginalContent: working[i].Content,
			FixedContent:    res.Content,
			Fixes:           res.Fixes,
			ShouldCommit:    res.ShouldCommit,
		})
		working[i].Content = res.Content
		slog.Info("naming repair applied",
			slog.String("file", working[i].Path),
			slog.Int("fix_count", len(res.Fixes)),
		)
	}

	// Phase 2: extract each file and merge.
	results := make([]*extract.Result, 0, len(working))
	for _, f := range working {
		result := a.extractor.Extract(ctx, f.Path, f.Content)
		results = append(results, result)
		if result.Fix != nil {
			g.SyntaxFixes = append(g.SyntaxFixes, *result.Fix)
		}
		a.mergeFile(g, f, result)
	}

	// Edges need the complete symbol table, so they are built after every
	// file has merged.
	for _, result := range results {
		a.buildEdges(g, result)
	}

	// Symbol id collisions overwrite during merge, so per-file counts are
	// recomputed from the final table.
	for _, rec := range g.Files {
		rec.SymbolCount = 0
	}
	for _, sym := range g.Symbols {
		if rec, ok := g.Files[sym.File]; ok {
			rec.SymbolCount++
		}
	}

	slog.Info("symbol graph assembled",
		slog.String("run_id", g.RunID),
		slog.Int("files", len(g.Files)),
		slog.Int("symbols", len(g.Symbols)),
		slog.Int("edges", len(g.Edges)),
	)
	return g
}

// mergeFile folds one extraction result into the graph.
func (a *Assembler) mergeFile(g *SymbolGraph, f repair.SourceFile, result *extract.Result) {
	rec := &FileRecord{
		Path:     f.Path,
		Language: result.Language,
		Size:     len(f.Content),
	}
	for _, imp := range result.Imports {
		rec.Imports = append(rec.Imports, imp.Module)
	}

	for _, sym := range result.Symbols {
		if prev, exists := g.Symbols[sym.ID]; exists {
			slog.Debug("symbol id collision, later symbol wins",
				slog.String("id", sym.ID),
				slog.Int("prev_line", prev.Line),
				slog.Int("line", sym.Line),
			)
		}
		g.Symbols[sym.ID] = sym
		if sym.Exported || sym.Kind == extract.SymbolKindExport {
			rec.Exports = append(rec.Exports, sym.Name)
		}
	}

	g.Files[f.Path] = rec
}

// buildEdges emits imports edges for every import symbol and extends edges
// for every symbol carrying an extends reference.
func (a *Assembler) buildEdges(g *SymbolGraph, result *extract.Result) {
	for _, sym := range result.Symbols {
		switch {
		case sym.Kind == extract.SymbolKindImport && sym.Module != "":
			g.Edges = append(g.Edges, Edge{
				From: sym.ID,
				To:   a.resolveImport(g, result.File, sym.Module, sym.Name),
				Kind: EdgeKindImports,
			})
		case sym.Extends != "":
			g.Edges = append(g.Edges, Edge{
				From: sym.ID,
				To:   a.resolveExtends(g, result.File, sym.Extends),
				Kind: EdgeKindExtends,
			})
		}
	}
}

// resolveImport maps a module specifier plus imported name to a graph
// symbol when possible. Unmatched targets stay dangling with the raw
// specifier; they represent external dependencies, not errors.
func (a *Assembler) resolveImport(g *SymbolGraph, fromFile, specifier, name string) EdgeTarget {
	target := g.ResolveModulePath(fromFile, specifier)
	if target == "" {
		return UnresolvedTarget(specifier)
	}
	id := extract.MakeSymbolID(target, name)
	if _, ok := g.Symbols[id]; ok {
		return ResolvedTarget(id)
	}
	return UnresolvedTarget(specifier)
}

// resolveExtends finds the parent class, preferring the same file and
// falling back to any class in the graph with the matching name.
func (a *Assembler) resolveExtends(g *SymbolGraph, fromFile, parent string) EdgeTarget {
	local := extract.MakeSymbolID(fromFile, parent)
	if _, ok := g.Symbols[local]; ok {
		return ResolvedTarget(local)
	}
	for id, sym := range g.Symbols {
		if sym.Name == parent && sym.Kind == extract.SymbolKindClass {
			return ResolvedTarget(id)
		}
	}
	return UnresolvedTarget(parent)
}
