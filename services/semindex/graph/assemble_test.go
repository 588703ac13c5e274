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
	"strings"
	"testing"

	"github.com/AleutianAI/semscope/services/semindex/repair"
)

func testFiles() []repair.SourceFile {
	return []repair.SourceFile{
		{Path: "src/utils.js", Content: `export function helper(x) {
  return x * 2;
}

export class Base {
  run() {}
}
`},
		{Path: "src/app.js", Content: `import { helper } from './utils';
import express from 'express';

class App extends Base {
  start() {
    return helper(1);
  }
}
`},
	}
}

func TestAssembleBuildsGraph(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	if g.RunID == "" {
		t.Error("run id should be set")
	}
	if len(g.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(g.Files))
	}

	if _, ok := g.Symbols["src/utils.js::helper"]; !ok {
		t.Error("helper symbol missing")
	}
	if _, ok := g.Symbols["src/app.js::App.start"]; !ok {
		t.Error("App.start symbol missing")
	}

	utils := g.Files["src/utils.js"]
	if utils.Language != "javascript" {
		t.Errorf("language = %q", utils.Language)
	}
	exported := strings.Join(utils.Exports, ",")
	if !strings.Contains(exported, "helper") {
		t.Errorf("exports = %v, want helper present", utils.Exports)
	}

	app := g.Files["src/app.js"]
	if len(app.Imports) != 2 {
		t.Errorf("imports = %v, want 2 modules", app.Imports)
	}
}

func TestAssembleSymbolCountConsistency(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	counts := make(map[string]int)
	for _, sym := range g.Symbols {
		counts[sym.File]++
	}
	for path, rec := range g.Files {
		if rec.SymbolCount != counts[path] {
			t.Errorf("file %s symbolCount = %d, actual symbols = %d", path, rec.SymbolCount, counts[path])
		}
	}
}

func TestAssembleImportEdges(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	var resolved, dangling *Edge
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Kind != EdgeKindImports {
			continue
		}
		if e.From == "src/app.js::helper" {
			resolved = e
		}
		if e.From == "src/app.js::express" {
			dangling = e
		}
	}

	if resolved == nil {
		t.Fatal("no imports edge for helper")
	}
	if !resolved.To.Resolved() || resolved.To.SymbolID != "src/utils.js::helper" {
		t.Errorf("helper edge target = %+v, want resolved to src/utils.js::helper", resolved.To)
	}

	if dangling == nil {
		t.Fatal("no imports edge for express")
	}
	if dangling.To.Resolved() {
		t.Errorf("express edge should be dangling, got %+v", dangling.To)
	}
	if dangling.To.ModuleSpecifier != "express" {
		t.Errorf("dangling specifier = %q", dangling.To.ModuleSpecifier)
	}
}

func TestAssembleExtendsEdge(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	for _, e := range g.Edges {
		if e.Kind != EdgeKindExtends {
			continue
		}
		if e.From != "src/app.js::App" {
			t.Errorf("extends edge from = %q", e.From)
		}
		if !e.To.Resolved() || e.To.SymbolID != "src/utils.js::Base" {
			t.Errorf("extends target = %+v, want resolved to src/utils.js::Base", e.To)
		}
		return
	}
	t.Fatal("no extends edge emitted")
}

func TestAssembleNamingRepairAggregated(t *testing.T) {
	files := []repair.SourceFile{
		{Path: "utils.js", Content: "export const hlp = (x) => x;\n"},
		{Path: "main.js", Content: "import { helper } from './utils';\nhelper(1);\n"},
	}
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), files)

	var namingFix *repair.Fix
	for i := range g.SyntaxFixes {
		if g.SyntaxFixes[i].FilePath == "utils.js" {
			namingFix = &g.SyntaxFixes[i]
		}
	}
	if namingFix == nil {
		t.Fatal("naming fix for utils.js should be aggregated")
	}
	if !strings.Contains(namingFix.FixedContent, "helper") {
		t.Errorf("fixed content = %q, want export renamed to helper", namingFix.FixedContent)
	}
	if !namingFix.ShouldCommit {
		t.Error("high-confidence rename should be commit-worthy")
	}

	// Extraction must see the repaired name.
	if _, ok := g.Symbols["utils.js::helper"]; !ok {
		t.Error("graph should contain the renamed export")
	}
}

func TestFindByNameAndReferences(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	found := g.FindByName("HELP")
	if len(found) == 0 {
		t.Fatal("case-insensitive substring search should find helper")
	}

	refs := g.FindReferences("helper")
	if len(refs) == 0 {
		t.Error("references should include the imports edge")
	}
}

func TestSymbolsInFileOrdered(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	syms := g.SymbolsInFile("src/app.js")
	if len(syms) < 3 {
		t.Fatalf("symbols = %d, want the imports, class, and method", len(syms))
	}
	for i := 1; i < len(syms); i++ {
		if syms[i-1].Line > syms[i].Line {
			t.Errorf("symbols out of line order: %s (line %d) before %s (line %d)",
				syms[i-1].Name, syms[i-1].Line, syms[i].Name, syms[i].Line)
		}
	}
	if syms[0].Line != 1 {
		t.Errorf("first symbol line = %d, want 1", syms[0].Line)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	a := NewAssembler(nil)
	g := a.Assemble(context.Background(), testFiles())

	data, err := Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.RunID != g.RunID {
		t.Errorf("run id = %q, want %q", restored.RunID, g.RunID)
	}
	if len(restored.Symbols) != len(g.Symbols) {
		t.Errorf("symbols = %d, want %d", len(restored.Symbols), len(g.Symbols))
	}
	if len(restored.Edges) != len(g.Edges) {
		t.Errorf("edges = %d, want %d", len(restored.Edges), len(g.Edges))
	}
}

func TestUnmarshalRejectsWrongVersion(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"version": 99}`)); err == nil {
		t.Error("wrong schema version should fail")
	}
	if _, err := Unmarshal([]byte(`{not json`)); err == nil {
		t.Error("corrupt payload should fail")
	}
}

func TestUnmarshalNormalizesEmpty(t *testing.T) {
	g, err := Unmarshal([]byte(`{"version": 1, "run_id": "r"}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if g.Symbols == nil || g.Files == nil || g.Edges == nil {
		t.Error("containers must be non-nil after load")
	}
}
