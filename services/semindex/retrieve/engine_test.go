// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/semscope/services/semindex/embed"
	"github.com/AleutianAI/semscope/services/semindex/graph"
	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// fixture builds a small on-disk repo, its graph, and its index.
func fixture(t *testing.T) (string, *graph.SymbolGraph, *embed.EmbeddingIndex, *Engine) {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"auth.js": `// Validates user passwords against policy.
function validatePassword(password) {
  return password.length >= 12;
}

// Issues a session token after login.
function issueToken(user) {
  return sign(user);
}
`,
		"chart.js": `// Renders the sales chart.
function renderChart(data) {
  return draw(data);
}
`,
	}
	var sources []repair.SourceFile
	for path, content := range files {
		if err := os.WriteFile(filepath.Join(root, path), []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		sources = append(sources, repair.SourceFile{Path: path, Content: content})
	}

	g := graph.NewAssembler(nil).Assemble(context.Background(), sources)

	builder := embed.NewBuilder(embed.NewLocalEmbedder())
	index, err := builder.Build(context.Background(), g, "fixture")
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return root, g, index, NewEngine(builder)
}

func TestRetrieveContextBundlesRelevantFiles(t *testing.T) {
	root, g, index, engine := fixture(t)

	bundle, err := engine.RetrieveContext(context.Background(), index, g, root, Options{
		Query:    "password login authentication",
		MaxFiles: 1,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if len(bundle.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(bundle.Files))
	}
	top := bundle.Files[0]
	if top.Path != "auth.js" {
		t.Errorf("top file = %q, want auth.js", top.Path)
	}
	if top.MatchCount == 0 || len(top.Symbols) == 0 {
		t.Error("top file should carry its matched symbols")
	}
	if len(top.Snippets) == 0 {
		t.Fatal("snippets should be carved by default")
	}
	for _, sn := range top.Snippets {
		if sn.StartLine < 1 || sn.EndLine < sn.StartLine {
			t.Errorf("bad snippet range %d-%d", sn.StartLine, sn.EndLine)
		}
		if sn.Content == "" {
			t.Error("snippet content empty")
		}
	}

	if bundle.Summary.TotalFiles != 1 {
		t.Errorf("summary files = %d", bundle.Summary.TotalFiles)
	}
	if bundle.Summary.TotalSymbols != len(top.Symbols) {
		t.Errorf("summary symbols = %d, want %d", bundle.Summary.TotalSymbols, len(top.Symbols))
	}
}

func TestRetrieveContextFullFiles(t *testing.T) {
	root, g, index, engine := fixture(t)

	bundle, err := engine.RetrieveContext(context.Background(), index, g, root, Options{
		Query:            "password",
		IncludeFullFiles: true,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	var auth *FileContext
	for i := range bundle.Files {
		if bundle.Files[i].Path == "auth.js" {
			auth = &bundle.Files[i]
		}
	}
	if auth == nil {
		t.Fatal("auth.js missing from bundle")
	}
	if !strings.Contains(auth.FullContent, "validatePassword") {
		t.Error("full content should carry the file text")
	}
	if len(auth.Snippets) != 0 {
		t.Error("full-file mode should not also carve snippets")
	}
}

func TestRetrieveContextOmitsUnreadableFiles(t *testing.T) {
	root, g, index, engine := fixture(t)
	if err := os.Remove(filepath.Join(root, "auth.js")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	bundle, err := engine.RetrieveContext(context.Background(), index, g, root, Options{
		Query: "password login",
	})
	if err != nil {
		t.Fatalf("missing file must not fail retrieval: %v", err)
	}
	for _, fc := range bundle.Files {
		if fc.Path == "auth.js" && (fc.FullContent != "" || len(fc.Snippets) > 0) {
			t.Error("unreadable file should have no content")
		}
	}
}

func TestRetrieveContextBudgetTriggersCompaction(t *testing.T) {
	root, g, index, engine := fixture(t)

	bundle, err := engine.RetrieveContext(context.Background(), index, g, root, Options{
		Query:       "password",
		TokenBudget: 1,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !bundle.Compacted {
		t.Error("tiny budget should force compaction")
	}
}

func TestDependenciesDistinguishLocalAndPackageModules(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"lib.js": `// Validates input payloads.
export function validate(payload) {
  return payload != null;
}
`,
		"app.js": `import { validate } from './lib';
import react from 'react';

function submitForm(payload) {
  return validate(payload);
}
`,
	}
	var sources []repair.SourceFile
	for path, content := range files {
		if err := os.WriteFile(filepath.Join(root, path), []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		sources = append(sources, repair.SourceFile{Path: path, Content: content})
	}

	g := graph.NewAssembler(nil).Assemble(context.Background(), sources)
	builder := embed.NewBuilder(embed.NewLocalEmbedder())
	index, err := builder.Build(context.Background(), g, "deps")
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	bundle, err := NewEngine(builder).RetrieveContext(context.Background(), index, g, root, Options{
		Query: "validate submitted payloads",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	resolved := make(map[string]bool)
	for _, dep := range bundle.Dependencies {
		if dep.File == "app.js" {
			resolved[dep.Module] = dep.Resolved
		}
	}
	if got, ok := resolved["./lib"]; !ok || !got {
		t.Errorf("./lib resolved = %v (present %v), want true", got, ok)
	}
	if got, ok := resolved["react"]; !ok || got {
		t.Errorf("react resolved = %v (present %v), want false", got, ok)
	}
}

func TestCreateCompactContextCaps(t *testing.T) {
	bundle := &ContextBundle{Query: "q"}
	for i := 0; i < 20; i++ {
		fc := FileContext{
			Path:        fmt.Sprintf("f%d.js", i),
			FullContent: strings.Repeat("x", 10000),
		}
		for j := 0; j < 30; j++ {
			fc.Symbols = append(fc.Symbols, MatchedSymbol{Name: fmt.Sprintf("s%d_%d", i, j)})
		}
		for j := 0; j < 8; j++ {
			fc.Snippets = append(fc.Snippets, Snippet{StartLine: 1, EndLine: 2, Content: "c"})
		}
		bundle.Files = append(bundle.Files, fc)
	}
	for i := 0; i < 40; i++ {
		bundle.Dependencies = append(bundle.Dependencies, Dependency{File: "f", Module: fmt.Sprintf("m%d", i)})
		bundle.References = append(bundle.References, Reference{Symbol: fmt.Sprintf("r%d", i)})
	}

	compact := CreateCompactContext(bundle)

	if len(compact.Files) > 5 {
		t.Errorf("files = %d, cap is 5", len(compact.Files))
	}
	total := 0
	for _, fc := range compact.Files {
		total += len(fc.Symbols)
		if len(fc.Snippets) > 2 {
			t.Errorf("file %s snippets = %d, cap is 2", fc.Path, len(fc.Snippets))
		}
		if fc.FullContent != "" {
			t.Error("full contents must be dropped")
		}
	}
	if total > 20 {
		t.Errorf("symbols = %d, cap is 20", total)
	}
	if len(compact.Dependencies) > 10 {
		t.Errorf("dependencies = %d, cap is 10", len(compact.Dependencies))
	}
	if len(compact.References) > 10 {
		t.Errorf("references = %d, cap is 10", len(compact.References))
	}
	if !compact.Compacted {
		t.Error("compacted flag should be set")
	}
	if compact.Summary.TotalFiles != len(compact.Files) {
		t.Error("summary must be recomputed after the trim")
	}

	// The original bundle must be left alone.
	if len(bundle.Files) != 20 || bundle.Files[0].FullContent == "" {
		t.Error("input bundle was mutated")
	}
}

func TestFormatForConsumptionSections(t *testing.T) {
	root, g, index, engine := fixture(t)

	bundle, err := engine.RetrieveContext(context.Background(), index, g, root, Options{
		Query: "password",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	report := FormatForConsumption(bundle)
	for _, want := range []string{"# Code Context", "## Summary", "Query: password", "- Files:"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	bundle := &ContextBundle{Query: "q"}
	if EstimateTokens(bundle) <= 0 {
		t.Error("even an empty bundle renders a header")
	}
}

func TestRetrieveForIntent(t *testing.T) {
	root, g, index, engine := fixture(t)

	bundle, err := engine.RetrieveForIntent(context.Background(), index, g, root, IntentSecurity, Options{})
	if err != nil {
		t.Fatalf("intent retrieve: %v", err)
	}
	if bundle.Query == "" || !strings.Contains(bundle.Query, "security") {
		t.Errorf("intent query = %q", bundle.Query)
	}

	if _, err := engine.RetrieveForIntent(context.Background(), index, g, root, Intent("nope"), Options{}); err == nil {
		t.Error("unknown intent should fail")
	}
}
