// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semindex

import (
	"context"
	"testing"

	"github.com/AleutianAI/semscope/services/semindex/graph"
	"github.com/AleutianAI/semscope/services/semindex/retrieve"
)

// fixtureRoot is the checked-in sample project used for end-to-end runs.
const fixtureRoot = "../../test/fixtures/sample-web-app"

func TestPipelineOverSampleApp(t *testing.T) {
	s := newTestService(t)

	g, index, err := s.AnalyzeRepo(context.Background(), fixtureRoot, "sample/web-app")
	if err != nil {
		t.Fatalf("analyze fixture: %v", err)
	}

	if len(g.Files) != 3 {
		t.Errorf("files = %d, want 3", len(g.Files))
	}
	for _, id := range []string{
		"src/utils.js::formatName",
		"src/index.js::Server.start",
		"tasks.py::TaskQueue.due",
	} {
		if _, ok := g.Symbols[id]; !ok {
			t.Errorf("symbol %s missing from graph", id)
		}
	}

	// Cross-file import resolves; the package import stays dangling.
	var sawResolved, sawDangling bool
	for _, e := range g.Edges {
		if e.Kind != graph.EdgeKindImports {
			continue
		}
		if e.To.Resolved() && e.To.SymbolID == "src/utils.js::formatName" {
			sawResolved = true
		}
		if !e.To.Resolved() && e.To.ModuleSpecifier == "express" {
			sawDangling = true
		}
	}
	if !sawResolved {
		t.Error("formatName import should resolve to utils.js")
	}
	if !sawDangling {
		t.Error("express import should stay dangling")
	}

	if len(index.Embeddings) != len(g.Symbols)+len(g.Files) {
		t.Errorf("embeddings = %d, want %d", len(index.Embeddings), len(g.Symbols)+len(g.Files))
	}

	bundle, err := s.RetrieveContext(context.Background(), "sample/web-app", retrieve.Options{
		Query:      "scheduled tasks queue",
		MaxSymbols: 5,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(bundle.Files) == 0 {
		t.Fatal("bundle should carry files")
	}
	if bundle.Files[0].Path != "tasks.py" {
		t.Errorf("top file = %q, want tasks.py", bundle.Files[0].Path)
	}

	if err := s.DeleteIndex("sample/web-app"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
