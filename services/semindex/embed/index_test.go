// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/semscope/services/semindex/extract"
	"github.com/AleutianAI/semscope/services/semindex/graph"
)

// flakyEmbedder fails for texts containing a marker, and optionally for
// every call.
type flakyEmbedder struct {
	inner      Embedder
	failAll    bool
	failMarker string
}

func (f *flakyEmbedder) Model() string { return "flaky" }

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failAll {
		return nil, errors.New("embedder down")
	}
	if f.failMarker != "" && strings.Contains(text, f.failMarker) {
		return nil, errors.New("transient failure")
	}
	return f.inner.Embed(ctx, text)
}

func buildTestGraph() *graph.SymbolGraph {
	g := graph.NewSymbolGraph("run-1")
	names := []string{"validatePassword", "hashToken", "renderChart", "parseConfig"}
	for i, name := range names {
		sym := &extract.Symbol{
			ID:   extract.MakeSymbolID("src/a.js", name),
			Name: name,
			Kind: extract.SymbolKindFunction,
			File: "src/a.js",
			Line: i*10 + 1,
		}
		g.Symbols[sym.ID] = sym
	}
	g.Files["src/a.js"] = &graph.FileRecord{
		Path:        "src/a.js",
		Language:    "javascript",
		SymbolCount: len(names),
	}
	return g
}

func TestBuildEmbedsSymbolsAndFiles(t *testing.T) {
	b := NewBuilder(NewLocalEmbedder())
	g := buildTestGraph()

	index, err := b.Build(context.Background(), g, "repo-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// One record per symbol plus one per file.
	want := len(g.Symbols) + len(g.Files)
	if len(index.Embeddings) != want {
		t.Errorf("embeddings = %d, want %d", len(index.Embeddings), want)
	}
	if index.Metadata.TotalEmbeddings != want {
		t.Errorf("metadata total = %d, want %d", index.Metadata.TotalEmbeddings, want)
	}
	if index.Metadata.Model != "local-hash-v1" {
		t.Errorf("model = %q", index.Metadata.Model)
	}

	var fileRecord *EmbeddingRecord
	for i := range index.Embeddings {
		if index.Embeddings[i].ID == "file::src/a.js" {
			fileRecord = &index.Embeddings[i]
		}
		if len(index.Embeddings[i].Vector) != Dimensions {
			t.Fatalf("record %s has %d dims", index.Embeddings[i].ID, len(index.Embeddings[i].Vector))
		}
	}
	if fileRecord == nil {
		t.Fatal("synthetic file record missing")
	}
	if fileRecord.SymbolType != "file" {
		t.Errorf("file record type = %q", fileRecord.SymbolType)
	}
}

func TestBuildFailsFastWhenEmbedderDown(t *testing.T) {
	b := NewBuilder(&flakyEmbedder{inner: NewLocalEmbedder(), failAll: true})
	_, err := b.Build(context.Background(), buildTestGraph(), "repo-1")
	if !errors.Is(err, ErrEmbedderUnavailable) {
		t.Errorf("err = %v, want ErrEmbedderUnavailable", err)
	}
}

func TestBuildSkipsFailingItems(t *testing.T) {
	b := NewBuilder(&flakyEmbedder{inner: NewLocalEmbedder(), failMarker: "renderChart"})
	g := buildTestGraph()

	index, err := b.Build(context.Background(), g, "repo-1")
	if err != nil {
		t.Fatalf("per-item failures must not abort the build: %v", err)
	}

	for _, rec := range index.Embeddings {
		if rec.SymbolName == "renderChart" {
			t.Error("failing symbol should have been skipped")
		}
	}
	want := len(g.Symbols) + len(g.Files) - 1
	if len(index.Embeddings) != want {
		t.Errorf("embeddings = %d, want %d", len(index.Embeddings), want)
	}
}

func TestSearchOrderingAndBounds(t *testing.T) {
	b := NewBuilder(NewLocalEmbedder())
	g := graph.NewSymbolGraph("run-2")
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("src/f.js::sym%d", i)
		g.Symbols[id] = &extract.Symbol{
			ID:   id,
			Name: fmt.Sprintf("sym%d", i),
			Kind: extract.SymbolKindFunction,
			File: "src/f.js",
			Line: i + 1,
		}
	}
	g.Symbols["src/f.js::checkPassword"] = &extract.Symbol{
		ID:            "src/f.js::checkPassword",
		Name:          "checkPassword",
		Kind:          extract.SymbolKindFunction,
		File:          "src/f.js",
		Line:          999,
		Documentation: "security vulnerabilities password sanitize input",
	}

	index, err := b.Build(context.Background(), g, "repo-2")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := b.Search(context.Background(), index, "security vulnerabilities", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("results = %d, want exactly 10", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
	if results[0].SymbolName != "checkPassword" {
		t.Errorf("top result = %q, want checkPassword", results[0].SymbolName)
	}
}

func TestSearchSmallerIndexAndZeroK(t *testing.T) {
	b := NewBuilder(NewLocalEmbedder())
	index, err := b.Build(context.Background(), buildTestGraph(), "repo-3")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := b.Search(context.Background(), index, "anything", 100)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != len(index.Embeddings) {
		t.Errorf("results = %d, want all %d", len(results), len(index.Embeddings))
	}

	none, err := b.Search(context.Background(), index, "anything", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("topK=0 should return no results, got %d err %v", len(none), err)
	}
}

func TestSearchPropagatesEmbedderFailure(t *testing.T) {
	good := NewBuilder(NewLocalEmbedder())
	index, err := good.Build(context.Background(), buildTestGraph(), "repo-4")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	bad := NewBuilder(&flakyEmbedder{inner: NewLocalEmbedder(), failAll: true})
	if _, err := bad.Search(context.Background(), index, "query", 5); !errors.Is(err, ErrEmbedderUnavailable) {
		t.Errorf("err = %v, want ErrEmbedderUnavailable", err)
	}
}
