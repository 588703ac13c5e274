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
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/semscope/services/semindex/extract"
	"github.com/AleutianAI/semscope/services/semindex/graph"
)

// ErrEmbedderUnavailable reports that the embedding function could not
// produce a vector at all. Fatal for the build in progress.
var ErrEmbedderUnavailable = errors.New("embedder unavailable")

// EmbeddingRecord is one stored vector with its metadata. One per symbol,
// plus one synthetic "file::<path>" record per file.
type EmbeddingRecord struct {
	ID            string    `json:"id"`
	SymbolName    string    `json:"symbol_name"`
	SymbolType    string    `json:"symbol_type"`
	File          string    `json:"file"`
	Line          int       `json:"line"`
	Vector        []float32 `json:"vector"`
	Text          string    `json:"text"`
	Documentation string    `json:"documentation,omitempty"`
	Signature     string    `json:"signature,omitempty"`
}

// IndexMetadata summarizes one built index.
type IndexMetadata struct {
	TotalEmbeddings int       `json:"total_embeddings"`
	BuildTime       time.Time `json:"build_time"`
	Model           string    `json:"model"`
}

// EmbeddingIndex holds every vector for one repository analysis run.
type EmbeddingIndex struct {
	RepoID     string            `json:"repo_id"`
	Embeddings []EmbeddingRecord `json:"embeddings"`
	Metadata   IndexMetadata     `json:"metadata"`
}

// SearchResult is one ranked match. The raw vector is stripped to bound
// payload size.
type SearchResult struct {
	ID            string  `json:"id"`
	SymbolName    string  `json:"symbol_name"`
	SymbolType    string  `json:"symbol_type"`
	File          string  `json:"file"`
	Line          int     `json:"line"`
	Text          string  `json:"text"`
	Documentation string  `json:"documentation,omitempty"`
	Signature     string  `json:"signature,omitempty"`
	Similarity    float64 `json:"similarity"`
}

// Builder constructs embedding indexes from symbol graphs.
type Builder struct {
	embedder Embedder
}

// NewBuilder creates a Builder over the given embedder. A nil embedder
// gets the process default.
func NewBuilder(embedder Embedder) *Builder {
	if embedder == nil {
		embedder = Default()
	}
	return &Builder{embedder: embedder}
}

// Build produces one vector per graph symbol and one per file.
//
// Description:
//
//	The embedder is probed before any work so an unavailable embedding
//	function fails the whole operation up front rather than leaving a
//	half-built index claiming success. After the probe, individual embed
//	failures are logged and skipped; they never abort the batch.
//
// Outputs:
//
//	*EmbeddingIndex - The built index. Nil only when err is non-nil.
//	error           - ErrEmbedderUnavailable (wrapped) when the probe
//	                  fails; nil otherwise.
func (b *Builder) Build(ctx context.Context, g *graph.SymbolGraph, repoID string) (*EmbeddingIndex, error) {
	if _, err := b.embedder.Embed(ctx, "probe"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedderUnavailable, err)
	}

	index := &EmbeddingIndex{
		RepoID:     repoID,
		Embeddings: make([]EmbeddingRecord, 0, len(g.Symbols)+len(g.Files)),
	}

	for _, sym := range g.Symbols {
		text := symbolText(sym)
		vec, err := b.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("skipping symbol embedding",
				slog.String("symbol", sym.ID),
				slog.String("stage", "embed"),
				slog.Any("error", err),
			)
			continue
		}
		index.Embeddings = append(index.Embeddings, EmbeddingRecord{
			ID:            sym.ID,
			SymbolName:    sym.Name,
			SymbolType:    string(sym.Kind),
			File:          sym.File,
			Line:          sym.Line,
			Vector:        vec,
			Text:          text,
			Documentation: sym.Documentation,
			Signature:     sym.Signature,
		})
	}

	for _, rec := range g.Files {
		text := fileText(rec, g.SymbolsInFile(rec.Path))
		vec, err := b.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("skipping file embedding",
				slog.String("file", rec.Path),
				slog.String("stage", "embed"),
				slog.Any("error", err),
			)
			continue
		}
		index.Embeddings = append(index.Embeddings, EmbeddingRecord{
			ID:         "file::" + rec.Path,
			SymbolName: path.Base(rec.Path),
			SymbolType: "file",
			File:       rec.Path,
			Vector:     vec,
			Text:       text,
		})
	}

	index.Metadata = IndexMetadata{
		TotalEmbeddings: len(index.Embeddings),
		BuildTime:       time.Now().UTC(),
		Model:           b.embedder.Model(),
	}

	slog.Info("embedding index built",
		slog.String("repo_id", repoID),
		slog.Int("embeddings", len(index.Embeddings)),
		slog.String("model", index.Metadata.Model),
	)
	return index, nil
}

// Search embeds the query and linear-scans the index, returning the top K
// matches sorted by descending similarity.
//
// Edge cases: topK <= 0 returns no results; fewer records than topK
// returns them all. The raw vectors are never included in results.
func (b *Builder) Search(ctx context.Context, index *EmbeddingIndex, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 || len(index.Embeddings) == 0 {
		return []SearchResult{}, nil
	}

	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedderUnavailable, err)
	}

	results := make([]SearchResult, 0, len(index.Embeddings))
	for i := range index.Embeddings {
		rec := &index.Embeddings[i]
		results = append(results, SearchResult{
			ID:            rec.ID,
			SymbolName:    rec.SymbolName,
			SymbolType:    rec.SymbolType,
			File:          rec.File,
			Line:          rec.Line,
			Text:          rec.Text,
			Documentation: rec.Documentation,
			Signature:     rec.Signature,
			Similarity:    Cosine(queryVec, rec.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// symbolText composes the embedding text for one symbol: kind and name,
// signature, parameters, documentation, enclosing location, enclosing
// class for methods.
func symbolText(sym *extract.Symbol) string {
	var parts []string
	parts = append(parts, string(sym.Kind)+" "+sym.Name)
	if sym.Signature != "" {
		parts = append(parts, sym.Signature)
	}
	if len(sym.Params) > 0 {
		parts = append(parts, "parameters: "+strings.Join(sym.Params, ", "))
	}
	if sym.Documentation != "" {
		parts = append(parts, sym.Documentation)
	}
	parts = append(parts, "in "+path.Dir(sym.File)+" "+path.Base(sym.File))
	if sym.ClassName != "" {
		parts = append(parts, "class "+sym.ClassName)
	}
	return strings.Join(parts, "\n")
}

// maxFileTextNames caps how many import, export, and symbol names feed the
// file-level vector.
const maxFileTextNames = 10

// fileText composes the embedding text for one file record.
func fileText(rec *graph.FileRecord, symbols []*extract.Symbol) string {
	var parts []string
	parts = append(parts, rec.Path, "language: "+rec.Language)
	if len(rec.Imports) > 0 {
		parts = append(parts, "imports: "+strings.Join(capNames(rec.Imports), ", "))
	}
	if len(rec.Exports) > 0 {
		parts = append(parts, "exports: "+strings.Join(capNames(rec.Exports), ", "))
	}
	if len(symbols) > 0 {
		names := make([]string, 0, len(symbols))
		for _, s := range symbols {
			names = append(names, s.Name)
		}
		parts = append(parts, "symbols: "+strings.Join(capNames(names), ", "))
	}
	return strings.Join(parts, "\n")
}

func capNames(names []string) []string {
	if len(names) > maxFileTextNames {
		return names[:maxFileTextNames]
	}
	return names
}
