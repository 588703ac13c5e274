// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semindex is the service facade over the semantic code index:
// scanning, graph assembly, embedding, retrieval, and index lifecycle,
// exposed to the CLI and the HTTP layer.
package semindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/semscope/services/semindex/embed"
	"github.com/AleutianAI/semscope/services/semindex/extract"
	"github.com/AleutianAI/semscope/services/semindex/graph"
	"github.com/AleutianAI/semscope/services/semindex/repair"
	"github.com/AleutianAI/semscope/services/semindex/retrieve"
	"github.com/AleutianAI/semscope/services/semindex/scan"
)

// ErrRepoNotIndexed reports an operation against a repository that has no
// built graph in this process.
var ErrRepoNotIndexed = errors.New("repository not indexed")

// Service wires the indexing core together and tracks per-repository
// state.
//
// Thread Safety:
//
//	Safe for concurrent use. The per-repo maps are mutex-guarded; the
//	graphs themselves are immutable once built.
type Service struct {
	cfg       Config
	scanner   *scan.Scanner
	assembler *graph.Assembler
	builder   *embed.Builder
	engine    *retrieve.Engine
	store     embed.Store

	mu     sync.RWMutex
	graphs map[string]*graph.SymbolGraph
	roots  map[string]string
}

// NewService builds a Service from config. The embedding provider must be
// "local" or "ollama".
func NewService(cfg Config) (*Service, error) {
	var embedder embed.Embedder
	switch cfg.Embedding.Provider {
	case "", "local":
		embedder = embed.NewLocalEmbedder()
	case "ollama":
		embedder = embed.NewOllamaEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	store, err := embed.NewFileStore(cfg.Index.Dir)
	if err != nil {
		return nil, fmt.Errorf("init index store: %w", err)
	}

	builder := embed.NewBuilder(embedder)
	return &Service{
		cfg: cfg,
		scanner: scan.NewScanner(scan.Options{
			MaxFileSize: cfg.Index.MaxFileSize,
			Extensions:  cfg.Index.Extensions,
		}),
		assembler: graph.NewAssembler(nil),
		builder:   builder,
		engine:    retrieve.NewEngine(builder),
		store:     store,
		graphs:    make(map[string]*graph.SymbolGraph),
		roots:     make(map[string]string),
	}, nil
}

// BuildIndex assembles the symbol graph for a file snapshot.
func (s *Service) BuildIndex(ctx context.Context, files []repair.SourceFile, rootPath string) *graph.SymbolGraph {
	ctx, span := tracer.Start(ctx, "semindex.BuildIndex")
	defer span.End()

	g := s.assembler.Assemble(ctx, files)

	filesIndexedTotal.Add(float64(len(g.Files)))
	symbolsExtractedTotal.Add(float64(len(g.Symbols)))
	for _, fix := range g.SyntaxFixes {
		for _, d := range fix.Fixes {
			stage := "syntax"
			if d.Kind == repair.FixKindRenameExport {
				stage = "naming"
			}
			repairsAppliedTotal.WithLabelValues(stage).Inc()
		}
	}
	span.SetAttributes(
		attribute.Int("semindex.files", len(g.Files)),
		attribute.Int("semindex.symbols", len(g.Symbols)),
		attribute.Int("semindex.edges", len(g.Edges)),
	)
	return g
}

// BuildEmbeddings builds and persists the embedding index for a graph.
func (s *Service) BuildEmbeddings(ctx context.Context, g *graph.SymbolGraph, repoID string) (*embed.EmbeddingIndex, error) {
	ctx, span := tracer.Start(ctx, "semindex.BuildEmbeddings")
	defer span.End()

	index, err := s.builder.Build(ctx, g, repoID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(repoID, index); err != nil {
		return nil, err
	}
	embeddingsBuiltTotal.Add(float64(len(index.Embeddings)))
	span.SetAttributes(
		attribute.String("semindex.repo_id", repoID),
		attribute.Int("semindex.embeddings", len(index.Embeddings)),
	)
	return index, nil
}

// AnalyzeRepo runs the full pipeline for one repository root: scan,
// graph assembly, embedding build, persistence. The graph and root are
// cached for later queries keyed by repoID.
func (s *Service) AnalyzeRepo(ctx context.Context, rootPath, repoID string) (*graph.SymbolGraph, *embed.EmbeddingIndex, error) {
	ctx, span := tracer.Start(ctx, "semindex.AnalyzeRepo")
	defer span.End()

	files, err := s.scanner.Scan(ctx, rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", rootPath, err)
	}

	g := s.BuildIndex(ctx, files, rootPath)
	index, err := s.BuildEmbeddings(ctx, g, repoID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.graphs[repoID] = g
	s.roots[repoID] = rootPath
	s.mu.Unlock()
	return g, index, nil
}

// repoState fetches the cached graph and root for a repo.
func (s *Service) repoState(repoID string) (*graph.SymbolGraph, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[repoID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrRepoNotIndexed, repoID)
	}
	return g, s.roots[repoID], nil
}

// RetrieveContext assembles a context bundle for a previously analyzed
// repository.
func (s *Service) RetrieveContext(ctx context.Context, repoID string, opts retrieve.Options) (*retrieve.ContextBundle, error) {
	ctx, span := tracer.Start(ctx, "semindex.RetrieveContext")
	defer span.End()
	start := time.Now()

	g, root, err := s.repoState(repoID)
	if err != nil {
		return nil, err
	}
	index, err := s.store.Load(repoID)
	if err != nil {
		return nil, err
	}

	if opts.MaxFiles <= 0 {
		opts.MaxFiles = s.cfg.Retrieval.MaxFiles
	}
	if opts.MaxSymbols <= 0 {
		opts.MaxSymbols = s.cfg.Retrieval.MaxSymbols
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = s.cfg.Retrieval.TokenBudget
	}

	bundle, err := s.engine.RetrieveContext(ctx, index, g, root, opts)
	if err != nil {
		return nil, err
	}
	retrievalSeconds.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("semindex.bundle_files", len(bundle.Files)))
	return bundle, nil
}

// RetrieveForIntent routes a named intent through retrieval.
func (s *Service) RetrieveForIntent(ctx context.Context, repoID string, intent retrieve.Intent, opts retrieve.Options) (*retrieve.ContextBundle, error) {
	g, root, err := s.repoState(repoID)
	if err != nil {
		return nil, err
	}
	index, err := s.store.Load(repoID)
	if err != nil {
		return nil, err
	}
	return s.engine.RetrieveForIntent(ctx, index, g, root, intent, opts)
}

// FindByName runs a structural name lookup over the repo's graph.
func (s *Service) FindByName(repoID, query string) ([]*extract.Symbol, error) {
	g, _, err := s.repoState(repoID)
	if err != nil {
		return nil, err
	}
	return g.FindByName(query), nil
}

// FindReferences lists graph edges touching a symbol name.
func (s *Service) FindReferences(repoID, symbolName string) ([]graph.Edge, error) {
	g, _, err := s.repoState(repoID)
	if err != nil {
		return nil, err
	}
	return g.FindReferences(symbolName), nil
}

// FindSimilar runs a raw similarity search against the repo's stored
// index.
func (s *Service) FindSimilar(ctx context.Context, repoID, text string, topK int) ([]embed.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "semindex.FindSimilar")
	defer span.End()

	index, err := s.store.Load(repoID)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	results, err := s.builder.Search(ctx, index, text, topK)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	searchesTotal.WithLabelValues("ok").Inc()
	return results, nil
}

// IndexExists reports whether a persisted index exists for repoID.
func (s *Service) IndexExists(repoID string) bool {
	return s.store.Exists(repoID)
}

// LoadIndex loads the persisted index for repoID.
func (s *Service) LoadIndex(repoID string) (*embed.EmbeddingIndex, error) {
	return s.store.Load(repoID)
}

// DeleteIndex removes the persisted index and the cached graph. Deleting
// an absent index succeeds.
func (s *Service) DeleteIndex(repoID string) error {
	if err := s.store.Delete(repoID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.graphs, repoID)
	delete(s.roots, repoID)
	s.mu.Unlock()
	return nil
}

// Graph returns the cached graph for repoID.
func (s *Service) Graph(repoID string) (*graph.SymbolGraph, error) {
	g, _, err := s.repoState(repoID)
	return g, err
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}
