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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/semscope/services/semindex/retrieve"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Index.Dir = t.TempDir()
	s, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return s
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/auth.js": `// Validates credentials on login.
function login(user, password) {
  return check(user, password);
}
`,
		"src/db.py": `class Store:
    """Key-value store."""

    def get(self, key):
        return self.data[key]
`,
	}
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestNewServiceRejectsUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "quantum"
	if _, err := NewService(cfg); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestAnalyzeRepoEndToEnd(t *testing.T) {
	s := newTestService(t)
	root := writeRepo(t)

	g, index, err := s.AnalyzeRepo(context.Background(), root, "test/repo")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(g.Files) != 2 {
		t.Errorf("files = %d, want 2", len(g.Files))
	}
	if len(g.Symbols) == 0 || len(index.Embeddings) == 0 {
		t.Error("symbols and embeddings should be produced")
	}
	if !s.IndexExists("test/repo") {
		t.Error("index should be persisted")
	}

	loaded, err := s.LoadIndex("test/repo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Metadata.TotalEmbeddings != len(index.Embeddings) {
		t.Error("persisted index should match the built one")
	}
}

func TestRetrieveContextThroughService(t *testing.T) {
	s := newTestService(t)
	root := writeRepo(t)
	if _, _, err := s.AnalyzeRepo(context.Background(), root, "r"); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	bundle, err := s.RetrieveContext(context.Background(), "r", retrieve.Options{Query: "login password"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(bundle.Files) == 0 {
		t.Error("bundle should carry files")
	}

	if _, err := s.RetrieveContext(context.Background(), "never-indexed", retrieve.Options{Query: "x"}); !errors.Is(err, ErrRepoNotIndexed) {
		t.Errorf("err = %v, want ErrRepoNotIndexed", err)
	}
}

func TestPointQueries(t *testing.T) {
	s := newTestService(t)
	root := writeRepo(t)
	if _, _, err := s.AnalyzeRepo(context.Background(), root, "r"); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	symbols, err := s.FindByName("r", "login")
	if err != nil || len(symbols) == 0 {
		t.Errorf("FindByName = %v symbols, err %v", len(symbols), err)
	}

	results, err := s.FindSimilar(context.Background(), "r", "credentials login", 3)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(results) == 0 || len(results) > 3 {
		t.Errorf("results = %d, want 1..3", len(results))
	}
}

func TestDeleteIndexIdempotent(t *testing.T) {
	s := newTestService(t)
	root := writeRepo(t)
	if _, _, err := s.AnalyzeRepo(context.Background(), root, "r"); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if err := s.DeleteIndex("r"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteIndex("r"); err != nil {
		t.Fatalf("second delete must succeed: %v", err)
	}
	if s.IndexExists("r") {
		t.Error("index should be gone")
	}
	if _, err := s.Graph("r"); !errors.Is(err, ErrRepoNotIndexed) {
		t.Error("cached graph should be dropped")
	}
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Port != 8093 || cfg.Embedding.Provider != "local" {
		t.Errorf("defaults = %+v", cfg)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\nretrieval:\n  max_files: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Retrieval.MaxFiles != 3 {
		t.Errorf("config = %+v", cfg)
	}

	t.Setenv("SEMSCOPE_PORT", "9100")
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env override ignored, port = %d", cfg.Server.Port)
	}

	t.Setenv("SEMSCOPE_PORT", "not-a-port")
	if _, err := LoadConfig(path); err == nil {
		t.Error("bad port should fail")
	}
}
