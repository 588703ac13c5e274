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
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, loadable from YAML with env
// overrides.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IndexConfig configures scanning and persistence.
type IndexConfig struct {
	// Dir is where embedding indexes are persisted.
	Dir string `yaml:"dir"`

	// MaxFileSize bounds scanned file size in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`

	// Extensions narrows the scanned suffixes; empty keeps the defaults.
	Extensions []string `yaml:"extensions"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is "local" or "ollama".
	Provider string `yaml:"provider"`
}

// RetrievalConfig holds retrieval defaults.
type RetrievalConfig struct {
	MaxFiles    int `yaml:"max_files"`
	MaxSymbols  int `yaml:"max_symbols"`
	TokenBudget int `yaml:"token_budget"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8093,
		},
		Index: IndexConfig{
			Dir:         ".semscope/indexes",
			MaxFileSize: 1 * 1024 * 1024,
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
		},
		Retrieval: RetrievalConfig{
			MaxFiles:    10,
			MaxSymbols:  30,
			TokenBudget: 8000,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults, then applies env
// overrides. An empty path skips the file.
//
// Env overrides: SEMSCOPE_HOST, SEMSCOPE_PORT, SEMSCOPE_INDEX_DIR,
// SEMSCOPE_EMBEDDING_PROVIDER.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("SEMSCOPE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SEMSCOPE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SEMSCOPE_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SEMSCOPE_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("SEMSCOPE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	return cfg, nil
}
