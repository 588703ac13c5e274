// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embed turns symbols and files into dense vectors and answers
// similarity queries over them.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Dimensions is the fixed embedding dimensionality. Every vector in one
// index shares it.
const Dimensions = 384

// Embedder maps text to a fixed-dimension unit-length vector.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the vector for text. The vector is unit-normalized so
	// cosine similarity reduces to a dot product.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model identifies the embedding model for index metadata.
	Model() string
}

// ---------------------------------------------------------------------------
// Ollama-backed embedder
// ---------------------------------------------------------------------------

const (
	defaultOllamaURL      = "http://localhost:11434"
	defaultEmbeddingModel = "all-minilm"
	embedRequestTimeout   = 30 * time.Second
)

// OllamaEmbedder calls a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaEmbedder creates an embedder against the Ollama HTTP API.
// OLLAMA_URL and EMBEDDING_MODEL env vars override the defaults.
func NewOllamaEmbedder() *OllamaEmbedder {
	baseURL := os.Getenv("OLLAMA_URL")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: embedRequestTimeout},
	}
}

// Model returns the configured model name.
func (e *OllamaEmbedder) Model() string { return e.model }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed calls the Ollama embeddings endpoint and unit-normalizes the
// result.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding request returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response for model %s was empty", e.model)
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}
	Normalize(vec)
	return vec, nil
}

// ---------------------------------------------------------------------------
// Deterministic local embedder
// ---------------------------------------------------------------------------

// LocalEmbedder is a deterministic hashed bag-of-tokens embedder. It needs
// no external service, which makes it the default for offline runs and
// tests. Semantically it is crude but stable: identical text always maps
// to the identical vector, and token overlap raises similarity.
type LocalEmbedder struct{}

// NewLocalEmbedder creates a deterministic local embedder.
func NewLocalEmbedder() *LocalEmbedder { return &LocalEmbedder{} }

// Model returns the fixed local model tag.
func (e *LocalEmbedder) Model() string { return "local-hash-v1" }

// Embed hashes each token into a bucket of the fixed-dimension vector and
// unit-normalizes the result. All-separator input yields the zero vector.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, Dimensions)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % Dimensions)
		// Second hash bit picks the sign so buckets cancel rather than
		// only accumulate.
		if (sum>>16)&1 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	Normalize(vec)
	return vec, nil
}

// tokenize lower-cases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// ---------------------------------------------------------------------------
// Process-wide default
// ---------------------------------------------------------------------------

var (
	defaultOnce     sync.Once
	defaultEmbedder Embedder
)

// Default returns the process-wide embedder, created on first use and
// never torn down. An Ollama instance is used when OLLAMA_URL is set;
// otherwise the deterministic local embedder.
func Default() Embedder {
	defaultOnce.Do(func() {
		if os.Getenv("OLLAMA_URL") != "" {
			defaultEmbedder = NewOllamaEmbedder()
			return
		}
		defaultEmbedder = NewLocalEmbedder()
	})
	return defaultEmbedder
}
