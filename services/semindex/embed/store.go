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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persistence errors. Corruption is deliberately distinct from
// absence so callers never silently rebuild over a damaged index.
var (
	ErrIndexNotFound = errors.New("embedding index not found")
	ErrIndexCorrupt  = errors.New("embedding index corrupt")
)

// Store persists embedding indexes keyed by repository id.
//
// Exists, Load, and Delete are independent idempotent operations.
// Deleting an absent index is a success.
type Store interface {
	Save(repoID string, index *EmbeddingIndex) error
	Load(repoID string) (*EmbeddingIndex, error)
	Exists(repoID string) bool
	Delete(repoID string) error
}

// sanitizeRepoID reduces an arbitrary repository identifier to a safe
// storage key.
func sanitizeRepoID(repoID string) string {
	var b strings.Builder
	for _, r := range repoID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	key := strings.Trim(b.String(), ".")
	if key == "" {
		return "default"
	}
	return key
}

// FileStore keeps one JSON document per repository id under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(repoID string) string {
	return filepath.Join(s.dir, sanitizeRepoID(repoID)+".json")
}

// Save writes the index atomically: a temp file is written first and
// renamed into place, so a crashed write never leaves a half-built index
// behind the real name.
func (s *FileStore) Save(repoID string, index *EmbeddingIndex) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal index %s: %w", repoID, err)
	}

	target := s.path(repoID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index %s: %w", repoID, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit index %s: %w", repoID, err)
	}
	return nil
}

// Load reads and decodes the stored index. Absence and corruption are
// distinct failures.
func (s *FileStore) Load(repoID string) (*EmbeddingIndex, error) {
	data, err := os.ReadFile(s.path(repoID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, repoID)
		}
		return nil, fmt.Errorf("read index %s: %w", repoID, err)
	}

	var index EmbeddingIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, repoID, err)
	}
	return &index, nil
}

// Exists reports whether an index is stored for repoID.
func (s *FileStore) Exists(repoID string) bool {
	_, err := os.Stat(s.path(repoID))
	return err == nil
}

// Delete removes the stored index. Removing an absent index succeeds.
func (s *FileStore) Delete(repoID string) error {
	err := os.Remove(s.path(repoID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete index %s: %w", repoID, err)
	}
	return nil
}
