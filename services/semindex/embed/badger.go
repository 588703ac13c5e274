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
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key layout for embedding indexes.
const (
	keyPrefixIndex = "semindex:index:"
	keySuffixData  = ":data"
	keySuffixMeta  = ":meta"
)

// BadgerStore persists embedding indexes as gzip-compressed JSON in
// BadgerDB. It is the store of choice when the caller already runs a
// Badger instance for other artifacts.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency
//	control.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore creates a store over an opened BadgerDB instance. The
// caller owns the DB lifecycle.
func NewBadgerStore(db *badger.DB, logger *slog.Logger) (*BadgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) dataKey(repoID string) []byte {
	return []byte(keyPrefixIndex + sanitizeRepoID(repoID) + keySuffixData)
}

func (s *BadgerStore) metaKey(repoID string) []byte {
	return []byte(keyPrefixIndex + sanitizeRepoID(repoID) + keySuffixMeta)
}

// Save stores the index as gzip(JSON) plus its metadata in one
// transaction.
func (s *BadgerStore) Save(repoID string, index *EmbeddingIndex) error {
	jsonData, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return fmt.Errorf("compressing index: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	metaJSON, err := json.Marshal(index.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(s.dataKey(repoID), compressed.Bytes()); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(s.metaKey(repoID), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing index to badger: %w", err)
	}

	s.logger.Info("embedding index saved",
		slog.String("repo_id", repoID),
		slog.Int("embeddings", index.Metadata.TotalEmbeddings),
		slog.Int("compressed_size", compressed.Len()),
	)
	return nil
}

// Load retrieves and decompresses the stored index. Absence maps to
// ErrIndexNotFound; undecodable payloads map to ErrIndexCorrupt.
func (s *BadgerStore) Load(repoID string) (*EmbeddingIndex, error) {
	var compressed []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.dataKey(repoID))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, repoID)
		}
		return nil, fmt.Errorf("reading index %s: %w", repoID, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, repoID, err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, repoID, err)
	}

	var index EmbeddingIndex
	if err := json.Unmarshal(jsonData, &index); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, repoID, err)
	}
	return &index, nil
}

// Exists reports whether an index is stored for repoID.
func (s *BadgerStore) Exists(repoID string) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.dataKey(repoID))
		return err
	})
	return err == nil
}

// Delete removes the stored index and its metadata. Deleting an absent
// index succeeds.
func (s *BadgerStore) Delete(repoID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(s.dataKey(repoID)); err != nil {
			return err
		}
		return txn.Delete(s.metaKey(repoID))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("deleting index %s: %w", repoID, err)
	}
	return nil
}
