// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/semscope/services/semindex/extract"
	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// schemaVersion is bumped whenever the serialized layout changes shape.
const schemaVersion = 1

// ErrSchemaVersion reports a stored graph written by an incompatible
// version.
var ErrSchemaVersion = errors.New("unsupported graph schema version")

// serializedGraph is the on-disk envelope for a SymbolGraph.
type serializedGraph struct {
	Version     int                        `json:"version"`
	RunID       string                     `json:"run_id"`
	Symbols     map[string]*extract.Symbol `json:"symbols"`
	Files       map[string]*FileRecord     `json:"files"`
	Edges       []Edge                     `json:"edges"`
	SyntaxFixes []repair.Fix               `json:"syntax_fixes,omitempty"`
}

// Marshal serializes the graph as versioned JSON.
func Marshal(g *SymbolGraph) ([]byte, error) {
	env := serializedGraph{
		Version:     schemaVersion,
		RunID:       g.RunID,
		Symbols:     g.Symbols,
		Files:       g.Files,
		Edges:       g.Edges,
		SyntaxFixes: g.SyntaxFixes,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal symbol graph: %w", err)
	}
	return data, nil
}

// Unmarshal restores a graph from versioned JSON, normalizing nil
// containers so callers never see nil maps.
func Unmarshal(data []byte) (*SymbolGraph, error) {
	var env serializedGraph
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal symbol graph: %w", err)
	}
	if env.Version != schemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, env.Version, schemaVersion)
	}

	g := &SymbolGraph{
		RunID:       env.RunID,
		Symbols:     env.Symbols,
		Files:       env.Files,
		Edges:       env.Edges,
		SyntaxFixes: env.SyntaxFixes,
	}
	if g.Symbols == nil {
		g.Symbols = make(map[string]*extract.Symbol)
	}
	if g.Files == nil {
		g.Files = make(map[string]*FileRecord)
	}
	if g.Edges == nil {
		g.Edges = make([]Edge, 0)
	}
	return g, nil
}
