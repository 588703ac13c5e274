// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns source files into normalized symbol lists.
//
// Extraction is total: every file yields a (possibly empty) symbol list and
// never an error. Files with a tree-sitter grammar (JavaScript, TypeScript)
// get full AST extraction; Python gets line-oriented pattern extraction;
// everything else falls back to generic per-line signature matching. Parse
// failures trigger one syntax-repair-and-retry cycle before degrading to the
// generic path.
package extract

import (
	"strings"
	"unicode"

	"github.com/AleutianAI/semscope/services/semindex/repair"
)

// SymbolKind classifies an extracted symbol.
type SymbolKind string

// Symbol kinds.
const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindVariable  SymbolKind = "variable"
	SymbolKindImport    SymbolKind = "import"
	SymbolKindExport    SymbolKind = "export"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindType      SymbolKind = "type"
)

// Symbol is one named code entity extracted from a file.
//
// Symbols are immutable once extraction returns them; the graph owns them
// afterward and downstream components only read.
type Symbol struct {
	// ID is "file::name", unique within one analysis run. Overloaded names
	// within one file collide; the graph resolves collisions last-write-wins.
	ID string `json:"id"`

	// Name is the symbol name. Methods are qualified as "Class.method".
	Name string `json:"name"`

	// Kind classifies the symbol.
	Kind SymbolKind `json:"kind"`

	// File is the path of the containing file, relative to the scan root.
	File string `json:"file"`

	// Line is the 1-based line of the declaration.
	Line int `json:"line"`

	// Params lists parameter names. Destructured parameters are reduced to
	// a placeholder name.
	Params []string `json:"params,omitempty"`

	// Async is set for async functions and methods.
	Async bool `json:"async,omitempty"`

	// Static is set for static class members.
	Static bool `json:"static,omitempty"`

	// ClassName is the enclosing class for methods.
	ClassName string `json:"class_name,omitempty"`

	// Documentation is the comment block found immediately above the
	// declaration, trimmed.
	Documentation string `json:"documentation,omitempty"`

	// Signature is a reconstructed one-line declaration signature.
	Signature string `json:"signature,omitempty"`

	// Module is the source module specifier for import symbols.
	Module string `json:"module,omitempty"`

	// Extends is the parent class name, when the declaration has one.
	Extends string `json:"extends,omitempty"`

	// Exported is set for exported declarations.
	Exported bool `json:"exported,omitempty"`
}

// MakeSymbolID builds the canonical "file::name" symbol id.
func MakeSymbolID(file, name string) string {
	return file + "::" + name
}

// Import is one import statement with its named bindings.
type Import struct {
	// Module is the raw source specifier, e.g. "./utils" or "react".
	Module string `json:"module"`

	// Names are the named bindings, e.g. {a, b} → ["a", "b"].
	Names []string `json:"names,omitempty"`

	// Default is the default-import binding name, when present.
	Default string `json:"default,omitempty"`

	// Line is the 1-based line of the statement.
	Line int `json:"line"`
}

// Result is the outcome of extracting one file.
type Result struct {
	// File is the path extraction ran on.
	File string `json:"file"`

	// Language is the detected language tag ("javascript", "typescript",
	// "python", or "generic").
	Language string `json:"language"`

	// Symbols is the normalized symbol list. Never nil, possibly empty.
	Symbols []*Symbol `json:"symbols"`

	// Imports lists import statements for edge construction.
	Imports []Import `json:"imports,omitempty"`

	// FixApplied reports whether syntax repair changed the content before
	// extraction succeeded.
	FixApplied bool `json:"fix_applied,omitempty"`

	// Fix carries the full repair record when FixApplied is set, so the
	// assembler can aggregate it for the calling workflow.
	Fix *repair.Fix `json:"fix,omitempty"`

	// Degraded reports that AST parsing failed even after repair and the
	// generic extractor produced the symbols.
	Degraded bool `json:"degraded,omitempty"`
}

// maxDocScanLines bounds how far above a declaration the documentation scan
// looks.
const maxDocScanLines = 10

// docAbove collects the contiguous comment block immediately above line
// (1-based) in lines.
//
// Scans upward up to maxDocScanLines, accepting line comments, block comment
// bodies, and hash comments. Blank lines directly above the declaration and
// lone comment delimiters are skipped; the scan stops at the first
// non-comment line. The collected lines are stripped of comment markers,
// joined in source order, and trimmed.
func docAbove(lines []string, line int) string {
	if line <= 1 || line-1 > len(lines) {
		return ""
	}

	var collected []string
	blanksAllowed := true
	for i := line - 2; i >= 0 && (line-2-i) < maxDocScanLines; i-- {
		trimmed := strings.TrimSpace(lines[i])

		if trimmed == "" {
			// Blank lines between the declaration and its comment block are
			// tolerated, but a blank above the block ends the scan.
			if blanksAllowed {
				continue
			}
			break
		}

		stripped, isComment := stripCommentMarkers(trimmed)
		if !isComment {
			break
		}
		blanksAllowed = false
		if stripped == "" {
			// Lone delimiter line such as "/**" or "*/".
			continue
		}
		collected = append([]string{stripped}, collected...)
	}

	return strings.TrimSpace(strings.Join(collected, "\n"))
}

// stripCommentMarkers removes leading comment syntax from a trimmed line and
// reports whether the line was a comment at all.
func stripCommentMarkers(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "///"):
		return strings.TrimSpace(line[3:]), true
	case strings.HasPrefix(line, "//"):
		return strings.TrimSpace(line[2:]), true
	case strings.HasPrefix(line, "#"):
		return strings.TrimSpace(strings.TrimPrefix(line, "#")), true
	case strings.HasPrefix(line, "/**"):
		return strings.TrimSpace(strings.TrimSuffix(line[3:], "*/")), true
	case strings.HasPrefix(line, "/*"):
		return strings.TrimSpace(strings.TrimSuffix(line[2:], "*/")), true
	case strings.HasPrefix(line, "*/"):
		return "", true
	case strings.HasPrefix(line, "*"):
		return strings.TrimSpace(line[1:]), true
	default:
		return "", false
	}
}

// splitParamList splits a raw parameter list on top-level commas, reducing
// each entry to a bare name. Default values are dropped, rest parameters
// keep their "..." marker, and destructured patterns become a placeholder.
func splitParamList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var params []string
	depth := 0
	start := 0
	flush := func(end int) {
		p := paramName(strings.TrimSpace(raw[start:end]))
		if p != "" {
			params = append(params, p)
		}
	}
	for i, r := range raw {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(raw))
	return params
}

// paramName reduces one raw parameter to its name.
func paramName(p string) string {
	if p == "" {
		return ""
	}
	// Drop default value and type annotation.
	if idx := strings.IndexAny(p, "=:"); idx >= 0 {
		p = strings.TrimSpace(p[:idx])
	}
	if strings.HasPrefix(p, "...") {
		rest := strings.TrimSpace(p[3:])
		if rest == "" {
			return "...args"
		}
		return "..." + rest
	}
	// Destructured parameters reduce to a placeholder.
	if strings.HasPrefix(p, "{") || strings.HasPrefix(p, "[") {
		return "arg"
	}
	// Keep only a leading identifier.
	end := 0
	for i, r := range p {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			end = i + len(string(r))
			continue
		}
		break
	}
	return p[:end]
}
