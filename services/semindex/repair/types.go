// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repair provides heuristic, language-aware source repair.
//
// Two repair families are implemented:
//
//   - Syntax repair (syntax.go): an ordered pipeline of structural fixes
//     (incomplete declarations, missing terminators and separators, bracket
//     balancing) that gives a parser a fighting chance on malformed input.
//
//   - Naming repair (naming.go): a cross-file heuristic that detects exported
//     names diverging from what importers expect and corrects likely typos.
//
// Both repairs are total functions: they never fail, and running a repair on
// its own output is a no-op. Callers rely on that idempotency to retry safely.
package repair

// FixKind identifies a single category of repair.
type FixKind string

// Syntax repair fix kinds, in pipeline order.
const (
	FixKindCompleteDeclaration FixKind = "complete_declaration"
	FixKindInsertTerminator    FixKind = "insert_terminator"
	FixKindInsertSeparator     FixKind = "insert_separator"
	FixKindBalanceBrackets     FixKind = "balance_brackets"
	FixKindStripSeparator      FixKind = "strip_trailing_separator"

	// FixKindRenameExport is produced by naming repair.
	FixKindRenameExport FixKind = "rename_export"
)

// FixDescriptor describes one applied fix.
type FixDescriptor struct {
	// Kind is the category of the fix.
	Kind FixKind `json:"kind"`

	// Line is the 1-based line the fix was applied at, or 0 for
	// whole-content fixes such as bracket balancing.
	Line int `json:"line,omitempty"`

	// Detail is a short human-readable description of what changed.
	Detail string `json:"detail"`
}

// Result is the outcome of a single repair invocation.
//
// The zero value represents "nothing to do". When Fixed is false, Content is
// byte-identical to the input.
type Result struct {
	// Fixed reports whether any fix changed the content.
	Fixed bool `json:"fixed"`

	// Content is the repaired content (or the original when Fixed is false).
	Content string `json:"content"`

	// Fixes lists every applied fix in application order.
	Fixes []FixDescriptor `json:"fixes,omitempty"`

	// ShouldCommit reports whether the change is material enough that the
	// consuming workflow should persist it. Cosmetic no-ops stay false.
	ShouldCommit bool `json:"should_commit"`
}

// Fix records a repaired file for graph aggregation.
//
// One Fix is produced per file that any repair stage changed. The original
// and fixed content are both retained so the consuming workflow can decide
// whether to persist the repair.
type Fix struct {
	// FilePath is the file the fix applies to, relative to the scan root.
	FilePath string `json:"file_path"`

	// OriginalContent is the content before repair.
	OriginalContent string `json:"original_content"`

	// FixedContent is the content after repair.
	FixedContent string `json:"fixed_content"`

	// Fixes lists the individual fixes applied.
	Fixes []FixDescriptor `json:"fixes"`

	// ShouldCommit mirrors Result.ShouldCommit.
	ShouldCommit bool `json:"should_commit"`
}
