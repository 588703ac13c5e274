// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// syntaxStep is one stage of the syntax repair pipeline.
//
// Each step is a pure function content → content with an explicit language
// precondition. Steps must be idempotent in isolation: applying a step to its
// own output produces no further fixes. The pipeline inherits that property.
type syntaxStep struct {
	kind    FixKind
	applies func(lang string) bool
	apply   func(content string) (string, []FixDescriptor)
}

// Pipeline order matters: bracket balancing must run after terminator and
// separator insertion (both can change brace counts on a line) and before
// the final separator cleanup, which strips commas the balancer may have
// left dangling in front of an appended closer.
var syntaxSteps = []syntaxStep{
	{kind: FixKindCompleteDeclaration, applies: isScriptLang, apply: completeDeclarations},
	{kind: FixKindInsertTerminator, applies: isScriptLang, apply: insertTerminators},
	{kind: FixKindInsertSeparator, applies: isScriptLang, apply: insertMemberSeparators},
	{kind: FixKindBalanceBrackets, applies: anyLang, apply: balanceBrackets},
	{kind: FixKindStripSeparator, applies: anyLang, apply: stripTrailingSeparators},
}

// RepairSyntax applies the structural fix pipeline to content.
//
// Description:
//
//	Runs every applicable pipeline step in order and reports the combined
//	result. RepairSyntax is total: it never returns an error, and on any
//	internal condition it falls back to returning the original content with
//	Fixed=false. It is also re-entrant: repairing already-repaired content
//	reports Fixed=false.
//
// Inputs:
//
//	content  - Raw source text. May be arbitrarily malformed.
//	filePath - Path used only to pick language-specific steps by extension.
//
// Outputs:
//
//	Result - Fixed content plus per-fix descriptors. ShouldCommit is true
//	         exactly when the content changed.
func RepairSyntax(content, filePath string) Result {
	lang := languageFamily(filePath)

	fixed := content
	var fixes []FixDescriptor
	for _, step := range syntaxSteps {
		if !step.applies(lang) {
			continue
		}
		next, applied := step.apply(fixed)
		if len(applied) > 0 && next != fixed {
			fixed = next
			fixes = append(fixes, applied...)
		}
	}

	if fixed == content {
		return Result{Fixed: false, Content: content}
	}
	return Result{
		Fixed:        true,
		Content:      fixed,
		Fixes:        fixes,
		ShouldCommit: true,
	}
}

// languageFamily maps a file extension to a coarse repair family.
func languageFamily(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx":
		return "script"
	case ".py":
		return "python"
	default:
		return "generic"
	}
}

func isScriptLang(lang string) bool { return lang == "script" }
func anyLang(string) bool           { return true }

// =============================================================================
// Step 1: complete incomplete object-literal declarations
// =============================================================================

// declTailRe matches a line whose trailing assignment has no initializer,
// e.g. "export const helper =".
var declTailRe = regexp.MustCompile(`=\s*$`)

// methodStartRe matches the start of an object method on the following line,
// e.g. "  async doWork() {" or "  doWork(a, b) {".
var methodStartRe = regexp.MustCompile(`^\s*(?:async\s+)?[A-Za-z_$][\w$]*\s*\(`)

// completeDeclarations inserts the missing "{" when an assignment is
// immediately followed by what looks like an object method start. The
// matching closer is supplied later by balanceBrackets.
func completeDeclarations(content string) (string, []FixDescriptor) {
	lines := strings.Split(content, "\n")
	var fixes []FixDescriptor

	for i := 0; i < len(lines)-1; i++ {
		if !declTailRe.MatchString(lines[i]) {
			continue
		}
		if !methodStartRe.MatchString(lines[i+1]) {
			continue
		}
		lines[i] = strings.TrimRight(lines[i], " \t") + " {"
		fixes = append(fixes, FixDescriptor{
			Kind:   FixKindCompleteDeclaration,
			Line:   i + 1,
			Detail: "inserted '{' after dangling assignment",
		})
	}

	if len(fixes) == 0 {
		return content, nil
	}
	return strings.Join(lines, "\n"), fixes
}

// =============================================================================
// Step 2: insert missing statement terminators
// =============================================================================

// statementKeywordRe matches lines that begin a statement recognizable by its
// leading keyword. Only these are candidates for terminator insertion;
// anything else is too ambiguous to touch.
var statementKeywordRe = regexp.MustCompile(
	`^\s*(?:export\s+)?(?:const|let|var|return|throw|break|continue|import)\b`)

// openEnders is the set of trailing runes after which a statement is clearly
// unfinished or already closed, so no terminator is inserted.
const openEnders = ";{}([,.:=<>&|+-*/?`"

// insertTerminators appends ';' to keyword-led statements that are complete
// on their line but not terminated.
func insertTerminators(content string) (string, []FixDescriptor) {
	lines := strings.Split(content, "\n")
	var fixes []FixDescriptor

	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" || !statementKeywordRe.MatchString(trimmed) {
			continue
		}
		last := trimmed[len(trimmed)-1]
		if strings.ContainsRune(openEnders, rune(last)) {
			continue
		}
		// Unbalanced quotes on the line mean a broken or multi-line string;
		// appending ';' there would land inside the literal.
		if strings.Count(trimmed, `"`)%2 != 0 || strings.Count(trimmed, `'`)%2 != 0 {
			continue
		}
		lines[i] = trimmed + ";"
		fixes = append(fixes, FixDescriptor{
			Kind:   FixKindInsertTerminator,
			Line:   i + 1,
			Detail: "inserted missing ';'",
		})
	}

	if len(fixes) == 0 {
		return content, nil
	}
	return strings.Join(lines, "\n"), fixes
}

// =============================================================================
// Step 3: insert missing separators between adjacent object members
// =============================================================================

// memberLineRe matches an object member line ("key: value") whose value does
// not already end in a separator or an opener.
var memberLineRe = regexp.MustCompile(`^\s*['"]?[\w$]+['"]?\s*:.*[^\s,{[(]$`)

// memberKeyRe matches the start of the next object member.
var memberKeyRe = regexp.MustCompile(`^\s*['"]?[\w$]+['"]?\s*:`)

// insertMemberSeparators appends ',' between two adjacent object members that
// lack one.
func insertMemberSeparators(content string) (string, []FixDescriptor) {
	lines := strings.Split(content, "\n")
	var fixes []FixDescriptor

	for i := 0; i < len(lines)-1; i++ {
		cur := strings.TrimRight(lines[i], " \t")
		if !memberLineRe.MatchString(cur) {
			continue
		}
		if !memberKeyRe.MatchString(lines[i+1]) {
			continue
		}
		lines[i] = cur + ","
		fixes = append(fixes, FixDescriptor{
			Kind:   FixKindInsertSeparator,
			Line:   i + 1,
			Detail: "inserted missing ',' between object members",
		})
	}

	if len(fixes) == 0 {
		return content, nil
	}
	return strings.Join(lines, "\n"), fixes
}

// =============================================================================
// Step 4: balance unmatched brackets
// =============================================================================

var closerFor = map[byte]byte{'{': '}', '(': ')', '[': ']'}
var openerFor = map[byte]byte{'}': '{', ')': '(', ']': '['}

// balanceBrackets removes orphaned closing tokens and appends the deficit of
// closers for unmatched openers.
//
// Counting is raw and character based: brackets inside string literals count
// too. That keeps the balance guarantee absolute (after this step every
// bracket kind has equal open and close counts for any input), at the cost
// of occasionally touching pathological literals. For already-mangled input
// that trade is the right one; well-formed files never reach this step with
// a deficit.
//
// The closing point is chosen to be semantically plausible: when the content
// ends with a terminated statement (trailing ';'), closers are inserted just
// before that final ';' so a dangling object body is closed inside its
// declaration rather than after it.
func balanceBrackets(content string) (string, []FixDescriptor) {
	type open struct {
		ch  byte
		pos int
	}

	var stack []open
	orphans := make(map[int]bool) // byte offsets of orphaned closers

	for i := 0; i < len(content); i++ {
		c := content[i]
		if _, isOpen := closerFor[c]; isOpen {
			stack = append(stack, open{ch: c, pos: i})
			continue
		}
		if want, isClose := openerFor[c]; isClose {
			if len(stack) > 0 && stack[len(stack)-1].ch == want {
				stack = stack[:len(stack)-1]
			} else {
				orphans[i] = true
			}
		}
	}

	if len(stack) == 0 && len(orphans) == 0 {
		return content, nil
	}

	var fixes []FixDescriptor

	// Drop orphaned closers first.
	if len(orphans) > 0 {
		var b strings.Builder
		b.Grow(len(content))
		for i := 0; i < len(content); i++ {
			if !orphans[i] {
				b.WriteByte(content[i])
			}
		}
		content = b.String()
		fixes = append(fixes, FixDescriptor{
			Kind:   FixKindBalanceBrackets,
			Detail: fmt.Sprintf("removed %d orphaned closing token(s)", len(orphans)),
		})
	}

	// Append closers for unmatched openers, innermost first.
	if len(stack) > 0 {
		var closers []byte
		for i := len(stack) - 1; i >= 0; i-- {
			closers = append(closers, closerFor[stack[i].ch])
		}

		trimmed := strings.TrimRight(content, " \t\n")
		tail := content[len(trimmed):]
		if strings.HasSuffix(trimmed, ";") {
			content = trimmed[:len(trimmed)-1] + string(closers) + ";" + tail
		} else {
			content = trimmed + string(closers) + tail
		}
		fixes = append(fixes, FixDescriptor{
			Kind:   FixKindBalanceBrackets,
			Detail: fmt.Sprintf("appended %d missing closing token(s) %q", len(closers), string(closers)),
		})
	}

	return content, fixes
}

// =============================================================================
// Step 5: strip orphaned trailing separators
// =============================================================================

var trailingSeparatorRe = regexp.MustCompile(`,(\s*[}\])])`)

// stripTrailingSeparators removes a ',' that sits directly before a closing
// token, including ones the balancer just appended. Each replacement pass
// exposes the next comma of a consecutive run, so the strip loops until the
// content stops changing; one repair call reaches the fixpoint.
func stripTrailingSeparators(content string) (string, []FixDescriptor) {
	count := 0
	for {
		found := len(trailingSeparatorRe.FindAllString(content, -1))
		if found == 0 {
			break
		}
		count += found
		content = trailingSeparatorRe.ReplaceAllString(content, "$1")
	}
	if count == 0 {
		return content, nil
	}
	return content, []FixDescriptor{{
		Kind:   FixKindStripSeparator,
		Detail: fmt.Sprintf("removed %d trailing separator(s) before closing tokens", count),
	}}
}
