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
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Confidence thresholds for naming repair. Only flags at or above
// highConfidence are auto-applied; weaker flags are reported but left alone.
const (
	highConfidence = 0.8

	// divergenceThreshold is the similarity below which an export and an
	// import of the same file are considered diverged.
	divergenceThreshold = 0.5

	// fileMatchThreshold is the similarity above which an imported name is
	// considered to match the exporting file's base name, making the import
	// the likely intended spelling.
	fileMatchThreshold = 0.7
)

// SourceFile is the minimal file view naming repair needs. The assembler
// adapts its own file records into this shape.
type SourceFile struct {
	Path    string
	Content string
}

// renameFlag is one candidate export rename discovered during analysis.
type renameFlag struct {
	original   string
	suggested  string
	confidence float64
	importer   string
}

var (
	exportDeclRe = regexp.MustCompile(
		`export\s+(?:default\s+)?(?:async\s+)?(?:const|let|var|function\*?|class|interface|type|enum)\s+([A-Za-z_$][\w$]*)`)

	exportClauseRe = regexp.MustCompile(`export\s*\{([^}]*)\}`)

	importStmtRe = regexp.MustCompile(
		`import\s+(?:([A-Za-z_$][\w$]*)\s*,\s*)?(?:([A-Za-z_$][\w$]*)|\{([^}]*)\}|\*\s+as\s+[A-Za-z_$][\w$]*)?\s*from\s*['"]([^'"]+)['"]`)

	requireRe = regexp.MustCompile(
		`(?:const|let|var)\s+\{([^}]*)\}\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)`)
)

// RepairNaming corrects exported names that diverge from what importers of
// the file expect.
//
// Description:
//
//	For every exported declaration name in content, scans allFiles for import
//	statements whose source specifier resolves to filePath and compares names
//	with a normalized, case-insensitive edit-distance similarity in [0,1].
//	A rename is flagged at high confidence when either:
//
//	  - sim(export, import) < 0.5 and sim(import, fileBase) > 0.7, or
//	  - the export is a strict in-order abbreviation of the import
//	    (the "forgot some letters" typo class, e.g. hlp → helper).
//
//	A weaker rule flags short all-lowercase exports against a longer
//	mixed-case file name whose importers closely match the file name.
//	Flags for the same (original, suggested) pair are deduplicated keeping
//	the highest confidence; only high-confidence flags are applied.
//
//	This is a best-effort heuristic. False positives are possible when
//	several files legitimately export near-identical names; the caller
//	accepts that risk in exchange for catching the common typo class.
//
// Inputs:
//
//	content  - The file's source text.
//	filePath - The file's path relative to the scan root.
//	allFiles - Every file in the run, used as cross-reference context.
//	           The file itself is skipped.
//
// Outputs:
//
//	Result - Repaired content with one FixKindRenameExport descriptor per
//	         applied rename. Never fails; Fixed=false when nothing applied.
func RepairNaming(content, filePath string, allFiles []SourceFile) Result {
	exports := collectExportedNames(content)
	if len(exports) == 0 {
		return Result{Fixed: false, Content: content}
	}

	fileBase := baseName(filePath)

	// Gather every name imported from this file across the rest of the run.
	var importedNames []importedName
	for _, f := range allFiles {
		if f.Path == filePath {
			continue
		}
		importedNames = append(importedNames, importsOfFile(f, filePath)...)
	}
	if len(importedNames) == 0 {
		return Result{Fixed: false, Content: content}
	}

	// Score every (export, import) pair.
	best := make(map[string]renameFlag) // "orig→sugg" → highest-confidence flag
	for _, exp := range exports {
		for _, imp := range importedNames {
			flag, ok := scorePair(exp, imp, fileBase)
			if !ok {
				continue
			}
			key := flag.original + "\x00" + flag.suggested
			if prev, exists := best[key]; !exists || flag.confidence > prev.confidence {
				best[key] = flag
			}
		}
	}

	fixed := content
	var fixes []FixDescriptor
	for _, flag := range best {
		if flag.confidence < highConfidence {
			continue
		}
		renamed := renameIdentifier(fixed, flag.original, flag.suggested)
		if renamed == fixed {
			continue
		}
		fixed = renamed
		fixes = append(fixes, FixDescriptor{
			Kind: FixKindRenameExport,
			Detail: fmt.Sprintf("renamed export %q to %q (imported as %q by %s, confidence %.2f)",
				flag.original, flag.suggested, flag.suggested, flag.importer, flag.confidence),
		})
	}

	if len(fixes) == 0 {
		return Result{Fixed: false, Content: content}
	}
	return Result{Fixed: true, Content: fixed, Fixes: fixes, ShouldCommit: true}
}

// importedName is one name imported from the file under repair.
type importedName struct {
	name     string
	importer string
}

// scorePair evaluates one export/import pair against the decision rules.
func scorePair(export string, imp importedName, fileBase string) (renameFlag, bool) {
	if strings.EqualFold(export, imp.name) {
		return renameFlag{}, false
	}

	simEI := Similarity(export, imp.name)
	simIF := Similarity(imp.name, fileBase)

	flag := renameFlag{original: export, suggested: imp.name, importer: imp.importer}

	// Primary rule: export diverged from the import, and the import matches
	// the file's naming convention, so the import is the intended spelling.
	if simEI < divergenceThreshold && simIF > fileMatchThreshold {
		flag.confidence = 0.9
		return flag, true
	}

	// Abbreviation rule: the export is a strict in-order subsequence of the
	// import with only a few letters missing. This is the classic truncated
	// or letter-dropped typo (hlp → helper, helpe → helper).
	if len(export) >= 3 && len(export) < len(imp.name) &&
		len(imp.name)-len(export) <= 3 &&
		isSubsequence(strings.ToLower(export), strings.ToLower(imp.name)) {
		flag.confidence = 0.85
		return flag, true
	}

	// Weak rule: a short all-lowercase export against a longer mixed-case
	// file name, when the import closely matches the file name. Reported
	// but never auto-applied.
	if len(export) <= 4 && isAllLower(export) &&
		len(fileBase) > len(export) && hasUpper(fileBase) &&
		simIF > fileMatchThreshold {
		flag.confidence = 0.5
		return flag, true
	}

	return renameFlag{}, false
}

// collectExportedNames extracts exported declaration names from content.
func collectExportedNames(content string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, m := range exportDeclRe.FindAllStringSubmatch(content, -1) {
		if name := m[1]; name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, m := range exportClauseRe.FindAllStringSubmatch(content, -1) {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(part)
			// "name as alias" exports the alias.
			if idx := strings.Index(name, " as "); idx >= 0 {
				name = strings.TrimSpace(name[idx+4:])
			}
			if name != "" && isIdentifier(name) && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// importsOfFile returns every name f imports from target.
func importsOfFile(f SourceFile, target string) []importedName {
	var names []importedName

	add := func(raw string) {
		for _, part := range strings.Split(raw, ",") {
			name := strings.TrimSpace(part)
			if idx := strings.Index(name, " as "); idx >= 0 {
				name = strings.TrimSpace(name[:idx])
			}
			if name != "" && isIdentifier(name) {
				names = append(names, importedName{name: name, importer: f.Path})
			}
		}
	}

	for _, m := range importStmtRe.FindAllStringSubmatch(f.Content, -1) {
		if !specifierMatches(m[4], f.Path, target) {
			continue
		}
		if m[1] != "" {
			add(m[1])
		}
		if m[2] != "" {
			add(m[2])
		}
		if m[3] != "" {
			add(m[3])
		}
	}
	for _, m := range requireRe.FindAllStringSubmatch(f.Content, -1) {
		if specifierMatches(m[2], f.Path, target) {
			add(m[1])
		}
	}
	return names
}

// specifierMatches reports whether an import specifier, resolved relative to
// the importing file, references target. Extensions and trailing /index are
// ignored, matching module resolution behavior.
func specifierMatches(spec, importer, target string) bool {
	if spec == "" || !strings.HasPrefix(spec, ".") {
		return false
	}
	resolved := path.Clean(path.Join(path.Dir(filepath.ToSlash(importer)), spec))
	return modulePathKey(resolved) == modulePathKey(filepath.ToSlash(target))
}

// modulePathKey normalizes a path for specifier comparison.
func modulePathKey(p string) string {
	p = strings.TrimSuffix(p, path.Ext(p))
	p = strings.TrimSuffix(p, "/index")
	return p
}

// baseName returns the file name without directory or extension.
func baseName(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// renameIdentifier replaces whole-word occurrences of old with new.
func renameIdentifier(content, oldName, newName string) string {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(oldName) + `\b`)
	if err != nil {
		return content
	}
	return re.ReplaceAllString(content, newName)
}

// Similarity returns a normalized, case-insensitive edit-distance similarity
// in [0,1]. Identical strings score 1; strings with nothing in common score
// near 0. Either string being empty scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la := strings.ToLower(a)
	lb := strings.ToLower(b)
	if la == lb {
		return 1
	}
	dist := levenshtein(la, lb)
	maxLen := len(la)
	if len(lb) > maxLen {
		maxLen = len(lb)
	}
	return 1 - float64(dist)/float64(maxLen)
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming formulation.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// isSubsequence reports whether every rune of sub appears in s in order.
func isSubsequence(sub, s string) bool {
	i := 0
	for _, r := range s {
		if i < len(sub) && rune(sub[i]) == r {
			i++
		}
	}
	return i == len(sub)
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return s != ""
}

func isAllLower(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
