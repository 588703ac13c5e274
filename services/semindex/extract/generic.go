// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"regexp"
	"strings"
)

// genericPattern matches one cross-language declaration form.
type genericPattern struct {
	re   *regexp.Regexp
	kind SymbolKind
}

// genericPatterns is tried in order per line; the first match wins and the
// rest are skipped for that line. The order puts the most specific shapes
// first so "export function foo" is a function, not a variable.
var genericPatterns = []genericPattern{
	{regexp.MustCompile(`(?:^|\s)(?:async\s+)?function\s+(\w+)\s*\(`), SymbolKindFunction},
	{regexp.MustCompile(`(?:^|\s)(?:public|private|protected|static|final|abstract)\s+[\w<>\[\]]+\s+(\w+)\s*\([^)]*\)\s*\{`), SymbolKindMethod},
	{regexp.MustCompile(`(?:^|\s)(?:def|fn|func|sub|procedure)\s+(\w+)\s*[\(\s]`), SymbolKindFunction},
	{regexp.MustCompile(`(?:^|\s)interface\s+(\w+)`), SymbolKindInterface},
	{regexp.MustCompile(`(?:^|\s)(?:class|struct|trait|enum)\s+(\w+)`), SymbolKindClass},
	{regexp.MustCompile(`(\w+)\s*[:=]\s*(?:async\s+)?function\s*\(`), SymbolKindFunction},
	{regexp.MustCompile(`(?:^|\s)(?:const|let|var)\s+(\w+)\s*=`), SymbolKindVariable},
}

// extractGeneric is the catch-all extractor for files with no dedicated
// parser, and the degraded path when AST parsing fails even after repair.
// It matches a small ordered list of cross-language signature patterns per
// line, stopping at the first match per line.
func extractGeneric(content, filePath string, result *Result) {
	lines := strings.Split(content, "\n")
	seen := make(map[string]bool)

	for i, line := range lines {
		for _, pat := range genericPatterns {
			m := pat.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			if name == "" || seen[name] {
				break
			}
			seen[name] = true
			result.Symbols = append(result.Symbols, &Symbol{
				ID:            MakeSymbolID(filePath, name),
				Name:          name,
				Kind:          pat.kind,
				File:          filePath,
				Line:          i + 1,
				Signature:     strings.TrimSpace(line),
				Documentation: docAbove(lines, i+1),
			})
			break
		}
	}
}
