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

// Python extraction is deliberately line-oriented: the common declaration
// forms are all line-anchored, and a full grammar buys little for the symbol
// granularity this index needs.
var (
	pyImportRe     = regexp.MustCompile(`^import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	pyFromImportRe = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(.+)$`)
	pyDefRe        = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(([^)]*)\)[^:]*:`)
	pyClassRe      = regexp.MustCompile(`^class\s+(\w+)(?:\(([^)]*)\))?\s*:`)
	pyDocstringRe  = regexp.MustCompile(`^\s*(?:'''|""")`)
)

// extractPython runs line-oriented pattern extraction over Python source.
func extractPython(content, filePath string, result *Result) {
	lines := strings.Split(content, "\n")

	// currentClass tracks the innermost class for indented defs. A def at
	// column zero clears it.
	currentClass := ""

	for i, line := range lines {
		lineNo := i + 1

		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			if m[2] != "" {
				name = m[2]
			}
			result.Imports = append(result.Imports, Import{Module: m[1], Default: name, Line: lineNo})
			result.Symbols = append(result.Symbols, &Symbol{
				ID:     MakeSymbolID(filePath, name),
				Name:   name,
				Kind:   SymbolKindImport,
				File:   filePath,
				Line:   lineNo,
				Module: m[1],
			})
			continue
		}

		if m := pyFromImportRe.FindStringSubmatch(line); m != nil {
			imp := Import{Module: m[1], Line: lineNo}
			for _, part := range strings.Split(m[2], ",") {
				name := strings.TrimSpace(part)
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = strings.TrimSpace(name[idx+4:])
				}
				name = strings.Trim(name, "()")
				if name == "" || name == "*" {
					continue
				}
				imp.Names = append(imp.Names, name)
				result.Symbols = append(result.Symbols, &Symbol{
					ID:     MakeSymbolID(filePath, name),
					Name:   name,
					Kind:   SymbolKindImport,
					File:   filePath,
					Line:   lineNo,
					Module: m[1],
				})
			}
			result.Imports = append(result.Imports, imp)
			continue
		}

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			extends := ""
			if m[2] != "" {
				bases := strings.Split(m[2], ",")
				extends = strings.TrimSpace(bases[0])
				if extends == "object" {
					extends = ""
				}
			}
			sig := "class " + name
			if m[2] != "" {
				sig += "(" + m[2] + ")"
			}
			result.Symbols = append(result.Symbols, &Symbol{
				ID:            MakeSymbolID(filePath, name),
				Name:          name,
				Kind:          SymbolKindClass,
				File:          filePath,
				Line:          lineNo,
				Signature:     sig,
				Documentation: pythonDoc(lines, i),
				Extends:       extends,
			})
			currentClass = name
			continue
		}

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			indent := m[1]
			isAsync := m[2] != ""
			name := m[3]
			params := splitParamList(m[4])

			// self/cls are receivers, not parameters.
			if len(params) > 0 && (params[0] == "self" || params[0] == "cls") {
				params = params[1:]
			}

			kind := SymbolKindFunction
			symName := name
			className := ""
			if indent != "" && currentClass != "" {
				kind = SymbolKindMethod
				className = currentClass
				symName = currentClass + "." + name
			} else if indent == "" {
				currentClass = ""
			}

			sig := "def " + name + "(" + strings.Join(params, ", ") + ")"
			if isAsync {
				sig = "async " + sig
			}

			result.Symbols = append(result.Symbols, &Symbol{
				ID:            MakeSymbolID(filePath, symName),
				Name:          symName,
				Kind:          kind,
				File:          filePath,
				Line:          lineNo,
				Params:        params,
				Async:         isAsync,
				ClassName:     className,
				Signature:     sig,
				Documentation: pythonDoc(lines, i),
			})
		}
	}
}

// pythonDoc collects the triple-quoted docstring immediately following the
// declaration at index declIdx (0-based).
func pythonDoc(lines []string, declIdx int) string {
	if declIdx+1 >= len(lines) {
		return ""
	}
	first := lines[declIdx+1]
	if !pyDocstringRe.MatchString(first) {
		return ""
	}

	quote := `"""`
	if strings.Contains(first, "'''") {
		quote = "'''"
	}

	opened := strings.TrimSpace(first)
	body := strings.TrimPrefix(opened, quote)

	// One-line docstring: """text""".
	if strings.Contains(body, quote) {
		return strings.TrimSpace(strings.TrimSuffix(body, quote))
	}

	var parts []string
	if strings.TrimSpace(body) != "" {
		parts = append(parts, strings.TrimSpace(body))
	}
	for i := declIdx + 2; i < len(lines) && i < declIdx+2+maxDocScanLines; i++ {
		line := strings.TrimSpace(lines[i])
		if idx := strings.Index(line, quote); idx >= 0 {
			if rest := strings.TrimSpace(line[:idx]); rest != "" {
				parts = append(parts, rest)
			}
			break
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
