// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieve

import (
	"fmt"
	"sort"
	"strings"
)

// FormatForConsumption renders a bundle as a structured text report: a
// summary block, the top files, per-file detail with imports, exports,
// symbols and snippets, then the dependency and reference lists. This is
// the literal hand-off artifact for any downstream reasoning step.
func FormatForConsumption(bundle *ContextBundle) string {
	var b strings.Builder

	b.WriteString("# Code Context\n\n")
	fmt.Fprintf(&b, "Query: %s\n", bundle.Query)
	if bundle.Compacted {
		b.WriteString("Note: bundle was compacted to fit the token budget.\n")
	}
	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "- Files: %d\n", bundle.Summary.TotalFiles)
	fmt.Fprintf(&b, "- Symbols: %d\n", bundle.Summary.TotalSymbols)
	if len(bundle.Summary.Languages) > 0 {
		fmt.Fprintf(&b, "- Languages: %s\n", strings.Join(bundle.Summary.Languages, ", "))
	}
	if len(bundle.Summary.SymbolKinds) > 0 {
		kinds := make([]string, 0, len(bundle.Summary.SymbolKinds))
		for k := range bundle.Summary.SymbolKinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, bundle.Summary.SymbolKinds[k]))
		}
		fmt.Fprintf(&b, "- Symbol kinds: %s\n", strings.Join(parts, ", "))
	}

	if len(bundle.Summary.TopFiles) > 0 {
		b.WriteString("\n## Top Files\n\n")
		for i, path := range bundle.Summary.TopFiles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, path)
		}
	}

	for _, fc := range bundle.Files {
		fmt.Fprintf(&b, "\n## %s\n\n", fc.Path)
		if fc.Language != "" {
			fmt.Fprintf(&b, "Language: %s | Matches: %d\n", fc.Language, fc.MatchCount)
		}
		if len(fc.Imports) > 0 {
			fmt.Fprintf(&b, "Imports: %s\n", strings.Join(fc.Imports, ", "))
		}
		if len(fc.Exports) > 0 {
			fmt.Fprintf(&b, "Exports: %s\n", strings.Join(fc.Exports, ", "))
		}

		if len(fc.Symbols) > 0 {
			b.WriteString("\nSymbols:\n")
			for _, sym := range fc.Symbols {
				fmt.Fprintf(&b, "- %s (%s, line %d, score %.3f)\n", sym.Name, sym.Kind, sym.Line, sym.Similarity)
				if sym.Documentation != "" {
					fmt.Fprintf(&b, "  %s\n", firstLine(sym.Documentation))
				}
			}
		}

		if fc.FullContent != "" {
			b.WriteString("\n```\n")
			b.WriteString(fc.FullContent)
			if !strings.HasSuffix(fc.FullContent, "\n") {
				b.WriteString("\n")
			}
			b.WriteString("```\n")
		}
		for _, sn := range fc.Snippets {
			fmt.Fprintf(&b, "\nLines %d-%d:\n```\n%s\n```\n", sn.StartLine, sn.EndLine, sn.Content)
		}
	}

	if len(bundle.Dependencies) > 0 {
		b.WriteString("\n## Dependencies\n\n")
		for _, dep := range bundle.Dependencies {
			marker := "external"
			if dep.Resolved {
				marker = "internal"
			}
			fmt.Fprintf(&b, "- %s -> %s (%s)\n", dep.File, dep.Module, marker)
		}
	}

	if len(bundle.References) > 0 {
		b.WriteString("\n## References\n\n")
		for _, ref := range bundle.References {
			fmt.Fprintf(&b, "- %s:\n", ref.Symbol)
			for _, edge := range ref.Edges {
				fmt.Fprintf(&b, "  - %s %s %s\n", edge.From, edge.Kind, edge.To.String())
			}
		}
	}

	return b.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
