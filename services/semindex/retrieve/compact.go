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

// Fixed compaction caps. These are hard limits: the compacted bundle
// never exceeds them even when the token estimate is inaccurate.
const (
	compactMaxFiles        = 5
	compactMaxSymbols      = 20
	compactMaxDependencies = 10
	compactMaxReferences   = 10
	compactSnippetsPerFile = 2
)

// EstimateTokens approximates the rendered bundle's token count as
// rendered characters divided by four.
func EstimateTokens(bundle *ContextBundle) int {
	return len(FormatForConsumption(bundle)) / 4
}

// CreateCompactContext trims a bundle under the fixed caps, in order:
// full file contents are dropped, files capped, symbols capped across the
// bundle, snippets capped per file, dependency and reference lists
// capped. The input bundle is not modified.
func CreateCompactContext(bundle *ContextBundle) *ContextBundle {
	out := &ContextBundle{
		Query:     bundle.Query,
		Compacted: true,
	}

	files := bundle.Files
	if len(files) > compactMaxFiles {
		files = files[:compactMaxFiles]
	}

	symbolBudget := compactMaxSymbols
	for _, fc := range files {
		trimmed := fc
		trimmed.FullContent = ""

		if len(trimmed.Symbols) > symbolBudget {
			trimmed.Symbols = trimmed.Symbols[:symbolBudget]
		}
		symbolBudget -= len(trimmed.Symbols)

		if len(trimmed.Snippets) > compactSnippetsPerFile {
			trimmed.Snippets = trimmed.Snippets[:compactSnippetsPerFile]
		}
		out.Files = append(out.Files, trimmed)
	}

	out.Dependencies = bundle.Dependencies
	if len(out.Dependencies) > compactMaxDependencies {
		out.Dependencies = out.Dependencies[:compactMaxDependencies]
	}
	out.References = bundle.References
	if len(out.References) > compactMaxReferences {
		out.References = out.References[:compactMaxReferences]
	}

	out.Summary = recomputeSummary(bundle.Summary, out.Files)
	return out
}

// recomputeSummary rebuilds the counts the trim invalidated, keeping the
// language set from the original.
func recomputeSummary(orig Summary, files []FileContext) Summary {
	s := Summary{
		Languages:   orig.Languages,
		SymbolKinds: make(map[string]int),
	}
	for _, fc := range files {
		s.TotalFiles++
		s.TotalSymbols += len(fc.Symbols)
		for _, sym := range fc.Symbols {
			s.SymbolKinds[sym.Kind]++
		}
		if len(s.TopFiles) < topFilesInSummary {
			s.TopFiles = append(s.TopFiles, fc.Path)
		}
	}
	return s
}
