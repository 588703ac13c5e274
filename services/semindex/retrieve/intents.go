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
	"context"
	"fmt"

	"github.com/AleutianAI/semscope/services/semindex/embed"
	"github.com/AleutianAI/semscope/services/semindex/graph"
)

// Intent names a canned analysis goal.
type Intent string

// Supported intents.
const (
	IntentSecurity         Intent = "security"
	IntentPerformance      Intent = "performance"
	IntentBugPatterns      Intent = "bug-patterns"
	IntentBestPractices    Intent = "best-practices"
	IntentDependencyReview Intent = "dependency-review"
	IntentTestCoverage     Intent = "test-coverage"
)

// intentQueries maps each intent to its retrieval query.
var intentQueries = map[Intent]string{
	IntentSecurity:         "security vulnerabilities injection authentication authorization sanitize input validation secrets",
	IntentPerformance:      "performance bottleneck slow loop memory allocation caching optimization complexity",
	IntentBugPatterns:      "null undefined error handling edge case race condition off by one exception",
	IntentBestPractices:    "code style naming conventions error handling patterns documentation structure",
	IntentDependencyReview: "import require dependency module external package version",
	IntentTestCoverage:     "test spec assert mock fixture coverage unit integration",
}

// Intents lists the supported intent names.
func Intents() []Intent {
	return []Intent{
		IntentSecurity,
		IntentPerformance,
		IntentBugPatterns,
		IntentBestPractices,
		IntentDependencyReview,
		IntentTestCoverage,
	}
}

// RetrieveForIntent routes a named intent through the standard retrieval
// path with its canned query. Options other than Query are honored as
// given.
func (e *Engine) RetrieveForIntent(ctx context.Context, index *embed.EmbeddingIndex, g *graph.SymbolGraph, rootPath string, intent Intent, opts Options) (*ContextBundle, error) {
	query, ok := intentQueries[intent]
	if !ok {
		return nil, fmt.Errorf("unknown intent %q", intent)
	}
	opts.Query = query
	return e.RetrieveContext(ctx, index, g, rootPath, opts)
}
