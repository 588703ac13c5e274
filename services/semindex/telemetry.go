// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer spans the service-level operations.
var tracer trace.Tracer = otel.Tracer("semscope/semindex")

var (
	// filesIndexedTotal counts files folded into symbol graphs.
	filesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "semindex",
		Name:      "files_indexed_total",
		Help:      "Total files folded into symbol graphs",
	})

	// symbolsExtractedTotal counts symbols across all graph builds.
	symbolsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "semindex",
		Name:      "symbols_extracted_total",
		Help:      "Total symbols extracted across graph builds",
	})

	// repairsAppliedTotal counts repair fixes by stage.
	// Labels: stage (syntax, naming)
	repairsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semindex",
		Name:      "repairs_applied_total",
		Help:      "Total repair fixes applied by stage",
	}, []string{"stage"})

	// embeddingsBuiltTotal counts embedding records produced.
	embeddingsBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "semindex",
		Name:      "embeddings_built_total",
		Help:      "Total embedding records produced",
	})

	// searchesTotal counts similarity searches by outcome.
	// Labels: status (ok, error)
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semindex",
		Name:      "searches_total",
		Help:      "Total similarity searches by outcome",
	}, []string{"status"})

	// retrievalSeconds measures end-to-end context retrieval latency.
	retrievalSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "semindex",
		Name:      "retrieval_seconds",
		Help:      "End-to-end context retrieval latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)
