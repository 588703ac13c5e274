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
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/semscope/services/semindex/embed"
	"github.com/AleutianAI/semscope/services/semindex/retrieve"
)

// Handlers holds the HTTP handlers for the semindex endpoints.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handlers over a service instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// IndexRequest is the body for POST /v1/semindex/index.
type IndexRequest struct {
	RootPath string `json:"root_path" binding:"required"`
	RepoID   string `json:"repo_id" binding:"required"`
}

// IndexResponse summarizes one analysis run.
type IndexResponse struct {
	RepoID     string `json:"repo_id"`
	RunID      string `json:"run_id"`
	Files      int    `json:"files"`
	Symbols    int    `json:"symbols"`
	Edges      int    `json:"edges"`
	Embeddings int    `json:"embeddings"`
	Fixes      int    `json:"fixes"`
}

// HandleIndex runs the full analysis pipeline for a repository root.
func (h *Handlers) HandleIndex(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, index, err := h.service.AnalyzeRepo(c.Request.Context(), req.RootPath, req.RepoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, IndexResponse{
		RepoID:     req.RepoID,
		RunID:      g.RunID,
		Files:      len(g.Files),
		Symbols:    len(g.Symbols),
		Edges:      len(g.Edges),
		Embeddings: len(index.Embeddings),
		Fixes:      len(g.SyntaxFixes),
	})
}

// ContextRequest is the body for POST /v1/semindex/context.
type ContextRequest struct {
	RepoID           string `json:"repo_id" binding:"required"`
	Query            string `json:"query"`
	Intent           string `json:"intent"`
	MaxFiles         int    `json:"max_files"`
	MaxSymbols       int    `json:"max_symbols"`
	IncludeFullFiles bool   `json:"include_full_files"`
	TokenBudget      int    `json:"token_budget"`
	Format           string `json:"format"`
}

// HandleContext assembles a context bundle, by free-text query or named
// intent. Format "text" returns the rendered report instead of JSON.
func (h *Handlers) HandleContext(c *gin.Context) {
	var req ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Query == "" && req.Intent == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either query or intent is required"})
		return
	}

	opts := retrieve.Options{
		Query:            req.Query,
		MaxFiles:         req.MaxFiles,
		MaxSymbols:       req.MaxSymbols,
		IncludeFullFiles: req.IncludeFullFiles,
		TokenBudget:      req.TokenBudget,
	}

	var (
		bundle *retrieve.ContextBundle
		err    error
	)
	if req.Intent != "" {
		bundle, err = h.service.RetrieveForIntent(c.Request.Context(), req.RepoID, retrieve.Intent(req.Intent), opts)
	} else {
		bundle, err = h.service.RetrieveContext(c.Request.Context(), req.RepoID, opts)
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if req.Format == "text" {
		c.String(http.StatusOK, retrieve.FormatForConsumption(bundle))
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// HandleSearch runs a raw similarity search.
// GET /v1/semindex/search?repo_id=&q=&top_k=
func (h *Handlers) HandleSearch(c *gin.Context) {
	repoID := c.Query("repo_id")
	query := c.Query("q")
	if repoID == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repo_id and q are required"})
		return
	}
	topK := 10
	if v := c.Query("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be a positive integer"})
			return
		}
		topK = k
	}

	results, err := h.service.FindSimilar(c.Request.Context(), repoID, query, topK)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// HandleSymbols looks up symbols by name substring.
// GET /v1/semindex/symbols?repo_id=&name=
func (h *Handlers) HandleSymbols(c *gin.Context) {
	repoID := c.Query("repo_id")
	name := c.Query("name")
	if repoID == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repo_id and name are required"})
		return
	}

	symbols, err := h.service.FindByName(repoID, name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols, "count": len(symbols)})
}

// HandleReferences lists edges touching a symbol name.
// GET /v1/semindex/references?repo_id=&symbol=
func (h *Handlers) HandleReferences(c *gin.Context) {
	repoID := c.Query("repo_id")
	symbol := c.Query("symbol")
	if repoID == "" || symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repo_id and symbol are required"})
		return
	}

	edges, err := h.service.FindReferences(repoID, symbol)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"references": edges, "count": len(edges)})
}

// HandleDeleteIndex removes a persisted index. Idempotent.
func (h *Handlers) HandleDeleteIndex(c *gin.Context) {
	repoID := c.Param("repoId")
	if err := h.service.DeleteIndex(repoID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": repoID})
}

// HandleHealth is the liveness check.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRepoNotIndexed), errors.Is(err, embed.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, embed.ErrIndexCorrupt):
		return http.StatusInternalServerError
	case errors.Is(err, embed.ErrEmbedderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
