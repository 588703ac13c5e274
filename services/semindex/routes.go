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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the semindex endpoints with the router group.
//
// Endpoints:
//
//	POST   /v1/semindex/index          - Analyze a repository root
//	POST   /v1/semindex/context        - Assemble a context bundle
//	GET    /v1/semindex/search         - Raw similarity search
//	GET    /v1/semindex/symbols        - Symbol lookup by name
//	GET    /v1/semindex/references     - Edges touching a symbol
//	DELETE /v1/semindex/index/:repoId  - Delete a persisted index
//	GET    /v1/semindex/health         - Health check
//
// Example:
//
//	service, _ := semindex.NewService(semindex.DefaultConfig())
//	handlers := semindex.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	semindex.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	si := rg.Group("/semindex")
	{
		si.POST("/index", handlers.HandleIndex)
		si.DELETE("/index/:repoId", handlers.HandleDeleteIndex)

		si.POST("/context", handlers.HandleContext)

		si.GET("/search", handlers.HandleSearch)
		si.GET("/symbols", handlers.HandleSymbols)
		si.GET("/references", handlers.HandleReferences)

		si.GET("/health", handlers.HandleHealth)
	}
}
