// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package atomspace

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all atomspace routes with the router.
//
// Description:
//
//	Registers all /v1/atomspace/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET  /v1/atomspace/health - Health check
//	GET  /v1/atomspace/stats - Store and index statistics
//	GET  /v1/atomspace/types - Registered types
//	GET  /v1/atomspace/atoms/:handle - Atom by handle
//	POST /v1/atomspace/lookup - Structural lookup
//
// Example:
//
//	handlers := atomspace.NewHandlers(s, logger)
//	v1 := router.Group("/v1")
//	atomspace.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	as := rg.Group("/atomspace")
	{
		as.GET("/health", handlers.HandleHealth)
		as.GET("/stats", handlers.HandleStats)
		as.GET("/types", handlers.HandleTypes)
		as.GET("/atoms/:handle", handlers.HandleAtom)
		as.POST("/lookup", handlers.HandleLookup)
	}
}
