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
	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
	"github.com/AleutianAI/hypergraph/services/atomspace/store"
)

// HealthResponse is the response for GET /v1/atomspace/health.
type HealthResponse struct {
	// Status is "healthy" or "stale". Stale means types were registered
	// without resizing the index.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// StoreID is the atom store's session id.
	StoreID string `json:"store_id"`
}

// StatsResponse is the response for GET /v1/atomspace/stats.
type StatsResponse struct {
	store.Stats
}

// TypeInfo describes one registered type.
type TypeInfo struct {
	ID      atom.TypeID `json:"id"`
	Name    string      `json:"name"`
	Parents []string    `json:"parents"`

	// Entries is the number of indexed links of exactly this type.
	Entries int `json:"entries"`
}

// TypesResponse is the response for GET /v1/atomspace/types.
type TypesResponse struct {
	Types []TypeInfo `json:"types"`
}

// LookupRequest is the request for POST /v1/atomspace/lookup.
type LookupRequest struct {
	// Type is the link type name.
	Type string `json:"type" binding:"required"`

	// Children is the ordered child handle sequence. May be empty.
	Children []atom.Handle `json:"children"`

	// IncludeSubtypes also searches every subtype of Type.
	IncludeSubtypes bool `json:"include_subtypes"`
}

// LookupResponse is the response for POST /v1/atomspace/lookup.
type LookupResponse struct {
	Handles []atom.Handle `json:"handles"`
}

// AtomResponse is the response for GET /v1/atomspace/atoms/:handle.
type AtomResponse struct {
	Handle   atom.Handle   `json:"handle"`
	Type     string        `json:"type"`
	Kind     string        `json:"kind"`
	Name     string        `json:"name,omitempty"`
	Children []atom.Handle `json:"children,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
