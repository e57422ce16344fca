// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package atomspace provides the HTTP introspection API for an atom store.
//
// The API is read-only: it reports health, statistics and the type
// hierarchy, and answers structural lookups against the type index.
package atomspace

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
	"github.com/AleutianAI/hypergraph/services/atomspace/index"
	"github.com/AleutianAI/hypergraph/services/atomspace/store"
	"github.com/AleutianAI/hypergraph/services/atomspace/telemetry"
)

// ServiceVersion is the atomspace service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the atomspace API.
type Handlers struct {
	store  *store.AtomStore
	logger *slog.Logger
}

// NewHandlers creates handlers over s.
//
// Inputs:
//
//	s - The atom store. Must not be nil.
//	logger - Request logger. Nil means slog.Default().
func NewHandlers(s *store.AtomStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: s, logger: logger}
}

// HandleHealth handles GET /v1/atomspace/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	status := "healthy"
	if h.store.Index().IsStale() {
		status = "stale"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:  status,
		Version: ServiceVersion,
		StoreID: h.store.ID(),
	})
}

// HandleStats handles GET /v1/atomspace/stats.
//
// Response:
//
//	200 OK: StatsResponse
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{Stats: h.store.Stats()})
}

// HandleTypes handles GET /v1/atomspace/types.
//
// Description:
//
//	Lists every registered type in TypeID order with its parents and the
//	number of indexed links of exactly that type. Types the index does
//	not cover yet report zero entries.
//
// Response:
//
//	200 OK: TypesResponse
func (h *Handlers) HandleTypes(c *gin.Context) {
	reg := h.store.Registry()
	stats := h.store.Index().Stats()

	names := reg.Names()
	resp := TypesResponse{Types: make([]TypeInfo, 0, len(names))}
	for i, name := range names {
		id := atom.TypeID(i)
		parents, _ := reg.Parents(id)
		resp.Types = append(resp.Types, TypeInfo{
			ID:      id,
			Name:    name,
			Parents: parents,
			Entries: stats.EntriesByType[id],
		})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleLookup handles POST /v1/atomspace/lookup.
//
// Description:
//
//	Finds the links with the given type and children. With
//	include_subtypes the result holds one handle per matching subtype.
//
// Request Body:
//
//	LookupRequest
//
// Response:
//
//	200 OK: LookupResponse (handles is empty on a miss)
//	400 Bad Request: Invalid body
//	404 Not Found: Unknown type
//	409 Conflict: Type not yet covered by the index
func (h *Handlers) HandleLookup(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With(
		slog.String("request_id", requestID),
		slog.String("handler", "HandleLookup"))

	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	handles, err := h.store.GetLink(c.Request.Context(), req.Type, req.Children, req.IncludeSubtypes)
	if err != nil {
		status, code := lookupErrorStatus(err)
		logger.Warn("Lookup failed",
			slog.String("type", req.Type),
			slog.String("code", code),
			slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	if handles == nil {
		handles = []atom.Handle{}
	}
	logger.Debug("Lookup served",
		slog.String("type", req.Type),
		slog.Int("arity", len(req.Children)),
		slog.Int("results", len(handles)))
	c.JSON(http.StatusOK, LookupResponse{Handles: handles})
}

// HandleAtom handles GET /v1/atomspace/atoms/:handle.
//
// Response:
//
//	200 OK: AtomResponse
//	400 Bad Request: Handle is not a number
//	404 Not Found: No live atom with that handle
func (h *Handlers) HandleAtom(c *gin.Context) {
	raw, err := strconv.ParseUint(c.Param("handle"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "handle must be an unsigned integer",
			Code:  "INVALID_HANDLE",
		})
		return
	}

	a, ok := h.store.Get(atom.Handle(raw))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "atom not found",
			Code:  "NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, AtomResponse{
		Handle:   a.Handle(),
		Type:     h.store.Registry().Name(a.Type()),
		Kind:     a.Kind().String(),
		Name:     a.Name(),
		Children: a.Children(),
	})
}

func lookupErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrUnknownType):
		return http.StatusNotFound, "UNKNOWN_TYPE"
	case errors.Is(err, index.ErrOutOfRange):
		return http.StatusConflict, "INDEX_STALE"
	default:
		return http.StatusInternalServerError, "LOOKUP_FAILED"
	}
}

// getOrCreateRequestID returns the X-Request-ID header, generating one if absent.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
