// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package types provides the atom type hierarchy.
//
// Registry assigns dense TypeIDs in registration order and answers subtype
// queries. Types may have several parents; a type is always a subtype of
// itself.
//
// # Lifecycle
//
// The set of registered types only grows. Components that size arrays by
// TypeCount() must re-read it after new registrations (see index.TypeIndex).
//
// # Thread Safety
//
// Registry is safe for concurrent use.
package types

import "errors"

// Sentinel errors for type registry operations.
var (
	// ErrDuplicateType is returned when registering a name that already
	// exists with a different set of parents.
	ErrDuplicateType = errors.New("duplicate type name")

	// ErrUnknownType is returned when a type name or id is not registered.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnknownParent is returned when a parent named at registration is
	// not registered yet.
	ErrUnknownParent = errors.New("unknown parent type")

	// ErrInvalidTypeName is returned for empty type names.
	ErrInvalidTypeName = errors.New("invalid type name")

	// ErrTooManyTypes is returned when the registry is full.
	ErrTooManyTypes = errors.New("maximum type count exceeded")
)
