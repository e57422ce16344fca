// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides AtomStore, the owner of atoms and their index.
//
// AtomStore ties together a HandleTable (atom identity), a type Registry
// and a TypeIndex. It guarantees that no two links share a type and child
// sequence by consulting the index before creating a link, and it keeps
// the index in step with atom creation, removal and tombstone sweeps.
//
// # Thread Safety
//
// AtomStore is safe for concurrent use. Mutations are serialized by the
// store; lookups go straight to the index and may run in parallel.
package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrUnknownType is returned when a type name is not registered.
	ErrUnknownType = errors.New("unknown atom type")

	// ErrNotFound is returned when a handle does not refer to a live atom.
	ErrNotFound = errors.New("atom not found")

	// ErrHasIncoming is returned when removing an atom that is still a
	// child of a live link.
	ErrHasIncoming = errors.New("atom is referenced by a live link")
)
