// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides the type-partitioned structural index for links.
//
// The index package contains StructuralIndex, which maps an ordered child
// sequence to the single link of one type carrying that structure, and
// TypeIndex, which holds one StructuralIndex per registered type, routes
// operations by TypeID and aggregates lookups across a type hierarchy.
//
// # Ownership Model
//
// The index stores handles only, never atom records. It does not check
// that a handle is live; callers remove entries when atoms are released.
//
// # Capacity
//
// TypeIndex has one slot per type known at the last Resize(). Operations
// that address a newer TypeID fail with ErrOutOfRange until the caller
// calls Resize() again. The index never resizes itself.
//
// # Thread Safety
//
// TypeIndex is safe for concurrent use. Resize() takes an exclusive lock
// on the slot array; every other operation takes it shared and then locks
// only the slot it touches, so work on distinct types proceeds in parallel.
package index

import "errors"

// Sentinel errors for index operations.
var (
	// ErrOutOfRange is returned when a TypeID is at or beyond the current
	// slot count. The index is stale; call Resize() after registering types.
	ErrOutOfRange = errors.New("type id out of range")

	// ErrStructureCollision is returned when inserting a child sequence
	// that is already mapped to a different handle in the same slot.
	// The existing mapping is kept.
	ErrStructureCollision = errors.New("structure already indexed with a different handle")

	// ErrInvalidHandle is returned when inserting the invalid handle.
	ErrInvalidHandle = errors.New("cannot index invalid handle")
)
