// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package atom

import (
	"fmt"
	"sync"
)

// HandleTable owns atom records and assigns their handles.
//
// Description:
//
//	Arena of atoms addressed by Handle. Handles are allocated
//	monotonically starting at 1 and are never reused, so a released
//	handle stays invalid forever.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type HandleTable struct {
	mu         sync.RWMutex
	atoms      map[Handle]Atom
	tombstoned map[Handle]struct{}
	next       Handle
}

// NewHandleTable creates an empty table.
func NewHandleTable() *HandleTable {
	return &HandleTable{
		atoms:      make(map[Handle]Atom),
		tombstoned: make(map[Handle]struct{}),
		next:       1,
	}
}

// AddNode stores a new node and returns its handle.
//
// Description:
//
//	Always allocates a new handle. Deduplication of nodes by
//	(type, name) is the caller's responsibility.
//
// Inputs:
//
//	typ - The node's type.
//	name - The node's name.
//
// Outputs:
//
//	Handle - The new node's handle.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (t *HandleTable) AddNode(typ TypeID, name string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(NewNode(typ, name))
}

// AddLink stores a new link and returns its handle.
//
// Description:
//
//	Every child must be a live handle in this table. The children slice
//	is copied. Structural deduplication is the caller's responsibility.
//
// Inputs:
//
//	typ - The link's type.
//	children - Ordered outgoing set. May be empty.
//
// Outputs:
//
//	Handle - The new link's handle.
//	error - ErrUnknownChild if any child is not live.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (t *HandleTable) AddLink(typ TypeID, children []Handle) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, c := range children {
		if _, ok := t.atoms[c]; !ok {
			return InvalidHandle, fmt.Errorf("%w: child[%d]=%s", ErrUnknownChild, i, c)
		}
	}
	return t.insertLocked(NewLink(typ, children)), nil
}

func (t *HandleTable) insertLocked(a Atom) Handle {
	h := t.next
	t.next++
	t.atoms[h] = a.withHandle(h)
	return h
}

// Get returns the atom for h.
func (t *HandleTable) Get(h Handle) (Atom, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.atoms[h]
	return a, ok
}

// IsValid reports whether h refers to a live atom.
func (t *HandleTable) IsValid(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.atoms[h]
	return ok
}

// Release frees the atom for h. Returns false if h was not live.
func (t *HandleTable) Release(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.atoms[h]; !ok {
		return false
	}
	delete(t.atoms, h)
	delete(t.tombstoned, h)
	return true
}

// Tombstone marks h for a later bulk sweep. Returns false if h was not live.
func (t *HandleTable) Tombstone(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.atoms[h]; !ok {
		return false
	}
	t.tombstoned[h] = struct{}{}
	return true
}

// IsTombstoned reports whether h is marked for sweeping.
func (t *HandleTable) IsTombstoned(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tombstoned[h]
	return ok
}

// Tombstoned returns a snapshot of every tombstoned handle.
func (t *HandleTable) Tombstoned() map[Handle]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Handle]struct{}, len(t.tombstoned))
	for h := range t.tombstoned {
		out[h] = struct{}{}
	}
	return out
}

// Len returns the number of live atoms.
func (t *HandleTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.atoms)
}

// Range calls fn for every live atom until fn returns false.
//
// Iteration order is unspecified. fn must not call back into the table.
func (t *HandleTable) Range(fn func(a Atom) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, a := range t.atoms {
		if !fn(a) {
			return
		}
	}
}
