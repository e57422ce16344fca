// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
)

// entry is one indexed link. children is owned by the index.
type entry struct {
	children []atom.Handle
	handle   atom.Handle
}

// StructuralIndex maps ordered child sequences to link handles for one type.
//
// Description:
//
//	Keys compare order- and multiplicity-sensitively: [a b] and [b a] are
//	different keys, as are [a] and [a a]. The empty sequence is a valid
//	key. At most one handle is stored per key.
//
//	Sequences are bucketed by their xxhash digest; entries in a bucket are
//	compared element by element, so digest collisions never merge keys.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type StructuralIndex struct {
	mu      sync.RWMutex
	buckets map[uint64][]entry
	count   int
}

// NewStructuralIndex creates an empty slot.
func NewStructuralIndex() *StructuralIndex {
	return &StructuralIndex{
		buckets: make(map[uint64][]entry),
	}
}

// hashChildren digests the little-endian encoding of children.
func hashChildren(children []atom.Handle) uint64 {
	if len(children) == 0 {
		return xxhash.Sum64(nil)
	}
	buf := make([]byte, 8*len(children))
	for i, c := range children {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(c))
	}
	return xxhash.Sum64(buf)
}

// Insert maps children to h.
//
// Description:
//
//	Re-inserting the same (children, h) pair is a no-op. Inserting
//	children already mapped to a different handle is rejected and leaves
//	the existing mapping in place. The children slice is copied.
//
// Inputs:
//
//	children - Ordered child handles. May be empty.
//	h - The link handle. Must not be atom.InvalidHandle.
//
// Outputs:
//
//	error - ErrInvalidHandle or ErrStructureCollision.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (s *StructuralIndex) Insert(children []atom.Handle, h atom.Handle) error {
	if !h.IsValid() {
		return ErrInvalidHandle
	}

	key := hashChildren(children)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[key]
	for _, e := range bucket {
		if !slices.Equal(e.children, children) {
			continue
		}
		if e.handle == h {
			return nil
		}
		return fmt.Errorf("%w: %v held by %s, refused %s", ErrStructureCollision, children, e.handle, h)
	}

	s.buckets[key] = append(bucket, entry{
		children: slices.Clone(children),
		handle:   h,
	})
	s.count++
	return nil
}

// Remove deletes the mapping for children if it currently points at h.
//
// A mapping held by any other handle is left alone, so a stale remove
// cannot evict a newer link. Returns true if an entry was deleted.
func (s *StructuralIndex) Remove(children []atom.Handle, h atom.Handle) bool {
	key := hashChildren(children)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[key]
	for i, e := range bucket {
		if !slices.Equal(e.children, children) {
			continue
		}
		if e.handle != h {
			return false
		}
		bucket = slices.Delete(bucket, i, i+1)
		if len(bucket) == 0 {
			delete(s.buckets, key)
		} else {
			s.buckets[key] = bucket
		}
		s.count--
		return true
	}
	return false
}

// RemoveWhere deletes every entry whose handle satisfies pred.
//
// pred is called once per entry with the slot's write lock held; it must
// not call back into this slot. Returns the number of entries deleted.
func (s *StructuralIndex) RemoveWhere(pred func(atom.Handle) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, bucket := range s.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if pred(e.handle) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.buckets, key)
			continue
		}
		clear(bucket[len(kept):])
		s.buckets[key] = kept
	}
	s.count -= removed
	return removed
}

// Lookup returns the handle mapped to children, or atom.InvalidHandle.
func (s *StructuralIndex) Lookup(children []atom.Handle) atom.Handle {
	key := hashChildren(children)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.buckets[key] {
		if slices.Equal(e.children, children) {
			return e.handle
		}
	}
	return atom.InvalidHandle
}

// Len returns the number of entries in the slot.
func (s *StructuralIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Range calls fn for every entry until fn returns false.
//
// The children slice passed to fn is owned by the index and MUST NOT be
// retained or mutated. fn must not call back into this slot.
func (s *StructuralIndex) Range(fn func(children []atom.Handle, h atom.Handle) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bucket := range s.buckets {
		for _, e := range bucket {
			if !fn(e.children, e.handle) {
				return
			}
		}
	}
}
