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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
)

func hs(ids ...uint64) []atom.Handle {
	out := make([]atom.Handle, len(ids))
	for i, id := range ids {
		out[i] = atom.Handle(id)
	}
	return out
}

func TestStructuralIndex_InsertLookup(t *testing.T) {
	s := NewStructuralIndex()

	require.NoError(t, s.Insert(hs(1, 2), 10))
	assert.Equal(t, atom.Handle(10), s.Lookup(hs(1, 2)))
	assert.Equal(t, 1, s.Len())
}

func TestStructuralIndex_LookupMiss(t *testing.T) {
	s := NewStructuralIndex()
	assert.Equal(t, atom.InvalidHandle, s.Lookup(hs(1, 2)))
	assert.Equal(t, atom.InvalidHandle, s.Lookup(nil))
}

func TestStructuralIndex_KeysAreOrderAndMultiplicitySensitive(t *testing.T) {
	s := NewStructuralIndex()

	require.NoError(t, s.Insert(hs(1, 2), 10))
	require.NoError(t, s.Insert(hs(2, 1), 11))
	require.NoError(t, s.Insert(hs(1), 12))
	require.NoError(t, s.Insert(hs(1, 1), 13))
	require.NoError(t, s.Insert(hs(1, 2, 1), 14))

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, atom.Handle(10), s.Lookup(hs(1, 2)))
	assert.Equal(t, atom.Handle(11), s.Lookup(hs(2, 1)))
	assert.Equal(t, atom.Handle(12), s.Lookup(hs(1)))
	assert.Equal(t, atom.Handle(13), s.Lookup(hs(1, 1)))
	assert.Equal(t, atom.Handle(14), s.Lookup(hs(1, 2, 1)))
	assert.Equal(t, atom.InvalidHandle, s.Lookup(hs(2, 2)))
}

func TestStructuralIndex_EmptyChildren(t *testing.T) {
	s := NewStructuralIndex()

	require.NoError(t, s.Insert(nil, 7))
	assert.Equal(t, atom.Handle(7), s.Lookup([]atom.Handle{}))
	assert.True(t, s.Remove([]atom.Handle{}, 7))
	assert.Equal(t, 0, s.Len())
}

func TestStructuralIndex_InsertCopiesChildren(t *testing.T) {
	s := NewStructuralIndex()
	children := hs(1, 2)

	require.NoError(t, s.Insert(children, 10))
	children[0] = 9

	assert.Equal(t, atom.Handle(10), s.Lookup(hs(1, 2)))
	assert.Equal(t, atom.InvalidHandle, s.Lookup(hs(9, 2)))
}

func TestStructuralIndex_CollisionPolicy(t *testing.T) {
	s := NewStructuralIndex()
	require.NoError(t, s.Insert(hs(1, 2), 10))

	t.Run("same handle is idempotent", func(t *testing.T) {
		require.NoError(t, s.Insert(hs(1, 2), 10))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("different handle is rejected", func(t *testing.T) {
		err := s.Insert(hs(1, 2), 11)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStructureCollision))
		assert.Equal(t, atom.Handle(10), s.Lookup(hs(1, 2)), "existing mapping must be kept")
		assert.Equal(t, 1, s.Len())
	})

	t.Run("invalid handle is rejected", func(t *testing.T) {
		err := s.Insert(hs(3), atom.InvalidHandle)
		assert.True(t, errors.Is(err, ErrInvalidHandle))
		assert.Equal(t, 1, s.Len())
	})
}

func TestStructuralIndex_RemoveOnlyIfMatching(t *testing.T) {
	s := NewStructuralIndex()
	require.NoError(t, s.Insert(hs(1, 2), 10))

	assert.False(t, s.Remove(hs(1, 2), 11), "stale handle must not evict")
	assert.Equal(t, atom.Handle(10), s.Lookup(hs(1, 2)))

	assert.False(t, s.Remove(hs(2, 1), 10), "different key must not match")
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Remove(hs(1, 2), 10))
	assert.Equal(t, atom.InvalidHandle, s.Lookup(hs(1, 2)))
	assert.Equal(t, 0, s.Len())

	assert.False(t, s.Remove(hs(1, 2), 10))
}

func TestStructuralIndex_RemoveWhere(t *testing.T) {
	s := NewStructuralIndex()
	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, s.Insert(hs(i, i+1), atom.Handle(100+i)))
	}

	even := func(h atom.Handle) bool { return h%2 == 0 }
	removed := s.RemoveWhere(even)

	assert.Equal(t, 5, removed)
	assert.Equal(t, 5, s.Len())
	s.Range(func(_ []atom.Handle, h atom.Handle) bool {
		assert.False(t, even(h), "entry %s should have been removed", h)
		return true
	})

	assert.Equal(t, 0, s.RemoveWhere(even))
	assert.Equal(t, 5, s.RemoveWhere(func(atom.Handle) bool { return true }))
	assert.Equal(t, 0, s.Len())
}

func TestStructuralIndex_RangeStopsEarly(t *testing.T) {
	s := NewStructuralIndex()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Insert(hs(i), atom.Handle(i)))
	}

	calls := 0
	s.Range(func([]atom.Handle, atom.Handle) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}

func TestStructuralIndex_Concurrent(t *testing.T) {
	s := NewStructuralIndex()

	var wg sync.WaitGroup
	for i := uint64(1); i <= 64; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			_ = s.Insert(hs(i, i), atom.Handle(i))
			_ = s.Lookup(hs(i, i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 64, s.Len())
}

func TestHashChildren_Deterministic(t *testing.T) {
	assert.Equal(t, hashChildren(hs(1, 2, 3)), hashChildren(hs(1, 2, 3)))
	assert.NotEqual(t, hashChildren(hs(1, 2)), hashChildren(hs(2, 1)))
	assert.Equal(t, hashChildren(nil), hashChildren([]atom.Handle{}))
}

func BenchmarkStructuralIndex_Lookup(b *testing.B) {
	s := NewStructuralIndex()
	for i := uint64(1); i <= 10_000; i++ {
		_ = s.Insert(hs(i, i+1, i+2), atom.Handle(i))
	}
	key := hs(5000, 5001, 5002)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Lookup(key)
	}
}
