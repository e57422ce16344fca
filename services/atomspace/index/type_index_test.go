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
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
	"github.com/AleutianAI/hypergraph/services/atomspace/types"
)

// fakeHierarchy is a single-parent hierarchy: parent[i] is i's parent,
// or -1 for a root.
type fakeHierarchy struct {
	mu     sync.Mutex
	parent []int
}

func newFakeHierarchy(parents ...int) *fakeHierarchy {
	return &fakeHierarchy{parent: parents}
}

func (f *fakeHierarchy) add(parent int) atom.TypeID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parent = append(f.parent, parent)
	return atom.TypeID(len(f.parent) - 1)
}

func (f *fakeHierarchy) TypeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.parent)
}

func (f *fakeHierarchy) IsSubtype(candidate, ancestor atom.TypeID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := int(candidate); c >= 0 && c < len(f.parent); c = f.parent[c] {
		if c == int(ancestor) {
			return true
		}
	}
	return false
}

// view is a minimal atom.View for tests.
type view struct {
	typ      atom.TypeID
	handle   atom.Handle
	link     bool
	children []atom.Handle
}

func (v view) Type() atom.TypeID { return v.typ }
func (v view) Handle() atom.Handle { return v.handle }
func (v view) IsLink() bool { return v.link }
func (v view) Children() []atom.Handle { return v.children }

func link(t atom.TypeID, h atom.Handle, children ...atom.Handle) view {
	return view{typ: t, handle: h, link: true, children: children}
}

func node(t atom.TypeID, h atom.Handle) view {
	return view{typ: t, handle: h}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIndex(h TypeHierarchy) *TypeIndex {
	return NewTypeIndex(h, WithLogger(quietLogger()), WithMetrics(false))
}

func TestTypeIndex_NewIsSynchronized(t *testing.T) {
	h := newFakeHierarchy(-1, 0, 1)
	ti := newTestIndex(h)

	assert.Equal(t, 3, ti.SlotCount())
	assert.False(t, ti.IsStale())
	assert.Equal(t, 0, ti.Len())
}

func TestTypeIndex_RoundTrip(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0))
	l := link(1, 100, 1, 2)

	require.NoError(t, ti.Insert(l))
	got, err := ti.Lookup(1, hs(1, 2))
	require.NoError(t, err)
	assert.Equal(t, atom.Handle(100), got)

	require.NoError(t, ti.Remove(l))
	got, err = ti.Lookup(1, hs(1, 2))
	require.NoError(t, err)
	assert.Equal(t, atom.InvalidHandle, got)
}

func TestTypeIndex_NodeFilter(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0))
	require.NoError(t, ti.Insert(link(1, 100, 1)))

	require.NoError(t, ti.Insert(node(0, 1)))
	require.NoError(t, ti.Insert(node(1, 2)))
	assert.Equal(t, 1, ti.Len())

	require.NoError(t, ti.Remove(node(1, 2)))
	assert.Equal(t, 1, ti.Len())

	// Nodes are skipped before the range check, so even a stale type is fine.
	require.NoError(t, ti.Insert(node(99, 3)))
	require.NoError(t, ti.Remove(node(99, 3)))
}

func TestTypeIndex_TypesArePartitioned(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0, 0))

	require.NoError(t, ti.Insert(link(1, 100, 1, 2)))
	require.NoError(t, ti.Insert(link(2, 200, 1, 2)))

	a, _ := ti.Lookup(1, hs(1, 2))
	b, _ := ti.Lookup(2, hs(1, 2))
	c, _ := ti.Lookup(0, hs(1, 2))
	assert.Equal(t, atom.Handle(100), a)
	assert.Equal(t, atom.Handle(200), b)
	assert.Equal(t, atom.InvalidHandle, c)
}

func TestTypeIndex_CollisionWithinType(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0))
	require.NoError(t, ti.Insert(link(1, 100, 1, 2)))

	err := ti.Insert(link(1, 101, 1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructureCollision))

	got, _ := ti.Lookup(1, hs(1, 2))
	assert.Equal(t, atom.Handle(100), got)
}

func TestTypeIndex_RemoveStaleHandle(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0))
	require.NoError(t, ti.Insert(link(1, 100, 1, 2)))

	require.NoError(t, ti.Remove(link(1, 99, 1, 2)))

	got, _ := ti.Lookup(1, hs(1, 2))
	assert.Equal(t, atom.Handle(100), got)
}

func TestTypeIndex_OutOfRange(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0))
	n := atom.TypeID(ti.SlotCount())

	_, err := ti.Lookup(n, hs(1))
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = ti.LookupSubtype(n, hs(1), false)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = ti.LookupSubtype(n, hs(1), true)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	err = ti.Insert(link(n, 100, 1))
	assert.True(t, errors.Is(err, ErrOutOfRange))

	err = ti.Remove(link(n, 100, 1))
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = ti.SlotLen(n)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestTypeIndex_StaleUntilResize(t *testing.T) {
	h := newFakeHierarchy(-1, 0)
	ti := newTestIndex(h)
	require.NoError(t, ti.Insert(link(1, 100, 1)))

	newType := h.add(1)
	assert.True(t, ti.IsStale())
	assert.Equal(t, 2, ti.SlotCount())

	err := ti.Insert(link(newType, 200, 1))
	require.True(t, errors.Is(err, ErrOutOfRange))
	assert.Equal(t, 2, ti.SlotCount(), "index must not resize itself")

	assert.Equal(t, 1, ti.Resize())
	assert.False(t, ti.IsStale())
	require.NoError(t, ti.Insert(link(newType, 200, 1)))

	got, err := ti.Lookup(1, hs(1))
	require.NoError(t, err)
	assert.Equal(t, atom.Handle(100), got, "existing slots survive resize")
}

func TestTypeIndex_ResizeIdempotent(t *testing.T) {
	h := newFakeHierarchy(-1, 0, 1)
	ti := newTestIndex(h)
	require.NoError(t, ti.Insert(link(2, 100, 1, 2)))
	before := ti.Stats()

	assert.Equal(t, 0, ti.Resize())
	assert.Equal(t, 0, ti.Resize())

	assert.Equal(t, before, ti.Stats())
	got, _ := ti.Lookup(2, hs(1, 2))
	assert.Equal(t, atom.Handle(100), got)
}

func TestTypeIndex_ResizeGrowsByMany(t *testing.T) {
	h := newFakeHierarchy(-1)
	ti := newTestIndex(h)
	for i := 0; i < 10; i++ {
		h.add(0)
	}

	assert.Equal(t, 10, ti.Resize())
	assert.Equal(t, 11, ti.SlotCount())
}

func TestTypeIndex_LookupSubtype(t *testing.T) {
	// 0 root, 1 T1, 2 T2 < T1, 3 T3 < T1, 4 T4 < T2, 5 unrelated
	h := newFakeHierarchy(-1, 0, 1, 1, 2, 0)
	ti := newTestIndex(h)
	c := hs(7, 8)

	require.NoError(t, ti.Insert(link(2, 200, c...)))
	require.NoError(t, ti.Insert(link(3, 300, c...)))
	require.NoError(t, ti.Insert(link(4, 400, c...)))
	require.NoError(t, ti.Insert(link(5, 500, c...)))

	t.Run("aggregates every subtype once", func(t *testing.T) {
		got, err := ti.LookupSubtype(1, c, true)
		require.NoError(t, err)
		assert.Equal(t, hs(200, 300, 400), got)
	})

	t.Run("includes the queried type itself", func(t *testing.T) {
		got, err := ti.LookupSubtype(2, c, true)
		require.NoError(t, err)
		assert.Equal(t, hs(200, 400), got)
	})

	t.Run("exact when not aggregating", func(t *testing.T) {
		got, err := ti.LookupSubtype(2, c, false)
		require.NoError(t, err)
		assert.Equal(t, hs(200), got)
	})

	t.Run("miss is empty, not nil", func(t *testing.T) {
		got, err := ti.LookupSubtype(1, hs(8, 7), true)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		got, err = ti.LookupSubtype(1, c, false)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("root sees all", func(t *testing.T) {
		got, err := ti.LookupSubtype(0, c, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, hs(200, 300, 400, 500), got)
	})
}

func TestTypeIndex_LookupSubtypeIgnoresTypesWithoutSlots(t *testing.T) {
	h := newFakeHierarchy(-1, 0)
	ti := newTestIndex(h)
	require.NoError(t, ti.Insert(link(1, 100, 1)))
	h.add(1)

	got, err := ti.LookupSubtype(1, hs(1), true)
	require.NoError(t, err)
	assert.Equal(t, hs(100), got)
}

func TestTypeIndex_ConcreteScenario(t *testing.T) {
	reg := types.NewRegistry()
	atomT := reg.MustRegister("Atom")
	linkT := reg.MustRegister("Link", "Atom")
	orderedT := reg.MustRegister("OrderedLink", "Link")
	require.Equal(t, atom.TypeID(0), atomT)

	ti := newTestIndex(reg)
	children := hs(1, 2)
	a := link(orderedT, 42, children...)
	require.NoError(t, ti.Insert(a))

	got, err := ti.Lookup(orderedT, children)
	require.NoError(t, err)
	assert.Equal(t, atom.Handle(42), got)

	got, err = ti.Lookup(linkT, children)
	require.NoError(t, err)
	assert.Equal(t, atom.InvalidHandle, got)

	all, err := ti.LookupSubtype(linkT, children, true)
	require.NoError(t, err)
	assert.Equal(t, hs(42), all)
}

func TestTypeIndex_RemoveWhere(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0, 0, 0))
	for i := uint64(1); i <= 30; i++ {
		require.NoError(t, ti.Insert(link(atom.TypeID(i%3+1), atom.Handle(i), atom.Handle(i))))
	}
	require.Equal(t, 30, ti.Len())

	dead := func(h atom.Handle) bool { return h%5 == 0 }
	assert.Equal(t, 6, ti.RemoveWhere(dead))
	assert.Equal(t, 24, ti.Len())

	for i := uint64(1); i <= 30; i++ {
		got, err := ti.Lookup(atom.TypeID(i%3+1), hs(i))
		require.NoError(t, err)
		if i%5 == 0 {
			assert.Equal(t, atom.InvalidHandle, got)
		} else {
			assert.Equal(t, atom.Handle(i), got)
		}
	}
}

func TestTypeIndex_RemoveWhereParallel(t *testing.T) {
	h := newFakeHierarchy(-1)
	for i := 0; i < 16; i++ {
		h.add(0)
	}
	ti := newTestIndex(h)
	for i := uint64(1); i <= 320; i++ {
		require.NoError(t, ti.Insert(link(atom.TypeID(i%16+1), atom.Handle(i), atom.Handle(i))))
	}

	var calls atomic.Int64
	pred := func(h atom.Handle) bool {
		calls.Add(1)
		return h%2 == 1
	}

	n, err := ti.RemoveWhereParallel(context.Background(), pred, 4)
	require.NoError(t, err)
	assert.Equal(t, 160, n)
	assert.Equal(t, 160, ti.Len())
	assert.Equal(t, int64(320), calls.Load())
}

func TestTypeIndex_RemoveWhereParallelCancelled(t *testing.T) {
	ti := newTestIndex(newFakeHierarchy(-1, 0))
	require.NoError(t, ti.Insert(link(1, 1, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := ti.RemoveWhereParallel(ctx, func(atom.Handle) bool { return true }, 2)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, ti.Len())
}

func TestTypeIndex_Stats(t *testing.T) {
	h := newFakeHierarchy(-1, 0, 0)
	ti := newTestIndex(h)
	require.NoError(t, ti.Insert(link(1, 10, 1)))
	require.NoError(t, ti.Insert(link(1, 11, 2)))
	require.NoError(t, ti.Insert(link(2, 12, 1)))
	h.add(0)

	st := ti.Stats()
	assert.Equal(t, 3, st.SlotCount)
	assert.Equal(t, 4, st.TypeCount)
	assert.Equal(t, 3, st.Entries)
	assert.Equal(t, map[atom.TypeID]int{1: 2, 2: 1}, st.EntriesByType)

	n, err := ti.SlotLen(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTypeIndex_MetricsEnabled(t *testing.T) {
	ti := NewTypeIndex(newFakeHierarchy(-1, 0), WithLogger(quietLogger()))

	require.NoError(t, ti.Insert(link(1, 1, 1)))
	_, _ = ti.Lookup(1, hs(1))
	_, _ = ti.Lookup(5, hs(1))
	_, _ = ti.LookupSubtype(0, hs(1), true)
	ti.RemoveWhere(func(atom.Handle) bool { return true })
	assert.Equal(t, 0, ti.Len())
}

func TestTypeIndex_ConcurrentOpsAndResize(t *testing.T) {
	h := newFakeHierarchy(-1, 0)
	ti := newTestIndex(h)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				hdl := atom.Handle(w*1000 + i + 1)
				l := link(1, hdl, hdl)
				_ = ti.Insert(l)
				_, _ = ti.LookupSubtype(0, hs(uint64(hdl)), true)
				if i%2 == 0 {
					_ = ti.Remove(l)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.add(0)
			ti.Resize()
		}
	}()
	wg.Wait()

	ti.Resize()
	assert.Equal(t, h.TypeCount(), ti.SlotCount())
	assert.Equal(t, 8*50, ti.Len())
}
