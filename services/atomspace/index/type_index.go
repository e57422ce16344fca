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
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
)

// TypeHierarchy is the subset of a type registry the index needs.
type TypeHierarchy interface {
	// TypeCount returns the number of registered types.
	TypeCount() int

	// IsSubtype reports whether candidate equals ancestor or descends
	// from it.
	IsSubtype(candidate, ancestor atom.TypeID) bool
}

// Options configures a TypeIndex.
type Options struct {
	// Logger receives resize and sweep events.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics enables Prometheus counters for index operations.
	// Default: true
	Metrics bool
}

// DefaultOptions returns the defaults for NewTypeIndex.
func DefaultOptions() Options {
	return Options{
		Logger:  slog.Default(),
		Metrics: true,
	}
}

// Option is a functional option for configuring TypeIndex.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics enables or disables Prometheus metrics.
func WithMetrics(enabled bool) Option {
	return func(o *Options) {
		o.Metrics = enabled
	}
}

// Stats is a point-in-time summary of a TypeIndex.
type Stats struct {
	// SlotCount is the number of type slots.
	SlotCount int `json:"slot_count"`

	// TypeCount is the hierarchy's type count when Stats was taken.
	// Greater than SlotCount while the index is stale.
	TypeCount int `json:"type_count"`

	// Entries is the total number of indexed links.
	Entries int `json:"entries"`

	// EntriesByType holds the entry count of every non-empty slot.
	EntriesByType map[atom.TypeID]int `json:"entries_by_type"`
}

// TypeIndex routes structural index operations to per-type slots.
//
// Description:
//
//	Holds one StructuralIndex per TypeID in [0, SlotCount()). The slot
//	count follows the injected TypeHierarchy only through Resize(); while
//	the hierarchy has types the index has no slot for, operations on
//	those types fail with ErrOutOfRange.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Resize() is exclusive with
//	respect to every other method. Aggregated lookups and sweeps visit
//	slots one at a time, so writes to other slots may or may not be
//	observed mid-scan.
type TypeIndex struct {
	mu        sync.RWMutex
	slots     []*StructuralIndex
	hierarchy TypeHierarchy

	logger  *slog.Logger
	metrics bool
}

// NewTypeIndex creates an index sized to the hierarchy's current type count.
//
// Inputs:
//
//	h - The type hierarchy. Must not be nil.
//	opts - Functional options.
//
// Outputs:
//
//	*TypeIndex - A synchronized index.
func NewTypeIndex(h TypeHierarchy, opts ...Option) *TypeIndex {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	ti := &TypeIndex{
		hierarchy: h,
		logger:    o.Logger,
		metrics:   o.Metrics,
	}
	ti.Resize()
	return ti
}

// Resize appends empty slots until SlotCount() equals the type count.
//
// Description:
//
//	Existing slots are never removed or modified. Calling Resize with no
//	new types registered is a no-op.
//
// Outputs:
//
//	int - The number of slots appended.
//
// Thread Safety:
//
//	Takes the slot array lock exclusively.
func (ti *TypeIndex) Resize() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	want := ti.hierarchy.TypeCount()
	have := len(ti.slots)
	if want <= have {
		ti.recordOp(opResize, resultSkip)
		return 0
	}

	ti.slots = slices.Grow(ti.slots, want-have)
	for len(ti.slots) < want {
		ti.slots = append(ti.slots, NewStructuralIndex())
	}

	ti.logger.Debug("Resized type index",
		slog.Int("from", have),
		slog.Int("to", want))
	ti.recordOp(opResize, resultOK)
	if ti.metrics {
		indexSlots.Set(float64(want))
	}
	return want - have
}

// slotLocked returns the slot for t. Caller holds ti.mu.
func (ti *TypeIndex) slotLocked(t atom.TypeID) (*StructuralIndex, error) {
	if int(t) >= len(ti.slots) {
		return nil, fmt.Errorf("%w: type %d, slot count %d", ErrOutOfRange, t, len(ti.slots))
	}
	return ti.slots[t], nil
}

// Insert indexes a link by its type and children.
//
// Description:
//
//	Nodes are not indexed; inserting one is a successful no-op.
//
// Inputs:
//
//	a - The atom to index.
//
// Outputs:
//
//	error - ErrOutOfRange if the atom's type has no slot yet,
//	        ErrStructureCollision if another link of the same type already
//	        has these children, ErrInvalidHandle for an unbound atom.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (ti *TypeIndex) Insert(a atom.View) error {
	if !a.IsLink() {
		ti.recordOp(opInsert, resultSkip)
		return nil
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	slot, err := ti.slotLocked(a.Type())
	if err != nil {
		ti.recordOp(opInsert, resultOutOfRange)
		return err
	}
	if err := slot.Insert(a.Children(), a.Handle()); err != nil {
		if errors.Is(err, ErrStructureCollision) {
			ti.recordOp(opInsert, resultCollision)
		} else {
			ti.recordOp(opInsert, resultError)
		}
		return err
	}
	ti.recordOp(opInsert, resultOK)
	return nil
}

// Remove un-indexes a link.
//
// Description:
//
//	Nodes are a successful no-op. The entry is only deleted if it still
//	maps to a.Handle(); otherwise the call does nothing.
//
// Outputs:
//
//	error - ErrOutOfRange if the atom's type has no slot yet.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (ti *TypeIndex) Remove(a atom.View) error {
	if !a.IsLink() {
		ti.recordOp(opRemove, resultSkip)
		return nil
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	slot, err := ti.slotLocked(a.Type())
	if err != nil {
		ti.recordOp(opRemove, resultOutOfRange)
		return err
	}
	if slot.Remove(a.Children(), a.Handle()) {
		ti.recordOp(opRemove, resultOK)
	} else {
		ti.recordOp(opRemove, resultMiss)
	}
	return nil
}

// Lookup returns the link of exactly type t with the given children.
//
// Outputs:
//
//	atom.Handle - The link, or atom.InvalidHandle on a miss.
//	error - ErrOutOfRange if t has no slot.
func (ti *TypeIndex) Lookup(t atom.TypeID, children []atom.Handle) (atom.Handle, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	slot, err := ti.slotLocked(t)
	if err != nil {
		ti.recordOp(opLookup, resultOutOfRange)
		return atom.InvalidHandle, err
	}

	h := slot.Lookup(children)
	if h.IsValid() {
		ti.recordOp(opLookup, resultHit)
	} else {
		ti.recordOp(opLookup, resultMiss)
	}
	return h, nil
}

// LookupSubtype finds links with the given children, optionally across subtypes.
//
// Description:
//
//	With includeSubtypes false this is Lookup returning zero or one
//	handle. With includeSubtypes true every slot s in [0, SlotCount())
//	for which the hierarchy reports IsSubtype(s, t) is queried, and each
//	hit is returned once, in ascending TypeID order.
//
// Inputs:
//
//	t - The queried type.
//	children - Ordered child handles.
//	includeSubtypes - Whether to aggregate over subtypes of t.
//
// Outputs:
//
//	[]atom.Handle - Matches. Empty, not nil, on a miss.
//	error - ErrOutOfRange if t has no slot.
//
// Thread Safety:
//
//	Safe for concurrent use. The aggregated scan is a best-effort
//	snapshot across slots.
func (ti *TypeIndex) LookupSubtype(t atom.TypeID, children []atom.Handle, includeSubtypes bool) ([]atom.Handle, error) {
	if !includeSubtypes {
		h, err := ti.Lookup(t, children)
		if err != nil {
			return nil, err
		}
		if !h.IsValid() {
			return []atom.Handle{}, nil
		}
		return []atom.Handle{h}, nil
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	if _, err := ti.slotLocked(t); err != nil {
		ti.recordOp(opLookupSubtype, resultOutOfRange)
		return nil, err
	}

	result := []atom.Handle{}
	for s, slot := range ti.slots {
		if !ti.hierarchy.IsSubtype(atom.TypeID(s), t) {
			continue
		}
		h := slot.Lookup(children)
		if h.IsValid() && !slices.Contains(result, h) {
			result = append(result, h)
		}
	}

	if len(result) > 0 {
		ti.recordOp(opLookupSubtype, resultHit)
	} else {
		ti.recordOp(opLookupSubtype, resultMiss)
	}
	if ti.metrics {
		subtypeResults.Observe(float64(len(result)))
	}
	return result, nil
}

// RemoveWhere deletes every entry, in every slot, whose handle satisfies pred.
//
// Slots are swept one after another. pred must not call back into the
// index. Returns the total number of entries deleted.
func (ti *TypeIndex) RemoveWhere(pred func(atom.Handle) bool) int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	removed := 0
	for _, slot := range ti.slots {
		removed += slot.RemoveWhere(pred)
	}
	ti.recordRemoved(removed)
	return removed
}

// RemoveWhereParallel is RemoveWhere with slots swept concurrently.
//
// Description:
//
//	Each slot is swept under its own lock by at most workers goroutines.
//	pred is therefore called concurrently and must be safe for concurrent
//	use. If ctx is cancelled, slots not yet started are skipped and the
//	context error is returned together with the count removed so far.
//
// Inputs:
//
//	ctx - Cancellation for the sweep.
//	pred - Selects entries to delete.
//	workers - Maximum concurrent slot sweeps. Values < 1 mean one.
//
// Outputs:
//
//	int - Entries deleted.
//	error - ctx.Err() if the sweep was cut short.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (ti *TypeIndex) RemoveWhereParallel(ctx context.Context, pred func(atom.Handle) bool, workers int) (int, error) {
	if workers < 1 {
		workers = 1
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, slot := range ti.slots {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			removed.Add(int64(slot.RemoveWhere(pred)))
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	n := int(removed.Load())
	ti.recordRemoved(n)

	if err != nil {
		ti.logger.Warn("Parallel sweep interrupted",
			slog.Int("removed", n),
			slog.String("error", err.Error()))
		return n, err
	}
	return n, nil
}

func (ti *TypeIndex) recordRemoved(n int) {
	ti.recordOp(opRemoveWhere, resultOK)
	if ti.metrics && n > 0 {
		indexRemoved.Add(float64(n))
	}
	if n > 0 {
		ti.logger.Debug("Swept type index", slog.Int("removed", n))
	}
}

// SlotCount returns the number of type slots.
func (ti *TypeIndex) SlotCount() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.slots)
}

// IsStale reports whether the hierarchy has types the index has no slot for.
func (ti *TypeIndex) IsStale() bool {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.slots) < ti.hierarchy.TypeCount()
}

// SlotLen returns the number of entries in t's slot.
func (ti *TypeIndex) SlotLen(t atom.TypeID) (int, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	slot, err := ti.slotLocked(t)
	if err != nil {
		return 0, err
	}
	return slot.Len(), nil
}

// Len returns the total number of entries across all slots.
func (ti *TypeIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	n := 0
	for _, slot := range ti.slots {
		n += slot.Len()
	}
	return n
}

// Stats returns a summary of the index.
func (ti *TypeIndex) Stats() Stats {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	st := Stats{
		SlotCount:     len(ti.slots),
		TypeCount:     ti.hierarchy.TypeCount(),
		EntriesByType: make(map[atom.TypeID]int),
	}
	for t, slot := range ti.slots {
		n := slot.Len()
		if n == 0 {
			continue
		}
		st.Entries += n
		st.EntriesByType[atom.TypeID(t)] = n
	}
	return st
}
