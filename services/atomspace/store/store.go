// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
	"github.com/AleutianAI/hypergraph/services/atomspace/index"
	"github.com/AleutianAI/hypergraph/services/atomspace/types"
)

// Options configures an AtomStore.
type Options struct {
	// Logger is the base logger. The store adds a "store_id" attribute.
	// Default: slog.Default()
	Logger *slog.Logger

	// SweepWorkers bounds concurrent slot sweeps in Sweep().
	// Default: runtime.GOMAXPROCS(0)
	SweepWorkers int

	// IndexMetrics enables Prometheus metrics on the type index.
	// Default: true
	IndexMetrics bool
}

// DefaultOptions returns the defaults for New.
func DefaultOptions() Options {
	return Options{
		Logger:       slog.Default(),
		SweepWorkers: runtime.GOMAXPROCS(0),
		IndexMetrics: true,
	}
}

// Option is a functional option for configuring AtomStore.
type Option func(*Options)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithSweepWorkers sets the sweep parallelism.
func WithSweepWorkers(n int) Option {
	return func(o *Options) {
		o.SweepWorkers = n
	}
}

// WithIndexMetrics enables or disables index metrics.
func WithIndexMetrics(enabled bool) Option {
	return func(o *Options) {
		o.IndexMetrics = enabled
	}
}

// nodeKey identifies a node by type and name.
type nodeKey struct {
	typ  atom.TypeID
	name string
}

// Stats summarises an AtomStore.
type Stats struct {
	ID         string      `json:"id"`
	Atoms      int         `json:"atoms"`
	Nodes      int         `json:"nodes"`
	Links      int         `json:"links"`
	Tombstoned int         `json:"tombstoned"`
	Index      index.Stats `json:"index"`
}

// AtomStore owns atoms and keeps the structural index consistent with them.
//
// Description:
//
//	Nodes are unique by (type, name); links are unique by (type, children)
//	through the TypeIndex. A link's children must be live atoms, and an
//	atom cannot be removed while a live link references it.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Creation, removal and sweeps
//	hold the store's write lock so the check-then-insert on the index is
//	atomic; lookups only touch the index.
type AtomStore struct {
	id       uuid.UUID
	registry *types.Registry
	table    *atom.HandleTable
	index    *index.TypeIndex
	logger   *slog.Logger
	workers  int

	mu       sync.Mutex
	nodes    map[nodeKey]atom.Handle
	incoming map[atom.Handle]int
	links    int
}

// New creates an empty store over registry.
//
// Inputs:
//
//	registry - The type hierarchy. Must not be nil. Types registered
//	           directly on it (not through RegisterType) are unusable until
//	           Resize() is called.
//	opts - Functional options.
//
// Outputs:
//
//	*AtomStore - Ready for use.
func New(registry *types.Registry, opts ...Option) *AtomStore {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SweepWorkers < 1 {
		o.SweepWorkers = 1
	}

	id := uuid.New()
	logger := o.Logger.With(slog.String("store_id", id.String()))

	s := &AtomStore{
		id:       id,
		registry: registry,
		table:    atom.NewHandleTable(),
		logger:   logger,
		workers:  o.SweepWorkers,
		nodes:    make(map[nodeKey]atom.Handle),
		incoming: make(map[atom.Handle]int),
	}
	s.index = index.NewTypeIndex(registry,
		index.WithLogger(logger),
		index.WithMetrics(o.IndexMetrics),
	)

	logger.Info("Atom store created", slog.Int("types", registry.TypeCount()))
	return s
}

// ID returns the store's session id.
func (s *AtomStore) ID() string { return s.id.String() }

// Registry returns the store's type hierarchy.
func (s *AtomStore) Registry() *types.Registry { return s.registry }

// Index returns the store's structural index.
func (s *AtomStore) Index() *index.TypeIndex { return s.index }

// Get returns the atom for h.
func (s *AtomStore) Get(h atom.Handle) (atom.Atom, bool) {
	return s.table.Get(h)
}

// IsValid reports whether h refers to a live atom.
func (s *AtomStore) IsValid(h atom.Handle) bool {
	return s.table.IsValid(h)
}

func (s *AtomStore) typeID(name string) (atom.TypeID, error) {
	t, err := s.registry.ByName(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// RegisterType registers a type and resizes the index to cover it.
func (s *AtomStore) RegisterType(name string, parents ...string) (atom.TypeID, error) {
	t, err := s.registry.Register(name, parents...)
	if err != nil {
		return 0, err
	}
	s.index.Resize()
	return t, nil
}

// Resize brings the index in line with the registry.
//
// Call this after registering types on the registry directly. Returns
// the number of slots added.
func (s *AtomStore) Resize() int {
	return s.index.Resize()
}

// ReloadTypes loads a type-definition file into the registry and resizes.
//
// Outputs:
//
//	int - Number of newly registered types.
//	error - Load error. Types registered before the error are kept and
//	        the index is resized to cover them.
func (s *AtomStore) ReloadTypes(path string) (int, error) {
	added, err := s.registry.LoadFile(path)
	if added > 0 {
		s.index.Resize()
		s.logger.Info("Type definitions reloaded",
			slog.String("path", path),
			slog.Int("added", added),
			slog.Int("slots", s.index.SlotCount()))
	}
	return added, err
}

// AddNode returns the node of the given type and name, creating it if needed.
//
// Outputs:
//
//	atom.Handle - The node's handle.
//	error - ErrUnknownType.
func (s *AtomStore) AddNode(ctx context.Context, typeName, name string) (h atom.Handle, err error) {
	start := time.Now()
	ctx, span := startOperationSpan(ctx, "AddNode",
		attribute.String("atom.type", typeName))
	defer func() {
		recordOperation(ctx, "AddNode", start, err)
		endOperationSpan(span, err)
	}()

	t, err := s.typeID(typeName)
	if err != nil {
		return atom.InvalidHandle, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := nodeKey{typ: t, name: name}
	if existing, ok := s.nodes[key]; ok {
		return existing, nil
	}

	h = s.table.AddNode(t, name)
	a, _ := s.table.Get(h)
	if err := s.index.Insert(a); err != nil {
		s.table.Release(h)
		return atom.InvalidHandle, err
	}
	s.nodes[key] = h
	recordCreated(ctx, atom.KindNode.String())
	return h, nil
}

// AddLink returns the link of the given type and children, creating it if needed.
//
// Description:
//
//	The structural index is consulted first; if a link of exactly this
//	type already has these children, its handle is returned and created
//	is false. Otherwise the link is created and indexed.
//
// Inputs:
//
//	ctx - Context for tracing.
//	typeName - Registered type name.
//	children - Ordered child handles; each must be live.
//
// Outputs:
//
//	atom.Handle - The link's handle.
//	bool - True if a new link was created.
//	error - ErrUnknownType, atom.ErrUnknownChild, or index.ErrOutOfRange
//	        if the type was registered without resizing the index.
func (s *AtomStore) AddLink(ctx context.Context, typeName string, children []atom.Handle) (h atom.Handle, created bool, err error) {
	start := time.Now()
	ctx, span := startOperationSpan(ctx, "AddLink",
		attribute.String("atom.type", typeName),
		attribute.Int("atom.arity", len(children)))
	defer func() {
		span.SetAttributes(attribute.Bool("atom.created", created))
		recordOperation(ctx, "AddLink", start, err)
		endOperationSpan(span, err)
	}()

	t, err := s.typeID(typeName)
	if err != nil {
		return atom.InvalidHandle, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.index.Lookup(t, children)
	if err != nil {
		return atom.InvalidHandle, false, err
	}
	if existing.IsValid() {
		recordDeduped(ctx)
		return existing, false, nil
	}

	h, err = s.table.AddLink(t, children)
	if err != nil {
		return atom.InvalidHandle, false, err
	}
	a, _ := s.table.Get(h)
	if err := s.index.Insert(a); err != nil {
		s.table.Release(h)
		return atom.InvalidHandle, false, fmt.Errorf("indexing %s: %w", a, err)
	}

	for _, c := range children {
		s.incoming[c]++
	}
	s.links++
	recordCreated(ctx, atom.KindLink.String())
	return h, true, nil
}

// GetLink finds links with the given children by type.
//
// Description:
//
//	With includeSubtypes false, returns the link of exactly typeName, if
//	any. With includeSubtypes true, returns one link per subtype of
//	typeName (including itself) that has these children.
//
// Outputs:
//
//	[]atom.Handle - Matches, possibly empty.
//	error - ErrUnknownType or index.ErrOutOfRange.
func (s *AtomStore) GetLink(ctx context.Context, typeName string, children []atom.Handle, includeSubtypes bool) (found []atom.Handle, err error) {
	start := time.Now()
	ctx, span := startOperationSpan(ctx, "GetLink",
		attribute.String("atom.type", typeName),
		attribute.Bool("include_subtypes", includeSubtypes))
	defer func() {
		span.SetAttributes(attribute.Int("result_count", len(found)))
		recordOperation(ctx, "GetLink", start, err)
		endOperationSpan(span, err)
	}()

	t, err := s.typeID(typeName)
	if err != nil {
		return nil, err
	}
	return s.index.LookupSubtype(t, children, includeSubtypes)
}

// Remove deletes the atom h.
//
// Outputs:
//
//	error - ErrNotFound, ErrHasIncoming, or index.ErrOutOfRange.
func (s *AtomStore) Remove(ctx context.Context, h atom.Handle) (err error) {
	start := time.Now()
	ctx, span := startOperationSpan(ctx, "Remove",
		attribute.Int64("atom.handle", int64(h)))
	defer func() {
		recordOperation(ctx, "Remove", start, err)
		endOperationSpan(span, err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.table.Get(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	if n := s.incoming[h]; n > 0 {
		return fmt.Errorf("%w: %s has %d", ErrHasIncoming, h, n)
	}
	if err := s.index.Remove(a); err != nil {
		return err
	}
	s.forgetLocked(a)
	return nil
}

// forgetLocked drops a from the store's bookkeeping and the handle table.
// The caller has already removed it from the index.
func (s *AtomStore) forgetLocked(a atom.Atom) {
	if a.IsLink() {
		for _, c := range a.Children() {
			if s.incoming[c]--; s.incoming[c] <= 0 {
				delete(s.incoming, c)
			}
		}
		s.links--
	} else {
		delete(s.nodes, nodeKey{typ: a.Type(), name: a.Name()})
	}
	delete(s.incoming, a.Handle())
	s.table.Release(a.Handle())
}

// Tombstone marks h for removal by the next Sweep.
func (s *AtomStore) Tombstone(h atom.Handle) error {
	if !s.table.Tombstone(h) {
		return fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return nil
}

// Sweep removes every tombstoned atom that no surviving link references.
//
// Description:
//
//	Tombstoned atoms referenced by a live, non-swept link stay tombstoned
//	for a later sweep. Index entries are removed with a parallel predicate
//	sweep over all type slots. Once the index sweep starts it runs to
//	completion; ctx is only checked before it begins.
//
// Outputs:
//
//	int - Number of atoms released.
//	error - ctx.Err() if ctx was done before the sweep started.
func (s *AtomStore) Sweep(ctx context.Context) (released int, err error) {
	start := time.Now()
	ctx, span := startOperationSpan(ctx, "Sweep")
	defer func() {
		span.SetAttributes(attribute.Int("released", released))
		recordOperation(ctx, "Sweep", start, err)
		endOperationSpan(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dead := s.sweepableLocked(s.table.Tombstoned())
	if len(dead) == 0 {
		return 0, nil
	}

	removed, err := s.index.RemoveWhereParallel(context.WithoutCancel(ctx), func(h atom.Handle) bool {
		_, ok := dead[h]
		return ok
	}, s.workers)
	if err != nil {
		return 0, err
	}

	for h := range dead {
		if a, ok := s.table.Get(h); ok {
			s.forgetLocked(a)
			released++
		}
	}

	recordSwept(ctx, released)
	s.logger.Info("Swept tombstoned atoms",
		slog.Int("released", released),
		slog.Int("index_removed", removed))
	return released, nil
}

// sweepableLocked narrows candidates to atoms whose every referencing link
// is also being swept.
func (s *AtomStore) sweepableLocked(candidates map[atom.Handle]struct{}) map[atom.Handle]struct{} {
	for {
		fromDead := make(map[atom.Handle]int)
		for h := range candidates {
			if a, ok := s.table.Get(h); ok && a.IsLink() {
				for _, c := range a.Children() {
					fromDead[c]++
				}
			}
		}

		changed := false
		for h := range candidates {
			if s.incoming[h] > fromDead[h] {
				delete(candidates, h)
				changed = true
			}
		}
		if !changed {
			return candidates
		}
	}
}

// Stats returns a summary of the store.
func (s *AtomStore) Stats() Stats {
	s.mu.Lock()
	nodes, links := len(s.nodes), s.links
	s.mu.Unlock()

	return Stats{
		ID:         s.id.String(),
		Atoms:      s.table.Len(),
		Nodes:      nodes,
		Links:      links,
		Tombstoned: len(s.table.Tombstoned()),
		Index:      s.index.Stats(),
	}
}
