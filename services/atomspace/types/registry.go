// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package types

import (
	"fmt"
	"slices"
	"sync"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
)

// MaxTypes bounds the number of types a Registry will accept.
const MaxTypes = 4096

// typeInfo is the registry's record for one type.
type typeInfo struct {
	name    string
	parents []atom.TypeID

	// ancestors is a bitset over TypeIDs, including the type itself.
	// Parents are registered before children, so the set is final at
	// registration time.
	ancestors []uint64
}

func (ti *typeInfo) hasAncestor(id atom.TypeID) bool {
	word := int(id) / 64
	if word >= len(ti.ancestors) {
		return false
	}
	return ti.ancestors[word]&(1<<(uint(id)%64)) != 0
}

// Registry is a growable type hierarchy.
//
// Description:
//
//	Types receive dense TypeIDs in registration order starting at 0.
//	A type may have zero or more parents, all of which must already be
//	registered. IsSubtype is reflexive and transitive.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	infos  []typeInfo
	byName map[string]atom.TypeID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]atom.TypeID),
	}
}

// Register adds a type with the given parents.
//
// Description:
//
//	Registering a name that already exists with the same parents (in any
//	order) is idempotent and returns the existing id. Registering it with
//	different parents fails with ErrDuplicateType.
//
// Inputs:
//
//	name - The type name. Must not be empty.
//	parents - Names of already-registered parent types.
//
// Outputs:
//
//	atom.TypeID - The type's id.
//	error - ErrInvalidTypeName, ErrUnknownParent, ErrDuplicateType or
//	        ErrTooManyTypes.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Registry) Register(name string, parents ...string) (atom.TypeID, error) {
	id, _, err := r.register(name, parents)
	return id, err
}

// register reports whether the call added a new type.
func (r *Registry) register(name string, parents []string) (atom.TypeID, bool, error) {
	if name == "" {
		return 0, false, ErrInvalidTypeName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parentIDs := make([]atom.TypeID, 0, len(parents))
	for _, p := range parents {
		pid, ok := r.byName[p]
		if !ok {
			return 0, false, fmt.Errorf("%w: %q (parent of %q)", ErrUnknownParent, p, name)
		}
		if !slices.Contains(parentIDs, pid) {
			parentIDs = append(parentIDs, pid)
		}
	}
	slices.Sort(parentIDs)

	if id, ok := r.byName[name]; ok {
		if slices.Equal(r.infos[id].parents, parentIDs) {
			return id, false, nil
		}
		return 0, false, fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}

	if len(r.infos) >= MaxTypes {
		return 0, false, ErrTooManyTypes
	}

	id := atom.TypeID(len(r.infos))
	ancestors := make([]uint64, int(id)/64+1)
	ancestors[int(id)/64] |= 1 << (uint(id) % 64)
	for _, pid := range parentIDs {
		for w, bits := range r.infos[pid].ancestors {
			ancestors[w] |= bits
		}
	}

	r.infos = append(r.infos, typeInfo{
		name:      name,
		parents:   parentIDs,
		ancestors: ancestors,
	})
	r.byName[name] = id
	return id, true, nil
}

// MustRegister is Register for static initialisation; it panics on error.
func (r *Registry) MustRegister(name string, parents ...string) atom.TypeID {
	id, err := r.Register(name, parents...)
	if err != nil {
		panic(err)
	}
	return id
}

// TypeCount returns the number of registered types.
func (r *Registry) TypeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}

// IsSubtype reports whether candidate equals ancestor or descends from it.
//
// Ids outside the registered range are never subtypes of anything.
func (r *Registry) IsSubtype(candidate, ancestor atom.TypeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(candidate) >= len(r.infos) || int(ancestor) >= len(r.infos) {
		return false
	}
	return r.infos[candidate].hasAncestor(ancestor)
}

// ByName returns the id registered for name.
func (r *Registry) ByName(name string) (atom.TypeID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return id, nil
}

// Name returns the name of id, or "" if id is not registered.
func (r *Registry) Name(id atom.TypeID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		return ""
	}
	return r.infos[id].name
}

// Parents returns the parent names of id.
func (r *Registry) Parents(id atom.TypeID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
	out := make([]string, 0, len(r.infos[id].parents))
	for _, p := range r.infos[id].parents {
		out = append(out, r.infos[p].name)
	}
	return out, nil
}

// Names returns every registered type name in TypeID order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.infos))
	for i, ti := range r.infos {
		out[i] = ti.name
	}
	return out
}

// Subtypes returns every id that is a subtype of ancestor, ascending.
func (r *Registry) Subtypes(ancestor atom.TypeID) []atom.TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(ancestor) >= len(r.infos) {
		return nil
	}
	var out []atom.TypeID
	for i := range r.infos {
		if r.infos[i].hasAncestor(ancestor) {
			out = append(out, atom.TypeID(i))
		}
	}
	return out
}
