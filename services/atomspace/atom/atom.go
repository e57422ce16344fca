// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package atom provides the identity and object model for hypergraph atoms.
//
// An atom is either a node (a named leaf) or a link (an ordered, possibly
// repeating, sequence of child handles). Atoms are owned by a HandleTable;
// every reference outside the table is an opaque Handle.
//
// # Ownership Model
//
// The HandleTable owns atom records. Children slices handed to AddLink are
// copied, and Children() on an Atom returns the table's copy, which MUST NOT
// be mutated by callers.
package atom

import (
	"fmt"
	"strconv"
)

// Handle is an opaque, comparable reference to an atom.
//
// Handles are allocated by a HandleTable and are never reused within the
// lifetime of that table.
type Handle uint64

// InvalidHandle is the sentinel returned by lookups that miss.
// The zero value of Handle is InvalidHandle.
const InvalidHandle Handle = 0

// IsValid reports whether h is not the InvalidHandle sentinel.
//
// This does not check that h refers to a live atom; use HandleTable.IsValid
// for that.
func (h Handle) IsValid() bool {
	return h != InvalidHandle
}

// String returns the string representation of the Handle.
func (h Handle) String() string {
	if h == InvalidHandle {
		return "invalid"
	}
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// TypeID names a type within a type hierarchy.
//
// TypeIDs are small, dense and non-negative. The set of valid TypeIDs only
// grows during a session.
type TypeID uint32

// Kind discriminates the two atom variants.
type Kind int

const (
	// KindNode is a leaf atom with a name and no children.
	KindNode Kind = iota

	// KindLink is an atom with an ordered sequence of children.
	KindLink
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// View is read-only access to an atom.
//
// Children is only meaningful when IsLink returns true; nodes return nil.
type View interface {
	Type() TypeID
	Handle() Handle
	IsLink() bool
	Children() []Handle
}

// Atom is a tagged variant over {Node, Link}.
//
// Name is set for nodes only; Outgoing is set for links only.
type Atom struct {
	handle   Handle
	typ      TypeID
	kind     Kind
	name     string
	outgoing []Handle
}

// NewNode returns a detached node atom.
//
// Detached atoms carry InvalidHandle until stored in a HandleTable.
func NewNode(t TypeID, name string) Atom {
	return Atom{typ: t, kind: KindNode, name: name}
}

// NewLink returns a detached link atom. The children slice is copied.
func NewLink(t TypeID, children []Handle) Atom {
	out := make([]Handle, len(children))
	copy(out, children)
	return Atom{typ: t, kind: KindLink, outgoing: out}
}

// Type returns the atom's TypeID.
func (a Atom) Type() TypeID { return a.typ }

// Handle returns the atom's handle, or InvalidHandle for a detached atom.
func (a Atom) Handle() Handle { return a.handle }

// Kind returns the variant discriminant.
func (a Atom) Kind() Kind { return a.kind }

// IsLink reports whether the atom is a link.
func (a Atom) IsLink() bool { return a.kind == KindLink }

// Name returns the node name. Links return "".
func (a Atom) Name() string { return a.name }

// Children returns the outgoing set of a link, or nil for a node.
func (a Atom) Children() []Handle {
	if a.kind != KindLink {
		return nil
	}
	return a.outgoing
}

// Arity returns the number of children. Nodes have arity 0.
func (a Atom) Arity() int { return len(a.outgoing) }

// withHandle returns a copy of a bound to h.
func (a Atom) withHandle(h Handle) Atom {
	a.handle = h
	return a
}

// String returns a compact human-readable rendering of the atom.
func (a Atom) String() string {
	if a.kind == KindNode {
		return fmt.Sprintf("node(%d %q)%s", a.typ, a.name, a.handle)
	}
	return fmt.Sprintf("link(%d %v)%s", a.typ, a.outgoing, a.handle)
}
