// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
	"github.com/AleutianAI/hypergraph/services/atomspace/store"
)

// MaxFixtureFileSize bounds atom fixture files (16MB).
const MaxFixtureFileSize = 16 * 1024 * 1024

// ErrInvalidFixture is returned for malformed atom fixtures.
var ErrInvalidFixture = errors.New("invalid fixture")

var fixtureValidate = validator.New()

// fixtureFile is the YAML atom fixture.
//
//	atoms:
//	  - id: cat
//	    type: ConceptNode
//	    name: cat
//	  - id: pair
//	    type: ListLink
//	    children: [cat, dog]
//
// An entry with a children key (even an empty list) is a link; anything
// else is a node. Children refer to earlier ids.
type fixtureFile struct {
	Atoms []fixtureAtom `yaml:"atoms" validate:"dive"`
}

type fixtureAtom struct {
	ID       string   `yaml:"id" validate:"required"`
	Type     string   `yaml:"type" validate:"required"`
	Name     string   `yaml:"name"`
	Children []string `yaml:"children"`
}

// fixtureResult reports what loading a fixture did.
type fixtureResult struct {
	IDs          map[string]atom.Handle `json:"-"`
	Nodes        int                    `json:"nodes"`
	LinksCreated int                    `json:"links_created"`
	LinksDeduped int                    `json:"links_deduplicated"`
}

// names returns a handle-to-id map; for shared handles the first id wins.
func (r fixtureResult) names() map[atom.Handle]string {
	out := make(map[atom.Handle]string, len(r.IDs))
	for id, h := range r.IDs {
		if prev, ok := out[h]; !ok || id < prev {
			out[h] = id
		}
	}
	return out
}

// loadFixture adds every atom in rd to s.
//
// Description:
//
//	Atoms are created in file order. A link whose type and children match
//	an existing link is not created again; its id is bound to the existing
//	handle and counted as deduplicated.
//
// Outputs:
//
//	fixtureResult - Id bindings and counts.
//	error - ErrInvalidFixture for parse, validation and reference errors,
//	        or the store's error for a rejected atom.
func loadFixture(ctx context.Context, s *store.AtomStore, rd io.Reader, logger *slog.Logger) (fixtureResult, error) {
	var f fixtureFile
	dec := yaml.NewDecoder(io.LimitReader(rd, MaxFixtureFileSize))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fixtureResult{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := fixtureValidate.Struct(f); err != nil {
		return fixtureResult{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	res := fixtureResult{IDs: make(map[string]atom.Handle, len(f.Atoms))}
	for i, fa := range f.Atoms {
		if _, dup := res.IDs[fa.ID]; dup {
			return res, fmt.Errorf("%w: atoms[%d]: duplicate id %q", ErrInvalidFixture, i, fa.ID)
		}

		if fa.Children == nil {
			h, err := s.AddNode(ctx, fa.Type, fa.Name)
			if err != nil {
				return res, fmt.Errorf("atoms[%d] %q: %w", i, fa.ID, err)
			}
			res.IDs[fa.ID] = h
			res.Nodes++
			continue
		}

		children := make([]atom.Handle, len(fa.Children))
		for j, cid := range fa.Children {
			ch, ok := res.IDs[cid]
			if !ok {
				return res, fmt.Errorf("%w: atoms[%d] %q: unknown child %q", ErrInvalidFixture, i, fa.ID, cid)
			}
			children[j] = ch
		}

		h, created, err := s.AddLink(ctx, fa.Type, children)
		if err != nil {
			return res, fmt.Errorf("atoms[%d] %q: %w", i, fa.ID, err)
		}
		res.IDs[fa.ID] = h
		if created {
			res.LinksCreated++
		} else {
			res.LinksDeduped++
			logger.Debug("Fixture link deduplicated",
				slog.String("id", fa.ID),
				slog.String("handle", h.String()))
		}
	}
	return res, nil
}

// loadFixtureFile opens path and calls loadFixture.
func loadFixtureFile(ctx context.Context, s *store.AtomStore, path string, logger *slog.Logger) (fixtureResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fixtureResult{}, fmt.Errorf("stat fixture: %w", err)
	}
	if info.Size() > MaxFixtureFileSize {
		return fixtureResult{}, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrInvalidFixture, path, info.Size(), MaxFixtureFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return fixtureResult{}, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	res, err := loadFixture(ctx, s, f, logger)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("Fixture loaded",
		slog.String("path", path),
		slog.Int("nodes", res.Nodes),
		slog.Int("links_created", res.LinksCreated),
		slog.Int("links_deduplicated", res.LinksDeduped))
	return res, nil
}
