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
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MaxTypeFileSize is the largest type-definition file LoadFile will read.
const MaxTypeFileSize = 1024 * 1024

//go:embed base_types.yaml
var baseTypesYAML []byte

// TypeFileYAML is the root of a type-definition document.
type TypeFileYAML struct {
	Types []TypeEntryYAML `yaml:"types"`
}

// TypeEntryYAML is a single type definition.
type TypeEntryYAML struct {
	Name    string   `yaml:"name"`
	Parents []string `yaml:"parents,omitempty"`
}

// NewDefaultRegistry returns a registry preloaded with the base hierarchy.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if _, err := r.LoadYAML(bytes.NewReader(baseTypesYAML)); err != nil {
		panic(fmt.Sprintf("types: embedded base hierarchy is invalid: %v", err))
	}
	return r
}

// LoadYAML registers every type defined in the document read from rd.
//
// Description:
//
//	Entries are registered in document order. Entries that are already
//	registered with identical parents are skipped, so re-reading a file
//	that has only grown adds just the new types.
//
// Inputs:
//
//	rd - Source of a TypeFileYAML document.
//
// Outputs:
//
//	int - Number of newly registered types.
//	error - Parse error or the first registration error. Types registered
//	        before the failing entry stay registered.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Registry) LoadYAML(rd io.Reader) (int, error) {
	var doc TypeFileYAML
	dec := yaml.NewDecoder(io.LimitReader(rd, MaxTypeFileSize))
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("decoding type definitions: %w", err)
	}

	added := 0
	for i, entry := range doc.Types {
		_, isNew, err := r.register(entry.Name, entry.Parents)
		if err != nil {
			return added, fmt.Errorf("type[%d] %q: %w", i, entry.Name, err)
		}
		if isNew {
			added++
		}
	}
	return added, nil
}

// LoadFile registers the types defined in the YAML file at path.
func (r *Registry) LoadFile(path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat type file: %w", err)
	}
	if info.Size() > MaxTypeFileSize {
		return 0, fmt.Errorf("type file too large: %d bytes (max %d)", info.Size(), MaxTypeFileSize)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("opening type file: %w", err)
	}
	defer f.Close()

	added, err := r.LoadYAML(f)
	if err != nil {
		return added, err
	}

	slog.Debug("Loaded type definitions",
		slog.String("path", absPath),
		slog.Int("added", added),
		slog.Int("type_count", r.TypeCount()))
	return added, nil
}
