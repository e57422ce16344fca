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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/hypergraph/services/atomspace"
	"github.com/AleutianAI/hypergraph/services/atomspace/config"
	"github.com/AleutianAI/hypergraph/services/atomspace/store"
	"github.com/AleutianAI/hypergraph/services/atomspace/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newTestStore() *store.AtomStore {
	return store.New(types.NewDefaultRegistry(),
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		store.WithIndexMetrics(false))
}

func TestLoadFixture(t *testing.T) {
	s := newTestStore()
	f, err := os.Open("testdata/atoms.yaml")
	require.NoError(t, err)
	defer f.Close()

	res, err := loadFixture(context.Background(), s, f, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 4, res.LinksCreated)
	assert.Equal(t, 1, res.LinksDeduped)
	assert.Equal(t, res.IDs["pets"], res.IDs["pets-again"])
	assert.NotEqual(t, res.IDs["pets"], res.IDs["likes"])
	assert.Equal(t, "pets", res.names()[res.IDs["pets"]])

	empty, ok := s.Get(res.IDs["empty"])
	require.True(t, ok)
	assert.True(t, empty.IsLink())
	assert.Equal(t, 0, empty.Arity())
}

func TestLoadFixture_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"unknown child", "atoms:\n  - {id: l, type: ListLink, children: [x]}\n", ErrInvalidFixture},
		{"duplicate id", "atoms:\n  - {id: a, type: ConceptNode, name: a}\n  - {id: a, type: ConceptNode, name: b}\n", ErrInvalidFixture},
		{"missing type", "atoms:\n  - {id: a, name: a}\n", ErrInvalidFixture},
		{"unknown field", "atoms:\n  - {id: a, type: ConceptNode, label: a}\n", ErrInvalidFixture},
		{"unknown type", "atoms:\n  - {id: a, type: Widget, name: a}\n", store.ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFixture(context.Background(), newTestStore(), strings.NewReader(tt.body), slog.Default())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadCmd(t *testing.T) {
	out, err := run(t, "load", "testdata/atoms.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "links created:      4")
	assert.Contains(t, out, "links deduplicated: 1")
	assert.Contains(t, out, "index entries:      4")
}

func TestLoadCmd_TombstoneAndSweep(t *testing.T) {
	tests := []struct {
		name       string
		tombstone  string
		released   int
		tombstoned int
	}{
		{"referenced link is kept", "pets", 0, 1},
		{"link and its parent go together", "pets,both", 2, 0},
		{"referenced node is kept", "cat", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "load", "testdata/atoms.yaml", "--tombstone", tt.tombstone, "--json")
			require.NoError(t, err)

			var report loadReport
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.Equal(t, tt.released, report.Released)
			assert.Equal(t, tt.tombstoned, report.Store.Tombstoned)
			assert.Equal(t, 6-tt.released, report.Store.Atoms)
		})
	}
}

func TestLoadCmd_UnknownTombstoneID(t *testing.T) {
	_, err := run(t, "load", "testdata/atoms.yaml", "--tombstone", "nope")
	assert.True(t, errors.Is(err, ErrInvalidFixture))
}

func TestQueryCmd(t *testing.T) {
	out, err := run(t, "query", "--fixture", "testdata/atoms.yaml", "--type", "OrderedLink", "--subtypes", "cat", "dog")
	require.NoError(t, err)
	assert.Contains(t, out, "ListLink\tpets")
	assert.Contains(t, out, "EvaluationLink\tlikes")

	out, err = run(t, "query", "--fixture", "testdata/atoms.yaml", "--type", "OrderedLink", "cat", "dog")
	require.NoError(t, err)
	assert.Equal(t, "no match\n", out)

	out, err = run(t, "query", "--fixture", "testdata/atoms.yaml", "--type", "ListLink")
	require.NoError(t, err)
	assert.Contains(t, out, "ListLink\tempty")
}

func TestQueryCmd_UnknownType(t *testing.T) {
	_, err := run(t, "query", "--fixture", "testdata/atoms.yaml", "--type", "Widget", "cat")
	assert.True(t, errors.Is(err, store.ErrUnknownType))
}

func TestTypesCmd(t *testing.T) {
	out, err := run(t, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "OrderedLink")
	assert.NotContains(t, out, "ContextLink")

	out, err = run(t, "--types", "testdata/types.yaml", "types", "--under", "OrderedLink")
	require.NoError(t, err)
	assert.Contains(t, out, "ContextLink")
	assert.Contains(t, out, "ListLink")
	assert.NotContains(t, out, "SetLink")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o644))

	_, err := run(t, "--config", path, "types")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestNewRouter(t *testing.T) {
	a := &app{}
	cmd := &cobra.Command{}
	cmd.SetErr(io.Discard)
	a.logLevel = "error"
	require.NoError(t, a.setup(cmd))
	_, err := loadFixtureFile(context.Background(), a.store, "testdata/atoms.yaml", a.logger.Logger)
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	router := newRouter(a, metrics, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/atomspace/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats atomspace.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 6, stats.Atoms)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")

	noMetrics := newRouter(a, nil, false)
	w = httptest.NewRecorder()
	noMetrics.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
