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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation labels.
const (
	opInsert        = "insert"
	opRemove        = "remove"
	opLookup        = "lookup"
	opLookupSubtype = "lookup_subtype"
	opRemoveWhere   = "remove_where"
	opResize        = "resize"
)

// Result labels.
const (
	resultOK         = "ok"
	resultHit        = "hit"
	resultMiss       = "miss"
	resultSkip       = "skip"
	resultOutOfRange = "out_of_range"
	resultCollision  = "collision"
	resultError      = "error"
)

var (
	indexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomspace_index_operations_total",
		Help: "Total structural index operations by operation and result",
	}, []string{"op", "result"})

	indexSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atomspace_index_slots",
		Help: "Slot count of the most recently resized type index",
	})

	indexRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_index_removed_entries_total",
		Help: "Entries deleted by predicate sweeps",
	})

	subtypeResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atomspace_index_subtype_results",
		Help:    "Number of handles returned per aggregated subtype lookup",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
	})
)

// recordOp counts one operation if metrics are enabled.
func (ti *TypeIndex) recordOp(op, result string) {
	if !ti.metrics {
		return
	}
	indexOperations.WithLabelValues(op, result).Inc()
}
