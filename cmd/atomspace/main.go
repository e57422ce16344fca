// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command atomspace runs and inspects an in-memory hypergraph atom store.
//
// The store indexes links by (type, children) so structurally identical
// links are never created twice, and lookups can span a type and all of
// its subtypes.
//
// Usage:
//
//	atomspace serve --config atomspace.yaml --fixture atoms.yaml
//	atomspace load atoms.yaml --tombstone l1
//	atomspace query --fixture atoms.yaml --type OrderedLink --subtypes cat dog
//	atomspace types --types extra_types.yaml
//
// Example requests against serve:
//
//	curl http://localhost:12220/v1/atomspace/health
//	curl http://localhost:12220/v1/atomspace/types | jq
//	curl -X POST http://localhost:12220/v1/atomspace/lookup \
//	  -H "Content-Type: application/json" \
//	  -d '{"type": "OrderedLink", "children": [1, 2], "include_subtypes": true}'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
