// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cluster

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCtx = context.Background()

func TestConsumeDedupesAndMaxMerges(t *testing.T) {
	s := NewSparseGraphStream(4, nil)
	require.NoError(t, s.Consume(testCtx, []SparseEdge{
		{Row: 0, Col: 1, Value: 1.0},
		{Row: 0, Col: 1, Value: 5.0}, // same key, higher value: replaces.
		{Row: 0, Col: 1, Value: 2.0}, // same key, lower value: ignored.
		{Row: 2, Col: 3, Value: 9.0},
	}))

	edges := s.Edges()
	assert.Len(t, edges, 2)
	byKey := make(map[[2]uint32]float64)
	for _, e := range edges {
		byKey[[2]uint32{e.Row, e.Col}] = e.Value
	}
	assert.Equal(t, 5.0, byKey[[2]uint32{0, 1}])
	assert.Equal(t, 9.0, byKey[[2]uint32{2, 3}])

	assert.Equal(t, s.disjoint.Find(0), s.disjoint.Find(1))
	assert.Equal(t, s.disjoint.Find(2), s.disjoint.Find(3))
}

// buildTwoComponentEdges produces a chain of edges within [0,half) and
// within [half,2*half), so the two ranges form two disjoint connected
// components, mirroring spec.md §8 scenario 3's two half-database blocks
// (scaled down for a test that must run in-process without real I/O
// resource pressure).
func buildTwoComponentEdges(half int) []SparseEdge {
	edges := make([]SparseEdge, 0, 2*(half-1))
	for i := 1; i < half; i++ {
		edges = append(edges, SparseEdge{Row: uint32(i - 1), Col: uint32(i), Value: 1.0})
		edges = append(edges, SparseEdge{
			Row:   uint32(half + i - 1),
			Col:   uint32(half + i),
			Value: 1.0,
		})
	}
	return edges
}

// TestSparseGraphStreamSpillAndReload is spec.md §8 scenario 3 (scaled
// down): many edges across two disjoint components, a tiny max_size forcing
// repeated spills, and a FromFile reload that must rebuild exactly two
// components of equal size.
func TestSparseGraphStreamSpillAndReload(t *testing.T) {
	const half = 500
	edges := buildTwoComponentEdges(half)

	var file bytes.Buffer
	s := NewSparseGraphStream(uint64(2*half), &file)
	s.SetMaxMemGB(0.0000001) // ~107 bytes: forces a spill every 7 edges
	require.NoError(t, s.Consume(testCtx, edges))
	require.NoError(t, s.Flush(testCtx))

	reloaded, err := FromFile(testCtx, &file)
	require.NoError(t, err)

	sets := sortedSets(reloaded.GetIndices())
	require.Len(t, sets, 2)
	assert.Len(t, sets[0], half)
	assert.Len(t, sets[1], half)
}

func TestSparseGraphStreamSpillAndReloadCompressed(t *testing.T) {
	const half = 64
	edges := buildTwoComponentEdges(half)

	var file bytes.Buffer
	s := NewSparseGraphStream(uint64(2*half), &file)
	s.SetCompressSpill(true)
	s.SetMaxMemGB(0.0000001)
	require.NoError(t, s.Consume(testCtx, edges))
	require.NoError(t, s.Flush(testCtx))

	reloaded, err := FromFile(testCtx, &file)
	require.NoError(t, err)
	sets := sortedSets(reloaded.GetIndices())
	require.Len(t, sets, 2)
	assert.Len(t, sets[0], half)
	assert.Len(t, sets[1], half)
}

func TestCollectComponentsRemapsToLocalIndices(t *testing.T) {
	const half = 20
	edges := buildTwoComponentEdges(half)

	var file bytes.Buffer
	s := NewSparseGraphStream(uint64(2*half), &file)
	require.NoError(t, s.Consume(testCtx, edges))
	require.NoError(t, s.Flush(testCtx))

	reloaded, err := FromFile(testCtx, bytes.NewReader(file.Bytes()))
	require.NoError(t, err)
	indices := reloaded.GetIndices()
	require.Len(t, indices, 2)

	components, err := CollectComponents(testCtx, bytes.NewReader(file.Bytes()), indices)
	require.NoError(t, err)
	require.Len(t, components, 2)
	for i, comp := range components {
		for _, e := range comp {
			assert.Less(t, e.Row, uint32(len(indices[i])))
			assert.Less(t, e.Col, uint32(len(indices[i])))
		}
	}
}

func TestCollectComponentsSkipsUnrequestedBlocks(t *testing.T) {
	const half = 10
	edges := buildTwoComponentEdges(half)

	var file bytes.Buffer
	s := NewSparseGraphStream(uint64(2*half), &file)
	require.NoError(t, s.Consume(testCtx, edges))
	require.NoError(t, s.Flush(testCtx))

	reloaded, err := FromFile(testCtx, bytes.NewReader(file.Bytes()))
	require.NoError(t, err)
	indices := reloaded.GetIndices()
	require.Len(t, indices, 2)

	// Request only the first component; the second block must be skipped
	// without being decoded, and the result has exactly one entry.
	components, err := CollectComponents(testCtx, bytes.NewReader(file.Bytes()), indices[:1])
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Len(t, components[0], half-1)
}
