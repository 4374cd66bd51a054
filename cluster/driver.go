// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cluster

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/diamond-core/dconfig"
	"github.com/pkg/errors"
)

// SelfAligner is the out-of-scope external collaborator that turns a
// sequence database (optionally restricted to a subset) into a similarity
// graph: the actual seed search / alignment pipeline (spec.md §1 Non-goals,
// "seed-indexing"). MultiStepCluster only consumes its output edges.
type SelfAligner interface {
	Align(ctx context.Context, filter *BitVector, sensitivity dconfig.Sensitivity, cfg *dconfig.Config) ([]SparseEdge, error)
}

// BitVector is a flat bitset over [0, n), used for the rep1/rep2
// representative sets (spec.md §4.9's BitVector).
type BitVector struct {
	bits []uint64
	n    int
}

// NewBitVector returns a zeroed BitVector over [0, n).
func NewBitVector(n int) *BitVector {
	return &BitVector{bits: make([]uint64, (n+63)/64), n: n}
}

// Set marks bit i.
func (b *BitVector) Set(i int) { b.bits[i/64] |= 1 << uint(i%64) }

// Get reports whether bit i is set.
func (b *BitVector) Get(i int) bool { return b.bits[i/64]&(1<<uint(i%64)) != 0 }

// OneCount returns the number of set bits.
func (b *BitVector) OneCount() int {
	n := 0
	for _, word := range b.bits {
		for word != 0 {
			word &= word - 1
			n++
		}
	}
	return n
}

// repBitset builds the representative set from a centroid assignment,
// optionally restricted to a superset of eligible indices (multi_step_
// cluster.cpp's rep_bitset).
func repBitset(centroid []uint32, superset *BitVector) *BitVector {
	r := NewBitVector(len(centroid))
	for _, c := range centroid {
		if superset == nil || superset.Get(int(c)) {
			r.Set(int(c))
		}
	}
	return r
}

// Edges returns the stream's current in-memory edges in (row, col) order.
// It does not include anything already spilled to disk.
func (s *SparseGraphStream) Edges() []SparseEdge {
	edges := make([]SparseEdge, 0, s.count)
	s.data.Do(func(c llrb.Comparable) bool {
		edges = append(edges, c.(edgeNode).SparseEdge)
		return false
	})
	return edges
}

// greedyVertexCover assigns every vertex in [0, n) a centroid, visiting
// vertices in descending order of their degree in the full edge list (ties
// by lower index) and collapsing their still-unassigned neighbours onto each
// unassigned vertex it visits — "a greedy stepwise vortex cover algorithm"
// (multi_step_cluster.cpp's get_description). Degrees are computed once up
// front and are not updated as neighbours are absorbed. Vertices with no
// incident edges represent themselves.
func greedyVertexCover(n int, edges []SparseEdge) []uint32 {
	adj := make(map[uint32][]uint32, n)
	for _, e := range edges {
		adj[e.Row] = append(adj[e.Row], e.Col)
		adj[e.Col] = append(adj[e.Col], e.Row)
	}

	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	sort.Slice(order, func(i, j int) bool {
		di, dj := len(adj[order[i]]), len(adj[order[j]])
		if di != dj {
			return di > dj
		}
		return order[i] < order[j]
	})

	centroid := make([]uint32, n)
	assigned := make([]bool, n)
	for _, v := range order {
		if assigned[v] {
			continue
		}
		centroid[v] = v
		assigned[v] = true
		for _, nb := range adj[v] {
			if !assigned[nb] {
				centroid[nb] = v
				assigned[nb] = true
			}
		}
	}
	return centroid
}

// MultiStepCluster is the two-pass greedy clustering driver (spec.md §4.9).
type MultiStepCluster struct {
	Aligner SelfAligner
	// IDs translates a database index into its external (blast) id; nil
	// defaults to the decimal index, since the id format itself is an
	// out-of-scope database-loader concern (spec.md §1).
	IDs func(index uint32) string
}

// Run executes both clustering passes against a database of n sequences and
// writes the final `sequence_id<TAB>representative_id` assignment to out,
// one line per sequence in index order (multi_step_cluster.cpp's run, minus
// the commented-out alignment-stat columns — dropped per spec.md's Non-goal
// on gapped-alignment output).
func (m *MultiStepCluster) Run(ctx context.Context, n int, cfg *dconfig.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.Aligner == nil {
		return errors.New("cluster: MultiStepCluster.Run requires a SelfAligner")
	}
	runCfg := *cfg
	if runCfg.QueryCover == 0 {
		runCfg.QueryCover = dconfig.DefaultQueryCover
	}
	if runCfg.SubjectCover == 0 {
		runCfg.SubjectCover = dconfig.DefaultSubjectCover
	}

	edges1, err := m.Aligner.Align(ctx, nil, dconfig.Default, &runCfg)
	if err != nil {
		return errors.Wrap(err, "cluster: pass 1 self-alignment")
	}
	stream1 := NewSparseGraphStream(uint64(n), nil)
	if err := stream1.Consume(ctx, edges1); err != nil {
		return errors.Wrap(err, "cluster: pass 1 edge consumption")
	}
	centroid1 := greedyVertexCover(n, stream1.Edges())
	rep1 := repBitset(centroid1, nil)
	log.Debug.Printf("cluster: pass 1 complete, %d sequences, %d clusters", n, rep1.OneCount())

	edges2, err := m.Aligner.Align(ctx, rep1, dconfig.Sensitive, &runCfg)
	if err != nil {
		return errors.Wrap(err, "cluster: pass 2 self-alignment")
	}
	stream2 := NewSparseGraphStream(uint64(n), nil)
	if err := stream2.Consume(ctx, edges2); err != nil {
		return errors.Wrap(err, "cluster: pass 2 edge consumption")
	}
	centroid2 := greedyVertexCover(n, stream2.Edges())
	for i := 0; i < n; i++ {
		if !rep1.Get(i) {
			centroid2[i] = centroid2[centroid1[i]]
		}
	}
	log.Debug.Printf("cluster: pass 2 complete, %d clusters", repBitset(centroid2, rep1).OneCount())

	ids := m.IDs
	if ids == nil {
		ids = func(i uint32) string { return strconv.FormatUint(uint64(i), 10) }
	}
	for i := 0; i < n; i++ {
		if _, err := fmt.Fprintf(out, "%s\t%s\n", ids(uint32(i)), ids(centroid2[i])); err != nil {
			return errors.Wrap(err, "cluster: writing cluster assignment")
		}
	}
	return nil
}
