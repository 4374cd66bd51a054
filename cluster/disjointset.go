// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cluster

import "blainsmith.com/go/seahash"

// DisjointSet is classical union-find over a uint32 domain, exposed lazily:
// neither implementation maintains an explicit per-component member list on
// every Merge, only parent/rank bookkeeping. ListOfSets walks the whole
// domain once on demand (spec.md §9 DESIGN NOTES, "Disjoint set").
type DisjointSet interface {
	// Merge unions the components containing a and b.
	Merge(a, b uint32)
	// Find returns the representative element of x's component.
	Find(x uint32) uint32
	// ListOfSets groups every known element by component.
	ListOfSets() [][]uint32
}

// DenseDisjointSet is the array-backed variant for a dense [0, n) domain
// (LazyDisjointIntegralSet in spec.md §9): union by rank with path
// compression.
type DenseDisjointSet struct {
	parent []uint32
	rank   []uint8
}

// NewDenseDisjointSet returns a DenseDisjointSet over [0, n), every element
// initially its own singleton component.
func NewDenseDisjointSet(n int) *DenseDisjointSet {
	d := &DenseDisjointSet{parent: make([]uint32, n), rank: make([]uint8, n)}
	for i := range d.parent {
		d.parent[i] = uint32(i)
	}
	return d
}

// Find implements DisjointSet, with path compression.
func (d *DenseDisjointSet) Find(x uint32) uint32 {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

// Merge implements DisjointSet, with union by rank.
func (d *DenseDisjointSet) Merge(a, b uint32) {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return
	}
	if d.rank[ra] < d.rank[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	if d.rank[ra] == d.rank[rb] {
		d.rank[ra]++
	}
}

// ListOfSets implements DisjointSet.
func (d *DenseDisjointSet) ListOfSets() [][]uint32 {
	byRoot := make(map[uint32][]uint32)
	for i := range d.parent {
		r := d.Find(uint32(i))
		byRoot[r] = append(byRoot[r], uint32(i))
	}
	sets := make([][]uint32, 0, len(byRoot))
	for _, members := range byRoot {
		sets = append(sets, members)
	}
	return sets
}

// seahashMap is a uint32->uint32 open-addressing hash map keyed by a
// seahash-folded id, the hash-map backing for VertexSet (spec.md §6 domain
// stack: one dedicated hash function for one hash-map, rather than Go's
// built-in map hashing).
type seahashMap struct {
	keys   []uint32
	vals   []uint32
	used   []bool
	mask   uint64
	filled int
}

func newSeahashMap(capacityHint int) *seahashMap {
	size := uint64(16)
	for size < uint64(capacityHint)*2 {
		size *= 2
	}
	return &seahashMap{
		keys: make([]uint32, size),
		vals: make([]uint32, size),
		used: make([]bool, size),
		mask: size - 1,
	}
}

func seahashOf(k uint32) uint64 {
	var b [4]byte
	b[0] = byte(k)
	b[1] = byte(k >> 8)
	b[2] = byte(k >> 16)
	b[3] = byte(k >> 24)
	return seahash.Sum64(b[:])
}

func (m *seahashMap) index(k uint32) uint64 { return seahashOf(k) & m.mask }

func (m *seahashMap) get(k uint32) (uint32, bool) {
	i := m.index(k)
	for m.used[i] {
		if m.keys[i] == k {
			return m.vals[i], true
		}
		i = (i + 1) & m.mask
	}
	return 0, false
}

func (m *seahashMap) set(k, v uint32) {
	if m.filled*2 >= len(m.used) {
		m.grow()
	}
	i := m.index(k)
	for m.used[i] && m.keys[i] != k {
		i = (i + 1) & m.mask
	}
	if !m.used[i] {
		m.used[i] = true
		m.filled++
	}
	m.keys[i] = k
	m.vals[i] = v
}

func (m *seahashMap) grow() {
	old := *m
	size := uint64(len(m.used)) * 2
	m.keys = make([]uint32, size)
	m.vals = make([]uint32, size)
	m.used = make([]bool, size)
	m.mask = size - 1
	m.filled = 0
	for i, used := range old.used {
		if used {
			m.set(old.keys[i], old.vals[i])
		}
	}
}

func (m *seahashMap) keyList() []uint32 {
	out := make([]uint32, 0, m.filled)
	for i, used := range m.used {
		if used {
			out = append(out, m.keys[i])
		}
	}
	return out
}

// VertexSet is the hash-map-backed disjoint set over an arbitrary (not
// necessarily dense) uint32 domain (LazyDisjointTypeSet in spec.md §9),
// used by SparseGraphStream.CollectComponents where only a restricted set
// of indices of interest is known ahead of time.
type VertexSet struct {
	parent *seahashMap
	rank   *seahashMap
}

// NewVertexSet returns a VertexSet with every member of members registered
// as its own singleton component.
func NewVertexSet(members []uint32) *VertexSet {
	v := &VertexSet{parent: newSeahashMap(len(members)), rank: newSeahashMap(len(members))}
	for _, m := range members {
		v.parent.set(m, m)
	}
	return v
}

func (v *VertexSet) ensure(x uint32) {
	if _, ok := v.parent.get(x); !ok {
		v.parent.set(x, x)
	}
}

// Find implements DisjointSet. Unknown elements are lazily registered as
// singleton components on first use.
func (v *VertexSet) Find(x uint32) uint32 {
	v.ensure(x)
	for {
		p, _ := v.parent.get(x)
		if p == x {
			return x
		}
		gp, _ := v.parent.get(p)
		v.parent.set(x, gp)
		x = gp
	}
}

// Merge implements DisjointSet.
func (v *VertexSet) Merge(a, b uint32) {
	ra, rb := v.Find(a), v.Find(b)
	if ra == rb {
		return
	}
	rankA, _ := v.rank.get(ra)
	rankB, _ := v.rank.get(rb)
	if rankA < rankB {
		ra, rb = rb, ra
		rankA, rankB = rankB, rankA
	}
	v.parent.set(rb, ra)
	if rankA == rankB {
		v.rank.set(ra, rankA+1)
	}
}

// ListOfSets implements DisjointSet.
func (v *VertexSet) ListOfSets() [][]uint32 {
	byRoot := make(map[uint32][]uint32)
	for _, x := range v.parent.keyList() {
		r := v.Find(x)
		byRoot[r] = append(byRoot[r], x)
	}
	sets := make([][]uint32, 0, len(byRoot))
	for _, members := range byRoot {
		sets = append(sets, members)
	}
	return sets
}
