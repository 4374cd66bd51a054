// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package swipe

import "github.com/grailbio/diamond-core/scorevec"

// Matrix is the banded DP column storage reused across many targets: two
// arrays of vectors, hgap (length qlen) and score (length qlen+1), each
// element holding one value per active target lane. One Matrix is allocated
// per precision layer and reused for every target that passes through that
// layer's lanes (DESIGN NOTES §9: explicit per-worker scratch passed by
// reference, not thread-local storage). A Matrix is sized once by NewMatrix;
// there is no method to rebind it to a different query length.
type Matrix[T scorevec.Lane] struct {
	traits    scorevec.Traits[T]
	laneCount int
	hgap      []scorevec.Vector[T]
	score     []scorevec.Vector[T]
}

// NewMatrix allocates a Matrix sized for a query of length qlen and
// laneCount active targets, with every cell set to ZeroScore.
func NewMatrix[T scorevec.Lane](traits scorevec.Traits[T], qlen, laneCount int) *Matrix[T] {
	m := &Matrix[T]{traits: traits, laneCount: laneCount}
	m.hgap = make([]scorevec.Vector[T], qlen)
	m.score = make([]scorevec.Vector[T], qlen+1)
	for i := range m.hgap {
		m.hgap[i] = scorevec.Fill(laneCount, traits.ZeroScore)
	}
	for i := range m.score {
		m.score[i] = scorevec.Fill(laneCount, traits.ZeroScore)
	}
	return m
}

// QLen returns the query length this Matrix is sized for.
func (m *Matrix[T]) QLen() int { return len(m.hgap) }

// ColumnIterator walks the hgap and score arrays in lockstep, one query row
// at a time, mirroring swipe.cpp's Matrix::ColumnIterator.
type ColumnIterator[T scorevec.Lane] struct {
	hgap, score []scorevec.Vector[T]
	pos         int
}

// Begin returns an iterator positioned at the first query row.
func (m *Matrix[T]) Begin() *ColumnIterator[T] {
	return &ColumnIterator[T]{hgap: m.hgap, score: m.score}
}

// Hgap returns the horizontal-gap vector at the iterator's current row.
func (it *ColumnIterator[T]) Hgap() scorevec.Vector[T] { return it.hgap[it.pos] }

// Diag returns the diagonal-predecessor score vector at the current row (the
// S value carried over from the previous column's processing of this row).
func (it *ColumnIterator[T]) Diag() scorevec.Vector[T] { return it.score[it.pos] }

// SetHgap stores the updated horizontal-gap vector at the current row.
func (it *ColumnIterator[T]) SetHgap(v scorevec.Vector[T]) { it.hgap[it.pos] = v }

// SetScore stores the updated score vector at the current row.
func (it *ColumnIterator[T]) SetScore(v scorevec.Vector[T]) { it.score[it.pos] = v }

// Next advances the iterator to the next query row.
func (it *ColumnIterator[T]) Next() { it.pos++ }

// SetZero resets lane c across the entire column buffer (hgap and score),
// called when the lane is recycled to a new target (spec.md §4.2).
func (m *Matrix[T]) SetZero(c int) {
	for i := range m.hgap {
		m.hgap[i].SetChannel(c, m.traits.ZeroScore)
	}
	for i := range m.score {
		m.score[i].SetChannel(c, m.traits.ZeroScore)
	}
}
