// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package swipe

import (
	"bytes"
	"testing"

	"github.com/grailbio/diamond-core/scorevec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityMatrix is a minimal stand-in for an out-of-scope scoring-matrix
// table (spec.md §1): it only needs to reward matches over mismatches.
type identityMatrix struct{ match, mismatch int32 }

func (m identityMatrix) Score(a, b byte) int32 {
	if a == b {
		return m.match
	}
	return m.mismatch
}

func TestAlignEmitsHspsAboveCutoffOnly(t *testing.T) {
	query := bytes.Repeat([]byte{'A'}, 20)
	weak := bytes.Repeat([]byte{'A'}, 3) // scores well below cutoff
	strong := bytes.Repeat([]byte{'A'}, 20)
	matrix := identityMatrix{match: 5, mismatch: -4}
	gaps := GapPenalties{Open: 11, Extend: 1}

	hsps := Align(query, matrix, gaps, [][]byte{weak, strong}, 50)

	for _, h := range hsps {
		assert.GreaterOrEqual(t, h.Score, int32(50), "every emitted HSP must satisfy the requested cutoff")
	}
	found := false
	for _, h := range hsps {
		if h.Target == 1 {
			found = true
		}
		assert.NotEqual(t, 0, h.Target, "the weak target must not pass a cutoff of 50")
	}
	assert.True(t, found, "the strong exact-match target must produce an HSP")
}

func TestAlignEscalatesPrecisionOnOverflow(t *testing.T) {
	// A long exact match accumulates enough raw score to saturate the
	// int8 score-vector lane; Align must escalate to int16 rather than
	// truncate or drop the target (spec.md §4.4).
	query := bytes.Repeat([]byte{'A'}, 200)
	target := bytes.Repeat([]byte{'A'}, 200)
	matrix := identityMatrix{match: 5, mismatch: -4}
	gaps := GapPenalties{Open: 11, Extend: 1}

	hsps := Align(query, matrix, gaps, [][]byte{target}, 50)
	require.Len(t, hsps, 1)
	assert.Equal(t, 0, hsps[0].Target)
	assert.GreaterOrEqual(t, hsps[0].Score, int32(50))
}

// TestAlignEscalatesAllTheWayToInt32 is a match run long enough to overflow
// both the int8 and the int16 score-vector lane (raw score > 65535), so the
// SWIPE shell must escalate twice and produce its final HSP from the int32
// layer rather than truncating or panicking.
func TestAlignEscalatesAllTheWayToInt32(t *testing.T) {
	const length = 13200 // 5 * 13200 > 65535, overflows int16's bias range
	query := bytes.Repeat([]byte{'A'}, length)
	target := bytes.Repeat([]byte{'A'}, length)
	matrix := identityMatrix{match: 5, mismatch: -4}
	gaps := GapPenalties{Open: 11, Extend: 1}

	hsps := Align(query, matrix, gaps, [][]byte{target}, 1000)
	require.Len(t, hsps, 1)
	assert.Equal(t, 0, hsps[0].Target)
	assert.Equal(t, int32(length*5), hsps[0].Score)
}

// TestCellUpdateFloorsAtZeroScoreForInt32 exercises cellUpdate directly at
// int32 width with inputs that would drive the cell score negative: unlike
// int8/int16, int32's zero_score (0) does not coincide with the saturating
// Sub clamp floor (MinInt32), so the zero floor must be applied explicitly.
func TestCellUpdateFloorsAtZeroScoreForInt32(t *testing.T) {
	traits := scorevec.Int32Traits()
	diag := scorevec.NewVector[int32](1)
	diag.SetChannel(0, 0)
	subst := scorevec.NewVector[int32](1)
	subst.SetChannel(0, -100)
	hgap := scorevec.NewVector[int32](1)
	hgap.SetChannel(0, -1000)
	vgap := scorevec.NewVector[int32](1)
	vgap.SetChannel(0, -1000)
	best := scorevec.Fill[int32](1, traits.ZeroScore)

	next := cellUpdate(traits, diag, subst, &hgap, &vgap, &best, 11, 1)
	assert.Equal(t, traits.ZeroScore, next.ExtractChannel(0), "a cell score must never drop below zero_score even at int32 width")
}
