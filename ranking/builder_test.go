// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ranking

import (
	"testing"

	"github.com/grailbio/diamond-core/align"
	"github.com/grailbio/diamond-core/dconfig"
	"github.com/stretchr/testify/assert"
)

type offsetDict struct{ base uint32 }

func (d offsetDict) DatabaseID(dictID uint32) uint32 { return dictID + d.base }

// TestBuildListRescuesOverflowsAndResorts plants two 0xFF entries: one that,
// once rescored, still outscores its neighbours (stays near the front) and
// one that drops below a non-overflowed entry, forcing the post-rescore
// re-sort to change relative order.
func TestBuildListRescuesOverflowsAndResorts(t *testing.T) {
	query := make([]byte, 10)
	for i := range query {
		query[i] = 'A'
	}

	// index 0: overflowed, rescues to a high score (full match).
	target0 := make([]byte, 10)
	copy(target0, query)
	// index 1: overflowed, rescues to zero (all mismatches, never positive).
	target1 := make([]byte, 10)
	for i := range target1 {
		target1[i] = 'Z'
	}
	// index 2: not overflowed, middling fixed score.
	target2 := make([]byte, 10)

	targets := []align.TargetScore{
		{Index: 0, Score: align.OverflowScore},
		{Index: 1, Score: align.OverflowScore},
		{Index: 2, Score: 20},
	}
	seedHits := [][]align.SeedHit{
		{{I: 5, J: 5, Score: align.OverflowScore}},
		{{I: 5, J: 5, Score: align.OverflowScore}},
		nil,
	}
	targetSeqs := [][]byte{target0, target1, target2}

	cfg := &dconfig.Config{GlobalRankingTargets: 3, UngappedWindow: 5}
	out := BuildList(query, targets, seedHits, targetSeqs, matchMismatchMatrix{}, offsetDict{base: 1000}, cfg)

	require := assert.New(t)
	require.Len(out, 3)
	// index 0 rescues to the full-window match score and must lead.
	require.Equal(uint32(1000), out[0].BlockID)
	require.Greater(out[0].Score, out[1].Score)
	// index 1 rescues to an all-mismatch score and must fall behind index 2's
	// untouched score of 20.
	require.Equal(uint32(1002), out[1].BlockID)
	require.Equal(uint16(20), out[1].Score)
	require.Equal(uint32(1001), out[2].BlockID)
}

func TestBuildListCapsAtGlobalRankingTargets(t *testing.T) {
	query := []byte("ACGT")
	targets := []align.TargetScore{
		{Index: 0, Score: 50},
		{Index: 1, Score: 40},
		{Index: 2, Score: 30},
	}
	seedHits := make([][]align.SeedHit, 3)
	targetSeqs := make([][]byte, 3)
	cfg := &dconfig.Config{GlobalRankingTargets: 2, UngappedWindow: 4}

	out := BuildList(query, targets, seedHits, targetSeqs, matchMismatchMatrix{}, nil, cfg)
	assert.Len(t, out, 2)
	assert.Equal(t, uint32(0), out[0].BlockID)
	assert.Equal(t, uint32(1), out[1].BlockID)
}
