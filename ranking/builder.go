// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ranking

import (
	"sort"

	"github.com/grailbio/diamond-core/align"
	"github.com/grailbio/diamond-core/dconfig"
)

// BuildList turns one query's sorted (score desc, index asc) TargetScore
// list into the top-K Match list written to the ranking record stream
// (spec.md §4.7). seedHits and targetSeqs are parallel, indexed by
// TargetScore.Index. dict may be nil, in which case the block-local index is
// used directly as the output BlockID.
//
// targets must already be sorted by align.TargetScoreLess; BuildList only
// walks its leading 0xFF-scored run rather than scanning the whole slice,
// mirroring global_ranking.cpp's ranking_list.
func BuildList(query []byte, targets []align.TargetScore, seedHits [][]align.SeedHit, targetSeqs [][]byte, matrix align.ScoreMatrix, dict align.ReferenceDictionary, cfg *dconfig.Config) []align.Match {
	rescored := 0
	for i := 0; i < len(targets) && targets[i].Score >= align.OverflowScore; i++ {
		idx := targets[i].Index
		targets[i].Score = RecomputeOverflowScore(seedHits[idx], query, targetSeqs[idx], matrix, cfg.UngappedWindow)
		rescored++
	}

	if rescored > 0 {
		// The rescored entries may no longer belong at the front: re-sort
		// the whole range (score desc, block id asc) rather than just the
		// overflowed prefix.
		sort.Slice(targets, func(i, j int) bool { return align.TargetScoreLess(targets[i], targets[j]) })
	}

	k := cfg.GlobalRankingTargets
	if k > len(targets) {
		k = len(targets)
	}
	out := make([]align.Match, k)
	for i := 0; i < k; i++ {
		blockID := targets[i].Index
		if dict != nil {
			blockID = dict.DatabaseID(blockID)
		}
		out[i] = align.Match{BlockID: blockID, Score: targets[i].Score}
	}
	return out
}
