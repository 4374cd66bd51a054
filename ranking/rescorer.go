// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ranking

import (
	"math"

	"github.com/grailbio/diamond-core/align"
)

// ClipQueryWindow extracts a window of length up to 2*halfWidth around
// anchor, clamping the left extension to the beginning of query (spec.md
// §4.6, Util::Sequence::clip). It returns the clipped slice and windowLeft,
// the distance from the clipped slice's start to anchor — the quantity
// original_source/src/align/global_ranking/global_ranking.cpp calls
// window_left.
func ClipQueryWindow(query []byte, anchor, halfWidth int) (clipped []byte, windowLeft int) {
	left := anchor - halfWidth
	if left < 0 {
		left = 0
	}
	right := anchor + halfWidth
	if right > len(query) {
		right = len(query)
	}
	return query[left:right], anchor - left
}

// ungappedWindow computes the best-scoring ungapped (substitutions-only)
// local alignment within a window, per spec.md §4.6: a running sum that
// resets to zero whenever it goes negative, tracking the running maximum.
// query and target are walked in lockstep up to the shorter length.
func ungappedWindow(query, target []byte, matrix align.ScoreMatrix) int32 {
	n := len(query)
	if len(target) < n {
		n = len(target)
	}
	var running, best int32
	for k := 0; k < n; k++ {
		running += matrix.Score(query[k], target[k])
		if running < 0 {
			running = 0
		}
		if running > best {
			best = running
		}
	}
	return best
}

// RecomputeOverflowScore rescores the overflowed (score == OverflowScore)
// seed hits among hits — all belonging to one (query, target) pair — using
// a clipped-window ungapped extension, and returns the maximum score seen,
// saturated to uint16 (spec.md §4.6).
func RecomputeOverflowScore(hits []align.SeedHit, query, target []byte, matrix align.ScoreMatrix, halfWidth int) uint16 {
	var score int32
	for _, h := range hits {
		if h.Score != align.OverflowScore {
			continue
		}
		clipped, windowLeft := ClipQueryWindow(query, h.I, halfWidth)
		targetStart := h.J - windowLeft
		if targetStart < 0 {
			targetStart = 0
		}
		targetEnd := targetStart + len(clipped)
		if targetEnd > len(target) {
			targetEnd = len(target)
		}
		if targetStart > targetEnd {
			targetStart = targetEnd
		}
		s := ungappedWindow(clipped, target[targetStart:targetEnd], matrix)
		if s > score {
			score = s
		}
	}
	if score > math.MaxUint16 {
		score = math.MaxUint16
	}
	return uint16(score)
}
