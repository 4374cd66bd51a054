// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package swipe

import (
	"github.com/grailbio/diamond-core/align"
	"github.com/grailbio/diamond-core/scorevec"
)

// ScoreMatrix supplies substitution scores between two residues. Concrete
// scoring-matrix tables (BLOSUM, PAM, ...) are an out-of-scope collaborator
// (spec.md §1); this module only needs the lookup.
type ScoreMatrix = align.ScoreMatrix

// GapPenalties bundles the affine-gap constants the DP recurrence uses.
type GapPenalties struct {
	Open   int32 // gap_open + gap_extend, per spec.md §4.4
	Extend int32
}

// Default lane counts for a 128-bit SIMD register, matching the real
// SSE2/SSE4.1 SWIPE kernel's register layout (16/8/4 lanes for 8/16/32-bit
// scores). This implementation has no assembly tier (see DESIGN.md), but
// keeping the real lane counts means overflow/escalation behavior — how
// many targets share a batch before a lane must be recycled — stays
// representative of production DIAMOND.
const (
	LaneCount8  = 16
	LaneCount16 = 8
	LaneCount32 = 4
)

// Align runs the full precision-escalating SWIPE shell of spec.md §4.4:
// int8 first, then int16 over whatever overflowed, then int32 over whatever
// overflows that. Overflow index tables are remapped at each layer so every
// emitted Hsp's Target field refers to a position in the original targets
// slice, and all HSPs are concatenated (completion order is not otherwise
// defined across layers, per spec.md §5).
func Align(query []byte, matrix ScoreMatrix, gaps GapPenalties, targets [][]byte, cutoff int32) []align.Hsp {
	seqs := make([]Seq, len(targets))
	for i, t := range targets {
		seqs[i] = Seq{Letters: t, Index: i}
	}

	out8, overflow8 := runLayer(scorevec.Int8Traits(), query, matrix, gaps, seqs, cutoff, LaneCount8)
	out := append([]align.Hsp(nil), out8...)
	if len(overflow8) == 0 {
		return out
	}

	seqs16 := remapSeqs(seqs, overflow8)
	out16, overflow16 := runLayer(scorevec.Int16Traits(), query, matrix, gaps, seqs16, cutoff, LaneCount16)
	out = append(out, out16...)
	if len(overflow16) == 0 {
		return out
	}

	seqs32 := remapSeqs(seqs16, overflow16)
	out32, overflow32 := runLayer(scorevec.Int32Traits(), query, matrix, gaps, seqs32, cutoff, LaneCount32)
	out = append(out, out32...)
	// A target that still overflows at int32 is a programmer error (spec.md
	// §4.4): every realistic alignment score fits. We surface the
	// condition rather than silently dropping the target.
	if len(overflow32) != 0 {
		panic("swipe: target overflowed int32 score vector; this indicates an unrealistic scoring scheme")
	}
	return out
}

// remapSeqs builds the next escalation layer's target list from the
// previous layer's overflow indexes, preserving each Seq's original Index
// so HSPs always point back to the caller's target slice.
func remapSeqs(prev []Seq, overflow []int) []Seq {
	next := make([]Seq, len(overflow))
	for i, idx := range overflow {
		next[i] = prev[idx]
	}
	return next
}

// runLayer runs one precision layer of SWIPE: query against seqs, all
// packed into lanes of width T. It returns completed HSPs (Target fields
// carrying each Seq's original Index) and the list of *positions within
// seqs* whose score saturated and must be rescored at a wider width.
func runLayer[T scorevec.Lane](traits scorevec.Traits[T], query []byte, matrix ScoreMatrix, gaps GapPenalties, seqs []Seq, cutoff int32, laneCount int) (out []align.Hsp, overflow []int) {
	qlen := len(query)
	if len(seqs) == 0 {
		return nil, nil
	}
	dp := NewMatrix(traits, qlen, laneCount)
	buf := NewTargetBuffer(seqs, laneCount)
	open := toLane[T](gaps.Open)
	extend := toLane[T](gaps.Extend)
	best := scorevec.Fill(laneCount, traits.ZeroScore)

	for len(buf.Active()) > 0 {
		it := dp.Begin()
		vgap := scorevec.Fill(laneCount, traits.ZeroScore)
		last := scorevec.Fill(laneCount, traits.ZeroScore)
		letters := buf.SeqVector()
		active := buf.Active()

		for i := 0; i < qlen; i++ {
			hgap := it.Hgap()
			subst := substitutionVector[T](matrix, query[i], letters, active)
			next := cellUpdate(traits, it.Diag(), subst, &hgap, &vgap, &best, open, extend)
			it.SetHgap(hgap)
			it.SetScore(last)
			last = next
			it.Next()
		}
		it.SetScore(last)

		active = buf.Active()
		for idx := 0; idx < len(active); {
			lane := active[idx]
			if best.ExtractChannel(lane) == traits.MaxScore {
				overflow = append(overflow, buf.laneSeq[lane])
				if buf.InitTarget(idx, lane) {
					dp.SetZero(lane)
					best.SetChannel(lane, traits.ZeroScore)
				} else {
					active = buf.Active()
					continue
				}
			}
			if !buf.Inc(lane) {
				s := traits.IntScore(best.ExtractChannel(lane))
				if s >= cutoff {
					out = append(out, align.Hsp{Score: s, Target: buf.Target(lane).Index})
				}
				if buf.InitTarget(idx, lane) {
					dp.SetZero(lane)
					best.SetChannel(lane, traits.ZeroScore)
				} else {
					active = buf.Active()
					continue
				}
			}
			idx++
		}
	}
	return out, overflow
}

// substitutionVector gathers, for each active lane, the substitution score
// between the query residue at the current row and the target letter
// currently sitting in that lane — the per-column "profile" lookup of
// spec.md §4.4.
func substitutionVector[T scorevec.Lane](matrix ScoreMatrix, queryResidue byte, targetLetters []byte, active []int) scorevec.Vector[T] {
	v := scorevec.NewVector[T](len(targetLetters))
	for _, lane := range active {
		v.SetChannel(lane, toLane[T](matrix.Score(queryResidue, targetLetters[lane])))
	}
	return v
}

func toLane[T scorevec.Lane](v int32) T { return T(v) }

// cellUpdate applies the affine-gap Smith-Waterman recurrence to one row of
// one column, per lane, updating hgap/vgap/best in place and returning the
// new cell score vector (which the caller stores shifted by one row to
// become next column's diagonal predecessor — see matrix.go's
// ColumnIterator).
func cellUpdate[T scorevec.Lane](traits scorevec.Traits[T], diag, subst scorevec.Vector[T], hgap, vgap, best *scorevec.Vector[T], open, extend T) scorevec.Vector[T] {
	n := diag.LaneCount()
	next := scorevec.NewVector[T](n)
	for c := 0; c < n; c++ {
		score := traits.Add(diag.ExtractChannel(c), subst.ExtractChannel(c))
		score = scorevec.Max(score, hgap.ExtractChannel(c))
		score = scorevec.Max(score, vgap.ExtractChannel(c))
		// Local-alignment floor: a cell never scores below zero_score. For
		// int8/int16 this coincides with the saturating Sub clamp floor
		// (zero_score == MinInt8/MinInt16), so it falls out for free; at
		// int32 zero_score is 0 but the clamp floor is MinInt32, so without
		// this explicit max a cell could compute a negative score and
		// corrupt the recurrence on the one layer reserved for "already
		// overflowed twice."
		score = scorevec.Max(score, traits.ZeroScore)

		best.SetChannel(c, scorevec.Max(best.ExtractChannel(c), score))
		hgap.SetChannel(c, scorevec.Max(traits.Sub(score, open), traits.Sub(hgap.ExtractChannel(c), extend)))
		vgap.SetChannel(c, scorevec.Max(traits.Sub(score, open), traits.Sub(vgap.ExtractChannel(c), extend)))
		next.SetChannel(c, score)
	}
	return next
}
