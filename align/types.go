// Copyright 2013-2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package align holds the data model shared by the ranking pipeline and the
// SWIPE kernel: seed hits, candidate targets and the HSPs/matches they
// resolve to. See SPEC_FULL.md §3.
package align

import "sort"

// OverflowScore is the sentinel raw score on a SeedHit meaning "this
// ungapped score saturated an 8-bit accumulator and must be recomputed
// exactly" (spec.md §3).
const OverflowScore = 0xFF

// SeedHit is one local ungapped match anchor found by the (out-of-scope)
// seeder.
type SeedHit struct {
	I, J  int    // query offset, target offset
	Frame uint   // reading frame
	Score uint8  // raw score; OverflowScore means "must rescore"
}

// Diag returns the diagonal (I - J) the hit lies on.
func (h SeedHit) Diag() int { return h.I - h.J }

// SeedHitLess orders SeedHits by diagonal, tie-broken by target offset, per
// spec.md §3.
func SeedHitLess(a, b SeedHit) bool {
	da, db := a.Diag(), b.Diag()
	if da != db {
		return da < db
	}
	return a.J < b.J
}

// SortSeedHits sorts hits in place using SeedHitLess.
func SortSeedHits(hits []SeedHit) {
	sort.Slice(hits, func(i, j int) bool { return SeedHitLess(hits[i], hits[j]) })
}

// TargetScore is a candidate database target scored by the ungapped seed
// stage, prior to full alignment. Index refers to a position into the
// caller's target-block array (not a database-global id).
type TargetScore struct {
	Index uint32
	Score uint16
}

// TargetScoreLess orders TargetScores by score descending, then index
// ascending, per spec.md §3.
func TargetScoreLess(a, b TargetScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// Hsp is a high-scoring segment pair emitted by the SWIPE driver. Target is
// an index into the caller's target slice, already remapped through any
// precision-escalation layers (spec.md §4.4).
type Hsp struct {
	Score  int32
	Target int
}

// Match is a ranked database target emitted by the ranking list builder
// (spec.md §4.7); it is the unit written into a QueryList record.
type Match struct {
	BlockID uint32
	Score   uint16
}

// HspTrait is a lightweight placeholder for the gapped-alignment traits a
// full implementation would attach to a WorkTarget's per-frame HSP list.
// Gapped traceback itself is out of scope (spec.md §1); only the score
// survives into filter_score.
type HspTrait struct {
	Frame uint
	Score int32
}

// WorkTarget is a candidate alignment still being refined: an ungapped-stage
// survivor that has not yet been fully aligned. See spec.md §3.
type WorkTarget struct {
	BlockID       uint64
	Seq           []byte
	FilterScore   int
	UngappedScore int
	Outranked     bool
	Hsp           [][]HspTrait // indexed by frame
}

// WorkTargetLess orders WorkTargets by filter_score descending, then block
// id ascending, per spec.md §3.
func WorkTargetLess(a, b *WorkTarget) bool {
	if a.FilterScore != b.FilterScore {
		return a.FilterScore > b.FilterScore
	}
	return a.BlockID < b.BlockID
}

// Target is a WorkTarget that has completed full alignment and carries the
// resulting HSPs. Invariant (spec.md §3): once Outranked is set, a target
// may still carry HSPs but must be excluded from further refinement rounds.
type Target struct {
	BlockID       uint64
	Seq           []byte
	FilterScore   int
	UngappedScore int
	Outranked     bool
	Hsp           [][]Hsp // indexed by frame
}

// TargetLess orders Targets the same way as WorkTargetLess.
func TargetLess(a, b *Target) bool {
	if a.FilterScore != b.FilterScore {
		return a.FilterScore > b.FilterScore
	}
	return a.BlockID < b.BlockID
}

// AddHit appends hsp to the target's per-frame list and raises FilterScore
// to the new HSP's score if it is higher, mirroring target.h's
// Target::add_hit.
func (t *Target) AddHit(frame uint, hsp Hsp) {
	for len(t.Hsp) <= int(frame) {
		t.Hsp = append(t.Hsp, nil)
	}
	t.Hsp[frame] = append(t.Hsp[frame], hsp)
	if int(hsp.Score) > t.FilterScore {
		t.FilterScore = int(hsp.Score)
	}
}

// ScoreMatrix supplies substitution scores between two residues. Concrete
// scoring-matrix tables (BLOSUM, PAM, ...) are an out-of-scope collaborator
// (spec.md §1); every component in this module that needs a lookup (the
// SWIPE driver, the overflow rescorer) takes one of these rather than
// depending on a specific table.
type ScoreMatrix interface {
	Score(a, b byte) int32
}

// ReferenceDictionary translates a block-local dictionary id (as carried by
// an IntermediateRecord from the out-of-scope seeder) to a database-global
// id. It is kept as a narrow interface so this module never needs to depend
// on the database loader.
type ReferenceDictionary interface {
	DatabaseID(dictID uint32) uint32
}

// ReferenceDictionaryFunc adapts a plain function to ReferenceDictionary.
type ReferenceDictionaryFunc func(dictID uint32) uint32

// DatabaseID implements ReferenceDictionary.
func (f ReferenceDictionaryFunc) DatabaseID(dictID uint32) uint32 { return f(dictID) }

// IntermediateRecord is one scored hit as produced by the seeder, prior to
// translation through a ReferenceDictionary. See spec.md §3.
type IntermediateRecord struct {
	SubjectDictID uint32
	Score         uint32
}
