// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package scorevec provides the packed-integer lane abstraction the SWIPE
// dynamic-programming kernel runs over: a vector of scores, one per active
// database target, with saturating arithmetic and a bias scheme that makes
// "the score saturated" observable as a single sentinel value.
//
// Three lane widths are supported: int8, int16 and int32. A real SIMD
// implementation packs these into SSE/AVX registers (16, 8 and 4 lanes per
// 128-bit register respectively); this package models only the portable
// per-lane semantics, matching the generic (!amd64) tier of
// github.com/grailbio/bio/biosimd rather than its hand-written assembly
// tier — see DESIGN.md for why no assembly tier is provided here.
package scorevec

import "math"

// Lane is the set of integer widths a score vector may be packed into.
type Lane interface {
	~int8 | ~int16 | ~int32
}

// Traits bundles the per-width constants and saturating operators the SWIPE
// driver needs. It is a value (not a method set on T) so the driver can stay
// a single generic function parameterized by T rather than one copy per
// lane width.
type Traits[T Lane] struct {
	// Zero is the additive identity of the packed representation.
	Zero T
	// ZeroScore is the bias representing an alignment score of 0.
	ZeroScore T
	// MaxScore is the saturated sentinel signalling numeric overflow.
	MaxScore T
	// Add and Sub are saturating: results are clamped to the representable
	// range of T rather than wrapping.
	Add func(a, b T) T
	Sub func(a, b T) T
	// IntScore converts a lane value back to an absolute integer score.
	IntScore func(T) int32
}

// Int8Traits returns the traits for 8-bit lanes. Representable scores span
// [0, 255]; zero_score is biased to math.MinInt8 so that zero_score plus a
// non-negative raw score never needs to test a sign bit, and MaxScore
// (math.MaxInt8) is reached exactly when the raw score hits 255.
func Int8Traits() Traits[int8] {
	return Traits[int8]{
		Zero:      0,
		ZeroScore: math.MinInt8,
		MaxScore:  math.MaxInt8,
		Add:       satAddInt8,
		Sub:       satSubInt8,
		IntScore:  func(v int8) int32 { return int32(v) - math.MinInt8 },
	}
}

// Int16Traits returns the traits for 16-bit lanes. Representable scores span
// [0, 65535].
func Int16Traits() Traits[int16] {
	return Traits[int16]{
		Zero:      0,
		ZeroScore: math.MinInt16,
		MaxScore:  math.MaxInt16,
		Add:       satAddInt16,
		Sub:       satSubInt16,
		IntScore:  func(v int16) int32 { return int32(v) - math.MinInt16 },
	}
}

// Int32Traits returns the traits for 32-bit lanes. At this width DIAMOND's
// own swipe.cpp drops the bias scheme entirely (see original_source): a
// target overflowing a 32-bit accumulator would need an alignment score
// exceeding 2^31, which spec.md §4.4 calls a programmer error, not a case to
// design around.
func Int32Traits() Traits[int32] {
	return Traits[int32]{
		Zero:      0,
		ZeroScore: 0,
		MaxScore:  math.MaxInt32,
		Add:       satAddInt32,
		Sub:       satSubInt32,
		IntScore:  func(v int32) int32 { return v },
	}
}

func satAddInt8(a, b int8) int8 {
	s := int32(a) + int32(b)
	return int8(clamp32(s, math.MinInt8, math.MaxInt8))
}

func satSubInt8(a, b int8) int8 {
	s := int32(a) - int32(b)
	return int8(clamp32(s, math.MinInt8, math.MaxInt8))
}

func satAddInt16(a, b int16) int16 {
	s := int32(a) + int32(b)
	return int16(clamp32(s, math.MinInt16, math.MaxInt16))
}

func satSubInt16(a, b int16) int16 {
	s := int32(a) - int32(b)
	return int16(clamp32(s, math.MinInt16, math.MaxInt16))
}

func satAddInt32(a, b int32) int32 {
	s := int64(a) + int64(b)
	return int32(clamp64(s, math.MinInt32, math.MaxInt32))
}

func satSubInt32(a, b int32) int32 {
	s := int64(a) - int64(b)
	return int32(clamp64(s, math.MinInt32, math.MaxInt32))
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Max returns the greater of two lane values under ordinary (non-saturating)
// integer comparison, used by the DP recurrence's running-best tracking.
func Max[T Lane](a, b T) T {
	if a > b {
		return a
	}
	return b
}
