// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package scorevec

// Vector is one packed register: a score per active SIMD lane. LaneCount
// bounds how many targets a single SWIPE pass can process concurrently at
// width T — 16 for int8, 8 for int16, 4 for int32 on a 128-bit register, but
// this portable implementation allows any width (see doc.go).
type Vector[T Lane] struct {
	lanes []T
}

// NewVector allocates a Vector with laneCount lanes, all set to zero.
func NewVector[T Lane](laneCount int) Vector[T] {
	return Vector[T]{lanes: make([]T, laneCount)}
}

// Fill returns a Vector with every lane set to v.
func Fill[T Lane](laneCount int, v T) Vector[T] {
	vec := NewVector[T](laneCount)
	for i := range vec.lanes {
		vec.lanes[i] = v
	}
	return vec
}

// LaneCount returns the number of lanes in v.
func (v Vector[T]) LaneCount() int { return len(v.lanes) }

// ExtractChannel returns the score held in lane c.
func (v Vector[T]) ExtractChannel(c int) T { return v.lanes[c] }

// SetChannel stores x into lane c.
func (v Vector[T]) SetChannel(c int, x T) { v.lanes[c] = x }

// Clone returns an independent copy of v.
func (v Vector[T]) Clone() Vector[T] {
	cp := make([]T, len(v.lanes))
	copy(cp, v.lanes)
	return Vector[T]{lanes: cp}
}
