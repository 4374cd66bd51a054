// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package swipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqs(n int) []Seq {
	out := make([]Seq, n)
	for i := range out {
		out[i] = Seq{Letters: []byte{byte('A' + i)}, Index: i}
	}
	return out
}

func TestTargetBufferFillsLanesUpFront(t *testing.T) {
	b := NewTargetBuffer(seqs(3), 4)
	require.Len(t, b.Active(), 3, "only as many lanes fill as there are pending targets")
	assert.Equal(t, []int{0, 1, 2}, b.Active())
}

func TestTargetBufferIncAndRecycle(t *testing.T) {
	b := NewTargetBuffer(seqs(3), 2)
	require.Len(t, b.Active(), 2)

	// lane 0 holds target 0 (a single-letter sequence): Inc exhausts it.
	assert.False(t, b.Inc(0))
	// recycle lane 0 with the pending target (index 2).
	ok := b.InitTarget(0, 0)
	require.True(t, ok)
	assert.Equal(t, 2, b.Target(0).Index)

	// now no pending targets remain; exhausting lane 1 removes its slot.
	assert.False(t, b.Inc(1))
	ok = b.InitTarget(1, 1)
	assert.False(t, ok, "no more pending targets")
	assert.Len(t, b.Active(), 1, "exhausted slot is removed from Active()")
	assert.Equal(t, 0, b.Active()[0])
}

func TestSeqVectorGathersCurrentLetters(t *testing.T) {
	b := NewTargetBuffer(seqs(2), 2)
	v := b.SeqVector()
	assert.Equal(t, []byte{'A', 'B'}, v)
}
