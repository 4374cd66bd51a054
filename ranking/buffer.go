// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ranking

import "encoding/binary"

// Buffer is a growable little-endian byte buffer supporting the
// seek-back-and-patch pattern the ranking record codec needs: Intro reserves
// space for a length field that Finish later overwrites once the payload
// size is known (DESIGN NOTES §9). A plain io.Writer cannot do this without
// buffering a whole record itself, so Writer owns one of these instead of
// writing straight to its destination stream.
type Buffer struct {
	buf []byte
}

// Size returns the number of bytes written so far.
func (b *Buffer) Size() int { return len(b.buf) }

// Bytes returns the buffer's contents. The returned slice aliases the
// Buffer's storage and must not be retained across further writes.
func (b *Buffer) Bytes() []byte { return b.buf }

// WriteUint32 appends v in little-endian order.
func (b *Buffer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteUint16 appends v in little-endian order.
func (b *Buffer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// PatchUint32 overwrites the little-endian uint32 at byte offset pos with v.
// REQUIRES: pos+4 <= Size().
func (b *Buffer) PatchUint32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[pos:pos+4], v)
}

// BitSet is a fixed-domain bitset, used for ranking_db_filter (spec.md
// §4.5): the set of database ids that appear in at least one written
// QueryList.
type BitSet struct {
	words []uint64
}

// NewBitSet allocates a BitSet over [0, n).
func NewBitSet(n int) *BitSet {
	return &BitSet{words: make([]uint64, (n+63)/64)}
}

// Set marks bit i.
func (s *BitSet) Set(i int) {
	word := i / 64
	for word >= len(s.words) {
		s.words = append(s.words, 0)
	}
	s.words[word] |= 1 << uint(i%64)
}

// Get reports whether bit i is set.
func (s *BitSet) Get(i int) bool {
	word := i / 64
	if word >= len(s.words) {
		return false
	}
	return s.words[word]&(1<<uint(i%64)) != 0
}
