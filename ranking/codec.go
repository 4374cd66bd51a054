// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ranking

import (
	"github.com/grailbio/diamond-core/align"
	"github.com/pkg/errors"
)

// recordEntrySize is the on-disk size of one (db_id, score) pair: the
// invariant writer and reader must agree on (spec.md §4.5).
const recordEntrySize = 6

// QueryList is one decoded ranking record: a query and the database targets
// the ungapped seed stage retained for it (spec.md §3).
type QueryList struct {
	// QueryBlockID is zero and Targets is nil for the end-of-stream
	// sentinel (spec.md §7: EndOfStream is converted locally, never
	// propagated as an error).
	QueryBlockID uint32
	// LastQueryBlockID is the next_query value from before this fetch,
	// letting a caller detect query ids with no candidates at all — they
	// simply don't appear between LastQueryBlockID and QueryBlockID.
	LastQueryBlockID uint32
	Targets          []align.Match
}

// Writer emits ranking records into an in-memory Buffer using the
// intro/finish seek-back-and-patch pattern (spec.md §4.5). It is not
// goroutine-safe; each worker that writes ranking records owns one Writer
// (mirroring the per-worker Matrix scratch of the SWIPE driver).
type Writer struct {
	buf       *Buffer
	dbFilter  *BitSet
}

// NewWriter creates a Writer appending to buf. dbFilter may be nil if the
// caller does not need the ranking_db_filter bitset.
func NewWriter(buf *Buffer, dbFilter *BitSet) *Writer {
	return &Writer{buf: buf, dbFilter: dbFilter}
}

// Intro writes query_id and a placeholder payload_len, and returns the byte
// offset Finish must later be called with.
func (w *Writer) Intro(queryID uint32) int {
	pos := w.buf.Size()
	w.buf.WriteUint32(queryID)
	w.buf.WriteUint32(0)
	return pos
}

// WriteTarget appends one retained (db_id, score) pair and marks dbID in the
// ranking_db_filter bitset, if one was supplied.
func (w *Writer) WriteTarget(dbID uint32, score uint16) {
	w.buf.WriteUint32(dbID)
	w.buf.WriteUint16(score)
	if w.dbFilter != nil {
		w.dbFilter.Set(int(dbID))
	}
}

// Finish patches the placeholder written by Intro with the actual payload
// byte count: buf.Size() - introOffset - 8.
func (w *Writer) Finish(introOffset int) {
	payloadLen := w.buf.Size() - introOffset - 8
	w.buf.PatchUint32(introOffset+4, uint32(payloadLen))
}

// decodeQueryList parses one record out of raw, starting at offset off, and
// returns the decoded record and the offset just past it, for validating a
// Buffer's contents in memory (spec.md §8 round-trip property). The Fetcher
// does not use it: it parses records straight from its io.Reader.
func decodeQueryList(raw []byte, off int) (QueryList, int, error) {
	if off+8 > len(raw) {
		return QueryList{}, off, errors.New("ranking: truncated record header")
	}
	queryID := leUint32(raw[off:])
	payloadLen := leUint32(raw[off+4:])
	off += 8
	if payloadLen%recordEntrySize != 0 {
		return QueryList{}, off, errors.Errorf("ranking: payload_len %d is not a multiple of %d", payloadLen, recordEntrySize)
	}
	n := int(payloadLen / recordEntrySize)
	if off+n*recordEntrySize > len(raw) {
		return QueryList{}, off, errors.New("ranking: truncated payload")
	}
	targets := make([]align.Match, n)
	for i := 0; i < n; i++ {
		dbID := leUint32(raw[off:])
		score := leUint16(raw[off+4:])
		targets[i] = align.Match{BlockID: dbID, Score: score}
		off += recordEntrySize
	}
	return QueryList{QueryBlockID: queryID, Targets: targets}, off, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
