// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ranking

import (
	"context"
	"io"
	stderrors "errors"
	"sync"

	"github.com/grailbio/diamond-core/align"
	"github.com/pkg/errors"
)

// Fetcher delivers one whole QueryList per call, atomically, to whichever
// worker goroutine calls it — the only way queries are handed out to
// parallel alignment workers (spec.md §4.5, §5). There is no read-ahead and
// no per-worker buffering: ordering between workers competing for the next
// record is unspecified, but every record is delivered exactly once and in
// file order.
type Fetcher struct {
	mu   sync.Mutex
	r    io.Reader
	next uint32
}

// NewFetcher returns a Fetcher reading sequential ranking records from r.
func NewFetcher(r io.Reader) *Fetcher {
	return &Fetcher{r: r}
}

// FetchQueryTargets reads and returns the next ranking record. On
// end-of-stream it returns the empty-QueryList sentinel (QueryBlockID == 0,
// Targets == nil) and a nil error — EndOfStream is an expected condition
// here, not a failure (spec.md §7). Any other I/O or framing error is fatal
// and returned as a wrapped error; there is no partial recovery. ctx is
// checked before the call blocks on its mutex and again once the mutex is
// held, before the record is read (not between the record's reads), mirroring
// `encoding/pam/pamutil/index.go`'s ctx-first-argument I/O entry points.
func (f *Fetcher) FetchQueryTargets(ctx context.Context) (QueryList, error) {
	if err := ctx.Err(); err != nil {
		return QueryList{}, errors.Wrap(err, "ranking: fetch cancelled")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return QueryList{}, errors.Wrap(err, "ranking: fetch cancelled")
	}
	last := f.next
	var queryIDBytes [4]byte
	if _, err := io.ReadFull(f.r, queryIDBytes[:]); err != nil {
		if stderrors.Is(err, io.EOF) {
			return QueryList{LastQueryBlockID: last}, nil
		}
		return QueryList{}, errors.Wrap(err, "ranking: reading query_block_id")
	}
	queryID := leUint32(queryIDBytes[:])

	var payloadLenBytes [4]byte
	if _, err := io.ReadFull(f.r, payloadLenBytes[:]); err != nil {
		return QueryList{}, errors.Wrap(err, "ranking: truncated record (missing payload_len)")
	}
	payloadLen := leUint32(payloadLenBytes[:])
	f.next = queryID + 1

	if payloadLen%recordEntrySize != 0 {
		return QueryList{}, errors.Errorf("ranking: malformed record: payload_len %d is not a multiple of %d", payloadLen, recordEntrySize)
	}
	n := int(payloadLen / recordEntrySize)
	targets := make([]align.Match, n)
	var entry [recordEntrySize]byte
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(f.r, entry[:]); err != nil {
			return QueryList{}, errors.Wrap(err, "ranking: truncated record (missing target entry)")
		}
		targets[i] = align.Match{BlockID: leUint32(entry[:]), Score: leUint16(entry[4:])}
	}

	return QueryList{QueryBlockID: queryID, LastQueryBlockID: last, Targets: targets}, nil
}
