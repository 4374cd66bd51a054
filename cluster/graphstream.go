// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cluster implements the similarity-graph spill stream and the
// two-pass greedy clustering driver (spec.md §4.8, §4.9).
package cluster

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// SparseEdge is one similarity edge between two database sequence indices,
// as produced by an upstream self-alignment pass (spec.md §3).
type SparseEdge struct {
	Row, Col uint32
	Value    float64
}

// Graph file versions. Version 0 is the original uncompressed layout
// (spec.md §6); version 1 is this module's addition, prefixing each block's
// edge payload with its compressed byte length and zstd-compressing it
// (§6 domain stack). The header and the (first_index, edge_count) prefix
// are never compressed, so CollectComponents can keep skipping blocks by
// first_index without touching a decoder.
const (
	graphFileVersionRaw        = 0
	graphFileVersionZstdBlocks = 1
)

// edgeEntrySize is the on-disk size of one (row, col, value) triplet.
const edgeEntrySize = 4 + 4 + 8

// edgeNode adapts SparseEdge to llrb.Comparable, ordered row-major,
// col-minor (CoordinateCmp in sparse_matrix_stream.h).
type edgeNode struct{ SparseEdge }

func (e edgeNode) Compare(c llrb.Comparable) int {
	o := c.(edgeNode)
	if e.Row != o.Row {
		if e.Row < o.Row {
			return -1
		}
		return 1
	}
	if e.Col != o.Col {
		if e.Col < o.Col {
			return -1
		}
		return 1
	}
	return 0
}

// SparseGraphStream is the in-memory ordered similarity-edge set with
// optional spill-to-disk when memory exceeds a configurable ceiling
// (spec.md §4.8). It is not goroutine-safe; callers serialize Consume calls
// the same way the upstream C++ Consumer interface assumes a single writer.
type SparseGraphStream struct {
	n         uint64
	maxSizeGB float64
	data      llrb.Tree
	count     int
	disjoint  DisjointSet
	w         io.Writer
	compress  bool

	headerWritten bool
}

// NewSparseGraphStream returns a stream over a dense [0, n) domain that
// spills to w once the in-memory edge set exceeds 2 GB (the original's
// hardcoded default; override with SetMaxMemGB). w may be nil to keep
// everything in memory (matches the C++ constructor with no file name).
func NewSparseGraphStream(n uint64, w io.Writer) *SparseGraphStream {
	return &SparseGraphStream{n: n, maxSizeGB: 2.0, disjoint: NewDenseDisjointSet(int(n)), w: w}
}

// SetMaxMemGB overrides the spill threshold.
func (s *SparseGraphStream) SetMaxMemGB(gb float64) { s.maxSizeGB = gb }

// SetCompressSpill enables per-block zstd compression of spilled edge
// payloads (spec.md §6 domain stack). Must be set before the first Consume
// call that triggers a header write.
func (s *SparseGraphStream) SetCompressSpill(enabled bool) { s.compress = enabled }

func (s *SparseGraphStream) writeHeaderOnce() error {
	if s.w == nil {
		return nil
	}
	version := uint32(graphFileVersionRaw)
	if s.compress {
		version = graphFileVersionZstdBlocks
	}
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[0:8], s.n)
	binary.LittleEndian.PutUint32(hdr[8:12], version)
	_, err := s.w.Write(hdr[:])
	return errors.Wrap(err, "cluster: writing graph header")
}

// Consume inserts edges into the in-memory set, deduplicating on (row, col)
// with max-merge on value, merging endpoints in the disjoint set on first
// insertion, and spilling whenever the estimated byte size crosses the
// configured ceiling (spec.md §4.8). ctx is checked before each spill, the
// one place this call can block on file I/O.
func (s *SparseGraphStream) Consume(ctx context.Context, edges []SparseEdge) error {
	for _, e := range edges {
		key := edgeNode{e}
		if existing := s.data.Get(key); existing == nil {
			s.data.Insert(key)
			s.count++
			s.disjoint.Merge(e.Row, e.Col)
		} else if e.Value > existing.(edgeNode).Value {
			s.data.Delete(key)
			s.data.Insert(key)
		}
		if s.w != nil && s.estimatedGB() >= s.maxSizeGB {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "cluster: spill cancelled")
			}
			if err := s.dump(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SparseGraphStream) estimatedGB() float64 {
	return float64(s.count) * edgeEntrySize / (1024.0 * 1024.0 * 1024.0)
}

// Flush spills any remaining in-memory edges. Callers that built a stream
// with a non-nil writer must call Flush when done producing edges.
func (s *SparseGraphStream) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "cluster: spill cancelled")
	}
	return s.dump()
}

// GetIndices returns the current disjoint-set partition, one slice of
// sorted member indices per component, components ordered by their lowest
// member.
func (s *SparseGraphStream) GetIndices() [][]uint32 {
	sets := s.disjoint.ListOfSets()
	for _, set := range sets {
		sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i][0] < sets[j][0] })
	return sets
}

// dump partitions the in-memory edges by connected component (using the
// disjoint set as oracle, a snapshot valid only at this instant — spec.md §9
// DESIGN NOTES) and writes one block per non-empty component.
func (s *SparseGraphStream) dump() error {
	if s.w == nil || s.count == 0 {
		return nil
	}
	indices := s.GetIndices()
	indexToSet := make(map[uint32]int, s.count*2)
	for iset, members := range indices {
		for _, idx := range members {
			indexToSet[idx] = iset
		}
	}

	components := make([][]SparseEdge, len(indices))
	s.data.Do(func(c llrb.Comparable) bool {
		e := c.(edgeNode).SparseEdge
		iset := indexToSet[e.Row]
		components[iset] = append(components[iset], e)
		return false
	})

	for iset, edges := range components {
		if len(edges) == 0 {
			continue
		}
		if err := s.writeBlock(indices[iset][0], edges); err != nil {
			return err
		}
	}

	s.data = llrb.Tree{}
	s.count = 0
	return nil
}

func encodeEdges(edges []SparseEdge) []byte {
	buf := make([]byte, edgeEntrySize*len(edges))
	for i, e := range edges {
		off := i * edgeEntrySize
		binary.LittleEndian.PutUint32(buf[off:], e.Row)
		binary.LittleEndian.PutUint32(buf[off+4:], e.Col)
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(e.Value))
	}
	return buf
}

func decodeEdges(raw []byte) []SparseEdge {
	edges := make([]SparseEdge, len(raw)/edgeEntrySize)
	for i := range edges {
		off := i * edgeEntrySize
		edges[i] = SparseEdge{
			Row:   binary.LittleEndian.Uint32(raw[off:]),
			Col:   binary.LittleEndian.Uint32(raw[off+4:]),
			Value: math.Float64frombits(binary.LittleEndian.Uint64(raw[off+8:])),
		}
	}
	return edges
}

func (s *SparseGraphStream) writeBlock(firstIndex uint32, edges []SparseEdge) error {
	if !s.headerWritten {
		if err := s.writeHeaderOnce(); err != nil {
			return err
		}
		s.headerWritten = true
	}

	raw := encodeEdges(edges)
	payload := raw
	if s.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errors.Wrap(err, "cluster: opening zstd block encoder")
		}
		payload = enc.EncodeAll(raw, nil)
		if err := enc.Close(); err != nil {
			return errors.Wrap(err, "cluster: closing zstd block encoder")
		}
	}

	var prefix [8]byte
	binary.LittleEndian.PutUint32(prefix[0:4], firstIndex)
	binary.LittleEndian.PutUint32(prefix[4:8], uint32(len(edges)))
	if _, err := s.w.Write(prefix[:]); err != nil {
		return errors.Wrap(err, "cluster: writing graph block header")
	}
	if s.compress {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := s.w.Write(lenBuf[:]); err != nil {
			return errors.Wrap(err, "cluster: writing compressed block length")
		}
	}
	if _, err := s.w.Write(payload); err != nil {
		return errors.Wrap(err, "cluster: writing graph edge payload")
	}
	return nil
}

// graphHeader reads the {n, version} header shared by FromFile and
// CollectComponents.
func graphHeader(r io.Reader) (n uint64, compressed bool, err error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, false, errors.Wrap(err, "cluster: reading graph header")
	}
	n = binary.LittleEndian.Uint64(hdr[0:8])
	version := binary.LittleEndian.Uint32(hdr[8:12])
	switch version {
	case graphFileVersionRaw:
		return n, false, nil
	case graphFileVersionZstdBlocks:
		return n, true, nil
	default:
		return 0, false, errors.Errorf("cluster: graph file version %d cannot be read", version)
	}
}

func readBlockPayload(r io.Reader, edgeCount int, compressed bool) ([]SparseEdge, error) {
	if !compressed {
		raw := make([]byte, edgeCount*edgeEntrySize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errors.Wrap(err, "cluster: reading graph edge payload")
		}
		return decodeEdges(raw), nil
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "cluster: reading compressed block length")
	}
	compBuf := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, compBuf); err != nil {
		return nil, errors.Wrap(err, "cluster: reading compressed block payload")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cluster: opening zstd block decoder")
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compBuf, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cluster: decompressing graph block")
	}
	return decodeEdges(raw), nil
}

// FromFile rebuilds only the disjoint-set structure from a previously
// spilled graph file: triplets are discarded as each block is read
// (sparse_matrix_stream.h's fromFile — spec.md §7). ctx is checked before
// opening the read and once per block.
func FromFile(ctx context.Context, r io.Reader) (*SparseGraphStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cluster: read cancelled")
	}
	n, compressed, err := graphHeader(r)
	if err != nil {
		return nil, err
	}
	s := &SparseGraphStream{n: n, disjoint: NewDenseDisjointSet(int(n))}
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "cluster: read cancelled")
		}
		var prefix [8]byte
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "cluster: reading graph block header")
		}
		edgeCount := int(binary.LittleEndian.Uint32(prefix[4:8]))
		edges, err := readBlockPayload(r, edgeCount, compressed)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			s.disjoint.Merge(e.Row, e.Col)
		}
	}
	return s, nil
}

// CollectComponents performs the targeted rebuild: given groupings of
// indices of interest (e.g. previously computed components), it streams the
// file, skipping blocks whose first_index is not among the requested
// indices, and returns the edges of each requested grouping remapped to
// local 0..k-1 indices (sparse_matrix_stream.h's collect_components —
// spec.md §4.8). Groupings with no surviving edges are omitted from the
// result, exactly as the original drops empty components. ctx is checked
// before opening the read and once per block.
func CollectComponents(ctx context.Context, r io.Reader, indices [][]uint32) ([][]SparseEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cluster: read cancelled")
	}
	_, compressed, err := graphHeader(r)
	if err != nil {
		return nil, err
	}

	wanted := make(map[uint32]bool)
	indexToSet := make(map[uint32]int)
	for iset, members := range indices {
		for _, idx := range members {
			wanted[idx] = true
			indexToSet[idx] = iset
		}
	}

	collected := make([][]SparseEdge, len(indices))
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "cluster: read cancelled")
		}
		var prefix [8]byte
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "cluster: reading graph block header")
		}
		firstIndex := binary.LittleEndian.Uint32(prefix[0:4])
		edgeCount := int(binary.LittleEndian.Uint32(prefix[4:8]))

		if !wanted[firstIndex] {
			if err := skipBlock(r, edgeCount, compressed); err != nil {
				return nil, err
			}
			continue
		}
		edges, err := readBlockPayload(r, edgeCount, compressed)
		if err != nil {
			return nil, err
		}
		iset := indexToSet[firstIndex]
		collected[iset] = append(collected[iset], edges...)
	}

	components := make([][]SparseEdge, 0, len(indices))
	for iset, edges := range collected {
		if len(edges) == 0 {
			continue
		}
		indexMap := make(map[uint32]uint32, len(indices[iset]))
		for local, global := range indices[iset] {
			indexMap[global] = uint32(local)
		}
		remapped := make([]SparseEdge, len(edges))
		for i, e := range edges {
			remapped[i] = SparseEdge{Row: indexMap[e.Row], Col: indexMap[e.Col], Value: e.Value}
		}
		components = append(components, remapped)
	}
	log.Debug.Printf("cluster: collected %d non-empty components out of %d requested", len(components), len(indices))
	return components, nil
}

func skipBlock(r io.Reader, edgeCount int, compressed bool) error {
	if !compressed {
		_, err := io.CopyN(discard{}, r, int64(edgeCount*edgeEntrySize))
		return errors.Wrap(err, "cluster: skipping graph block")
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return errors.Wrap(err, "cluster: reading compressed block length")
	}
	_, err := io.CopyN(discard{}, r, int64(binary.LittleEndian.Uint32(lenBuf[:])))
	return errors.Wrap(err, "cluster: skipping compressed graph block")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
