package hnsw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/minutesai/semindex/index"
)

const (
	// graphMagic identifies serialized HNSW graphs (ASCII: "SEM1").
	graphMagic = 0x53454D31

	// graphVersion is the current graph format version (v1.0.0).
	graphVersion = 0x00010000
)

var (
	// ErrInvalidMagic is returned when a graph blob has the wrong magic number.
	ErrInvalidMagic = errors.New("invalid graph magic number")

	// ErrInvalidVersion is returned for unsupported graph format versions.
	ErrInvalidVersion = errors.New("unsupported graph format version")

	// ErrInvalidGraph is returned when a graph blob decodes but references
	// nodes that do not exist.
	ErrInvalidGraph = errors.New("invalid graph structure")
)

// graphHeader is the fixed-size header at the start of a serialized graph.
type graphHeader struct {
	Magic      uint32
	Version    uint32
	Dimension  uint32
	M          uint32
	EF         uint32
	MaxLevel   uint32
	EntryPoint uint64
	Count      uint64
}

// WriteGraph serializes the graph structure (levels and links, not vectors)
// to w. Vectors are persisted separately by the store and re-attached on load.
func (h *HNSW) WriteGraph(w io.Writer) error {
	hdr := graphHeader{
		Magic:      graphMagic,
		Version:    graphVersion,
		Dimension:  uint32(h.opts.Dimension),
		M:          uint32(h.opts.M),
		EF:         uint32(h.opts.EF),
		MaxLevel:   uint32(h.maxLevel),
		EntryPoint: h.entryPoint,
		Count:      uint64(len(h.nodes)),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write graph header: %w", err)
	}

	for _, n := range h.nodes {
		if err := binary.Write(w, binary.LittleEndian, uint32(n.level)); err != nil {
			return fmt.Errorf("write node level: %w", err)
		}
		for layer := 0; layer <= n.level; layer++ {
			links := n.links[layer]
			if err := binary.Write(w, binary.LittleEndian, uint32(len(links))); err != nil {
				return fmt.Errorf("write link count: %w", err)
			}
			if err := binary.Write(w, binary.LittleEndian, links); err != nil {
				return fmt.Errorf("write links: %w", err)
			}
		}
	}

	return nil
}

// LoadGraph reconstructs a graph from r, re-attaching the given vectors.
// The vectors must be those persisted alongside the graph, in id order.
func LoadGraph(r io.Reader, vectors [][]float32, optFns ...func(o *Options)) (*HNSW, error) {
	var hdr graphHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read graph header: %w", err)
	}

	if hdr.Magic != graphMagic {
		return nil, ErrInvalidMagic
	}
	if hdr.Version != graphVersion {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, hdr.Version)
	}
	if int(hdr.Count) != len(vectors) {
		return nil, fmt.Errorf("graph/vector count mismatch: graph has %d nodes, got %d vectors", hdr.Count, len(vectors))
	}
	if hdr.Count > 0 && hdr.EntryPoint >= hdr.Count {
		return nil, fmt.Errorf("%w: entry point %d out of range (%d nodes)", ErrInvalidGraph, hdr.EntryPoint, hdr.Count)
	}
	for _, v := range vectors {
		if err := index.CheckVector(int(hdr.Dimension), v); err != nil {
			return nil, err
		}
	}

	h, err := New(func(o *Options) {
		o.Dimension = int(hdr.Dimension)
		o.M = int(hdr.M)
		o.EF = int(hdr.EF)
		for _, fn := range optFns {
			fn(o)
		}
		// Recorded dimension is authoritative.
		o.Dimension = int(hdr.Dimension)
	})
	if err != nil {
		return nil, err
	}

	h.vectors = vectors
	h.entryPoint = hdr.EntryPoint
	h.maxLevel = int(hdr.MaxLevel)
	h.nodes = make([]node, hdr.Count)

	for i := range h.nodes {
		var level uint32
		if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
			return nil, fmt.Errorf("read node level: %w", err)
		}

		n := node{
			level: int(level),
			links: make([][]uint64, level+1),
		}
		for layer := 0; layer <= n.level; layer++ {
			var count uint32
			if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
				return nil, fmt.Errorf("read link count: %w", err)
			}
			links := make([]uint64, count)
			if err := binary.Read(r, binary.LittleEndian, links); err != nil {
				return nil, fmt.Errorf("read links: %w", err)
			}
			for _, link := range links {
				if link >= hdr.Count {
					return nil, fmt.Errorf("%w: node %d links to %d on layer %d (%d nodes)", ErrInvalidGraph, i, link, layer, hdr.Count)
				}
			}
			n.links[layer] = links
		}
		h.nodes[i] = n
	}

	// Search descends from MaxLevel through the entry point's link layers.
	if hdr.Count > 0 && h.nodes[hdr.EntryPoint].level < int(hdr.MaxLevel) {
		return nil, fmt.Errorf("%w: entry point %d has level %d, header records max level %d",
			ErrInvalidGraph, hdr.EntryPoint, h.nodes[hdr.EntryPoint].level, hdr.MaxLevel)
	}

	return h, nil
}
