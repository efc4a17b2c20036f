// Package persistence reads and writes the on-disk artifact set for a
// store snapshot.
//
// A snapshot saved under base path "p" consists of:
//
//	p.vectors       binary matrix: uint32 count, uint32 dimension, then
//	                count*dimension float32 values, all little endian
//	p.ids.json      external entry ids, aligned with the matrix rows
//	p.meta.json     per-entry metadata, aligned with the matrix rows
//	p.backend.json  name and dimension of the embedding backend
//	p.index         optional zstd-compressed accelerated index blob
//
// All files are written to a temporary name first and renamed into place,
// so a crash mid-save never leaves a torn artifact behind.
package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/minutesai/semindex/model"
)

// Artifact suffixes appended to the base path.
const (
	SuffixVectors = ".vectors"
	SuffixIDs     = ".ids.json"
	SuffixMeta    = ".meta.json"
	SuffixBackend = ".backend.json"
	SuffixIndex   = ".index"
)

var (
	// ErrCorruptArtifact is wrapped by errors caused by torn or
	// inconsistent artifact files.
	ErrCorruptArtifact = errors.New("corrupt snapshot artifact")

	// ErrNotFound is returned when no snapshot exists at the base path.
	ErrNotFound = errors.New("snapshot not found")
)

// Save writes all artifacts for the snapshot under basePath. Writes run in
// parallel and each one is atomic, so concurrent readers of a previous
// snapshot at the same path never observe partial content.
func Save(basePath string, snap *model.Snapshot) error {
	if err := validate(snap); err != nil {
		return err
	}

	ids, err := json.Marshal(snap.IDs)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(snap.Meta)
	if err != nil {
		return err
	}
	backend, err := json.Marshal(snap.Backend)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		return writeFileAtomic(basePath+SuffixVectors, encodeVectors(snap.Vectors, snap.Backend.Dimension))
	})
	g.Go(func() error { return writeFileAtomic(basePath+SuffixIDs, ids) })
	g.Go(func() error { return writeFileAtomic(basePath+SuffixMeta, meta) })
	g.Go(func() error { return writeFileAtomic(basePath+SuffixBackend, backend) })
	g.Go(func() error {
		if snap.IndexBlob == nil {
			// A stale index from a previous layout must not survive.
			if err := os.Remove(basePath + SuffixIndex); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		}
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		defer enc.Close()
		return writeFileAtomic(basePath+SuffixIndex, enc.EncodeAll(snap.IndexBlob, nil))
	})

	return g.Wait()
}

// Load reads the artifact set under basePath back into a snapshot. A
// missing optional index file yields a nil IndexBlob; any other missing or
// inconsistent artifact is an error.
func Load(basePath string) (*model.Snapshot, error) {
	raw, err := os.ReadFile(basePath + SuffixVectors)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, basePath)
		}
		return nil, err
	}

	snap := &model.Snapshot{}
	snap.Vectors, err = decodeVectors(raw)
	if err != nil {
		return nil, err
	}

	if err := readJSON(basePath+SuffixIDs, &snap.IDs); err != nil {
		return nil, err
	}
	if err := readJSON(basePath+SuffixMeta, &snap.Meta); err != nil {
		return nil, err
	}
	if err := readJSON(basePath+SuffixBackend, &snap.Backend); err != nil {
		return nil, err
	}

	if blob, err := os.ReadFile(basePath + SuffixIndex); err == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		snap.IndexBlob, err = dec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress index: %v", ErrCorruptArtifact, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := validate(snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	return snap, nil
}

// validate checks the cross-artifact length invariants.
func validate(snap *model.Snapshot) error {
	n := len(snap.Vectors)
	if len(snap.IDs) != n {
		return fmt.Errorf("id count %d does not match vector count %d", len(snap.IDs), n)
	}
	if len(snap.Meta) != n {
		return fmt.Errorf("metadata count %d does not match vector count %d", len(snap.Meta), n)
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Backend.Dimension {
			return fmt.Errorf("vector %d has dimension %d, backend records %d", i, len(v), snap.Backend.Dimension)
		}
	}
	return nil
}

func encodeVectors(vectors [][]float32, dim int) []byte {
	buf := make([]byte, 8+len(vectors)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(dim))

	off := 8
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	return buf
}

func decodeVectors(raw []byte) ([][]float32, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: vectors file truncated at %d bytes", ErrCorruptArtifact, len(raw))
	}
	n := int(binary.LittleEndian.Uint32(raw[0:]))
	dim := int(binary.LittleEndian.Uint32(raw[4:]))

	want := 8 + n*dim*4
	if len(raw) != want {
		return nil, fmt.Errorf("%w: vectors file has %d bytes, header implies %d", ErrCorruptArtifact, len(raw), want)
	}

	vectors := make([][]float32, n)
	off := 8
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: missing artifact %s", ErrCorruptArtifact, path)
		}
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrCorruptArtifact, path, err)
	}
	return nil
}

// writeFileAtomic writes data to a uniquely named temporary file in the
// target directory and renames it over the destination.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
