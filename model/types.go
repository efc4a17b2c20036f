// Package model defines the shared data types exchanged between the store
// facade and the persistence layer.
package model

// EntryMeta is the provenance metadata recorded for every index entry.
// Offsets refer to rune positions in the whitespace-trimmed source document.
type EntryMeta struct {
	SourceDocID string `json:"sourceDocId"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

// BackendInfo describes the embedding backend a corpus was built with.
// It is recorded at save time and checked on load to prevent mixing
// embeddings from different models.
type BackendInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

// Snapshot is the full in-memory state of a store, as written to and read
// from a persisted artifact group.
//
// Invariant: len(IDs) == len(Vectors) == len(Meta).
type Snapshot struct {
	Vectors [][]float32
	IDs     []uint64
	Meta    []EntryMeta
	Backend BackendInfo

	// IndexBlob is the serialized accelerated index, if one was built.
	// A nil blob forces brute-force search after load.
	IndexBlob []byte
}
