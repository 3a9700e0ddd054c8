// Package rag defines the retrieval side of a domain pipeline: corpus
// documents, the embedder contract, and the similarity index that answers
// top-k nearest-neighbour queries over a domain corpus.
//
// Two index implementations exist: [FlatIndex], an exact in-memory search
// used by default, and [QdrantIndex], which keeps the same contract on top of
// a Qdrant collection. Both are built once and never mutated afterwards, so
// they are safe for concurrent queries without locking.
package rag

import (
	"context"
)

// Document is an immutable corpus passage identified by its position in the
// domain corpus.
type Document struct {
	// Index is the zero-based position of the passage in the corpus.
	Index int

	// Text is the passage content.
	Text string
}

// Hit is one query result: a corpus document and its squared Euclidean
// distance from the query vector. Smaller is nearer.
type Hit struct {
	// Document is the matched corpus passage.
	Document Document

	// Distance is the squared Euclidean distance to the query embedding.
	Distance float32
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the query side of a built similarity index.
// Query never fails: a disabled index, an embedding failure, or k <= 0 all
// yield an empty result, and the degraded condition is logged instead.
type Index interface {
	// Query returns at most k hits ordered by non-decreasing distance.
	Query(ctx context.Context, text string, k int) []Hit

	// Size returns the number of indexed documents (0 when disabled).
	Size() int

	// Enabled reports whether the index was built successfully.
	Enabled() bool

	// Reason returns the build failure that disabled the index, or "".
	Reason() string
}

// Texts returns the passage text of each hit, preserving order.
func Texts(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Document.Text
	}
	return out
}
