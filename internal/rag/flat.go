package rag

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/54b3r/taskagent-go/internal/logging"
)

// backendFlat labels the in-memory index in logs and status output.
const backendFlat = "flat"

// FlatIndex is an exact nearest-neighbour index that scans every corpus
// vector per query. At corpus sizes of tens to low hundreds of passages this
// is cheaper than any approximate structure.
//
// A FlatIndex is immutable once returned by [BuildFlat].
type FlatIndex struct {
	// embedder converts query text into vectors at query time.
	embedder Embedder
	// docs is the indexed corpus; docs[i] pairs with vectors[i].
	docs []Document
	// vectors holds the precomputed corpus embeddings.
	vectors [][]float32
	// dim is the embedding dimension shared by every vector.
	dim int
	// reason is the build failure; non-empty means disabled.
	reason string
}

// BuildFlat embeds docs and returns a ready index. It never returns an
// error: if the corpus is empty or the embedder fails, the returned index is
// disabled and the cause is logged as a degraded-mode warning.
func BuildFlat(ctx context.Context, emb Embedder, docs []Document) *FlatIndex {
	log := logging.FromContext(ctx)

	vectors, dim, err := embedCorpus(ctx, emb, docs)
	if err != nil {
		log.Warn("rag: flat index build failed, index disabled", slog.Any("error", err))
		return &FlatIndex{reason: err.Error()}
	}

	log.Info("rag: flat index built",
		slog.Int("documents", len(docs)),
		slog.Int("dimensions", dim),
	)

	return &FlatIndex{
		embedder: emb,
		docs:     slices.Clone(docs),
		vectors:  vectors,
		dim:      dim,
	}
}

// Query embeds text and returns the k nearest documents, nearest first.
// Ties are broken by corpus position so results are deterministic.
func (f *FlatIndex) Query(ctx context.Context, text string, k int) []Hit {
	if !f.Enabled() {
		warnDisabled(ctx, backendFlat, f.Reason())
		return nil
	}
	if k <= 0 {
		return nil
	}

	q, ok := embedQuery(ctx, f.embedder, text, f.dim)
	if !ok {
		return nil
	}

	return f.nearest(q, k)
}

// nearest ranks every corpus vector against q and keeps the first k.
func (f *FlatIndex) nearest(q []float32, k int) []Hit {
	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Document: f.docs[i], Distance: SquaredEuclidean(q, v)}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

// Size returns the number of indexed documents.
func (f *FlatIndex) Size() int { return len(f.docs) }

// Enabled reports whether the build succeeded.
func (f *FlatIndex) Enabled() bool { return f.reason == "" && len(f.docs) > 0 }

// Reason returns the build failure, or "" when enabled.
func (f *FlatIndex) Reason() string {
	if f.reason == "" && len(f.docs) == 0 {
		return "index not built"
	}
	return f.reason
}

// SquaredEuclidean returns the squared L2 distance between a and b.
// Vectors must share a dimension; callers check this before ranking.
func SquaredEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
