package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/taskagent-go/internal/logging"
)

// ErrEmptyCorpus is returned when an index is built over zero documents.
var ErrEmptyCorpus = errors.New("rag: corpus is empty")

// embedCorpus embeds every document and checks the embedder honoured the
// one-vector-per-document contract with a single consistent dimension.
func embedCorpus(ctx context.Context, emb Embedder, docs []Document) ([][]float32, int, error) {
	if emb == nil {
		return nil, 0, fmt.Errorf("rag: embedder must not be nil")
	}
	if len(docs) == 0 {
		return nil, 0, ErrEmptyCorpus
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("rag: embedding corpus failed: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, 0, fmt.Errorf("rag: embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, 0, fmt.Errorf("rag: embedder returned zero-length vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, 0, fmt.Errorf("rag: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	return vectors, dim, nil
}

// embedQuery embeds a single query string. Failures are logged as degraded
// retrieval and reported through ok=false rather than an error, because the
// caller's contract is to return an empty result.
func embedQuery(ctx context.Context, emb Embedder, text string, dim int) ([]float32, bool) {
	log := logging.FromContext(ctx)

	vectors, err := emb.Embed(ctx, []string{text})
	if err != nil {
		log.Warn("rag: query embedding failed, continuing without context", slog.Any("error", err))
		return nil, false
	}
	if len(vectors) != 1 {
		log.Warn("rag: embedder returned unexpected result count for query", slog.Int("count", len(vectors)))
		return nil, false
	}
	if len(vectors[0]) != dim {
		log.Warn("rag: query dimension does not match index",
			slog.Int("got", len(vectors[0])),
			slog.Int("want", dim),
		)
		return nil, false
	}
	return vectors[0], true
}

// warnDisabled logs a degraded-mode query against a disabled index.
func warnDisabled(ctx context.Context, backend, reason string) {
	logging.FromContext(ctx).Warn("rag: similarity index disabled, returning no context",
		slog.String("backend", backend),
		slog.String("reason", reason),
	)
}
