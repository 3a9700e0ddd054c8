package rag

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/taskagent-go/internal/logging"
)

const (
	// backendQdrant labels the Qdrant-backed index in logs and status output.
	backendQdrant = "qdrant"

	// DefaultCollectionPrefix is prepended to the domain name to form the
	// collection name when QDRANT_COLLECTION_PREFIX is unset.
	DefaultCollectionPrefix = "taskagent_"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// CollectionPrefix is prepended to each domain name. Every domain
	// collection is dropped and recreated on build.
	CollectionPrefix string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// qdrantAPI is the subset of *qdrant.Client used by QdrantIndex.
// Tests substitute a fake.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// QdrantIndex implements Index over a Qdrant collection using Euclid
// distance. Corpus positions are used as point IDs so the collection always
// holds exactly one point per document.
type QdrantIndex struct {
	// client is the Qdrant API used for queries.
	client qdrantAPI
	// embedder converts query text into vectors at query time.
	embedder Embedder
	// collection is the backing collection name.
	collection string
	// size is the number of upserted documents.
	size int
	// dim is the embedding dimension of the collection.
	dim int
	// reason is the build failure; non-empty means disabled.
	reason string
}

// QdrantConfigFromEnv reads QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY,
// QDRANT_TLS and QDRANT_COLLECTION_PREFIX.
func QdrantConfigFromEnv() *QdrantConfig {
	port, _ := strconv.Atoi(os.Getenv("QDRANT_PORT"))
	prefix := os.Getenv("QDRANT_COLLECTION_PREFIX")
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}
	return &QdrantConfig{
		Host:             os.Getenv("QDRANT_HOST"),
		Port:             port,
		CollectionPrefix: prefix,
		APIKey:           os.Getenv("QDRANT_API_KEY"),
		UseTLS:           os.Getenv("QDRANT_TLS") == "true",
	}
}

// Collection returns the collection name for domain.
func (c *QdrantConfig) Collection(domain string) string {
	return c.CollectionPrefix + domain
}

// NewQdrantClient dials Qdrant with the given config, applying defaults.
func NewQdrantClient(cfg *QdrantConfig) (*qdrant.Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return client, nil
}

// BuildQdrant embeds docs, recreates collection, and upserts one point per
// document. Like [BuildFlat] it never fails outright; any error yields a
// disabled index.
func BuildQdrant(ctx context.Context, client qdrantAPI, emb Embedder, collection string, docs []Document) *QdrantIndex {
	log := logging.FromContext(ctx).With(slog.String("collection", collection))

	idx := &QdrantIndex{client: client, embedder: emb, collection: collection}
	if client == nil {
		idx.reason = "qdrant: client must not be nil"
		log.Warn("rag: qdrant index build failed, index disabled", slog.String("error", idx.reason))
		return idx
	}

	vectors, dim, err := embedCorpus(ctx, emb, docs)
	if err == nil {
		err = idx.recreate(ctx, uint64(dim)) //nolint:gosec // dim is a small positive vector length
	}
	if err == nil {
		err = idx.upsert(ctx, docs, vectors)
	}
	if err != nil {
		idx.reason = err.Error()
		log.Warn("rag: qdrant index build failed, index disabled", slog.Any("error", err))
		return idx
	}

	idx.size = len(docs)
	idx.dim = dim
	log.Info("rag: qdrant index built",
		slog.Int("documents", len(docs)),
		slog.Int("dimensions", dim),
	)
	return idx
}

// recreate drops any existing collection and creates an empty one, so the
// collection size always matches the corpus after upsert.
func (q *QdrantIndex) recreate(ctx context.Context, dim uint64) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", q.collection, err)
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.collection, err)
	}
	return nil
}

// upsert writes one point per document, keyed by corpus position.
func (q *QdrantIndex) upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(doc.Index)), //nolint:gosec // corpus positions are non-negative
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"index": doc.Index,
				"text":  doc.Text,
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Query embeds text and asks Qdrant for the k nearest points. Qdrant reports
// Euclid distance; it is squared here so both backends share one metric.
func (q *QdrantIndex) Query(ctx context.Context, text string, k int) []Hit {
	if !q.Enabled() {
		warnDisabled(ctx, backendQdrant, q.Reason())
		return nil
	}
	if k <= 0 {
		return nil
	}

	vec, ok := embedQuery(ctx, q.embedder, text, q.dim)
	if !ok {
		return nil
	}

	limit := uint64(k) //nolint:gosec // k > 0 checked above
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("rag: qdrant search failed, continuing without context",
			slog.String("collection", q.collection),
			slog.Any("error", err),
		)
		return nil
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		doc := Document{Index: int(p.GetId().GetNum())} //nolint:gosec // IDs were written from int positions
		if v, ok := p.GetPayload()["text"]; ok {
			doc.Text = v.GetStringValue()
		}
		hits = append(hits, Hit{Document: doc, Distance: p.GetScore() * p.GetScore()})
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Document.Index, b.Document.Index)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Size returns the number of upserted documents.
func (q *QdrantIndex) Size() int { return q.size }

// Enabled reports whether the build succeeded.
func (q *QdrantIndex) Enabled() bool { return q.reason == "" && q.size > 0 }

// Reason returns the build failure, or "" when enabled.
func (q *QdrantIndex) Reason() string {
	if q.reason == "" && q.size == 0 {
		return "index not built"
	}
	return q.reason
}
