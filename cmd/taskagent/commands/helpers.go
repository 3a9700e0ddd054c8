package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/taskagent-go/internal/action"
	"github.com/54b3r/taskagent-go/internal/corpus"
	"github.com/54b3r/taskagent-go/internal/credential"
	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/embedder"
	"github.com/54b3r/taskagent-go/internal/generator"
	"github.com/54b3r/taskagent-go/internal/provider"
	"github.com/54b3r/taskagent-go/internal/rag"
	"github.com/54b3r/taskagent-go/internal/resolver"
	"github.com/54b3r/taskagent-go/internal/server"
)

// Index backends selectable with INDEX_BACKEND.
const (
	backendFlat   = "flat"
	backendQdrant = "qdrant"
)

// indexBackendFromEnv returns INDEX_BACKEND, defaulting to flat.
func indexBackendFromEnv() (string, error) {
	b := strings.ToLower(strings.TrimSpace(os.Getenv("INDEX_BACKEND")))
	switch b {
	case "":
		return backendFlat, nil
	case backendFlat, backendQdrant:
		return b, nil
	}
	return "", fmt.Errorf("unknown INDEX_BACKEND %q (want %s or %s)", b, backendFlat, backendQdrant)
}

// selectDomains returns the descriptors named in names, or all of them when
// names is empty.
func selectDomains(all []*domain.Descriptor, names []string) ([]*domain.Descriptor, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]*domain.Descriptor, 0, len(names))
	for _, n := range names {
		d, ok := domain.Lookup(all, n)
		if !ok {
			return nil, fmt.Errorf("unknown domain %q (want one of %s)", n, strings.Join(domain.Names(), ", "))
		}
		out = append(out, d)
	}
	return out, nil
}

// indexBuilder builds one domain index from its documents.
type indexBuilder func(ctx context.Context, d *domain.Descriptor, docs []rag.Document) rag.Index

// retrieval holds the shared retrieval stack: the embedder, the index
// builder for the configured backend, and the readiness probes it implies.
type retrieval struct {
	// backend is the selected index backend.
	backend string
	// build constructs a domain index.
	build indexBuilder
	// pingers probe the embedder host and Qdrant.
	pingers []server.Pinger
	// closers release backend connections.
	closers []func()
}

// Close releases backend connections.
func (r *retrieval) Close() {
	for _, c := range r.closers {
		c()
	}
}

// newRetrieval constructs the embedder and index backend from the
// environment. Embedder and Qdrant failures degrade to disabled indexes;
// only an unknown backend is an error.
func newRetrieval(ctx context.Context, log *slog.Logger) (*retrieval, error) {
	backend, err := indexBackendFromEnv()
	if err != nil {
		return nil, err
	}
	r := &retrieval{backend: backend}

	embCfg := embedder.ConfigFromEnv()
	embCfg.Warn(log)
	emb, err := embedder.New(ctx, embCfg)
	if err != nil {
		log.Warn("embedder: initialisation failed, retrieval disabled", slog.Any("error", err))
		emb = nil
	} else {
		log.Info("embedder initialised",
			slog.String("provider", embCfg.Backend),
			slog.String("model", embCfg.Model),
		)
	}
	if embCfg.Endpoint != "" {
		r.pingers = append(r.pingers, server.NewHTTPPinger("embedder", embCfg.Endpoint, nil))
	}

	switch backend {
	case backendFlat:
		r.build = func(ctx context.Context, _ *domain.Descriptor, docs []rag.Document) rag.Index {
			return rag.BuildFlat(ctx, emb, docs)
		}
	case backendQdrant:
		qcfg := rag.QdrantConfigFromEnv()
		client, err := rag.NewQdrantClient(qcfg)
		if err != nil {
			log.Warn("qdrant: connection failed, retrieval disabled", slog.Any("error", err))
		} else {
			r.pingers = append(r.pingers, server.NewQdrantPinger(client))
			r.closers = append(r.closers, func() { _ = client.Close() })
			log.Info("qdrant client ready",
				slog.String("host", qcfg.Host),
				slog.Int("port", qcfg.Port),
				slog.String("collection_prefix", qcfg.CollectionPrefix),
			)
		}
		r.build = qdrantBuilder(client, emb, qcfg)
	}
	return r, nil
}

// qdrantBuilder returns an indexBuilder over client. A nil client yields
// disabled indexes.
func qdrantBuilder(client *qdrant.Client, emb rag.Embedder, cfg *rag.QdrantConfig) indexBuilder {
	return func(ctx context.Context, d *domain.Descriptor, docs []rag.Document) rag.Index {
		if client == nil {
			return rag.BuildQdrant(ctx, nil, emb, cfg.Collection(d.Name), docs)
		}
		return rag.BuildQdrant(ctx, client, emb, cfg.Collection(d.Name), docs)
	}
}

// buildIndexes loads every domain corpus and builds its index concurrently.
// Corpus failures are logged and produce a disabled index; the only error
// is context cancellation.
func buildIndexes(ctx context.Context, log *slog.Logger, descs []*domain.Descriptor, build indexBuilder) ([]rag.Index, error) {
	indexes := make([]rag.Index, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range descs {
		g.Go(func() error {
			dlog := log.With(slog.String("domain", d.Name))

			docs, err := corpus.Resolve(d.CorpusPath, d.Name, nil)
			switch {
			case errors.Is(err, corpus.ErrEmptyCorpus):
				dlog.Warn("corpus: empty, retrieval disabled", slog.String("path", d.CorpusPath))
			case err != nil:
				dlog.Warn("corpus: load failed, retrieval disabled", slog.Any("error", err))
				docs = nil
			default:
				source := d.CorpusPath
				if source == "" {
					source = "builtin"
				}
				dlog.Info("corpus loaded", slog.String("source", source), slog.Int("passages", len(docs)))
			}

			if err := gctx.Err(); err != nil {
				return err
			}
			indexes[i] = build(gctx, d, docs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index build cancelled: %w", err)
	}
	return indexes, nil
}

// app is the fully wired set of domain resolvers.
type app struct {
	// resolvers are in the order of the selected domains.
	resolvers []*resolver.Resolver
	// pingers probe every external dependency for /api/ready.
	pingers []server.Pinger
	// retrieval owns the index backend connections.
	retrieval *retrieval
}

// Close releases backend connections.
func (a *app) Close() { a.retrieval.Close() }

// buildApp wires the full pipeline for the named domains (all when empty).
func buildApp(ctx context.Context, log *slog.Logger, names []string) (*app, error) {
	descs, err := selectDomains(domain.FromEnv(), names)
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		for _, p := range d.Problems() {
			log.Warn("domain: configuration gap", slog.String("domain", d.Name), slog.String("problem", p))
		}
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	ret, err := newRetrieval(ctx, log)
	if err != nil {
		return nil, err
	}
	indexes, err := buildIndexes(ctx, log, descs, ret.build)
	if err != nil {
		ret.Close()
		return nil, err
	}

	credCfg := credential.ConfigFromEnv()
	if err := credCfg.Validate(); err != nil {
		log.Warn("credentials: incomplete, actions will return ERROR", slog.Any("error", err))
	}
	dispatcher, err := action.NewDispatcher(action.Config{
		Credentials: credential.New(credCfg),
		Timeout:     action.TimeoutFromEnv(),
	})
	if err != nil {
		ret.Close()
		return nil, err
	}

	a := &app{retrieval: ret, pingers: ret.pingers}
	if credCfg.TokenURL != "" {
		a.pingers = append(a.pingers, server.NewHTTPPinger("token_endpoint", credCfg.TokenURL, nil))
	}

	opts := resolver.OptionsFromEnv()
	for i, d := range descs {
		gen, err := generator.New(ctx, &generator.Config{
			ChatModel: chatModel,
			Domain:    d.Title,
			Timeout:   generator.TimeoutFromEnv(),
		})
		if err != nil {
			ret.Close()
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		res, err := resolver.New(&resolver.Config{
			Domain:     d,
			Index:      indexes[i],
			Answerer:   gen,
			Dispatcher: dispatcher,
			Options:    opts,
		})
		if err != nil {
			ret.Close()
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		a.resolvers = append(a.resolvers, res)
	}

	log.Info("pipelines ready",
		slog.Int("domains", len(a.resolvers)),
		slog.String("index_backend", ret.backend),
	)
	return a, nil
}
