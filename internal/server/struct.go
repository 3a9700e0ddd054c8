package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/rag"
	"github.com/54b3r/taskagent-go/internal/resolver"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full resolution including generation and dispatch.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// DefaultDomain is served by POST /task. Empty disables that route.
	DefaultDomain string
	// MetricsRegistry receives the server's metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Resolver is one hosted domain pipeline. *resolver.Resolver satisfies it;
// tests inject a fake.
type Resolver interface {
	// Resolve runs the pipeline for task. It never returns nil.
	Resolve(ctx context.Context, task string) *resolver.Result
	// Domain returns the static domain configuration.
	Domain() *domain.Descriptor
	// Index returns the domain's similarity index, which may be nil.
	Index() rag.Index
}

// Server is the HTTP server that exposes the domain resolvers.
type Server struct {
	// resolvers maps domain name to its pipeline.
	resolvers map[string]Resolver
	// order is the domain names in registration order, for listings.
	order []string
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
}

// taskRequest is the JSON body for POST /task and POST /api/domains/{domain}/task.
type taskRequest struct {
	// Task is the free-text request.
	Task string `json:"task"`
}

// workflowRequest is the JSON body for POST /workflow.
type workflowRequest struct {
	// Domain selects the pipeline: hr, finance, or procurement.
	Domain string `json:"domain"`
	// Task is the free-text request.
	Task string `json:"task"`
}

// errorResponse is the JSON body for request errors.
type errorResponse struct {
	// Detail describes what was wrong with the request.
	Detail string `json:"detail"`
}

// domainInfo describes one hosted domain for GET /api/domains.
type domainInfo struct {
	// Name is the domain identifier.
	Name string `json:"name"`
	// Title is the department name.
	Title string `json:"title"`
	// Documents is the number of indexed passages.
	Documents int `json:"documents"`
	// IndexEnabled reports whether retrieval is available.
	IndexEnabled bool `json:"index_enabled"`
	// IndexReason explains a disabled index.
	IndexReason string `json:"index_reason,omitempty"`
	// Actions lists the keyword-triggered actions.
	Actions []actionInfo `json:"actions"`
}

// actionInfo describes one keyword route.
type actionInfo struct {
	// Keyword triggers the action.
	Keyword string `json:"keyword"`
	// Name is the action identifier.
	Name string `json:"name"`
	// Configured reports whether the endpoint is set.
	Configured bool `json:"configured"`
}
