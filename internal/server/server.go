// Package server implements the HTTP server that exposes the domain task
// resolvers via a JSON API, plus health, readiness, and metrics endpoints.
// The server is started by the `taskagent serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/taskagent-go/internal/intent"
	"github.com/54b3r/taskagent-go/internal/logging"
	"github.com/54b3r/taskagent-go/internal/resolver"
)

// maxBodyBytes caps task request bodies.
const maxBodyBytes = 1 << 20

// New constructs a Server for the given resolvers. Domain names must be
// unique.
func New(resolvers []Resolver, cfg *Config) (*Server, error) {
	if len(resolvers) == 0 {
		return nil, fmt.Errorf("server: at least one resolver is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		resolvers: make(map[string]Resolver, len(resolvers)),
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}
	for _, r := range resolvers {
		name := r.Domain().Name
		if _, dup := s.resolvers[name]; dup {
			return nil, fmt.Errorf("server: duplicate resolver for domain %q", name)
		}
		s.resolvers[name] = r
		s.order = append(s.order, name)
	}
	if cfg.DefaultDomain != "" {
		if _, ok := s.resolvers[cfg.DefaultDomain]; !ok {
			return nil, fmt.Errorf("server: default domain %q is not hosted", cfg.DefaultDomain)
		}
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the full middleware chain wrapped around the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /task", s.instrument("task", http.HandlerFunc(s.handleDefaultTask)))
	mux.Handle("POST /api/domains/{domain}/task", s.instrument("domain_task", http.HandlerFunc(s.handleDomainTask)))
	mux.Handle("POST /workflow", s.instrument("workflow", http.HandlerFunc(s.handleWorkflow)))
	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /api/domains", s.instrument("domains", http.HandlerFunc(s.handleDomains)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return cors(requestLogger(s.log, mux))
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening",
			slog.String("addr", "http://"+s.httpServer.Addr),
			slog.Any("domains", s.order),
			slog.String("default_domain", s.cfg.DefaultDomain),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server: stopped")
		return nil
	}
}

// handleDefaultTask handles POST /task for the default domain.
func (s *Server) handleDefaultTask(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolvers[s.cfg.DefaultDomain]
	if !ok {
		writeError(w, http.StatusNotFound, "no default domain is configured; use /api/domains/{domain}/task")
		return
	}

	var req taskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.resolve(w, r, res, req.Task)
}

// handleDomainTask handles POST /api/domains/{domain}/task.
func (s *Server) handleDomainTask(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.PathValue("domain"))
	res, ok := s.resolvers[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("domain %q is not hosted", name))
		return
	}

	var req taskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.resolve(w, r, res, req.Task)
}

// handleWorkflow handles POST /workflow, routing by the domain in the body.
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, ok := s.resolvers[strings.ToLower(req.Domain)]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Agent URL for domain %s is not set", req.Domain))
		return
	}
	s.resolve(w, r, res, req.Task)
}

// resolve validates task, runs the pipeline, records metrics, and writes
// the result.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, res Resolver, task string) {
	if strings.TrimSpace(task) == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}

	name := res.Domain().Name
	start := time.Now()
	out := res.Resolve(r.Context(), task)
	s.metrics.taskDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())

	detected := out.IntentDetected
	if detected == "" {
		detected = intent.Informational
	}
	s.metrics.taskRequestsTotal.WithLabelValues(name, string(detected)).Inc()
	if out.SAPAPIStatus != nil {
		s.metrics.actionDispatchTotal.WithLabelValues(name, out.Action, dispatchOutcome(out)).Inc()
	}

	writeJSON(r.Context(), w, http.StatusOK, out)
}

// dispatchOutcome labels an action result as "submitted" or "failed".
func dispatchOutcome(out *resolver.Result) string {
	if out.SAPAPIStatus != nil && out.SAPAPIStatus.OK() {
		return "submitted"
	}
	return "failed"
}

// handleHealth handles GET /health and GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDomains handles GET /api/domains.
func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	infos := make([]domainInfo, 0, len(s.order))
	for _, name := range s.order {
		res := s.resolvers[name]
		d := res.Domain()
		info := domainInfo{Name: d.Name, Title: d.Title, Actions: []actionInfo{}}
		if idx := res.Index(); idx != nil {
			info.Documents = idx.Size()
			info.IndexEnabled = idx.Enabled()
			if !info.IndexEnabled {
				info.IndexReason = idx.Reason()
			}
		} else {
			info.IndexReason = "no index configured"
		}
		for _, rt := range d.Routes {
			info.Actions = append(info.Actions, actionInfo{
				Keyword:    rt.Keyword,
				Name:       rt.Action.Name,
				Configured: rt.Action.Endpoint != "",
			})
		}
		infos = append(infos, info)
	}
	writeJSON(r.Context(), w, http.StatusOK, infos)
}

// decodeBody parses a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}

// writeJSON writes v as a JSON body with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("server: response encode error", slog.Any("error", err))
	}
}
