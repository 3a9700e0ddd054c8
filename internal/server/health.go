package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/taskagent-go/internal/logging"
)

// pingTimeout bounds each dependency check in /api/ready.
const pingTimeout = 5 * time.Second

// Pinger reports whether an external dependency (embedder host, Qdrant,
// token endpoint) is reachable. Implementations must be safe for concurrent
// use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses.
	Name() string
}

// readyCheck is the outcome of one dependency ping.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// degradedDomain names a hosted domain that answers without retrieval.
type degradedDomain struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// readyResponse is the body of GET /api/ready. Degraded domains are
// reported but do not affect Ready: tasks still resolve with empty context.
type readyResponse struct {
	Ready    bool             `json:"ready"`
	Checks   []readyCheck     `json:"checks"`
	Degraded []degradedDomain `json:"degraded,omitempty"`
}

// handleReady pings every dependency concurrently and returns 200 when all
// respond, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	checks := make([]readyCheck, len(s.pingers))
	var g errgroup.Group
	for i, p := range s.pingers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
				log.Warn("ready: dependency unreachable",
					slog.String("dependency", p.Name()),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
		}
	}
	for _, name := range s.order {
		idx := s.resolvers[name].Index()
		switch {
		case idx == nil:
			resp.Degraded = append(resp.Degraded, degradedDomain{Domain: name, Reason: "no index configured"})
		case !idx.Enabled():
			resp.Degraded = append(resp.Degraded, degradedDomain{Domain: name, Reason: idx.Reason()})
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(ctx, w, status, resp)
}
