package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/taskagent-go/internal/action"
	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/intent"
	"github.com/54b3r/taskagent-go/internal/rag"
	"github.com/54b3r/taskagent-go/internal/resolver"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeIndex reports a fixed size and state.
type fakeIndex struct {
	size   int
	reason string
}

func (f *fakeIndex) Query(context.Context, string, int) []rag.Hit { return nil }
func (f *fakeIndex) Size() int                                    { return f.size }
func (f *fakeIndex) Enabled() bool                                { return f.reason == "" }
func (f *fakeIndex) Reason() string                               { return f.reason }

// fakeResolver records tasks and returns a canned result.
type fakeResolver struct {
	desc   *domain.Descriptor
	index  rag.Index
	result *resolver.Result

	mu    sync.Mutex
	tasks []string
}

func (f *fakeResolver) Resolve(_ context.Context, task string) *resolver.Result {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
	if f.result != nil {
		return f.result
	}
	return &resolver.Result{Result: "answer for " + f.desc.Name, IntentDetected: intent.Informational}
}

func (f *fakeResolver) Domain() *domain.Descriptor { return f.desc }
func (f *fakeResolver) Index() rag.Index           { return f.index }

func (f *fakeResolver) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tasks...)
}

// newFakeResolver builds a fakeResolver for name with one configured route.
func newFakeResolver(name string) *fakeResolver {
	return &fakeResolver{
		desc: &domain.Descriptor{
			Name:  name,
			Title: strings.ToUpper(name),
			Routes: []domain.Route{{
				Keyword: "order",
				Action:  action.Action{Name: "create_" + name + "_order", Endpoint: "http://erp.test/" + name},
			}},
		},
		index: &fakeIndex{size: 3},
	}
}

// newTestServer builds a *Server over the given resolvers with an isolated
// metrics registry. With no resolvers a single HR fake is used.
func newTestServer(resolvers ...Resolver) *Server {
	s, _ := newTestServerWithRegistry("", resolvers...)
	return s
}

func newTestServerWithRegistry(defaultDomain string, resolvers ...Resolver) (*Server, *prometheus.Registry) {
	if len(resolvers) == 0 {
		resolvers = []Resolver{newFakeResolver(domain.HR)}
	}
	reg := prometheus.NewRegistry()
	s, err := New(resolvers, &Config{
		Logger:          slog.New(slog.DiscardHandler),
		DefaultDomain:   defaultDomain,
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		panic(err)
	}
	return s, reg
}

// do sends a request through the full handler chain.
func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		resolvers     []Resolver
		defaultDomain string
	}{
		{"no resolvers", nil, ""},
		{"duplicate domain", []Resolver{newFakeResolver(domain.HR), newFakeResolver(domain.HR)}, ""},
		{"unknown default domain", []Resolver{newFakeResolver(domain.HR)}, domain.Finance},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reg := prometheus.NewRegistry()
			_, err := New(tc.resolvers, &Config{DefaultDomain: tc.defaultDomain, MetricsRegistry: reg, MetricsGatherer: reg})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Task routes
// ---------------------------------------------------------------------------

func TestHandleDefaultTask_Success(t *testing.T) {
	t.Parallel()

	hr := newFakeResolver(domain.HR)
	s, _ := newTestServerWithRegistry(domain.HR, hr)

	w := do(s, http.MethodPost, "/task", `{"task":"How many vacation days do I get?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}

	var res resolver.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Result != "answer for hr" {
		t.Errorf("result = %q, want %q", res.Result, "answer for hr")
	}
	if got := hr.received(); len(got) != 1 || got[0] != "How many vacation days do I get?" {
		t.Errorf("resolver received %q", got)
	}
}

func TestHandleDefaultTask_NoDefaultDomain(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := do(s, http.MethodPost, "/task", `{"task":"hello"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleDomainTask_Routes(t *testing.T) {
	t.Parallel()

	hr := newFakeResolver(domain.HR)
	fin := newFakeResolver(domain.Finance)
	s := newTestServer(hr, fin)

	w := do(s, http.MethodPost, "/api/domains/finance/task", `{"task":"Submit invoice for March"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	if len(fin.received()) != 1 {
		t.Errorf("finance resolver not called")
	}
	if len(hr.received()) != 0 {
		t.Errorf("hr resolver must not be called")
	}
}

func TestHandleDomainTask_UnknownDomain(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := do(s, http.MethodPost, "/api/domains/legal/task", `{"task":"hello"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleWorkflow(t *testing.T) {
	t.Parallel()

	proc := newFakeResolver(domain.Procurement)
	s := newTestServer(newFakeResolver(domain.HR), proc)

	w := do(s, http.MethodPost, "/workflow", `{"domain":"procurement","task":"Order 12 printers"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	if got := proc.received(); len(got) != 1 || got[0] != "Order 12 printers" {
		t.Errorf("procurement resolver received %q", got)
	}
}

func TestHandleWorkflow_UnknownDomain(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := do(s, http.MethodPost, "/workflow", `{"domain":"legal","task":"hello"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := "Agent URL for domain legal is not set"; resp.Detail != want {
		t.Errorf("detail = %q, want %q", resp.Detail, want)
	}
}

func TestTaskRoutes_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing task", "/api/domains/hr/task", `{}`},
		{"blank task", "/api/domains/hr/task", `{"task":"   "}`},
		{"invalid JSON", "/api/domains/hr/task", `not-json`},
		{"workflow missing task", "/workflow", `{"domain":"hr"}`},
		{"workflow invalid JSON", "/workflow", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			hr := newFakeResolver(domain.HR)
			s := newTestServer(hr)
			w := do(s, http.MethodPost, tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if len(hr.received()) != 0 {
				t.Error("resolver must not be called for a bad request")
			}
		})
	}
}

func TestHandleDomainTask_ActionableResult(t *testing.T) {
	t.Parallel()

	status := action.Status(201)
	proc := newFakeResolver(domain.Procurement)
	proc.result = &resolver.Result{
		Result:          "Your order has been placed.",
		IntentDetected:  intent.Actionable,
		SAPAPIStatus:    &status,
		SAPAPIResult:    json.RawMessage(`{"id":"PO-1"}`),
		ActionPerformed: "create_procurement_order_submitted",
		Action:          "create_procurement_order",
	}
	s := newTestServer(proc)

	w := do(s, http.MethodPost, "/api/domains/procurement/task", `{"task":"Please order 5 laptops"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["sap_api_status"] != float64(201) {
		t.Errorf("sap_api_status = %v, want 201", body["sap_api_status"])
	}
	if body["action_performed"] != "create_procurement_order_submitted" {
		t.Errorf("action_performed = %v", body["action_performed"])
	}
	if _, leaked := body["Action"]; leaked {
		t.Error("internal action name must not be serialised")
	}
}

// ---------------------------------------------------------------------------
// Listing and middleware
// ---------------------------------------------------------------------------

func TestHandleDomains(t *testing.T) {
	t.Parallel()

	hr := newFakeResolver(domain.HR)
	fin := newFakeResolver(domain.Finance)
	fin.index = &fakeIndex{reason: "embedder unavailable"}
	fin.desc.Routes[0].Action.Endpoint = ""
	proc := newFakeResolver(domain.Procurement)
	proc.index = nil
	s := newTestServer(hr, fin, proc)

	w := do(s, http.MethodGet, "/api/domains", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var infos []domainInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 domains, got %d", len(infos))
	}
	if infos[0].Name != domain.HR || !infos[0].IndexEnabled || infos[0].Documents != 3 {
		t.Errorf("hr info = %+v", infos[0])
	}
	if infos[1].IndexEnabled || infos[1].IndexReason != "embedder unavailable" {
		t.Errorf("finance info = %+v", infos[1])
	}
	if infos[1].Actions[0].Configured {
		t.Error("finance action must be reported unconfigured")
	}
	if infos[2].IndexEnabled || infos[2].IndexReason == "" {
		t.Errorf("procurement info = %+v", infos[2])
	}
}

func TestHealthRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	for _, path := range []string{"/health", "/api/health"} {
		w := do(s, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"ok"`) {
			t.Errorf("%s: unexpected body %s", path, w.Body.String())
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := do(s, http.MethodOptions, "/workflow", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := do(s, http.MethodGet, "/health", "")
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request ID header")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header missing on normal response, got %q", got)
	}
}
