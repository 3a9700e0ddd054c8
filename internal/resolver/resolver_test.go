package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/54b3r/taskagent-go/internal/action"
	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/generator"
	"github.com/54b3r/taskagent-go/internal/intent"
	"github.com/54b3r/taskagent-go/internal/rag"
)

// fakeIndex is a test double for rag.Index.
type fakeIndex struct {
	hits    []rag.Hit
	queries atomic.Int32
}

func (f *fakeIndex) Query(_ context.Context, _ string, k int) []rag.Hit {
	f.queries.Add(1)
	if k < len(f.hits) {
		return f.hits[:k]
	}
	return f.hits
}
func (f *fakeIndex) Size() int      { return len(f.hits) }
func (f *fakeIndex) Enabled() bool  { return len(f.hits) > 0 }
func (f *fakeIndex) Reason() string { return "" }

// fakeAnswerer is a test double for generator.Answerer.
type fakeAnswerer struct {
	mu       sync.Mutex
	answer   string
	panicMsg string
	passages []string
}

func (f *fakeAnswerer) Generate(_ context.Context, _ string, passages []string) string {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	f.passages = passages
	f.mu.Unlock()
	return f.answer
}

// fakeDispatcher is a test double for Dispatcher.
type fakeDispatcher struct {
	result *action.Result
	calls  atomic.Int32
	last   atomic.Value
}

func (f *fakeDispatcher) Dispatch(_ context.Context, act action.Action, _ string) *action.Result {
	f.calls.Add(1)
	f.last.Store(act.Name)
	return f.result
}

// fakeCredentials is a test double for credential.Provider.
type fakeCredentials struct {
	err error
}

func (f fakeCredentials) Token(context.Context) (string, error) { return "tok", f.err }

func hits(texts ...string) []rag.Hit {
	out := make([]rag.Hit, len(texts))
	for i, t := range texts {
		out[i] = rag.Hit{Document: rag.Document{Index: i, Text: t}, Distance: float32(i)}
	}
	return out
}

func hrDescriptor(t *testing.T, leaveURL string) *domain.Descriptor {
	t.Helper()
	d := &domain.Descriptor{
		Name: domain.HR,
		Routes: []domain.Route{
			{Keyword: "leave", Action: action.Action{Name: "leave_request", Endpoint: leaveURL, Build: domain.LeaveRequestPayload}},
			{Keyword: "onboard", Action: action.Action{Name: "employee_onboarding", Build: domain.OnboardingPayload}},
		},
	}
	return d
}

func newResolver(t *testing.T, cfg *Config) *Resolver {
	t.Helper()
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	d := &domain.Descriptor{Name: "hr"}
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"no domain", &Config{Answerer: &fakeAnswerer{}, Dispatcher: &fakeDispatcher{}}},
		{"no answerer", &Config{Domain: d, Dispatcher: &fakeDispatcher{}}},
		{"no dispatcher", &Config{Domain: d, Answerer: &fakeAnswerer{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestResolve_Informational(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{hits: hits("Annual leave is 25 days.", "Sick leave is 10 days.", "Carry over 5 days.", "extra")}
	ans := &fakeAnswerer{answer: "You get 25 days of annual leave."}
	disp := &fakeDispatcher{}
	r := newResolver(t, &Config{Domain: hrDescriptor(t, "http://unused"), Index: idx, Answerer: ans, Dispatcher: disp})

	res := r.Resolve(context.Background(), "What is the leave policy?")

	if res.IntentDetected != intent.Informational {
		t.Errorf("IntentDetected = %q, want informational", res.IntentDetected)
	}
	if res.Result != "You get 25 days of annual leave." {
		t.Errorf("Result = %q", res.Result)
	}
	if res.SourceDocument != "Annual leave is 25 days.\nSick leave is 10 days.\nCarry over 5 days." {
		t.Errorf("SourceDocument = %q", res.SourceDocument)
	}
	if res.SAPAPIStatus != nil || res.ActionPerformed != "" {
		t.Errorf("informational task must not carry action fields: %+v", res)
	}
	if disp.calls.Load() != 0 {
		t.Errorf("dispatcher called %d times, want 0", disp.calls.Load())
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "sap_api_status") {
		t.Errorf("JSON must omit sap_api_status: %s", b)
	}
}

func TestResolve_ActionableDispatches(t *testing.T) {
	t.Parallel()

	status := action.Status(http.StatusCreated)
	disp := &fakeDispatcher{result: &action.Result{Status: status, Body: json.RawMessage(`{"id":1}`), Outcome: "leave_request_submitted"}}
	idx := &fakeIndex{hits: hits("Leave requests go through the HR portal.")}
	r := newResolver(t, &Config{Domain: hrDescriptor(t, "http://x"), Index: idx, Answerer: &fakeAnswerer{answer: "Submitted."}, Dispatcher: disp})

	res := r.Resolve(context.Background(), "I want to submit a leave request")

	if res.IntentDetected != intent.Actionable {
		t.Errorf("IntentDetected = %q, want actionable", res.IntentDetected)
	}
	if res.ActionPerformed != "leave_request_submitted" {
		t.Errorf("ActionPerformed = %q", res.ActionPerformed)
	}
	if res.SAPAPIStatus == nil || *res.SAPAPIStatus != status {
		t.Errorf("SAPAPIStatus = %v, want 201", res.SAPAPIStatus)
	}
	if res.Result != "Submitted." || res.SourceDocument == "" {
		t.Errorf("answer and sources must be present alongside action: %+v", res)
	}
	if idx.queries.Load() != 1 {
		t.Errorf("retrieval must run for actionable tasks, queries = %d", idx.queries.Load())
	}
	if got := disp.last.Load(); got != "leave_request" {
		t.Errorf("dispatched %v, want leave_request", got)
	}
}

func TestResolve_ActionableWithoutKeywordSkipsDispatch(t *testing.T) {
	t.Parallel()

	disp := &fakeDispatcher{}
	r := newResolver(t, &Config{Domain: hrDescriptor(t, "http://x"), Answerer: &fakeAnswerer{answer: "ok"}, Dispatcher: disp})

	res := r.Resolve(context.Background(), "submit my timesheet")
	if res.IntentDetected != intent.Actionable {
		t.Errorf("IntentDetected = %q", res.IntentDetected)
	}
	if disp.calls.Load() != 0 || res.SAPAPIStatus != nil {
		t.Errorf("no domain keyword must mean no dispatch: %+v", res)
	}
}

func TestResolve_ActionKeywordAloneIsInformational(t *testing.T) {
	t.Parallel()

	disp := &fakeDispatcher{}
	r := newResolver(t, &Config{Domain: hrDescriptor(t, "http://x"), Answerer: &fakeAnswerer{answer: "ok"}, Dispatcher: disp})

	res := r.Resolve(context.Background(), "leave balance")
	if res.IntentDetected != intent.Informational || disp.calls.Load() != 0 {
		t.Errorf("unexpected result: %+v (dispatch calls %d)", res, disp.calls.Load())
	}
}

func TestResolve_NeverEmptyResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ans  *fakeAnswerer
	}{
		{"empty answer", &fakeAnswerer{answer: ""}},
		{"whitespace answer", &fakeAnswerer{answer: "  \n"}},
		{"fallback answer", &fakeAnswerer{answer: generator.Fallback}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newResolver(t, &Config{Domain: hrDescriptor(t, ""), Answerer: tc.ans, Dispatcher: &fakeDispatcher{}})
			if res := r.Resolve(context.Background(), "What is the leave policy?"); strings.TrimSpace(res.Result) == "" {
				t.Error("Result must never be empty")
			}
		})
	}
}

func TestResolve_PanicBecomesStructuredError(t *testing.T) {
	t.Parallel()

	r := newResolver(t, &Config{Domain: hrDescriptor(t, ""), Answerer: &fakeAnswerer{panicMsg: "model exploded"}, Dispatcher: &fakeDispatcher{}})

	res := r.Resolve(context.Background(), "What is the leave policy?")
	if res.Error != "model exploded" || res.Message == "" {
		t.Errorf("unexpected error fields: %+v", res)
	}
	if res.Result == "" {
		t.Error("Result must be non-empty on error")
	}
}

func TestResolve_NilDispatchResult(t *testing.T) {
	t.Parallel()

	r := newResolver(t, &Config{Domain: hrDescriptor(t, "http://x"), Answerer: &fakeAnswerer{answer: "ok"}, Dispatcher: &fakeDispatcher{}})
	res := r.Resolve(context.Background(), "submit a leave request")
	if res.SAPAPIStatus == nil || *res.SAPAPIStatus != action.StatusError || res.ActionPerformed != "leave_request_failed" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolve_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := &fakeIndex{hits: hits("p")}
	r := newResolver(t, &Config{Domain: hrDescriptor(t, ""), Index: idx, Answerer: &fakeAnswerer{answer: "ok"}, Dispatcher: &fakeDispatcher{}})
	if res := r.Resolve(ctx, "what is leave"); res.Result != "ok" || res.SourceDocument != "p" {
		t.Errorf("unexpected result after cancellation: %+v", res)
	}
}

func TestResolve_EndToEndWithRealDispatcher(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"request_id":"LR-77"}`))
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name        string
		credErr     error
		wantOutcome string
		wantCalls   int32
	}{
		{"submitted", nil, "leave_request_submitted", 1},
		{"credential failure", errors.New("credential: missing configuration"), "leave_request_failed", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := calls.Load()
			disp, err := action.NewDispatcher(action.Config{Credentials: fakeCredentials{err: tc.credErr}, Timeout: time.Second})
			if err != nil {
				t.Fatalf("NewDispatcher: %v", err)
			}
			r := newResolver(t, &Config{Domain: hrDescriptor(t, srv.URL), Answerer: &fakeAnswerer{answer: "ok"}, Dispatcher: disp})

			res := r.Resolve(context.Background(), "I want to submit a leave request")
			if res.ActionPerformed != tc.wantOutcome {
				t.Errorf("ActionPerformed = %q, want %q", res.ActionPerformed, tc.wantOutcome)
			}
			if got := calls.Load() - before; got != tc.wantCalls {
				t.Errorf("external calls = %d, want %d", got, tc.wantCalls)
			}
		})
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "5")
	t.Setenv("RETRIEVAL_TIMEOUT", "2s")

	o := OptionsFromEnv()
	if o.TopK != 5 || o.RetrievalTimeout != 2*time.Second {
		t.Errorf("OptionsFromEnv = %+v", o)
	}

	t.Setenv("RETRIEVAL_TOP_K", "-1")
	if o := OptionsFromEnv(); o.TopK != 0 {
		t.Errorf("negative top-k must be ignored, got %d", o.TopK)
	}
}
