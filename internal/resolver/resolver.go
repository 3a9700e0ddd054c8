// Package resolver composes one domain's task-resolution pipeline:
// retrieval, answer generation, intent classification, and conditional action
// dispatch. A Resolver is immutable after construction and safe for
// concurrent use.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/taskagent-go/internal/action"
	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/generator"
	"github.com/54b3r/taskagent-go/internal/intent"
	"github.com/54b3r/taskagent-go/internal/logging"
	"github.com/54b3r/taskagent-go/internal/rag"
)

const (
	// DefaultTopK is the number of passages retrieved per task.
	DefaultTopK = 3

	// DefaultRetrievalTimeout bounds the embedding + search step.
	DefaultRetrievalTimeout = 30 * time.Second

	// errorMessage is returned alongside an internal error.
	errorMessage = "task resolution failed"
)

// Dispatcher executes a domain action. *action.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, act action.Action, task string) *action.Result
}

// Result is the structured response for one task.
type Result struct {
	// Result is the generated answer. Never empty.
	Result string `json:"result"`

	// SourceDocument is the newline-joined retrieved passages.
	SourceDocument string `json:"source_document"`

	// IntentDetected is the classifier's verdict.
	IntentDetected intent.Intent `json:"intent_detected"`

	// SAPAPIStatus is the external call status; set only when an action ran.
	SAPAPIStatus *action.Status `json:"sap_api_status,omitempty"`

	// SAPAPIResult is the external response body; set only when an action ran.
	SAPAPIResult any `json:"sap_api_result,omitempty"`

	// ActionPerformed is the action outcome tag; set only when an action ran.
	ActionPerformed string `json:"action_performed,omitempty"`

	// Action is the dispatched action name; not part of the wire format.
	Action string `json:"-"`

	// Error is the internal failure text when resolution did not complete.
	Error string `json:"error,omitempty"`

	// Message is a human-readable summary accompanying Error.
	Message string `json:"message,omitempty"`
}

// Options tunes retrieval.
type Options struct {
	// TopK is the number of passages to retrieve. Defaults to DefaultTopK.
	TopK int

	// RetrievalTimeout bounds retrieval. Defaults to DefaultRetrievalTimeout.
	RetrievalTimeout time.Duration
}

// OptionsFromEnv reads RETRIEVAL_TOP_K and RETRIEVAL_TIMEOUT. Unset or
// invalid values leave the defaults in place.
func OptionsFromEnv() Options {
	var o Options
	if n, err := strconv.Atoi(os.Getenv("RETRIEVAL_TOP_K")); err == nil && n > 0 {
		o.TopK = n
	}
	if d, err := time.ParseDuration(os.Getenv("RETRIEVAL_TIMEOUT")); err == nil && d > 0 {
		o.RetrievalTimeout = d
	}
	return o
}

// Config holds the dependencies required to construct a Resolver.
type Config struct {
	// Domain describes the action routes.
	Domain *domain.Descriptor

	// Index answers similarity queries over the domain corpus. May be nil,
	// in which case every task resolves without context.
	Index rag.Index

	// Answerer synthesizes the answer text.
	Answerer generator.Answerer

	// Classifier decides intent. Defaults to the built-in keyword sets.
	Classifier *intent.Classifier

	// Dispatcher executes matched actions.
	Dispatcher Dispatcher

	// Options tunes retrieval.
	Options Options
}

// Resolver runs the pipeline for one domain.
type Resolver struct {
	domain      *domain.Descriptor
	index       rag.Index
	answerer    generator.Answerer
	classifier  *intent.Classifier
	dispatcher  Dispatcher
	topK        int
	retrieveTTL time.Duration
}

// New constructs a Resolver from cfg.
func New(cfg *Config) (*Resolver, error) {
	if cfg.Domain == nil {
		return nil, fmt.Errorf("resolver: Domain must not be nil")
	}
	if cfg.Answerer == nil {
		return nil, fmt.Errorf("resolver: Answerer must not be nil")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("resolver: Dispatcher must not be nil")
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = intent.New(nil, nil)
	}
	topK := cfg.Options.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	ttl := cfg.Options.RetrievalTimeout
	if ttl <= 0 {
		ttl = DefaultRetrievalTimeout
	}

	return &Resolver{
		domain:      cfg.Domain,
		index:       cfg.Index,
		answerer:    cfg.Answerer,
		classifier:  classifier,
		dispatcher:  cfg.Dispatcher,
		topK:        topK,
		retrieveTTL: ttl,
	}, nil
}

// Domain returns the descriptor this resolver serves.
func (r *Resolver) Domain() *domain.Descriptor { return r.domain }

// Index returns the similarity index, which may be nil.
func (r *Resolver) Index() rag.Index { return r.index }

// Resolve runs retrieval, generation, classification, and, for actionable
// tasks that name a domain action, dispatch. It always returns a result with
// a non-empty Result field. Caller cancellation is ignored once resolution
// starts.
func (r *Resolver) Resolve(ctx context.Context, task string) (res *Result) {
	start := time.Now()
	ctx = logging.With(context.WithoutCancel(ctx), slog.String("domain", r.domain.Name))
	log := logging.FromContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			log.Error("resolver: resolution panicked", slog.Any("panic", p))
			res = &Result{
				Result:         generator.Fallback,
				IntentDetected: intent.Informational,
				Error:          fmt.Sprintf("%v", p),
				Message:        errorMessage,
			}
		}
	}()

	passages := r.retrieve(ctx, task)

	answer := r.answerer.Generate(ctx, task, passages)
	if strings.TrimSpace(answer) == "" {
		answer = generator.Fallback
	}

	detected, keyword := r.classifier.Match(task)

	res = &Result{
		Result:         answer,
		SourceDocument: strings.Join(passages, "\n"),
		IntentDetected: detected,
	}

	attrs := []any{
		slog.String("intent", string(detected)),
		slog.String("keyword", keyword),
		slog.Int("passages", len(passages)),
	}

	if detected == intent.Actionable {
		if act, ok := r.domain.Match(task); ok {
			ar := r.dispatcher.Dispatch(ctx, act, task)
			if ar == nil {
				ar = &action.Result{Status: action.StatusError, Body: "action: dispatcher returned no result", Outcome: act.Failed()}
			}
			status := ar.Status
			res.SAPAPIStatus = &status
			res.SAPAPIResult = ar.Body
			res.ActionPerformed = ar.Outcome
			res.Action = act.Name
			attrs = append(attrs, slog.String("action", act.Name), slog.String("outcome", ar.Outcome))
		}
	}

	attrs = append(attrs, slog.Duration("duration", time.Since(start)))
	log.Info("resolver: task resolved", attrs...)
	return res
}

// retrieve returns up to topK passages, or nil when retrieval is degraded.
func (r *Resolver) retrieve(ctx context.Context, task string) []string {
	if r.index == nil {
		logging.FromContext(ctx).Warn("resolver: no similarity index configured, continuing without context")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.retrieveTTL)
	defer cancel()

	return rag.Texts(r.index.Query(ctx, task, r.topK))
}
