// Package generator produces grounded natural-language answers from a
// question and retrieved corpus passages using an eino chain
// (chat template → chat model).
//
// Generation never fails from the caller's point of view: any model error,
// timeout, or empty output yields [Fallback].
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/taskagent-go/internal/budget"
	"github.com/54b3r/taskagent-go/internal/logging"
)

const (
	// Fallback is returned whenever the model cannot produce an answer.
	Fallback = "unable to generate an answer"

	// NoContext is rendered in place of the context block when retrieval
	// returned no passages.
	NoContext = "no relevant information found"

	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 60 * time.Second
)

// systemPrompt restricts the model to the supplied context. Template
// variables use FString syntax, so literal braces must not appear here.
const systemPrompt = `You are an assistant for the {domain} department.
Answer the user's question using ONLY the context below.
If the context does not contain the answer, say that the information is not available.
Keep the answer short and factual.

Context:
{context}`

// Answerer is the contract the resolver depends on.
type Answerer interface {
	Generate(ctx context.Context, question string, passages []string) string
}

// Config holds the dependencies required to construct a Generator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Domain is rendered into the system instruction.
	Domain string

	// Timeout bounds each call. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// MaxContextTokens is the estimated token budget for the rendered prompt.
	// Passages are dropped lowest-ranked first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// TimeoutFromEnv parses GENERATION_TIMEOUT, returning zero when it is unset
// or invalid.
func TimeoutFromEnv() time.Duration {
	d, err := time.ParseDuration(os.Getenv("GENERATION_TIMEOUT"))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Generator answers questions through a compiled eino chain.
type Generator struct {
	// chain is the compiled template → model runnable.
	chain compose.Runnable[map[string]any, *schema.Message]
	// domain is the department name rendered into the prompt.
	domain string
	// timeout bounds each Generate call.
	timeout time.Duration
	// maxContextTokens is the prompt token budget.
	maxContextTokens int
}

// New compiles the generation chain for cfg.
func New(ctx context.Context, cfg *Config) (*Generator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("generator: ChatModel must not be nil")
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{question}"),
	)

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(cfg.ChatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: failed to compile chain: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "company"
	}

	return &Generator{
		chain:            chain,
		domain:           domain,
		timeout:          timeout,
		maxContextTokens: maxCtx,
	}, nil
}

// Generate returns the model's answer to question grounded in passages, or
// Fallback on any failure.
func (g *Generator) Generate(ctx context.Context, question string, passages []string) string {
	log := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vars := g.variables(ctx, question, passages)

	msg, err := g.chain.Invoke(ctx, vars)
	if err != nil {
		log.Warn("generator: model call failed, returning fallback", slog.Any("error", err))
		return Fallback
	}

	answer := ""
	if msg != nil {
		answer = strings.TrimSpace(msg.Content)
	}
	if answer == "" {
		log.Warn("generator: model returned empty output, returning fallback")
		return Fallback
	}
	return answer
}

// variables renders the template inputs, trimming passages to the token
// budget.
func (g *Generator) variables(ctx context.Context, question string, passages []string) map[string]any {
	kept := budget.FitPassages(g.fixedTokens(question), passages, g.maxContextTokens)
	if dropped := len(passages) - len(kept); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped passages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", g.maxContextTokens),
		)
	}

	return map[string]any{
		"domain":   g.domain,
		"context":  RenderContext(kept),
		"question": question,
	}
}

// fixedTokens estimates the prompt cost that does not depend on passages:
// the system instruction for this domain and the user question.
func (g *Generator) fixedTokens(question string) int {
	sys := strings.NewReplacer("{domain}", g.domain, "{context}", "").Replace(systemPrompt)
	return budget.EstimateMessages([]*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(question),
	})
}

// RenderContext joins passages with newlines, or returns NoContext when
// there are none.
func RenderContext(passages []string) string {
	if len(passages) == 0 {
		return NoContext
	}
	return strings.Join(passages, "\n")
}
