// Package intent classifies a free-text task as informational or actionable
// using ordered keyword sets. Classification is pure and deterministic.
package intent

import (
	"strings"
)

// Intent is the detected purpose of a task.
type Intent string

const (
	// Informational tasks are answered from the corpus only.
	Informational Intent = "informational"

	// Actionable tasks may trigger an external business-system action.
	Actionable Intent = "actionable"
)

// DefaultActionKeywords signal that the caller wants something done.
var DefaultActionKeywords = []string{
	"apply for",
	"submit",
	"request",
	"create",
	"order",
	"purchase",
	"place",
	"process",
	"onboard",
	"book",
	"raise",
}

// DefaultInfoKeywords signal that the caller wants to know something.
var DefaultInfoKeywords = []string{
	"what is",
	"what are",
	"policy",
	"explain",
	"how do",
	"how to",
	"tell me",
	"show",
	"status",
	"describe",
}

// Classifier matches tasks against an action set and an information set.
// Action keywords are checked first and win; a task matching neither set is
// informational so ambiguous input never triggers a side effect.
//
// The zero value uses the default keyword sets.
type Classifier struct {
	action []string
	info   []string
}

// New returns a Classifier over the given keyword sets. Keywords are matched
// case-insensitively; nil sets fall back to the defaults.
func New(action, info []string) *Classifier {
	if action == nil {
		action = DefaultActionKeywords
	}
	if info == nil {
		info = DefaultInfoKeywords
	}
	return &Classifier{action: lowerAll(action), info: lowerAll(info)}
}

// Classify returns the intent of task.
func (c *Classifier) Classify(task string) Intent {
	in, _ := c.Match(task)
	return in
}

// Match returns the intent of task along with the keyword that decided it.
// The keyword is empty when neither set matched and the default applied.
func (c *Classifier) Match(task string) (Intent, string) {
	action, info := c.sets()
	lower := strings.ToLower(task)

	for _, kw := range action {
		if strings.Contains(lower, kw) {
			return Actionable, kw
		}
	}
	for _, kw := range info {
		if strings.Contains(lower, kw) {
			return Informational, kw
		}
	}
	return Informational, ""
}

func (c *Classifier) sets() ([]string, []string) {
	if c == nil || (c.action == nil && c.info == nil) {
		return DefaultActionKeywords, DefaultInfoKeywords
	}
	return c.action, c.info
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
