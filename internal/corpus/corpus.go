// Package corpus loads the reference passages for a domain. A corpus file is
// UTF-8 text with one passage per non-blank line; long lines are split into
// overlapping windows so each passage stays within the embedder's input
// limits.
package corpus

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/54b3r/taskagent-go/internal/rag"
)

//go:embed data/*.txt
var builtin embed.FS

// ErrEmptyCorpus is returned when a corpus contains no passages.
var ErrEmptyCorpus = rag.ErrEmptyCorpus

const (
	// DefaultMaxPassageChars is the longest passage kept without splitting.
	DefaultMaxPassageChars = 1000

	// DefaultOverlap is the number of characters shared by adjacent windows.
	DefaultOverlap = 100

	// maxLineBytes bounds a single corpus line.
	maxLineBytes = 1 << 20
)

// Config controls passage splitting.
type Config struct {
	// MaxPassageChars is the maximum passage length in characters.
	// Defaults to 1000 if zero.
	MaxPassageChars int

	// Overlap is the number of characters repeated between consecutive
	// windows of a split line. Defaults to 100 if zero; reset to a tenth of
	// MaxPassageChars when it is not smaller than it.
	Overlap int
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.MaxPassageChars <= 0 {
		out.MaxPassageChars = DefaultMaxPassageChars
	}
	if out.Overlap == 0 {
		out.Overlap = DefaultOverlap
	}
	if out.Overlap < 0 {
		out.Overlap = 0
	}
	if out.Overlap >= out.MaxPassageChars {
		out.Overlap = out.MaxPassageChars / 10
	}
	return out
}

// Load reads the corpus file at path.
func Load(path string, cfg *Config) ([]rag.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: failed to open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := Parse(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("corpus: %s: %w", path, err)
	}
	return docs, nil
}

// Builtin returns the embedded default corpus for domain.
func Builtin(domain string, cfg *Config) ([]rag.Document, error) {
	f, err := builtin.Open("data/" + strings.ToLower(domain) + ".txt")
	if err != nil {
		return nil, fmt.Errorf("corpus: no built-in corpus for domain %q", domain)
	}
	defer f.Close()
	return Parse(f, cfg)
}

// Resolve loads path when it is set and the built-in corpus for domain
// otherwise.
func Resolve(path, domain string, cfg *Config) ([]rag.Document, error) {
	if path != "" {
		return Load(path, cfg)
	}
	return Builtin(domain, cfg)
}

// Parse reads passages from r. Documents are numbered in file order after
// splitting.
func Parse(r io.Reader, cfg *Config) ([]rag.Document, error) {
	c := cfg.withDefaults()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var docs []rag.Document
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, p := range split(line, c.MaxPassageChars, c.Overlap) {
			docs = append(docs, rag.Document{Index: len(docs), Text: p})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read failed: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	return docs, nil
}

// split windows text into chunks of at most size runes, each sharing overlap
// runes with its predecessor.
func split(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
