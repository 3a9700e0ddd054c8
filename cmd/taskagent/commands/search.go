package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/logging"
	"github.com/54b3r/taskagent-go/internal/resolver"
)

// NewSearchCmd constructs the `taskagent search` command, which builds one
// domain index and prints the nearest passages for a query. No chat model is
// needed, so it isolates retrieval problems from generation problems.
func NewSearchCmd() *cobra.Command {
	var domainName string
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show the corpus passages retrieved for a query",
		Long: `Build the similarity index for one domain and print the passages nearest
to the query, with their corpus position and squared Euclidean distance.

Uses the same embedder and index backend as serve:
  INDEX_BACKEND          flat (default) or qdrant
  EMBEDDING_PROVIDER     Embedding backend (default: MODEL_PROVIDER, then ollama)
  EMBEDDING_*            Provider-specific overrides
  QDRANT_*               Qdrant connection when INDEX_BACKEND=qdrant

Examples:
  taskagent search --domain hr "parental leave"
  taskagent search -d procurement -k 5 "preferred suppliers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			descs, err := selectDomains(domain.FromEnv(), []string{domainName})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			ret, err := newRetrieval(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer ret.Close()

			indexes, err := buildIndexes(ctx, log, descs, ret.build)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			idx := indexes[0]
			if !idx.Enabled() {
				return fmt.Errorf("search: index for %s is disabled: %s", descs[0].Name, idx.Reason())
			}

			k := topK
			if k <= 0 {
				k = resolver.OptionsFromEnv().TopK
			}
			if k <= 0 {
				k = resolver.DefaultTopK
			}
			hits := idx.Query(ctx, strings.Join(args, " "), k)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tINDEX\tDISTANCE\tPASSAGE")
			for i, h := range hits {
				fmt.Fprintf(tw, "%d\t%d\t%.4f\t%s\n", i+1, h.Document.Index, h.Distance, truncate(h.Document.Text, 100))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&domainName, "domain", "d", "hr", "Domain corpus to search (hr, finance, procurement)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to return (default: RETRIEVAL_TOP_K or 3)")

	return cmd
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// containsFold reports whether list contains s, ignoring case.
func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
