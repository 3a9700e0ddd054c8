package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/taskagent-go/internal/logging"
)

// NewAskCmd constructs the `taskagent ask` command, which resolves a single
// task for one domain and prints the JSON result to stdout.
func NewAskCmd() *cobra.Command {
	var domainName string

	cmd := &cobra.Command{
		Use:   "ask [task]",
		Short: "Resolve one task for a domain and print the result",
		Long: `Resolve a single task through the full domain pipeline: retrieval from the
domain corpus, grounded answer generation, intent detection, and, for
actionable tasks naming a known action, dispatch to the business system.

The result is printed as JSON, exactly as POST /task would return it.

Examples:
  taskagent ask --domain hr "How many days of annual leave do I get?"
  taskagent ask --domain procurement "Please create an order for 12 printers"
  taskagent ask -d finance "Submit invoice INV-2291 for approval"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			a, err := buildApp(ctx, log, []string{domainName})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			res := a.resolvers[0].Resolve(ctx, strings.Join(args, " "))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("ask: failed to write result: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&domainName, "domain", "d", "hr", "Domain to resolve the task in (hr, finance, procurement)")

	return cmd
}
