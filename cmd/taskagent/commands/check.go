package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/54b3r/taskagent-go/internal/credential"
	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/embedder"
	"github.com/54b3r/taskagent-go/internal/provider"
)

// NewCheckCmd constructs the `taskagent check` command, which reports
// missing configuration without making any network call.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report missing configuration for every domain",
		Long: `Validate the resolved configuration (env, .env, and YAML) without contacting
any external service.

Reports unset action endpoints per domain, incomplete client credentials,
and invalid chat model or embedding settings. Exits non-zero when any
problem is found.

Examples:
  taskagent check
  taskagent --config ./staging.yaml check`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			problems := collectProblems()
			writeReport(cmd.OutOrStdout(), problems)
			if len(problems) > 0 {
				return fmt.Errorf("check: %d problem(s) found", len(problems))
			}
			return nil
		},
	}
}

// collectProblems validates every configuration section from the environment.
func collectProblems() []string {
	var problems []string

	if err := provider.ConfigFromEnv().Validate(); err != nil {
		problems = append(problems, "model: "+err.Error())
	}
	if err := embedder.ConfigFromEnv().Validate(); err != nil {
		problems = append(problems, "embedding: "+err.Error())
	}
	if _, err := indexBackendFromEnv(); err != nil {
		problems = append(problems, "index: "+err.Error())
	}
	if err := credential.ConfigFromEnv().Validate(); err != nil {
		problems = append(problems, "credentials: "+err.Error())
	}
	for _, d := range domain.FromEnv() {
		problems = append(problems, d.Problems()...)
	}
	return problems
}

// writeReport prints one line per problem, or a success line.
func writeReport(w io.Writer, problems []string) {
	if len(problems) == 0 {
		fmt.Fprintln(w, "configuration OK")
		return
	}
	for _, p := range problems {
		fmt.Fprintf(w, "- %s\n", p)
	}
}
