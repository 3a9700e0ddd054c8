// Package commands defines all Cobra CLI commands for the taskagent binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/taskagent-go/internal/audit"
	"github.com/54b3r/taskagent-go/internal/config"
	"github.com/54b3r/taskagent-go/internal/logging"
)

// dotEnvPath is loaded before the YAML config. Set variables are never
// overridden.
const dotEnvPath = ".env"

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	// configPath holds the --config flag value for YAML config file override.
	var configPath string

	root := &cobra.Command{
		Use:   "taskagent",
		Short: "taskagent: answers and actions for HR, Finance, and Procurement",
		Long: `taskagent resolves free-text employee requests for the HR, Finance, and
Procurement departments.

Every task is answered from the department's reference corpus with a
grounded LLM response. Tasks that ask for something to be done (submit,
create, order, apply) and name a known action are also dispatched to the
department's business system using OAuth2 client credentials.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.taskagent/config.yaml).
See 'taskagent --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(dotEnvPath); err != nil {
				return err
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, logging.New())
			if err != nil {
				return err
			}

			// Rebuild the logger so LOG_LEVEL and LOG_FORMAT from the file apply.
			log := logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.taskagent/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewCheckCmd(),
		NewVersionCmd(),
	)

	return root
}
