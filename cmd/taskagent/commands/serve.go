package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/taskagent-go/internal/logging"
	"github.com/54b3r/taskagent-go/internal/server"
	"github.com/54b3r/taskagent-go/internal/tracing"
	"github.com/54b3r/taskagent-go/internal/version"
)

// NewServeCmd constructs the `taskagent serve` command, which builds every
// hosted domain pipeline and starts the HTTP server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var defaultDomain string
	var domains []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the taskagent HTTP server",
		Long: `Start the taskagent HTTP server.

Every hosted domain is served at POST /api/domains/{domain}/task and through
the POST /workflow orchestrator route. With --domain, POST /task answers for
that domain, matching a single-department agent deployment.

Examples:
  taskagent serve
  taskagent serve --domain procurement --port 9090
  taskagent serve --domains hr,finance
  INDEX_BACKEND=qdrant taskagent serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			log.Info("serve starting", slog.String("version", version.String()))

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			handler, flush, ok := tracing.Setup(tracing.ConfigFromEnv())
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
			}

			hosted := domains
			if defaultDomain != "" && len(hosted) > 0 && !containsFold(hosted, defaultDomain) {
				hosted = append(hosted, defaultDomain)
			}

			a, err := buildApp(ctx, log, hosted)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			resolvers := make([]server.Resolver, 0, len(a.resolvers))
			for _, r := range a.resolvers {
				resolvers = append(resolvers, r)
			}

			srv, err := server.New(resolvers, &server.Config{
				Host:          host,
				Port:          port,
				Logger:        log,
				Pingers:       a.pingers,
				DefaultDomain: defaultDomain,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVarP(&defaultDomain, "domain", "d", "", "Domain answered by POST /task (hr, finance, procurement)")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "Domains to host (default: all)")

	return cmd
}
