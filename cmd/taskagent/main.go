// Command taskagent is the entry point for the domain task-resolution
// service. It answers HR, Finance, and Procurement questions from reference
// corpora and dispatches actionable requests to business systems, through
// a CLI (via Cobra) and an HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/taskagent-go/cmd/taskagent/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
