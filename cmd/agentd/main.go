// Package main provides the CLI entry point for the agentrt server.
//
// agentrt mediates between a chat client and a Gemini-family text
// generation provider: it accepts user messages over a WebSocket gateway,
// runs a bounded tool-calling loop against the provider, streams partial
// output back in real time, persists per-session history in SQLite, and
// summarizes older turns to stay inside the context window.
//
// # Basic Usage
//
// Apply the database schema, then start the server:
//
//	agentd migrate --config agentd.yaml
//	agentd serve --config agentd.yaml
//
// # Environment Variables
//
//   - AGENTRT_API_KEY: provider API key (preferred over the config file)
//   - AGENTRT_MODEL: override the default generation model
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agentd",
		Short:         "LLM agent server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd())
	root.AddCommand(buildMigrateCmd())
	return root
}
