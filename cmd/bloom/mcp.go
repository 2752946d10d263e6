// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio-based MCP server over the configured store.
package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout. Logs go to stderr.

CONFIGURATION:

  {
    "mcpServers": {
      "bloom": {
        "command": "bloom",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  list_users       List enrolled users
  list_averages    Period averages for a user
  list_anomalies   Triggered anomaly events
  stress_score     Compute a daily stress score
  health_score     Compute the composite health score
  run_job          Run one pipeline job for one user

AVAILABLE RESOURCES:

  bloom://anomalies/recent   Last 20 anomalies
  bloom://users/summary      Latest daily averages per user`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, closePub, err := newRunner()
		if err != nil {
			return err
		}
		defer closePub()

		server, err := mcp.NewServer(store, runner)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
