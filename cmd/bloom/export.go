// ABOUTME: CLI command for exporting computed averages and anomaly events.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

var (
	exportOutput string
	exportUser   string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export computed data",
	Long: `Export period averages, monthly history and anomaly events.
Upstream tokens are never exported.

FORMATS:

  json       Full JSON export
  yaml       YAML export (human-readable)
  markdown   Markdown tables (for documentation/sharing)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --user, -u     Only export this user (internal id or prefix)
  --since        Only include averages recorded since this date (YYYY-MM-DD)

EXAMPLES:

  bloom export json                         # Export all data as JSON
  bloom export json -o backup.json          # Save to file
  bloom export yaml -u 3f2a9c10             # One user as YAML
  bloom export markdown --since 2025-01-01  # Tables from 2025 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		switch format {
		case "json", "yaml", "markdown":
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}
		if exportSince != "" {
			if _, err := parseTime(exportSince); err != nil {
				return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
			}
		}

		exported, err := storage.GetAllData(cmd.Context(), store, storage.ExportOptions{
			UserID: exportUser,
			Since:  exportSince,
		})
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		var data []byte
		switch format {
		case "json":
			data, err = storage.ExportJSON(exported)
		case "yaml":
			data, err = storage.ExportYAML(exported)
		case "markdown":
			data = []byte(storage.ExportMarkdown(exported))
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Exported %d users to %s\n", len(exported.Users), exportOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "only export this user (id or prefix)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include data since date ("+models.DateLayout+")")

	rootCmd.AddCommand(exportCmd)
}
