// ABOUTME: CLI command for running one pipeline job from cron or by hand.
// ABOUTME: Fans out over named users or every eligible user and prints per-user results.
package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/jobs"
)

var (
	runUsers []string
	runAll   bool
	runDate  string
)

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a pipeline job",
	Long: `Run one pipeline job for one or more users.

JOBS:

  collect-intraday, collect-sleep, collect-activity, collect-health-metrics,
  short-term-averages, long-term-averages, detect-anomalies

TARGETS:

  --user, -u   Fitbit user id (repeatable)
  --all        Every active senior with a refresh token

  One user's failure never stops the others. The command exits non-zero
  when any user failed.

DATES:

  --date sets the reference day (YYYY-MM-DD) in the configured time zone.
  It defaults to today. Collection jobs read the day before it.

EXAMPLES:

  bloom run collect-intraday --all
  bloom run short-term-averages -u ABC123 --date 2025-06-02
  bloom run long-term-averages --all --date 2025-06-01`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: jobNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := jobs.ParseName(args[0])
		if err != nil {
			return err
		}
		if runAll == (len(runUsers) > 0) {
			return fmt.Errorf("specify exactly one of --user or --all")
		}

		runner, closePub, err := newRunner()
		if err != nil {
			return err
		}
		defer closePub()

		var results []jobs.Result
		if runAll {
			results, err = runner.RunAll(cmd.Context(), job, runDate)
			if err != nil {
				return err
			}
		} else {
			results = runner.RunForUsers(cmd.Context(), job, runUsers, runDate)
		}

		failed := printResults(cmd.OutOrStdout(), results)
		if failed > 0 {
			return fmt.Errorf("%s: %d of %d users failed", job, failed, len(results))
		}
		return nil
	},
}

// printResults writes one line per result and returns the number of failures.
func printResults(w io.Writer, results []jobs.Result) int {
	if len(results) == 0 {
		fmt.Fprintln(w, "No eligible users.")
		return 0
	}

	faint := color.New(color.Faint)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	failed := 0
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(w, "%s %s %s %s\n", green.Sprint("✓"), padRight(r.FitbitUserID, 12), r.Job, faint.Sprint(r.Date))
			continue
		}
		failed++
		fmt.Fprintf(w, "%s %s %s %s %s\n", red.Sprint("✗"), padRight(r.FitbitUserID, 12), r.Job,
			red.Sprint(r.Kind), faint.Sprint(truncate(r.Error, 80)))
	}
	return failed
}

func jobNames() []string {
	names := make([]string, 0, len(jobs.Names()))
	for _, n := range jobs.Names() {
		names = append(names, string(n))
	}
	return names
}

func init() {
	runCmd.Flags().StringSliceVarP(&runUsers, "user", "u", nil, "Fitbit user id (repeatable)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "run for every eligible user")
	runCmd.Flags().StringVar(&runDate, "date", "", "reference date YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(runCmd)
}
