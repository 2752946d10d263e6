// ABOUTME: CLI commands for reading computed averages and anomaly events.
// ABOUTME: Supports averages list and anomalies list with family, period and limit filters.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

var (
	avgFamily string
	avgPeriod string
	avgSince  string
	avgLimit  int

	anomalyUser  string
	anomalyLimit int
)

var averagesCmd = &cobra.Command{
	Use:     "averages",
	Aliases: []string{"avg"},
	Short:   "Read computed period averages",
}

var averagesListCmd = &cobra.Command{
	Use:     "list <fitbit-user-id>",
	Aliases: []string{"ls"},
	Short:   "List period averages for a user",
	Long: `List period averages for a user, newest first.

FAMILIES:

  short   1D, 7D and 30D windows recorded daily (default)
  long    30D, 90D, 180D and 360D windows recorded at month start

OUTPUT FORMAT:

  DATE  PERIOD  STEPS  SLEEP  HRV  RHR  STRESS  SCORE

EXAMPLES:

  bloom averages list ABC123
  bloom averages list ABC123 --period 7D -n 14
  bloom averages list ABC123 --family long --since 2025-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !models.IsValidFamily(avgFamily) {
			return fmt.Errorf("unknown family: %s (use short or long)", avgFamily)
		}
		if avgPeriod != "" && !models.IsValidPeriodType(avgPeriod) {
			return fmt.Errorf("unknown period: %s", avgPeriod)
		}
		u, err := store.GetUserByFitbitID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("user not found: %s", args[0])
		}

		rows, err := store.ListPeriodAverages(cmd.Context(), storage.AverageQuery{
			Family:     models.Family(avgFamily),
			UserID:     u.ID,
			PeriodType: models.PeriodType(avgPeriod),
			From:       avgSince,
			Limit:      avgLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list averages: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(rows) == 0 {
			fmt.Fprintln(out, "No averages found.")
			return nil
		}

		faint := color.New(color.Faint)
		fmt.Fprintln(out, faint.Sprint("DATE       PERIOD    STEPS  SLEEP    HRV    RHR STRESS  SCORE"))
		for _, p := range rows {
			fmt.Fprintf(out, "%s %s %8.0f %6.2f %6.1f %6.1f %6.1f %6.1f\n",
				p.RecordedAt,
				padRight(string(p.PeriodType), 6),
				p.Steps, p.TotalSleepHours, p.HRV, p.RHR, p.StressScore, p.TotalScore)
		}
		return nil
	},
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "List triggered anomaly events",
	Long: `List triggered anomaly events, newest first.

EXAMPLES:

  bloom anomalies
  bloom anomalies --user ABC123 -n 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := storage.AnomalyQuery{Limit: anomalyLimit}
		names := map[string]string{}
		if anomalyUser != "" {
			u, err := store.GetUserByFitbitID(cmd.Context(), anomalyUser)
			if err != nil {
				return fmt.Errorf("user not found: %s", anomalyUser)
			}
			q.UserID = &u.ID
			names[u.ID.String()] = u.FitbitID
		} else {
			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			for _, u := range users {
				names[u.ID.String()] = u.FitbitID
			}
		}

		rows, err := store.ListAnomalyEvents(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("failed to list anomalies: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(rows) == 0 {
			fmt.Fprintln(out, "No anomalies found.")
			return nil
		}

		faint := color.New(color.Faint)
		red := color.New(color.FgRed)
		for _, e := range rows {
			fmt.Fprintf(out, "%s %s %s %s\n",
				faint.Sprint(e.TriggeredAt.Format("2006-01-02 15:04")),
				padRight(names[e.UserID.String()], 12),
				red.Sprint(padRight(e.TriggerType, 20)),
				truncate(strings.ReplaceAll(e.Detail, "\n", " "), 60))
		}
		return nil
	},
}

func init() {
	averagesListCmd.Flags().StringVarP(&avgFamily, "family", "f", string(models.FamilyShortTerm), "average family: short or long")
	averagesListCmd.Flags().StringVarP(&avgPeriod, "period", "p", "", "filter by window (1D, 7D, 30D, 90D, 180D, 360D)")
	averagesListCmd.Flags().StringVar(&avgSince, "since", "", "only rows recorded on or after YYYY-MM-DD")
	averagesListCmd.Flags().IntVarP(&avgLimit, "limit", "n", 20, "max number of results")
	averagesCmd.AddCommand(averagesListCmd)

	anomaliesCmd.Flags().StringVarP(&anomalyUser, "user", "u", "", "only anomalies for this Fitbit user id")
	anomaliesCmd.Flags().IntVarP(&anomalyLimit, "limit", "n", 20, "max number of results")

	rootCmd.AddCommand(averagesCmd, anomaliesCmd)
}
