// ABOUTME: CLI commands for computing stress and health scores from raw inputs.
// ABOUTME: Pure calculators; they never open the store.
package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/score"
)

var (
	scoreActivity score.Activity
	scoreSleep    score.Sleep
	scoreMetrics  score.Metrics
)

var scoreCmd = &cobra.Command{
	Use:         "score",
	Short:       "Compute stress and health scores",
	Annotations: map[string]string{skipStore: "true"},
}

var scoreStressCmd = &cobra.Command{
	Use:   "stress <hrv> <resting-hr> <deep-sleep-minutes>",
	Short: "Compute the daily stress score",
	Long: `Compute the daily stress score.

Each input contributes up to 33 points against its baseline
(HRV 40 ms, resting heart rate 65 bpm, deep sleep 90 minutes).
Stress is 100 minus the sum, so 1 is the calmest possible day.

EXAMPLES:

  bloom score stress 40 65 90     # 1
  bloom score stress 20 80 45`,
	Args:        cobra.ExactArgs(3),
	Annotations: map[string]string{skipStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		vals := make([]float64, len(args))
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil || v < 0 {
				return fmt.Errorf("invalid value: %s", a)
			}
			vals[i] = v
		}

		s := score.Stress(vals[0], vals[1], vals[2])
		out := cmd.OutOrStdout()
		faint := color.New(color.Faint)
		fmt.Fprintf(out, "%s %.0f\n", color.New(color.Bold).Sprint("stress"), s.Stress)
		fmt.Fprintf(out, "  %s %.0f  %s %.0f  %s %.0f\n",
			faint.Sprint("hrv"), s.HRVContribution,
			faint.Sprint("rhr"), s.RHRContribution,
			faint.Sprint("sleep"), s.SleepContribution)
		return nil
	},
}

var scoreHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Compute the composite health score",
	Long: `Compute the composite health score from activity, sleep and recovery inputs.

Activity scores up to 30, sleep up to 30 and metrics up to 40. Sleep
quality is added as-is.

EXAMPLES:

  bloom score health --steps 8000 --calories 2300 --sleep-hours 7.5 --hrv 35 --rhr 62`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		h := score.Health(scoreActivity, scoreSleep, scoreMetrics)
		out := cmd.OutOrStdout()
		faint := color.New(color.Faint)
		fmt.Fprintf(out, "%s %.2f\n", color.New(color.Bold).Sprint("total"), h.Total)
		fmt.Fprintf(out, "  %s %.2f  %s %.2f  %s %.2f\n",
			faint.Sprint("activity"), h.Activity,
			faint.Sprint("sleep"), h.Sleep,
			faint.Sprint("metrics"), h.Metrics)
		return nil
	},
}

func init() {
	f := scoreHealthCmd.Flags()
	f.Float64Var(&scoreActivity.Steps, "steps", 0, "daily steps")
	f.Float64Var(&scoreActivity.CaloriesTotal, "calories", 0, "total calories burned")
	f.Float64Var(&scoreActivity.VeryActiveMinutes, "very-active", 0, "very active minutes")
	f.Float64Var(&scoreActivity.SedentaryMinutes, "sedentary", 0, "sedentary minutes")
	f.Float64Var(&scoreSleep.TotalSleepHours, "sleep-hours", 0, "total sleep hours")
	f.Float64Var(&scoreSleep.DeepSleepHours, "deep-hours", 0, "deep sleep hours")
	f.Float64Var(&scoreSleep.AwakeHours, "awake-hours", 0, "hours awake during sleep")
	f.Float64Var(&scoreSleep.Quality, "quality", 0, "sleep quality points")
	f.Float64Var(&scoreSleep.Efficiency, "efficiency", 0, "sleep efficiency percent")
	f.Float64Var(&scoreMetrics.HRV, "hrv", 0, "heart rate variability (ms)")
	f.Float64Var(&scoreMetrics.RHR, "rhr", 0, "resting heart rate")
	f.Float64Var(&scoreMetrics.RespiratoryRate, "breathing", 0, "breaths per minute")
	f.Float64Var(&scoreMetrics.SkinTemperature, "skin-temp", 0, "skin temperature deviation")
	f.Float64Var(&scoreMetrics.StressScore, "stress", 0, "stress score")

	scoreCmd.AddCommand(scoreStressCmd, scoreHealthCmd)
	rootCmd.AddCommand(scoreCmd)
}
