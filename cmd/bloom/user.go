// ABOUTME: CLI commands for enrolling users and managing their upstream tokens.
// ABOUTME: Supports user add, list and tokens.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/models"
)

var (
	userAccessToken  string
	userRefreshToken string
	userExpires      string
	userRole         string
	userStatus       string
)

var userCmd = &cobra.Command{
	Use:     "user",
	Aliases: []string{"users", "u"},
	Short:   "Manage enrolled users",
	Long: `Manage users whose wearable data is collected.

Scheduled runs (--all) only pick up active seniors with a refresh token.
Token refresh happens outside bloom; use 'bloom user tokens' to store
fresh tokens.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <fitbit-user-id>",
	Short: "Enroll a user",
	Long: `Enroll a user by their Fitbit encoded id.

EXAMPLES:

  bloom user add ABC123 --access-token eyJ... --refresh-token 9f2... --expires 8h
  bloom user add ABC123 --expires "2025-06-02 18:00" --status inactive`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := models.NewUser(args[0])
		if userRole != "" {
			u.Role = userRole
		}
		if userStatus != "" {
			u.Status = userStatus
		}
		if userAccessToken != "" || userRefreshToken != "" {
			expires, err := parseExpiry(userExpires, time.Now())
			if err != nil {
				return err
			}
			u.WithTokens(userAccessToken, userRefreshToken, expires)
		}

		if err := store.CreateUser(cmd.Context(), u); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		out := cmd.OutOrStdout()
		color.New(color.FgGreen).Fprintf(out, "✓ Added user %s\n", u.FitbitID)
		fmt.Fprintf(out, "  %s %s/%s\n", color.New(color.Faint).Sprint(u.ID.String()[:8]), u.Role, u.Status)
		if !u.Eligible() {
			color.New(color.FgYellow).Fprintln(out, "  not eligible for scheduled runs")
		}
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List enrolled users",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := store.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, "No users found.")
			return nil
		}

		faint := color.New(color.Faint)
		now := time.Now()
		for _, u := range users {
			token := color.New(color.FgGreen).Sprint("token ok")
			if u.TokenExpired(now) {
				token = color.New(color.FgRed).Sprint("token expired")
			}
			eligible := ""
			if u.Eligible() {
				eligible = faint.Sprint(" eligible")
			}
			fmt.Fprintf(out, "%s %s %s %s%s\n",
				faint.Sprint(u.ID.String()[:8]),
				padRight(u.FitbitID, 12),
				padRight(u.Role+"/"+u.Status, 16),
				token,
				eligible)
		}
		return nil
	},
}

var userTokensCmd = &cobra.Command{
	Use:   "tokens <fitbit-user-id>",
	Short: "Store new upstream tokens for a user",
	Long: `Replace a user's access and refresh tokens.

EXAMPLES:

  bloom user tokens ABC123 --access-token eyJ... --refresh-token 9f2... --expires 8h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if userAccessToken == "" {
			return fmt.Errorf("--access-token is required")
		}
		u, err := store.GetUserByFitbitID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("user not found: %s", args[0])
		}
		expires, err := parseExpiry(userExpires, time.Now())
		if err != nil {
			return err
		}
		refresh := userRefreshToken
		if refresh == "" {
			refresh = u.RefreshToken
		}
		u.WithTokens(userAccessToken, refresh, expires)

		if err := store.UpdateUserTokens(cmd.Context(), u); err != nil {
			return fmt.Errorf("failed to update tokens: %w", err)
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Updated tokens for %s (expires %s)\n",
			u.FitbitID, expires.Format(time.RFC3339))
		return nil
	},
}

// parseExpiry accepts a duration from now ("8h") or a timestamp. Empty means eight hours,
// the upstream access token lifetime.
func parseExpiry(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.Add(8 * time.Hour), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry: %s (use a duration like 8h or YYYY-MM-DD HH:MM)", s)
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
		time.RFC3339,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	for _, c := range []*cobra.Command{userAddCmd, userTokensCmd} {
		c.Flags().StringVar(&userAccessToken, "access-token", "", "upstream OAuth access token")
		c.Flags().StringVar(&userRefreshToken, "refresh-token", "", "upstream OAuth refresh token")
		c.Flags().StringVar(&userExpires, "expires", "", "access token expiry: duration (8h) or timestamp")
	}
	userAddCmd.Flags().StringVar(&userRole, "role", "", "user role (default: senior)")
	userAddCmd.Flags().StringVar(&userStatus, "status", "", "user status (default: active)")

	userCmd.AddCommand(userAddCmd, userListCmd, userTokensCmd)
	rootCmd.AddCommand(userCmd)
}
