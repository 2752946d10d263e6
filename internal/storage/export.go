// ABOUTME: Export of computed averages and anomaly events from any Store.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/bloom/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData represents the full export format. Tokens are never exported.
type ExportData struct {
	Version    string        `json:"version" yaml:"version"`
	ExportedAt time.Time     `json:"exported_at" yaml:"exported_at"`
	Tool       string        `json:"tool" yaml:"tool"`
	Users      []*ExportUser `json:"users" yaml:"users"`
}

// ExportUser is one user's computed data.
type ExportUser struct {
	ID        string                  `json:"id" yaml:"id"`
	FitbitID  string                  `json:"fitbit_id" yaml:"fitbit_id"`
	Status    string                  `json:"status" yaml:"status"`
	Averages  []*models.PeriodAverage `json:"averages" yaml:"averages"`
	History   []*models.PeriodAverage `json:"history" yaml:"history"`
	Anomalies []*models.AnomalyEvent  `json:"anomalies" yaml:"anomalies"`
}

// ExportOptions narrows an export to one user and a recorded_at lower bound.
type ExportOptions struct {
	UserID string
	Since  string
}

// GetAllData collects the export for every user, or the one named by opts.UserID.
func GetAllData(ctx context.Context, s Store, opts ExportOptions) (*ExportData, error) {
	var users []*models.User
	if opts.UserID != "" {
		u, err := s.GetUser(ctx, opts.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		users = []*models.User{u}
	} else {
		var err error
		users, err = s.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Tool:       "bloom",
	}
	for _, u := range users {
		eu := &ExportUser{ID: u.ID.String(), FitbitID: u.FitbitID, Status: u.Status}

		short, err := s.ListPeriodAverages(ctx, AverageQuery{Family: models.FamilyShortTerm, UserID: u.ID, From: opts.Since})
		if err != nil {
			return nil, fmt.Errorf("list averages: %w", err)
		}
		long, err := s.ListPeriodAverages(ctx, AverageQuery{Family: models.FamilyLongTerm, UserID: u.ID, From: opts.Since})
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		uid := u.ID
		events, err := s.ListAnomalyEvents(ctx, AnomalyQuery{UserID: &uid})
		if err != nil {
			return nil, fmt.Errorf("list anomaly events: %w", err)
		}

		eu.Averages, eu.History, eu.Anomalies = short, long, events
		data.Users = append(data.Users, eu)
	}
	return data, nil
}

// ExportJSON exports data as indented JSON.
func ExportJSON(data *ExportData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports data as YAML.
func ExportYAML(data *ExportData) ([]byte, error) {
	return yaml.Marshal(data)
}

// markdownColumns are the average fields shown in Markdown tables.
var markdownColumns = []struct {
	title string
	value func(a *models.Averages) float64
}{
	{"Steps", func(a *models.Averages) float64 { return a.Steps }},
	{"Sleep h", func(a *models.Averages) float64 { return a.TotalSleepHours }},
	{"HRV", func(a *models.Averages) float64 { return a.HRV }},
	{"RHR", func(a *models.Averages) float64 { return a.RHR }},
	{"Stress", func(a *models.Averages) float64 { return a.StressScore }},
	{"Score", func(a *models.Averages) float64 { return a.TotalScore }},
}

// ExportMarkdown renders data as Markdown tables, one section per user.
func ExportMarkdown(data *ExportData) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Bloom Export - %s\n\n", data.ExportedAt.Format(models.DateLayout))
	fmt.Fprintf(&sb, "Generated: %s\n\n", data.ExportedAt.Format(time.RFC3339))

	for _, u := range data.Users {
		fmt.Fprintf(&sb, "## %s (%s)\n\n", u.FitbitID, u.ID[:8])
		writeAverageTable(&sb, "Daily averages", u.Averages)
		writeAverageTable(&sb, "Monthly history", u.History)

		if len(u.Anomalies) > 0 {
			sb.WriteString("### Anomalies\n\n")
			sb.WriteString("| Triggered | Reason | Detail |\n")
			sb.WriteString("|-----------|--------|--------|\n")
			for _, e := range u.Anomalies {
				fmt.Fprintf(&sb, "| %s | %s | %s |\n",
					e.TriggeredAt.Format("2006-01-02 15:04"),
					e.TriggerType,
					strings.ReplaceAll(e.Detail, "\n", " "))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func writeAverageTable(sb *strings.Builder, title string, rows []*models.PeriodAverage) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", title)
	sb.WriteString("| Date | Period |")
	sep := "|------|--------|"
	for _, c := range markdownColumns {
		sb.WriteString(" " + c.title + " |")
		sep += "------|"
	}
	sb.WriteString("\n" + sep + "\n")
	for _, p := range rows {
		fmt.Fprintf(sb, "| %s | %s |", p.RecordedAt, p.PeriodType)
		for _, c := range markdownColumns {
			fmt.Fprintf(sb, " %.2f |", c.value(&p.Averages))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
