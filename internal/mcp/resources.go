// ABOUTME: MCP resource implementations for the bloom store.
// ABOUTME: Provides bloom://anomalies/recent and bloom://users/summary resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

const (
	recentAnomaliesURI = "bloom://anomalies/recent"
	usersSummaryURI    = "bloom://users/summary"
)

func (s *Server) registerResources() {
	// bloom://anomalies/recent - last 20 anomalies across users
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         recentAnomaliesURI,
		Name:        "Recent Anomalies",
		Description: "Last 20 triggered anomaly events across all users",
		MIMEType:    "application/json",
	}, s.handleRecentAnomaliesResource)

	// bloom://users/summary - latest daily averages per user
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         usersSummaryURI,
		Name:        "User Summary",
		Description: "Latest 1D averages and scores for every user",
		MIMEType:    "application/json",
	}, s.handleUsersSummaryResource)
}

// Resource handlers

func (s *Server) handleRecentAnomaliesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	rows, err := s.store.ListAnomalyEvents(ctx, storage.AnomalyQuery{Limit: 20})
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	if rows == nil {
		rows = []*models.AnomalyEvent{}
	}

	return jsonResource(recentAnomaliesURI, map[string]any{
		"anomalies": rows,
		"count":     len(rows),
	})
}

func (s *Server) handleUsersSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	summaries := make([]map[string]any, 0, len(users))
	for _, u := range users {
		entry := map[string]any{
			"fitbit_user_id": u.FitbitID,
			"status":         u.Status,
			"eligible":       u.Eligible(),
		}
		latest, err := s.store.ListPeriodAverages(ctx, storage.AverageQuery{
			Family:     models.FamilyShortTerm,
			UserID:     u.ID,
			PeriodType: models.Period1D,
			Limit:      1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list averages for %s: %w", u.FitbitID, err)
		}
		if len(latest) > 0 {
			entry["recorded_at"] = latest[0].RecordedAt
			entry["steps"] = latest[0].Steps
			entry["total_sleep_hours"] = latest[0].TotalSleepHours
			entry["stress_score"] = latest[0].StressScore
			entry["total_score"] = latest[0].TotalScore
		}
		summaries = append(summaries, entry)
	}

	return jsonResource(usersSummaryURI, map[string]any{
		"generated_at": time.Now().Format(time.RFC3339),
		"users":        summaries,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
