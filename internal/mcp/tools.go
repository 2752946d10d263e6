// ABOUTME: MCP tool implementations over stored users, averages and anomalies.
// ABOUTME: Also exposes the score calculators and on-demand job runs.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/bloom/internal/jobs"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/score"
	"github.com/harperreed/bloom/internal/storage"
)

func (s *Server) registerTools() {
	// list_users
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_users",
		Description: "List users whose wearable data is collected",
	}, s.handleListUsers)

	// list_averages
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_averages",
		Description: "List period averages for a user, newest first",
	}, s.handleListAverages)

	// list_anomalies
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_anomalies",
		Description: "List triggered anomaly events, optionally for one user",
	}, s.handleListAnomalies)

	// stress_score
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "stress_score",
		Description: "Compute a daily stress score from HRV, resting heart rate and deep sleep minutes",
	}, s.handleStressScore)

	// health_score
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "health_score",
		Description: "Compute the composite activity, sleep and metrics health score",
	}, s.handleHealthScore)

	// run_job
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "run_job",
		Description: "Run one pipeline job for one user",
	}, s.handleRunJob)
}

// Tool input/output types

type userOutput struct {
	ID                 string `json:"id"`
	FitbitUserID       string `json:"fitbit_user_id"`
	Role               string `json:"role"`
	Status             string `json:"status"`
	Eligible           bool   `json:"eligible"`
	AccessTokenExpires string `json:"access_token_expires,omitempty"`
}

type listAveragesInput struct {
	FitbitUserID string `json:"fitbit_user_id" jsonschema:"Fitbit user id of the user"`
	Family       string `json:"family,omitempty" jsonschema:"short (daily windows, default) or long (monthly windows)"`
	PeriodType   string `json:"period_type,omitempty" jsonschema:"Filter by window: 1D, 7D, 30D, 90D, 180D or 360D"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type listAnomaliesInput struct {
	FitbitUserID string `json:"fitbit_user_id,omitempty" jsonschema:"Only anomalies for this Fitbit user id"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type stressScoreInput struct {
	HRV              float64 `json:"hrv" jsonschema:"Daily heart rate variability in ms"`
	RestingHeartRate float64 `json:"resting_heart_rate" jsonschema:"Resting heart rate in bpm"`
	DeepSleepMinutes float64 `json:"deep_sleep_minutes" jsonschema:"Minutes of deep sleep"`
}

type healthScoreInput struct {
	Steps             float64 `json:"steps,omitempty"`
	CaloriesTotal     float64 `json:"calories_total,omitempty"`
	VeryActiveMinutes float64 `json:"very_active_minutes,omitempty"`
	SedentaryMinutes  float64 `json:"sedentary_minutes,omitempty"`
	TotalSleepHours   float64 `json:"total_sleep_hours,omitempty"`
	DeepSleepHours    float64 `json:"deep_sleep_hours,omitempty"`
	AwakeHours        float64 `json:"awake_hours,omitempty"`
	SleepQuality      float64 `json:"sleep_quality,omitempty"`
	SleepEfficiency   float64 `json:"sleep_efficiency,omitempty"`
	HRV               float64 `json:"hrv,omitempty"`
	RHR               float64 `json:"rhr,omitempty"`
	RespiratoryRate   float64 `json:"respiratory_rate,omitempty"`
	SkinTemperature   float64 `json:"skin_temperature,omitempty" jsonschema:"Deviation from baseline in degrees"`
	StressScore       float64 `json:"stress_score,omitempty"`
}

type runJobInput struct {
	Job          string `json:"job" jsonschema:"Job name, e.g. collect-sleep or short-term-averages"`
	FitbitUserID string `json:"fitbit_user_id" jsonschema:"Fitbit user id to run the job for"`
	Date         string `json:"date,omitempty" jsonschema:"Reference date YYYY-MM-DD, defaults to today"`
}

// Tool handlers

func (s *Server) handleListUsers(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		return nil, map[string]any{"message": "No users found."}, nil
	}

	out := make([]userOutput, 0, len(users))
	for _, u := range users {
		uo := userOutput{
			ID:           u.ID.String()[:8],
			FitbitUserID: u.FitbitID,
			Role:         u.Role,
			Status:       u.Status,
			Eligible:     u.Eligible(),
		}
		if u.AccessTokenExpires != nil {
			uo.AccessTokenExpires = u.AccessTokenExpires.Format(time.RFC3339)
		}
		out = append(out, uo)
	}
	return nil, map[string]any{"users": out}, nil
}

func (s *Server) handleListAverages(ctx context.Context, req *mcp.CallToolRequest, input listAveragesInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Family == "" {
		input.Family = string(models.FamilyShortTerm)
	}
	if !models.IsValidFamily(input.Family) {
		return nil, nil, fmt.Errorf("unknown family: %s", input.Family)
	}
	if input.PeriodType != "" && !models.IsValidPeriodType(input.PeriodType) {
		return nil, nil, fmt.Errorf("unknown period type: %s", input.PeriodType)
	}

	u, err := s.store.GetUserByFitbitID(ctx, input.FitbitUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %s", input.FitbitUserID)
	}

	rows, err := s.store.ListPeriodAverages(ctx, storage.AverageQuery{
		Family:     models.Family(input.Family),
		UserID:     u.ID,
		PeriodType: models.PeriodType(input.PeriodType),
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list averages: %w", err)
	}

	if len(rows) == 0 {
		return nil, map[string]any{"message": "No averages found."}, nil
	}
	return nil, map[string]any{"averages": rows}, nil
}

func (s *Server) handleListAnomalies(ctx context.Context, req *mcp.CallToolRequest, input listAnomaliesInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	q := storage.AnomalyQuery{Limit: input.Limit}
	if input.FitbitUserID != "" {
		u, err := s.store.GetUserByFitbitID(ctx, input.FitbitUserID)
		if err != nil {
			return nil, nil, fmt.Errorf("user not found: %s", input.FitbitUserID)
		}
		q.UserID = &u.ID
	}

	rows, err := s.store.ListAnomalyEvents(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list anomalies: %w", err)
	}

	if len(rows) == 0 {
		return nil, map[string]any{"message": "No anomalies found."}, nil
	}
	return nil, map[string]any{"anomalies": rows}, nil
}

func (s *Server) handleStressScore(ctx context.Context, req *mcp.CallToolRequest, input stressScoreInput) (*mcp.CallToolResult, score.StressScore, error) {
	if input.RestingHeartRate < 0 || input.HRV < 0 || input.DeepSleepMinutes < 0 {
		return nil, score.StressScore{}, errors.New("inputs must not be negative")
	}
	return nil, score.Stress(input.HRV, input.RestingHeartRate, input.DeepSleepMinutes), nil
}

func (s *Server) handleHealthScore(ctx context.Context, req *mcp.CallToolRequest, input healthScoreInput) (*mcp.CallToolResult, score.HealthScore, error) {
	return nil, score.Health(
		score.Activity{
			Steps:             input.Steps,
			CaloriesTotal:     input.CaloriesTotal,
			VeryActiveMinutes: input.VeryActiveMinutes,
			SedentaryMinutes:  input.SedentaryMinutes,
		},
		score.Sleep{
			TotalSleepHours: input.TotalSleepHours,
			DeepSleepHours:  input.DeepSleepHours,
			AwakeHours:      input.AwakeHours,
			Quality:         input.SleepQuality,
			Efficiency:      input.SleepEfficiency,
		},
		score.Metrics{
			HRV:             input.HRV,
			RHR:             input.RHR,
			RespiratoryRate: input.RespiratoryRate,
			SkinTemperature: input.SkinTemperature,
			StressScore:     input.StressScore,
		},
	), nil
}

func (s *Server) handleRunJob(ctx context.Context, req *mcp.CallToolRequest, input runJobInput) (*mcp.CallToolResult, jobs.Result, error) {
	if s.runner == nil {
		return nil, jobs.Result{}, errors.New("job runner not configured")
	}
	job, err := jobs.ParseName(input.Job)
	if err != nil {
		return nil, jobs.Result{}, err
	}
	return nil, s.runner.Run(ctx, job, input.FitbitUserID, input.Date), nil
}
