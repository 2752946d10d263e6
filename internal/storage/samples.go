// ABOUTME: Raw metric operations for SQLite storage.
// ABOUTME: Intraday samples, daily activity summaries, sleep records and health metrics.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/bloom/internal/models"
)

// CreateIntradaySample stores a new intraday sample.
func (d *DB) CreateIntradaySample(ctx context.Context, s *models.IntradaySample) error {
	var calories sql.NullFloat64
	if s.CaloriesTotal != nil {
		calories = sql.NullFloat64{Float64: *s.CaloriesTotal, Valid: true}
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO intraday_samples (id, user_id, recorded_at, steps, distance_km, calories_total, heart_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID.String(), s.UserID.String(), formatTime(s.RecordedAt),
		s.Steps, s.DistanceKm, calories, s.HeartRate, formatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create intraday sample: %w", translateErr(err))
	}
	return nil
}

// ListIntradaySamples returns samples in the query range ordered by RecordedAt ascending.
func (d *DB) ListIntradaySamples(ctx context.Context, q IntradayQuery) ([]models.IntradaySample, error) {
	query := `
		SELECT id, user_id, recorded_at, steps, distance_km, calories_total, heart_rate, created_at
		FROM intraday_samples WHERE user_id = ?`
	args := []any{q.UserID.String()}
	if !q.From.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND recorded_at <= ?`
		args = append(args, formatTime(q.To))
	}
	query += ` ORDER BY recorded_at ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intraday samples: %w", err)
	}
	defer rows.Close()

	var samples []models.IntradaySample
	for rows.Next() {
		var s models.IntradaySample
		var idStr, userStr, recordedAt, createdAt string
		var calories sql.NullFloat64
		if err := rows.Scan(&idStr, &userStr, &recordedAt, &s.Steps, &s.DistanceKm, &calories, &s.HeartRate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan intraday sample: %w", err)
		}
		s.ID, _ = uuid.Parse(idStr)
		s.UserID, _ = uuid.Parse(userStr)
		s.RecordedAt = parseTime(recordedAt)
		s.CreatedAt = parseTime(createdAt)
		if calories.Valid {
			c := calories.Float64
			s.CaloriesTotal = &c
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

const activityColumns = `id, user_id, date, total_steps, total_distance, total_calories_out,
	total_activity_calories, calories_bmr, marginal_calories, resting_heart_rate,
	sedentary_minutes, lightly_active_minutes, fairly_active_minutes, very_active_minutes,
	out_of_range_minutes, fat_burn_minutes, cardio_minutes, peak_minutes,
	out_of_range_calories, fat_burn_calories, cardio_calories, peak_calories, created_at`

// CreateActivitySummary stores a daily activity summary. Repeated collection for a date appends a new row.
func (d *DB) CreateActivitySummary(ctx context.Context, a *models.ActivitySummary) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO activity_summaries (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID.String(), a.UserID.String(), a.Date,
		a.TotalSteps, a.TotalDistance, a.TotalCaloriesOut,
		a.TotalActivityCalories, a.CaloriesBMR, a.MarginalCalories, a.RestingHeartRate,
		a.SedentaryMinutes, a.LightlyActiveMinutes, a.FairlyActiveMinutes, a.VeryActiveMinutes,
		a.OutOfRangeMinutes, a.FatBurnMinutes, a.CardioMinutes, a.PeakMinutes,
		a.OutOfRangeCalories, a.FatBurnCalories, a.CardioCalories, a.PeakCalories,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create activity summary: %w", translateErr(err))
	}
	return nil
}

// FindActivitySummary returns the most recently collected summary for a user and date.
func (d *DB) FindActivitySummary(ctx context.Context, userID uuid.UUID, date string) (*models.ActivitySummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity_summaries
		WHERE user_id = ? AND date = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, userID.String(), date)
	if err != nil {
		return nil, fmt.Errorf("find activity summary: %w", err)
	}
	defer rows.Close()

	list, err := scanActivitySummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("activity summary %s: %w", date, ErrNotFound)
	}
	return list[0], nil
}

// ListActivitySummaries returns every summary for a user ordered by date.
func (d *DB) ListActivitySummaries(ctx context.Context, userID uuid.UUID) ([]*models.ActivitySummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity_summaries
		WHERE user_id = ? ORDER BY date, created_at
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list activity summaries: %w", err)
	}
	defer rows.Close()
	return scanActivitySummaries(rows)
}

func scanActivitySummaries(rows *sql.Rows) ([]*models.ActivitySummary, error) {
	var list []*models.ActivitySummary
	for rows.Next() {
		var a models.ActivitySummary
		var idStr, userStr, createdAt string
		err := rows.Scan(&idStr, &userStr, &a.Date,
			&a.TotalSteps, &a.TotalDistance, &a.TotalCaloriesOut,
			&a.TotalActivityCalories, &a.CaloriesBMR, &a.MarginalCalories, &a.RestingHeartRate,
			&a.SedentaryMinutes, &a.LightlyActiveMinutes, &a.FairlyActiveMinutes, &a.VeryActiveMinutes,
			&a.OutOfRangeMinutes, &a.FatBurnMinutes, &a.CardioMinutes, &a.PeakMinutes,
			&a.OutOfRangeCalories, &a.FatBurnCalories, &a.CardioCalories, &a.PeakCalories,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity summary: %w", err)
		}
		a.ID, _ = uuid.Parse(idStr)
		a.UserID, _ = uuid.Parse(userStr)
		a.CreatedAt = parseTime(createdAt)
		list = append(list, &a)
	}
	return list, rows.Err()
}

const sleepColumns = `id, user_id, date, log_id, start_time, end_time, total_sleep_minutes,
	deep_sleep_hours, light_sleep_hours, rem_sleep_hours, minutes_awake, awake_count,
	awake_duration, time_in_bed, minutes_asleep, efficiency, duration, quality, is_main_sleep, created_at`

// UpsertSleepRecord finds the user's record with the same start and end time or inserts r.
// created reports whether a new row was written; an existing row is left unchanged and
// its ID is copied onto r.
func (d *DB) UpsertSleepRecord(ctx context.Context, r *models.SleepRecord) (bool, error) {
	var existing string
	err := d.db.QueryRowContext(ctx,
		`SELECT id FROM sleep_records WHERE user_id = ? AND start_time = ? AND end_time = ?`,
		r.UserID.String(), formatTime(r.StartTime), formatTime(r.EndTime),
	).Scan(&existing)
	switch {
	case err == nil:
		r.ID, _ = uuid.Parse(existing)
		return false, nil
	case err != sql.ErrNoRows:
		return false, fmt.Errorf("find sleep record: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO sleep_records (`+sleepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID.String(), r.UserID.String(), r.Date, r.LogID,
		formatTime(r.StartTime), formatTime(r.EndTime), r.TotalSleepMinutes,
		r.DeepSleepHours, r.LightSleepHours, r.RemSleepHours, r.MinutesAwake, r.AwakeCount,
		r.AwakeDuration, r.TimeInBed, r.MinutesAsleep, r.Efficiency, r.Duration, r.Quality,
		r.IsMainSleep, formatTime(r.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("create sleep record: %w", translateErr(err))
	}
	return true, nil
}

// FindMainSleep returns the main sleep record dated date.
func (d *DB) FindMainSleep(ctx context.Context, userID uuid.UUID, date string) (*models.SleepRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+sleepColumns+` FROM sleep_records
		WHERE user_id = ? AND date = ? AND is_main_sleep = 1
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, userID.String(), date)
	if err != nil {
		return nil, fmt.Errorf("find main sleep: %w", err)
	}
	defer rows.Close()

	list, err := scanSleepRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("main sleep %s: %w", date, ErrNotFound)
	}
	return list[0], nil
}

// ListSleepRecords returns every sleep record for a user ordered by start time.
func (d *DB) ListSleepRecords(ctx context.Context, userID uuid.UUID) ([]*models.SleepRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+sleepColumns+` FROM sleep_records
		WHERE user_id = ? ORDER BY start_time
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list sleep records: %w", err)
	}
	defer rows.Close()
	return scanSleepRecords(rows)
}

func scanSleepRecords(rows *sql.Rows) ([]*models.SleepRecord, error) {
	var list []*models.SleepRecord
	for rows.Next() {
		var r models.SleepRecord
		var idStr, userStr, start, end, createdAt string
		err := rows.Scan(&idStr, &userStr, &r.Date, &r.LogID, &start, &end, &r.TotalSleepMinutes,
			&r.DeepSleepHours, &r.LightSleepHours, &r.RemSleepHours, &r.MinutesAwake, &r.AwakeCount,
			&r.AwakeDuration, &r.TimeInBed, &r.MinutesAsleep, &r.Efficiency, &r.Duration, &r.Quality,
			&r.IsMainSleep, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sleep record: %w", err)
		}
		r.ID, _ = uuid.Parse(idStr)
		r.UserID, _ = uuid.Parse(userStr)
		r.StartTime = parseTime(start)
		r.EndTime = parseTime(end)
		r.CreatedAt = parseTime(createdAt)
		list = append(list, &r)
	}
	return list, rows.Err()
}

const healthColumns = `id, user_id, date, daily_hrv, sleep_hrv, breathing_rate, skin_temperature,
	stress_score, hrv_contribution, rhr_contribution, sleep_contribution, created_at`

// CreateHealthMetrics stores one day of health metrics.
func (d *DB) CreateHealthMetrics(ctx context.Context, m *models.HealthMetrics) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO health_metrics (`+healthColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID.String(), m.UserID.String(), m.Date, m.DailyHRV, m.SleepHRV, m.BreathingRate,
		m.SkinTemperature, m.StressScore, m.HRVContribution, m.RHRContribution, m.SleepContribution,
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create health metrics: %w", translateErr(err))
	}
	return nil
}

// FindHealthMetrics returns the most recently collected health metrics for a user and date.
func (d *DB) FindHealthMetrics(ctx context.Context, userID uuid.UUID, date string) (*models.HealthMetrics, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+healthColumns+` FROM health_metrics
		WHERE user_id = ? AND date = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, userID.String(), date)
	if err != nil {
		return nil, fmt.Errorf("find health metrics: %w", err)
	}
	defer rows.Close()

	list, err := scanHealthMetrics(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("health metrics %s: %w", date, ErrNotFound)
	}
	return list[0], nil
}

// ListHealthMetrics returns every health metrics row for a user ordered by date.
func (d *DB) ListHealthMetrics(ctx context.Context, userID uuid.UUID) ([]*models.HealthMetrics, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+healthColumns+` FROM health_metrics
		WHERE user_id = ? ORDER BY date, created_at
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list health metrics: %w", err)
	}
	defer rows.Close()
	return scanHealthMetrics(rows)
}

func scanHealthMetrics(rows *sql.Rows) ([]*models.HealthMetrics, error) {
	var list []*models.HealthMetrics
	for rows.Next() {
		var m models.HealthMetrics
		var idStr, userStr, createdAt string
		err := rows.Scan(&idStr, &userStr, &m.Date, &m.DailyHRV, &m.SleepHRV, &m.BreathingRate,
			&m.SkinTemperature, &m.StressScore, &m.HRVContribution, &m.RHRContribution, &m.SleepContribution,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan health metrics: %w", err)
		}
		m.ID, _ = uuid.Parse(idStr)
		m.UserID, _ = uuid.Parse(userStr)
		m.CreatedAt = parseTime(createdAt)
		list = append(list, &m)
	}
	return list, rows.Err()
}
