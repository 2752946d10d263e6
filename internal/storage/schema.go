// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines users, devices, raw metric tables, both average families and anomaly events.
package storage

import (
	"fmt"
	"strings"

	"github.com/harperreed/bloom/internal/models"
)

// averageTableDDL builds the CREATE TABLE statement shared by both average families.
func averageTableDDL(table string) string {
	var cols strings.Builder
	for _, c := range models.AverageColumns {
		fmt.Fprintf(&cols, "\t\t%s REAL NOT NULL DEFAULT 0,\n", c)
	}
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		period_type TEXT NOT NULL,
%[2]s		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, recorded_at, period_type),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_user_period ON %[1]s(user_id, period_type, recorded_at);
	`, table, cols.String())
}

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		fitbit_id TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		access_token TEXT NOT NULL DEFAULT '',
		access_token_expires DATETIME,
		refresh_token TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		device_id TEXT NOT NULL,
		device_version TEXT NOT NULL DEFAULT '',
		battery_level INTEGER NOT NULL DEFAULT 0,
		last_sync_time DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, device_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS intraday_samples (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		steps REAL NOT NULL DEFAULT 0,
		distance_km REAL NOT NULL DEFAULT 0,
		calories_total REAL,
		heart_rate REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS activity_summaries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		total_steps REAL NOT NULL DEFAULT 0,
		total_distance REAL NOT NULL DEFAULT 0,
		total_calories_out REAL NOT NULL DEFAULT 0,
		total_activity_calories REAL NOT NULL DEFAULT 0,
		calories_bmr REAL NOT NULL DEFAULT 0,
		marginal_calories REAL NOT NULL DEFAULT 0,
		resting_heart_rate REAL NOT NULL DEFAULT 0,
		sedentary_minutes REAL NOT NULL DEFAULT 0,
		lightly_active_minutes REAL NOT NULL DEFAULT 0,
		fairly_active_minutes REAL NOT NULL DEFAULT 0,
		very_active_minutes REAL NOT NULL DEFAULT 0,
		out_of_range_minutes REAL NOT NULL DEFAULT 0,
		fat_burn_minutes REAL NOT NULL DEFAULT 0,
		cardio_minutes REAL NOT NULL DEFAULT 0,
		peak_minutes REAL NOT NULL DEFAULT 0,
		out_of_range_calories REAL NOT NULL DEFAULT 0,
		fat_burn_calories REAL NOT NULL DEFAULT 0,
		cardio_calories REAL NOT NULL DEFAULT 0,
		peak_calories REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sleep_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		log_id INTEGER NOT NULL DEFAULT 0,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		total_sleep_minutes REAL NOT NULL DEFAULT 0,
		deep_sleep_hours REAL NOT NULL DEFAULT 0,
		light_sleep_hours REAL NOT NULL DEFAULT 0,
		rem_sleep_hours REAL NOT NULL DEFAULT 0,
		minutes_awake REAL NOT NULL DEFAULT 0,
		awake_count INTEGER NOT NULL DEFAULT 0,
		awake_duration REAL NOT NULL DEFAULT 0,
		time_in_bed REAL NOT NULL DEFAULT 0,
		minutes_asleep REAL NOT NULL DEFAULT 0,
		efficiency REAL NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		quality REAL NOT NULL DEFAULT 0,
		is_main_sleep INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, start_time, end_time),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS health_metrics (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		daily_hrv REAL NOT NULL DEFAULT 0,
		sleep_hrv REAL NOT NULL DEFAULT 0,
		breathing_rate REAL NOT NULL DEFAULT 0,
		skin_temperature REAL NOT NULL DEFAULT 0,
		stress_score REAL NOT NULL DEFAULT 0,
		hrv_contribution REAL NOT NULL DEFAULT 0,
		rhr_contribution REAL NOT NULL DEFAULT 0,
		sleep_contribution REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS anomaly_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		analysis_type TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		triggered_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_intraday_user_recorded ON intraday_samples(user_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_activity_user_date ON activity_summaries(user_id, date, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sleep_user_date ON sleep_records(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_health_user_date ON health_metrics(user_id, date, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_anomaly_user_triggered ON anomaly_events(user_id, triggered_at DESC);
	`

	schema += averageTableDDL(averageTables[models.FamilyShortTerm])
	schema += averageTableDDL(averageTables[models.FamilyLongTerm])

	_, err := d.db.Exec(schema)
	return err
}
