// ABOUTME: Postgres Store implementation on GORM.
// ABOUTME: Shares table names and keys with the SQLite backend; schema is created with plain DDL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/bloom/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgresStore is the Postgres Store implementation.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

// averageRow maps models.PeriodAverage onto the avg_-prefixed columns.
type averageRow struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	RecordedAt string
	PeriodType string
	Averages   models.Averages `gorm:"embedded;embeddedPrefix:avg_"`
	CreatedAt  time.Time
}

func (r *averageRow) toModel() *models.PeriodAverage {
	return &models.PeriodAverage{
		ID:         r.ID,
		UserID:     r.UserID,
		RecordedAt: r.RecordedAt,
		PeriodType: models.PeriodType(r.PeriodType),
		Averages:   r.Averages,
		CreatedAt:  r.CreatedAt,
	}
}

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	slog.Debug("connecting to postgres")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		fitbit_id TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		access_token TEXT NOT NULL DEFAULT '',
		access_token_expires TIMESTAMPTZ,
		refresh_token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS devices (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		device_id TEXT NOT NULL,
		device_version TEXT NOT NULL DEFAULT '',
		battery_level INTEGER NOT NULL DEFAULT 0,
		last_sync_time TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, device_id)
	);
	CREATE TABLE IF NOT EXISTS intraday_samples (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recorded_at TIMESTAMPTZ NOT NULL,
		steps DOUBLE PRECISION NOT NULL DEFAULT 0,
		distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		calories_total DOUBLE PRECISION,
		heart_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS activity_summaries (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		total_steps DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_calories_out DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_activity_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		calories_bmr DOUBLE PRECISION NOT NULL DEFAULT 0,
		marginal_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		resting_heart_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		sedentary_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		lightly_active_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		fairly_active_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		very_active_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		out_of_range_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat_burn_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		cardio_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		peak_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		out_of_range_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat_burn_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		cardio_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		peak_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS sleep_records (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		log_id BIGINT NOT NULL DEFAULT 0,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		total_sleep_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		deep_sleep_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		light_sleep_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		rem_sleep_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		minutes_awake DOUBLE PRECISION NOT NULL DEFAULT 0,
		awake_count INTEGER NOT NULL DEFAULT 0,
		awake_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
		time_in_bed DOUBLE PRECISION NOT NULL DEFAULT 0,
		minutes_asleep DOUBLE PRECISION NOT NULL DEFAULT 0,
		efficiency DOUBLE PRECISION NOT NULL DEFAULT 0,
		duration BIGINT NOT NULL DEFAULT 0,
		quality DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_main_sleep BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, start_time, end_time)
	);
	CREATE TABLE IF NOT EXISTS health_metrics (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		daily_hrv DOUBLE PRECISION NOT NULL DEFAULT 0,
		sleep_hrv DOUBLE PRECISION NOT NULL DEFAULT 0,
		breathing_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		skin_temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
		stress_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		hrv_contribution DOUBLE PRECISION NOT NULL DEFAULT 0,
		rhr_contribution DOUBLE PRECISION NOT NULL DEFAULT 0,
		sleep_contribution DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS anomaly_events (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		analysis_type TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		triggered_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_intraday_user_recorded ON intraday_samples(user_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_activity_user_date ON activity_summaries(user_id, date, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_health_user_date ON health_metrics(user_id, date, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_anomaly_user_triggered ON anomaly_events(user_id, triggered_at DESC);
	`
	for _, table := range []string{averageTables[models.FamilyShortTerm], averageTables[models.FamilyLongTerm]} {
		var cols strings.Builder
		for _, c := range models.AverageColumns {
			fmt.Fprintf(&cols, "\t\t%s DOUBLE PRECISION NOT NULL DEFAULT 0,\n", c)
		}
		schema += fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recorded_at TEXT NOT NULL,
		period_type TEXT NOT NULL,
%[2]s		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, recorded_at, period_type)
	);
	`, table, cols.String())
	}

	return s.db.Exec(schema).Error
}

// translateGormErr maps GORM errors onto the package sentinels.
func translateGormErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) table(ctx context.Context, name string) *gorm.DB {
	return s.db.WithContext(ctx).Table(name)
}

// CreateUser stores a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.table(ctx, "users").Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", translateGormErr(err))
	}
	return nil
}

// GetUser retrieves a user by ID or unique ID prefix.
func (s *PostgresStore) GetUser(ctx context.Context, idOrPrefix string) (*models.User, error) {
	var users []*models.User
	err := s.table(ctx, "users").Where("id::text LIKE ?", idOrPrefix+"%").Limit(2).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	switch len(users) {
	case 0:
		return nil, fmt.Errorf("user %s: %w", idOrPrefix, ErrNotFound)
	case 1:
		return users[0], nil
	}
	return nil, fmt.Errorf("ambiguous prefix %s: matches multiple records", idOrPrefix)
}

// GetUserByFitbitID retrieves a user by upstream encoded id.
func (s *PostgresStore) GetUserByFitbitID(ctx context.Context, fitbitID string) (*models.User, error) {
	var u models.User
	if err := s.table(ctx, "users").Where("fitbit_id = ?", fitbitID).Take(&u).Error; err != nil {
		return nil, fmt.Errorf("user %s: %w", fitbitID, translateGormErr(err))
	}
	return &u, nil
}

// ListUsers returns every user ordered by creation time.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.table(ctx, "users").Order("created_at, fitbit_id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListEligibleUsers returns active seniors with a refresh token.
func (s *PostgresStore) ListEligibleUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.table(ctx, "users").
		Where("role = ? AND status = ? AND refresh_token <> ''", models.RoleSenior, models.StatusActive).
		Order("created_at, fitbit_id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUserTokens replaces the stored OAuth tokens for a user.
func (s *PostgresStore) UpdateUserTokens(ctx context.Context, u *models.User) error {
	res := s.table(ctx, "users").Where("id = ?", u.ID).Updates(map[string]any{
		"access_token":         u.AccessToken,
		"access_token_expires": u.AccessTokenExpires,
		"refresh_token":        u.RefreshToken,
	})
	if res.Error != nil {
		return fmt.Errorf("update user tokens: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update user tokens %s: %w", u.ID, ErrNotFound)
	}
	return nil
}

// UpsertDevice inserts the device or updates version, battery and sync time for an existing (user, device id).
func (s *PostgresStore) UpsertDevice(ctx context.Context, d *models.Device) error {
	err := s.table(ctx, "devices").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_version", "battery_level", "last_sync_time"}),
	}).Create(d).Error
	if err != nil {
		return fmt.Errorf("upsert device: %w", translateGormErr(err))
	}
	return nil
}

// ListDevices returns a user's devices, most recently synced first.
func (s *PostgresStore) ListDevices(ctx context.Context, userID uuid.UUID) ([]*models.Device, error) {
	var devices []*models.Device
	err := s.table(ctx, "devices").Where("user_id = ?", userID).Order("last_sync_time DESC").Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// CreateIntradaySample stores a new intraday sample.
func (s *PostgresStore) CreateIntradaySample(ctx context.Context, smp *models.IntradaySample) error {
	if err := s.table(ctx, "intraday_samples").Create(smp).Error; err != nil {
		return fmt.Errorf("create intraday sample: %w", translateGormErr(err))
	}
	return nil
}

// ListIntradaySamples returns samples in the query range ordered by RecordedAt ascending.
func (s *PostgresStore) ListIntradaySamples(ctx context.Context, q IntradayQuery) ([]models.IntradaySample, error) {
	tx := s.table(ctx, "intraday_samples").Where("user_id = ?", q.UserID)
	if !q.From.IsZero() {
		tx = tx.Where("recorded_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("recorded_at <= ?", q.To)
	}
	var samples []models.IntradaySample
	if err := tx.Order("recorded_at ASC").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("list intraday samples: %w", err)
	}
	return samples, nil
}

// CreateActivitySummary stores a daily activity summary.
func (s *PostgresStore) CreateActivitySummary(ctx context.Context, a *models.ActivitySummary) error {
	if err := s.table(ctx, "activity_summaries").Create(a).Error; err != nil {
		return fmt.Errorf("create activity summary: %w", translateGormErr(err))
	}
	return nil
}

// FindActivitySummary returns the most recently collected summary for a user and date.
func (s *PostgresStore) FindActivitySummary(ctx context.Context, userID uuid.UUID, date string) (*models.ActivitySummary, error) {
	var a models.ActivitySummary
	err := s.table(ctx, "activity_summaries").
		Where("user_id = ? AND date = ?", userID, date).
		Order("created_at DESC").
		Take(&a).Error
	if err != nil {
		return nil, fmt.Errorf("activity summary %s: %w", date, translateGormErr(err))
	}
	return &a, nil
}

// ListActivitySummaries returns every summary for a user ordered by date.
func (s *PostgresStore) ListActivitySummaries(ctx context.Context, userID uuid.UUID) ([]*models.ActivitySummary, error) {
	var list []*models.ActivitySummary
	if err := s.table(ctx, "activity_summaries").Where("user_id = ?", userID).Order("date, created_at").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list activity summaries: %w", err)
	}
	return list, nil
}

// UpsertSleepRecord finds the user's record with the same start and end time or inserts r.
func (s *PostgresStore) UpsertSleepRecord(ctx context.Context, r *models.SleepRecord) (bool, error) {
	var existing models.SleepRecord
	err := s.table(ctx, "sleep_records").
		Where("user_id = ? AND start_time = ? AND end_time = ?", r.UserID, r.StartTime, r.EndTime).
		Take(&existing).Error
	switch {
	case err == nil:
		r.ID = existing.ID
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("find sleep record: %w", err)
	}

	if err := s.table(ctx, "sleep_records").Create(r).Error; err != nil {
		return false, fmt.Errorf("create sleep record: %w", translateGormErr(err))
	}
	return true, nil
}

// FindMainSleep returns the main sleep record dated date.
func (s *PostgresStore) FindMainSleep(ctx context.Context, userID uuid.UUID, date string) (*models.SleepRecord, error) {
	var r models.SleepRecord
	err := s.table(ctx, "sleep_records").
		Where("user_id = ? AND date = ? AND is_main_sleep", userID, date).
		Order("created_at DESC").
		Take(&r).Error
	if err != nil {
		return nil, fmt.Errorf("main sleep %s: %w", date, translateGormErr(err))
	}
	return &r, nil
}

// ListSleepRecords returns every sleep record for a user ordered by start time.
func (s *PostgresStore) ListSleepRecords(ctx context.Context, userID uuid.UUID) ([]*models.SleepRecord, error) {
	var list []*models.SleepRecord
	if err := s.table(ctx, "sleep_records").Where("user_id = ?", userID).Order("start_time").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list sleep records: %w", err)
	}
	return list, nil
}

// CreateHealthMetrics stores one day of health metrics.
func (s *PostgresStore) CreateHealthMetrics(ctx context.Context, m *models.HealthMetrics) error {
	if err := s.table(ctx, "health_metrics").Create(m).Error; err != nil {
		return fmt.Errorf("create health metrics: %w", translateGormErr(err))
	}
	return nil
}

// FindHealthMetrics returns the most recently collected health metrics for a user and date.
func (s *PostgresStore) FindHealthMetrics(ctx context.Context, userID uuid.UUID, date string) (*models.HealthMetrics, error) {
	var m models.HealthMetrics
	err := s.table(ctx, "health_metrics").
		Where("user_id = ? AND date = ?", userID, date).
		Order("created_at DESC").
		Take(&m).Error
	if err != nil {
		return nil, fmt.Errorf("health metrics %s: %w", date, translateGormErr(err))
	}
	return &m, nil
}

// ListHealthMetrics returns every health metrics row for a user ordered by date.
func (s *PostgresStore) ListHealthMetrics(ctx context.Context, userID uuid.UUID) ([]*models.HealthMetrics, error) {
	var list []*models.HealthMetrics
	if err := s.table(ctx, "health_metrics").Where("user_id = ?", userID).Order("date, created_at").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list health metrics: %w", err)
	}
	return list, nil
}

// FindPeriodAverage returns one row of family for a user, date and period.
func (s *PostgresStore) FindPeriodAverage(ctx context.Context, family models.Family, userID uuid.UUID, recordedAt string, period models.PeriodType) (*models.PeriodAverage, error) {
	table, err := averageTable(family)
	if err != nil {
		return nil, err
	}
	var row averageRow
	err = s.table(ctx, table).
		Where("user_id = ? AND recorded_at = ? AND period_type = ?", userID, recordedAt, string(period)).
		Take(&row).Error
	if err != nil {
		return nil, fmt.Errorf("%s average %s %s: %w", family, period, recordedAt, translateGormErr(err))
	}
	return row.toModel(), nil
}

// ListPeriodAverages returns rows matching q, newest recorded_at first.
func (s *PostgresStore) ListPeriodAverages(ctx context.Context, q AverageQuery) ([]*models.PeriodAverage, error) {
	table, err := averageTable(q.Family)
	if err != nil {
		return nil, err
	}
	tx := s.table(ctx, table).Where("user_id = ?", q.UserID)
	if q.PeriodType != "" {
		tx = tx.Where("period_type = ?", string(q.PeriodType))
	}
	if q.From != "" {
		tx = tx.Where("recorded_at >= ?", q.From)
	}
	if q.To != "" {
		tx = tx.Where("recorded_at <= ?", q.To)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []averageRow
	if err := tx.Order("recorded_at DESC, period_type").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list period averages: %w", err)
	}
	list := make([]*models.PeriodAverage, 0, len(rows))
	for i := range rows {
		list = append(list, rows[i].toModel())
	}
	return list, nil
}

// SavePeriodAverages inserts rows into family's table in one transaction.
func (s *PostgresStore) SavePeriodAverages(ctx context.Context, family models.Family, rows []*models.PeriodAverage) error {
	table, err := averageTable(family)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range rows {
			row := averageRow{
				ID:         p.ID,
				UserID:     p.UserID,
				RecordedAt: p.RecordedAt,
				PeriodType: string(p.PeriodType),
				Averages:   p.Averages,
				CreatedAt:  p.CreatedAt,
			}
			if err := tx.Table(table).Create(&row).Error; err != nil {
				return fmt.Errorf("save %s average %s: %w", family, p.PeriodType, translateGormErr(err))
			}
		}
		return nil
	})
}

// CreateAnomalyEvent stores a triggered anomaly.
func (s *PostgresStore) CreateAnomalyEvent(ctx context.Context, e *models.AnomalyEvent) error {
	if err := s.table(ctx, "anomaly_events").Create(e).Error; err != nil {
		return fmt.Errorf("create anomaly event: %w", translateGormErr(err))
	}
	return nil
}

// ListAnomalyEvents returns events newest first.
func (s *PostgresStore) ListAnomalyEvents(ctx context.Context, q AnomalyQuery) ([]*models.AnomalyEvent, error) {
	tx := s.table(ctx, "anomaly_events")
	if q.UserID != nil {
		tx = tx.Where("user_id = ?", *q.UserID)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var list []*models.AnomalyEvent
	if err := tx.Order("triggered_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list anomaly events: %w", err)
	}
	return list, nil
}
