// ABOUTME: Store interface for wearable metric persistence.
// ABOUTME: Defines the contract shared by the SQLite and Postgres backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/bloom/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique key.
	ErrConflict = errors.New("unique constraint conflict")
)

// IntradayQuery selects intraday samples for a user in [From, To].
// A zero bound is open.
type IntradayQuery struct {
	UserID uuid.UUID
	From   time.Time
	To     time.Time
}

// AverageQuery selects period averages from one family.
// Empty PeriodType, From or To do not filter; Limit 0 returns all rows.
type AverageQuery struct {
	Family     models.Family
	UserID     uuid.UUID
	PeriodType models.PeriodType
	From       string
	To         string
	Limit      int
}

// AnomalyQuery selects anomaly events, newest first. A nil UserID matches every user.
type AnomalyQuery struct {
	UserID *uuid.UUID
	Limit  int
}

// Store defines persistence for users, raw metrics, averages and anomaly events.
// Implementations must be safe for concurrent use by the per-user job fan-out.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, idOrPrefix string) (*models.User, error)
	GetUserByFitbitID(ctx context.Context, fitbitID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListEligibleUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserTokens(ctx context.Context, u *models.User) error

	// Devices
	UpsertDevice(ctx context.Context, d *models.Device) error
	ListDevices(ctx context.Context, userID uuid.UUID) ([]*models.Device, error)

	// Raw metrics
	CreateIntradaySample(ctx context.Context, s *models.IntradaySample) error
	ListIntradaySamples(ctx context.Context, q IntradayQuery) ([]models.IntradaySample, error)
	CreateActivitySummary(ctx context.Context, a *models.ActivitySummary) error
	FindActivitySummary(ctx context.Context, userID uuid.UUID, date string) (*models.ActivitySummary, error)
	ListActivitySummaries(ctx context.Context, userID uuid.UUID) ([]*models.ActivitySummary, error)
	UpsertSleepRecord(ctx context.Context, r *models.SleepRecord) (created bool, err error)
	FindMainSleep(ctx context.Context, userID uuid.UUID, date string) (*models.SleepRecord, error)
	ListSleepRecords(ctx context.Context, userID uuid.UUID) ([]*models.SleepRecord, error)
	CreateHealthMetrics(ctx context.Context, m *models.HealthMetrics) error
	FindHealthMetrics(ctx context.Context, userID uuid.UUID, date string) (*models.HealthMetrics, error)
	ListHealthMetrics(ctx context.Context, userID uuid.UUID) ([]*models.HealthMetrics, error)

	// Averages. SavePeriodAverages writes every row or none.
	FindPeriodAverage(ctx context.Context, family models.Family, userID uuid.UUID, recordedAt string, period models.PeriodType) (*models.PeriodAverage, error)
	ListPeriodAverages(ctx context.Context, q AverageQuery) ([]*models.PeriodAverage, error)
	SavePeriodAverages(ctx context.Context, family models.Family, rows []*models.PeriodAverage) error

	// Anomalies
	CreateAnomalyEvent(ctx context.Context, e *models.AnomalyEvent) error
	ListAnomalyEvents(ctx context.Context, q AnomalyQuery) ([]*models.AnomalyEvent, error)

	// Lifecycle
	Close() error
}

// averageTables maps a family to its table.
var averageTables = map[models.Family]string{
	models.FamilyShortTerm: "period_averages",
	models.FamilyLongTerm:  "period_average_history",
}

func averageTable(f models.Family) (string, error) {
	t, ok := averageTables[f]
	if !ok {
		return "", errors.New("unknown average family: " + string(f))
	}
	return t, nil
}
