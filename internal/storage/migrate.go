// ABOUTME: Data migration between storage backends.
// ABOUTME: Copies users, devices, raw metrics, both average families and anomaly events.

package storage

import (
	"context"
	"fmt"

	"github.com/harperreed/bloom/internal/models"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Users           int
	Devices         int
	IntradaySamples int
	Activity        int
	Sleep           int
	HealthMetrics   int
	Averages        int
	History         int
	AnomalyEvents   int
}

// MigrateData copies all data from src to dst storage, user by user.
// The destination should be empty before calling this function.
func MigrateData(ctx context.Context, src, dst Store) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	users, err := src.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}

	for _, u := range users {
		if err := dst.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", u.ID, err)
		}
		summary.Users++

		if err := migrateUserData(ctx, src, dst, u, summary); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

//nolint:gocognit,gocyclo // one linear copy loop per entity type.
func migrateUserData(ctx context.Context, src, dst Store, u *models.User, summary *MigrateSummary) error {
	devices, err := src.ListDevices(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list devices for %s: %w", u.ID, err)
	}
	for _, d := range devices {
		if err := dst.UpsertDevice(ctx, d); err != nil {
			return fmt.Errorf("create device %s: %w", d.DeviceID, err)
		}
		summary.Devices++
	}

	samples, err := src.ListIntradaySamples(ctx, IntradayQuery{UserID: u.ID})
	if err != nil {
		return fmt.Errorf("list intraday samples for %s: %w", u.ID, err)
	}
	for i := range samples {
		if err := dst.CreateIntradaySample(ctx, &samples[i]); err != nil {
			return fmt.Errorf("create intraday sample %s: %w", samples[i].ID, err)
		}
		summary.IntradaySamples++
	}

	activity, err := src.ListActivitySummaries(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list activity summaries for %s: %w", u.ID, err)
	}
	for _, a := range activity {
		if err := dst.CreateActivitySummary(ctx, a); err != nil {
			return fmt.Errorf("create activity summary %s: %w", a.ID, err)
		}
		summary.Activity++
	}

	sleep, err := src.ListSleepRecords(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list sleep records for %s: %w", u.ID, err)
	}
	for _, r := range sleep {
		if _, err := dst.UpsertSleepRecord(ctx, r); err != nil {
			return fmt.Errorf("create sleep record %s: %w", r.ID, err)
		}
		summary.Sleep++
	}

	health, err := src.ListHealthMetrics(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list health metrics for %s: %w", u.ID, err)
	}
	for _, m := range health {
		if err := dst.CreateHealthMetrics(ctx, m); err != nil {
			return fmt.Errorf("create health metrics %s: %w", m.ID, err)
		}
		summary.HealthMetrics++
	}

	for _, family := range []models.Family{models.FamilyShortTerm, models.FamilyLongTerm} {
		rows, err := src.ListPeriodAverages(ctx, AverageQuery{Family: family, UserID: u.ID})
		if err != nil {
			return fmt.Errorf("list %s averages for %s: %w", family, u.ID, err)
		}
		if len(rows) == 0 {
			continue
		}
		if err := dst.SavePeriodAverages(ctx, family, rows); err != nil {
			return fmt.Errorf("save %s averages for %s: %w", family, u.ID, err)
		}
		if family == models.FamilyShortTerm {
			summary.Averages += len(rows)
		} else {
			summary.History += len(rows)
		}
	}

	uid := u.ID
	events, err := src.ListAnomalyEvents(ctx, AnomalyQuery{UserID: &uid})
	if err != nil {
		return fmt.Errorf("list anomaly events for %s: %w", u.ID, err)
	}
	for _, e := range events {
		if err := dst.CreateAnomalyEvent(ctx, e); err != nil {
			return fmt.Errorf("create anomaly event %s: %w", e.ID, err)
		}
		summary.AnomalyEvents++
	}

	return nil
}
