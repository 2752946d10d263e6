// ABOUTME: Aggregation jobs that fold daily and monthly points into rolling period averages.
// ABOUTME: Each job writes all of its rows for a user in one transaction.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/bloom/internal/aggregate"
	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

// shortTermAverages computes yesterday's daily point and the 1D, 7D and 30D rows recorded on day.
func (r *Runner) shortTermAverages(ctx context.Context, u *models.User, day time.Time) error {
	today := day.Format(models.DateLayout)
	yesterday := day.AddDate(0, 0, -1).Format(models.DateLayout)

	activity, err := findOptional(r.store.FindActivitySummary(ctx, u.ID, yesterday))
	if err != nil {
		return fmt.Errorf("load activity summary: %w", err)
	}
	sleep, err := findOptional(r.store.FindMainSleep(ctx, u.ID, yesterday))
	if err != nil {
		return fmt.Errorf("load main sleep: %w", err)
	}
	health, err := findOptional(r.store.FindHealthMetrics(ctx, u.ID, yesterday))
	if err != nil {
		return fmt.Errorf("load health metrics: %w", err)
	}

	daily, err := aggregate.Daily(activity, sleep, health)
	if err != nil {
		return fmt.Errorf("daily point for %s: %w", yesterday, err)
	}

	rows, err := r.windowRows(ctx, models.FamilyShortTerm, models.Period1D, u, today, aggregate.ShortTermWindows(day), daily)
	if err != nil {
		return err
	}
	if err := r.store.SavePeriodAverages(ctx, models.FamilyShortTerm, rows); err != nil {
		return persist("save short-term averages", err)
	}

	r.publish(ctx, events.TypeReportDataReady, events.Detail{FitbitUserID: u.FitbitID, Date: today})
	return nil
}

// longTermAverages folds the short-term 30D row recorded on the first of day's month into
// the monthly history.
func (r *Runner) longTermAverages(ctx context.Context, u *models.User, day time.Time) error {
	month := aggregate.MonthStart(day)
	monthStr := month.Format(models.DateLayout)

	current, err := r.store.FindPeriodAverage(ctx, models.FamilyShortTerm, u.ID, monthStr, models.Period30D)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: 30D average for %s", aggregate.ErrDataAbsent, monthStr)
	}
	if err != nil {
		return fmt.Errorf("load 30D average: %w", err)
	}

	rows, err := r.windowRows(ctx, models.FamilyLongTerm, models.Period30D, u, monthStr, aggregate.LongTermWindows(month), current.Averages)
	if err != nil {
		return err
	}
	return persist("save long-term averages", r.store.SavePeriodAverages(ctx, models.FamilyLongTerm, rows))
}

// windowRows builds one row per window. Priors are prior rows of priorPeriod in family.
func (r *Runner) windowRows(ctx context.Context, family models.Family, priorPeriod models.PeriodType, u *models.User, recordedAt string, windows []aggregate.Window, next models.Averages) ([]*models.PeriodAverage, error) {
	rows := make([]*models.PeriodAverage, 0, len(windows))
	for _, w := range windows {
		avg := next
		if w.HasPriors {
			priors, err := r.store.ListPeriodAverages(ctx, storage.AverageQuery{
				Family:     family,
				UserID:     u.ID,
				PeriodType: priorPeriod,
				From:       w.From,
				To:         w.To,
			})
			if err != nil {
				return nil, fmt.Errorf("load %s priors: %w", w.Period, err)
			}
			values := make([]models.Averages, len(priors))
			for i, p := range priors {
				values[i] = p.Averages
			}
			avg = aggregate.Ranged(values, next)
		}
		rows = append(rows, models.NewPeriodAverage(u.ID, recordedAt, w.Period, avg))
	}
	return rows, nil
}
