// ABOUTME: Ingestion jobs that pull wearable data and persist raw metric records.
// ABOUTME: Intraday samples, sleep sessions, daily activity summaries, and recovery metrics.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/bloom/internal/aggregate"
	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/fitbit"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/score"
)

// IntradayWindow is how far back from the last device sync intraday series are read.
const IntradayWindow = 15 * time.Minute

func (r *Runner) collectIntraday(ctx context.Context, u *models.User) error {
	token, err := r.accessToken(u)
	if err != nil {
		return err
	}

	devices, err := r.api.Devices(ctx, token)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no paired devices", aggregate.ErrDataAbsent)
	}

	var lastSync time.Time
	for _, d := range devices {
		synced, err := fitbit.ParseLocalTime(d.LastSyncTime, r.loc)
		if err != nil {
			return fmt.Errorf("device %s last sync %q: %w: %w", d.ID, d.LastSyncTime, fitbit.ErrUpstream, err)
		}
		dev := models.NewDevice(u.ID, d.ID)
		dev.DeviceVersion = d.DeviceVersion
		dev.BatteryLevel = d.BatteryLevel
		dev.LastSyncTime = synced
		if err := r.store.UpsertDevice(ctx, dev); err != nil {
			return persist("save device", err)
		}
		if synced.After(lastSync) {
			lastSync = synced
		}
	}

	w, err := r.api.Intraday(ctx, token, lastSync.Add(-IntradayWindow), lastSync)
	if err != nil {
		return fmt.Errorf("fetch intraday: %w", err)
	}
	for res, series := range map[string][]fitbit.Point{
		fitbit.ResourceHeart:    w.Heart,
		fitbit.ResourceSteps:    w.Steps,
		fitbit.ResourceDistance: w.Distance,
		fitbit.ResourceCalories: w.Calories,
	} {
		if len(series) == 0 {
			return fmt.Errorf("%w: empty %s series ending %s", fitbit.ErrUpstream, res, lastSync.Format(time.RFC3339))
		}
	}

	smp := models.NewIntradaySample(u.ID, lastSync)
	smp.Steps = sum(w.Steps)
	smp.DistanceKm = sum(w.Distance)
	calories := sum(w.Calories)
	smp.CaloriesTotal = &calories
	smp.HeartRate = score.Round(sum(w.Heart) / float64(len(w.Heart)))
	if err := r.store.CreateIntradaySample(ctx, smp); err != nil {
		return persist("save intraday sample", err)
	}

	r.publish(ctx, events.TypeDetectAnomalies, events.Detail{
		FitbitUserID: u.FitbitID,
		Date:         lastSync.Format(time.RFC3339),
	})
	return nil
}

func sum(points []fitbit.Point) float64 {
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total
}

// collectSleep stores every session in the sleep log for day. The main sleep is dated the
// night before; naps keep day.
func (r *Runner) collectSleep(ctx context.Context, u *models.User, day time.Time) error {
	token, err := r.accessToken(u)
	if err != nil {
		return err
	}

	date := day.Format(models.DateLayout)
	logs, err := r.api.Sleep(ctx, token, date)
	if err != nil {
		return fmt.Errorf("fetch sleep: %w", err)
	}

	yesterday := day.AddDate(0, 0, -1).Format(models.DateLayout)
	for _, l := range logs {
		start, err := fitbit.ParseLocalTime(l.StartTime, r.loc)
		if err != nil {
			return fmt.Errorf("sleep %d start %q: %w: %w", l.LogID, l.StartTime, fitbit.ErrUpstream, err)
		}
		end, err := fitbit.ParseLocalTime(l.EndTime, r.loc)
		if err != nil {
			return fmt.Errorf("sleep %d end %q: %w: %w", l.LogID, l.EndTime, fitbit.ErrUpstream, err)
		}

		recDate := date
		if l.IsMainSleep {
			recDate = yesterday
		}
		rec := sleepRecord(u, recDate, start, end, l)

		created, err := r.store.UpsertSleepRecord(ctx, rec)
		if err != nil {
			return persist("save sleep record", err)
		}
		if created && rec.IsMainSleep {
			r.publish(ctx, events.TypeMainSleepDetected, events.Detail{
				FitbitUserID: u.FitbitID,
				Date:         date,
			})
		}
	}
	return nil
}

func sleepRecord(u *models.User, date string, start, end time.Time, l fitbit.SleepLog) *models.SleepRecord {
	rec := models.NewSleepRecord(u.ID, date, start, end)
	s := l.Levels.Summary
	rec.LogID = l.LogID
	rec.TotalSleepMinutes = l.MinutesAsleep
	rec.DeepSleepHours = s.Deep.Minutes / 60
	rec.LightSleepHours = s.Light.Minutes / 60
	rec.RemSleepHours = s.Rem.Minutes / 60
	rec.MinutesAwake = l.MinutesAwake
	rec.AwakeCount = s.Wake.Count
	rec.AwakeDuration = s.Wake.Minutes
	rec.TimeInBed = l.TimeInBed
	rec.MinutesAsleep = l.MinutesAsleep
	rec.Efficiency = l.Efficiency
	rec.Duration = l.Duration
	rec.IsMainSleep = l.IsMainSleep
	if l.Quality != nil {
		rec.Quality = *l.Quality
	}
	return rec
}

// collectActivity stores the activity summary for the day before day.
func (r *Runner) collectActivity(ctx context.Context, u *models.User, day time.Time) error {
	token, err := r.accessToken(u)
	if err != nil {
		return err
	}

	date := day.AddDate(0, 0, -1).Format(models.DateLayout)
	a, err := r.api.Activity(ctx, token, date)
	if err != nil {
		return fmt.Errorf("fetch activity: %w", err)
	}

	s := models.NewActivitySummary(u.ID, date)
	s.TotalSteps = a.Steps
	s.TotalDistance = a.TotalDistance()
	s.TotalCaloriesOut = a.CaloriesOut
	s.TotalActivityCalories = a.ActivityCalories
	s.CaloriesBMR = a.CaloriesBMR
	s.MarginalCalories = a.MarginalCalories
	s.RestingHeartRate = a.RestingHeartRate
	s.SedentaryMinutes = a.SedentaryMinutes
	s.LightlyActiveMinutes = a.LightlyActive
	s.FairlyActiveMinutes = a.FairlyActive
	s.VeryActiveMinutes = a.VeryActive
	s.OutOfRangeMinutes, s.OutOfRangeCalories = a.Zone(0).Minutes, a.Zone(0).CaloriesOut
	s.FatBurnMinutes, s.FatBurnCalories = a.Zone(1).Minutes, a.Zone(1).CaloriesOut
	s.CardioMinutes, s.CardioCalories = a.Zone(2).Minutes, a.Zone(2).CaloriesOut
	s.PeakMinutes, s.PeakCalories = a.Zone(3).Minutes, a.Zone(3).CaloriesOut

	return persist("save activity summary", r.store.CreateActivitySummary(ctx, s))
}

// collectHealthMetrics stores recovery metrics and the stress score for the day before day.
func (r *Runner) collectHealthMetrics(ctx context.Context, u *models.User, day time.Time) error {
	token, err := r.accessToken(u)
	if err != nil {
		return err
	}

	date := day.AddDate(0, 0, -1).Format(models.DateLayout)
	rec, err := r.api.Recovery(ctx, token, date)
	if err != nil {
		return fmt.Errorf("fetch health metrics: %w", err)
	}

	stress := score.Stress(rec.DailyHRV, rec.RestingHeartRate, rec.DeepSleepMinutes)

	m := models.NewHealthMetrics(u.ID, date)
	m.DailyHRV = rec.DailyHRV
	m.SleepHRV = rec.SleepHRV
	m.BreathingRate = rec.BreathingRate
	m.SkinTemperature = rec.SkinTemperature
	m.StressScore = stress.Stress
	m.HRVContribution = stress.HRVContribution
	m.RHRContribution = stress.RHRContribution
	m.SleepContribution = stress.SleepContribution

	return persist("save health metrics", r.store.CreateHealthMetrics(ctx, m))
}
