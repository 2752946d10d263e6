// ABOUTME: Typed Fitbit Web API endpoints used by the collection jobs.
// ABOUTME: Devices, intraday series, sleep logs, daily activity, and recovery metrics.
package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fitbit reports local timestamps without an offset.
const localTimeLayout = "2006-01-02T15:04:05.000"

// ParseLocalTime parses an API timestamp in loc.
func ParseLocalTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(localTimeLayout, s, loc)
	if err != nil {
		// Some endpoints omit milliseconds.
		return time.ParseInLocation("2006-01-02T15:04:05", s, loc)
	}
	return t, nil
}

// Device is a paired tracker.
type Device struct {
	ID            string `json:"id"`
	DeviceVersion string `json:"deviceVersion"`
	BatteryLevel  int    `json:"batteryLevel"`
	LastSyncTime  string `json:"lastSyncTime"`
	Type          string `json:"type"`
}

// Devices lists the user's paired devices.
func (c *Client) Devices(ctx context.Context, token string) ([]Device, error) {
	var out []Device
	if err := c.get(ctx, token, "devices", "/1/user/-/devices.json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Point is one intraday dataset entry.
type Point struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Intraday resources.
const (
	ResourceHeart    = "heart"
	ResourceSteps    = "steps"
	ResourceDistance = "distance"
	ResourceCalories = "calories"
)

// IntradaySeries fetches a one-minute series for resource on the date of from, between the
// clock times of from and to.
func (c *Client) IntradaySeries(ctx context.Context, token, resource string, from, to time.Time) ([]Point, error) {
	path := fmt.Sprintf("/1/user/-/activities/%s/date/%s/1d/1min/time/%s/%s.json",
		resource, to.Format("2006-01-02"), from.Format("15:04"), to.Format("15:04"))

	var raw map[string]json.RawMessage
	if err := c.get(ctx, token, "intraday_"+resource, path, &raw); err != nil {
		return nil, err
	}

	var series struct {
		Dataset []Point `json:"dataset"`
	}
	key := "activities-" + resource + "-intraday"
	if body, ok := raw[key]; ok {
		if err := json.Unmarshal(body, &series); err != nil {
			return nil, fmt.Errorf("decode %s: %w: %w", key, ErrUpstream, err)
		}
	}
	return series.Dataset, nil
}

// IntradayWindow holds the four one-minute series for one collection window.
type IntradayWindow struct {
	Heart    []Point
	Steps    []Point
	Distance []Point
	Calories []Point
}

// Intraday fetches heart, steps, distance and calories for [from, to] concurrently.
// A window that crosses midnight is clipped to start at midnight of to's date.
func (c *Client) Intraday(ctx context.Context, token string, from, to time.Time) (*IntradayWindow, error) {
	if from.YearDay() != to.YearDay() || from.Year() != to.Year() {
		y, m, d := to.Date()
		from = time.Date(y, m, d, 0, 0, 0, 0, to.Location())
	}

	w := &IntradayWindow{}
	g, gctx := errgroup.WithContext(ctx)
	for resource, dst := range map[string]*[]Point{
		ResourceHeart:    &w.Heart,
		ResourceSteps:    &w.Steps,
		ResourceDistance: &w.Distance,
		ResourceCalories: &w.Calories,
	} {
		g.Go(func() error {
			points, err := c.IntradaySeries(gctx, token, resource, from, to)
			if err != nil {
				return err
			}
			*dst = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return w, nil
}

// StageSummary is one sleep stage's totals.
type StageSummary struct {
	Count   int     `json:"count"`
	Minutes float64 `json:"minutes"`
}

// SleepLog is one sleep session.
type SleepLog struct {
	LogID       int64   `json:"logId"`
	DateOfSleep string  `json:"dateOfSleep"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	Duration    int64   `json:"duration"`
	Efficiency  float64 `json:"efficiency"`
	IsMainSleep bool    `json:"isMainSleep"`
	// Quality is absent from current API versions.
	Quality       *float64 `json:"quality"`
	MinutesAsleep float64  `json:"minutesAsleep"`
	MinutesAwake  float64  `json:"minutesAwake"`
	TimeInBed     float64  `json:"timeInBed"`
	Levels        struct {
		Summary struct {
			Deep  StageSummary `json:"deep"`
			Light StageSummary `json:"light"`
			Rem   StageSummary `json:"rem"`
			Wake  StageSummary `json:"wake"`
		} `json:"summary"`
	} `json:"levels"`
}

// Sleep returns the sleep logs ending on date.
func (c *Client) Sleep(ctx context.Context, token string, date string) ([]SleepLog, error) {
	var out struct {
		Sleep []SleepLog `json:"sleep"`
	}
	if err := c.get(ctx, token, "sleep", "/1.2/user/-/sleep/date/"+date+".json", &out); err != nil {
		return nil, err
	}
	return out.Sleep, nil
}

// HeartRateZone is time and energy spent in one heart-rate zone.
type HeartRateZone struct {
	Name        string  `json:"name"`
	Minutes     float64 `json:"minutes"`
	CaloriesOut float64 `json:"caloriesOut"`
}

// ActivitySummary is the daily activity summary.
type ActivitySummary struct {
	Steps            float64 `json:"steps"`
	CaloriesOut      float64 `json:"caloriesOut"`
	ActivityCalories float64 `json:"activityCalories"`
	CaloriesBMR      float64 `json:"caloriesBMR"`
	MarginalCalories float64 `json:"marginalCalories"`
	RestingHeartRate float64 `json:"restingHeartRate"`
	SedentaryMinutes float64 `json:"sedentaryMinutes"`
	LightlyActive    float64 `json:"lightlyActiveMinutes"`
	FairlyActive     float64 `json:"fairlyActiveMinutes"`
	VeryActive       float64 `json:"veryActiveMinutes"`
	Distances        []struct {
		Activity string  `json:"activity"`
		Distance float64 `json:"distance"`
	} `json:"distances"`
	HeartRateZones []HeartRateZone `json:"heartRateZones"`
}

// TotalDistance returns the "total" distance entry, or the first entry when none is labelled.
func (a *ActivitySummary) TotalDistance() float64 {
	for _, d := range a.Distances {
		if d.Activity == "total" {
			return d.Distance
		}
	}
	if len(a.Distances) > 0 {
		return a.Distances[0].Distance
	}
	return 0
}

// Zone returns heart-rate zone i, or a zero zone when absent.
func (a *ActivitySummary) Zone(i int) HeartRateZone {
	if i < len(a.HeartRateZones) {
		return a.HeartRateZones[i]
	}
	return HeartRateZone{}
}

// Activity returns the activity summary for date.
func (c *Client) Activity(ctx context.Context, token string, date string) (*ActivitySummary, error) {
	var out struct {
		Summary ActivitySummary `json:"summary"`
	}
	if err := c.get(ctx, token, "activity", "/1/user/-/activities/date/"+date+".json", &out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

// Recovery holds the daily recovery metrics feeding the stress score.
type Recovery struct {
	DailyHRV         float64
	SleepHRV         float64
	BreathingRate    float64
	SkinTemperature  float64
	RestingHeartRate float64
	DeepSleepMinutes float64
}

// Recovery fetches HRV, breathing rate, skin temperature, resting heart rate and
// deep sleep for date concurrently. Missing values are zero.
func (c *Client) Recovery(ctx context.Context, token string, date string) (*Recovery, error) {
	var (
		r    Recovery
		hrv  struct{ HRV []struct{ Value struct{ DailyRmssd, DeepRmssd float64 } } }
		br   struct{ BR []struct{ Value struct{ BreathingRate float64 } } }
		temp struct {
			TempSkin []struct{ Value struct{ NightlyRelative float64 } } `json:"tempSkin"`
		}
		heart struct {
			Days []struct{ Value struct{ RestingHeartRate float64 } } `json:"activities-heart"`
		}
		sleep []SleepLog
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, token, "hrv", "/1/user/-/hrv/date/"+date+".json", &hrv) })
	g.Go(func() error { return c.get(gctx, token, "br", "/1/user/-/br/date/"+date+".json", &br) })
	g.Go(func() error { return c.get(gctx, token, "temp", "/1/user/-/temp/skin/date/"+date+".json", &temp) })
	g.Go(func() error {
		return c.get(gctx, token, "heart", "/1/user/-/activities/heart/date/"+date+"/1d.json", &heart)
	})
	g.Go(func() error {
		var err error
		sleep, err = c.Sleep(gctx, token, date)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(hrv.HRV) > 0 {
		r.DailyHRV = hrv.HRV[0].Value.DailyRmssd
		r.SleepHRV = hrv.HRV[0].Value.DeepRmssd
	}
	if len(br.BR) > 0 {
		r.BreathingRate = br.BR[0].Value.BreathingRate
	}
	if len(temp.TempSkin) > 0 {
		r.SkinTemperature = temp.TempSkin[0].Value.NightlyRelative
	}
	if len(heart.Days) > 0 {
		r.RestingHeartRate = heart.Days[0].Value.RestingHeartRate
	}
	r.DeepSleepMinutes = deepSleepMinutes(sleep)
	return &r, nil
}

// deepSleepMinutes prefers the main sleep and falls back to the first log.
func deepSleepMinutes(logs []SleepLog) float64 {
	for _, l := range logs {
		if l.IsMainSleep {
			return l.Levels.Summary.Deep.Minutes
		}
	}
	if len(logs) > 0 {
		return logs[0].Levels.Summary.Deep.Minutes
	}
	return 0
}
