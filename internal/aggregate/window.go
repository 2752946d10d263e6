// ABOUTME: Lookback ranges for the short-term and long-term average families.
// ABOUTME: Dates are calendar dates in the job's location, formatted as YYYY-MM-DD.
package aggregate

import (
	"time"

	"github.com/harperreed/bloom/internal/models"
)

// Window is the prior-row range averaged with the new point for one period.
// When HasPriors is false the period is the new point itself.
type Window struct {
	Period    models.PeriodType
	HasPriors bool
	From      string
	To        string
}

// ShortTermWindows returns the 1D, 7D and 30D ranges for a job running on today.
// Priors are 1D rows recorded in [today-(N-1), today-1].
func ShortTermWindows(today time.Time) []Window {
	day := Day(today)
	to := day.AddDate(0, 0, -1).Format(models.DateLayout)
	return []Window{
		{Period: models.Period1D},
		{Period: models.Period7D, HasPriors: true, From: day.AddDate(0, 0, -6).Format(models.DateLayout), To: to},
		{Period: models.Period30D, HasPriors: true, From: day.AddDate(0, 0, -29).Format(models.DateLayout), To: to},
	}
}

// longTermMonths is the number of monthly priors each long-term period reads.
var longTermMonths = map[models.PeriodType]int{
	models.Period90D:  3,
	models.Period180D: 6,
	models.Period360D: 12,
}

// LongTermWindows returns the 30D, 90D, 180D and 360D ranges for monthStart.
// Priors are history 30D rows recorded in [monthStart-k months, monthStart-1 month].
func LongTermWindows(monthStart time.Time) []Window {
	m := MonthStart(monthStart)
	to := m.AddDate(0, -1, 0).Format(models.DateLayout)
	out := []Window{{Period: models.Period30D}}
	for _, p := range []models.PeriodType{models.Period90D, models.Period180D, models.Period360D} {
		out = append(out, Window{
			Period:    p,
			HasPriors: true,
			From:      m.AddDate(0, -longTermMonths[p], 0).Format(models.DateLayout),
			To:        to,
		})
	}
	return out
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthStart returns midnight on the first of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
