// ABOUTME: Typed event envelopes exchanged between pipeline jobs over the bus.
// ABOUTME: Defines event types, the detail payload, and the job each inbound type triggers.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names an event on the bus.
type Type string

const (
	// TypeDetectAnomalies is published after an intraday sample is stored.
	TypeDetectAnomalies Type = "Detect Anomalies"
	// TypeMainSleepDetected is published when a main sleep record is first stored.
	TypeMainSleepDetected Type = "Main Sleep Detected"
	// TypeReportDataReady is published after short-term averages are saved.
	TypeReportDataReady Type = "Report Data Ready"
	// TypeAnomalyDetected is published when an anomaly event is recorded.
	TypeAnomalyDetected Type = "Anomaly Detected"
	// TypeJobRequested asks a worker to run the job named in the detail.
	TypeJobRequested Type = "Job Requested"

	// Scheduler triggers, one per job.
	TypeCollectIntraday          Type = "Collect Intraday Data"
	TypeCollectSleep             Type = "Collect Sleep Data"
	TypeCollectActivity          Type = "Collect Activity Summary"
	TypeCollectHealthMetrics     Type = "Collect Health Metrics"
	TypeCalculateLongTermAverage Type = "Calculate Long Term Average"
)

var routes = map[Type]string{
	TypeDetectAnomalies:          "detect-anomalies",
	TypeMainSleepDetected:        "short-term-averages",
	TypeCollectIntraday:          "collect-intraday",
	TypeCollectSleep:             "collect-sleep",
	TypeCollectActivity:          "collect-activity",
	TypeCollectHealthMetrics:     "collect-health-metrics",
	TypeCalculateLongTermAverage: "long-term-averages",
}

// DefaultSource is the source stamped on events published by bloom.
const DefaultSource = "bloom"

// ErrUnroutable is returned for inbound events that map to no job.
var ErrUnroutable = errors.New("event maps to no job")

// Detail is the minimal payload a follow-up job needs to re-derive its inputs.
type Detail struct {
	FitbitUserID   string `json:"fitbit_user_id"`
	Date           string `json:"date,omitempty"`
	MonthStartDate string `json:"monthStartDate,omitempty"`
	Message        string `json:"detail,omitempty"`
	Job            string `json:"job,omitempty"`

	// MonthStartMillis holds a monthStartDate sent as epoch milliseconds.
	MonthStartMillis int64 `json:"-"`
}

// UnmarshalJSON also accepts the camel-case user key some producers send, and a
// monthStartDate given either as YYYY-MM-DD or as epoch milliseconds.
func (d *Detail) UnmarshalJSON(b []byte) error {
	type plain Detail
	var aux struct {
		plain
		MonthStartDate    json.RawMessage `json:"monthStartDate"`
		FitbitUserIDCamel string          `json:"fitbitUserId"`
		UserID            string          `json:"userId"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = Detail(aux.plain)
	if err := d.setMonthStart(aux.MonthStartDate); err != nil {
		return err
	}
	if d.FitbitUserID == "" {
		d.FitbitUserID = aux.FitbitUserIDCamel
	}
	if d.FitbitUserID == "" {
		d.FitbitUserID = aux.UserID
	}
	return nil
}

func (d *Detail) setMonthStart(raw json.RawMessage) error {
	v := strings.TrimSpace(string(raw))
	switch {
	case v == "" || v == "null":
		return nil
	case strings.HasPrefix(v, `"`):
		return json.Unmarshal(raw, &d.MonthStartDate)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("monthStartDate: %w", err)
	}
	ms, err := n.Int64()
	if err != nil {
		return fmt.Errorf("monthStartDate %s: %w", v, err)
	}
	d.MonthStartMillis = ms
	return nil
}

// Event is the envelope carried on the bus.
type Event struct {
	ID     string    `json:"id"`
	Type   Type      `json:"type"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
	Detail Detail    `json:"detail"`
}

// New creates an event with a fresh ULID.
func New(t Type, source string, detail Detail, now time.Time) Event {
	if source == "" {
		source = DefaultSource
	}
	return Event{
		ID:     ulid.Make().String(),
		Type:   t,
		Source: source,
		Time:   now.UTC(),
		Detail: detail,
	}
}

// Decode parses an envelope and checks it names a user.
func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if strings.TrimSpace(e.Detail.FitbitUserID) == "" {
		return Event{}, fmt.Errorf("decode event %s: missing fitbit_user_id", e.Type)
	}
	return e, nil
}

// Job names the pipeline job an inbound event triggers.
func (e Event) Job() (string, error) {
	if job, ok := routes[e.Type]; ok {
		return job, nil
	}
	if e.Type == TypeJobRequested && e.Detail.Job != "" {
		return e.Detail.Job, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnroutable, e.Type)
}

// ReferenceDate returns the date the event refers to, preferring the month start.
// An epoch month start is read as a calendar date in loc.
func (e Event) ReferenceDate(loc *time.Location) string {
	if e.Detail.MonthStartDate != "" {
		return e.Detail.MonthStartDate
	}
	if e.Detail.MonthStartMillis != 0 {
		if loc == nil {
			loc = time.UTC
		}
		return time.UnixMilli(e.Detail.MonthStartMillis).In(loc).Format(time.DateOnly)
	}
	if len(e.Detail.Date) >= 10 {
		return e.Detail.Date[:10]
	}
	return e.Detail.Date
}
