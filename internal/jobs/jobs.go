// ABOUTME: Job runner: resolves users, runs one pipeline job per user, and classifies failures.
// ABOUTME: Batch runs fan out with a bounded errgroup and isolate per-user errors.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/bloom/internal/aggregate"
	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/fitbit"
	"github.com/harperreed/bloom/internal/metrics"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

// Name identifies a pipeline job.
type Name string

const (
	CollectIntraday      Name = "collect-intraday"
	CollectSleep         Name = "collect-sleep"
	CollectActivity      Name = "collect-activity"
	CollectHealthMetrics Name = "collect-health-metrics"
	ShortTermAverages    Name = "short-term-averages"
	LongTermAverages     Name = "long-term-averages"
	DetectAnomalies      Name = "detect-anomalies"
)

// Names lists every job in pipeline order.
func Names() []Name {
	return []Name{
		CollectIntraday, CollectSleep, CollectActivity, CollectHealthMetrics,
		ShortTermAverages, LongTermAverages, DetectAnomalies,
	}
}

// ParseName validates a job name.
func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown job %q", s)
}

// Failure kinds reported in results and metrics.
const (
	KindNone                = ""
	KindNotFound            = "not_found"
	KindUpstreamUnavailable = "upstream_unavailable"
	KindPersistenceConflict = "persistence_conflict"
	KindDataAbsent          = "data_absent"
	KindInternal            = "internal"
)

var (
	// ErrPersistence wraps write failures, including rolled-back transactions.
	ErrPersistence = errors.New("persistence failure")
	// ErrInsufficientData is returned when anomaly detection has no samples to inspect.
	ErrInsufficientData = errors.New("insufficient data")
)

// Classify maps an error to its failure kind.
func Classify(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, fitbit.ErrUpstream):
		return KindUpstreamUnavailable
	case errors.Is(err, storage.ErrConflict), errors.Is(err, ErrPersistence):
		return KindPersistenceConflict
	case errors.Is(err, aggregate.ErrDataAbsent), errors.Is(err, ErrInsufficientData):
		return KindDataAbsent
	}
	return KindInternal
}

// Result is the outcome of one job for one user.
type Result struct {
	Job          Name   `json:"job"`
	FitbitUserID string `json:"fitbit_user_id"`
	Date         string `json:"date"`
	Success      bool   `json:"success"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Options configures a Runner. Zero values pick defaults.
type Options struct {
	Location    *time.Location
	Logger      *slog.Logger
	Now         func() time.Time
	Concurrency int
	Source      string
}

// Runner executes jobs against a store, the wearable API and an event publisher.
type Runner struct {
	store       storage.Store
	api         *fitbit.Client
	pub         events.Publisher
	loc         *time.Location
	log         *slog.Logger
	now         func() time.Time
	concurrency int
	source      string
}

// NewRunner creates a Runner.
func NewRunner(store storage.Store, api *fitbit.Client, pub events.Publisher, opts Options) *Runner {
	r := &Runner{
		store:       store,
		api:         api,
		pub:         pub,
		loc:         opts.Location,
		log:         opts.Logger,
		now:         opts.Now,
		concurrency: opts.Concurrency,
		source:      opts.Source,
	}
	if r.loc == nil {
		r.loc = LoadLocation(DefaultTimezone)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.log = r.log.With(slog.String("component", "jobs"))
	if r.now == nil {
		r.now = time.Now
	}
	if r.concurrency <= 0 {
		r.concurrency = 4
	}
	if r.source == "" {
		r.source = events.DefaultSource
	}
	return r
}

// DefaultTimezone is the zone calendar dates are computed in.
const DefaultTimezone = "Asia/Seoul"

// LoadLocation loads name, falling back to a fixed UTC+9 zone when tzdata is unavailable.
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("UTC+9", 9*60*60)
}

// ParseDate parses a YYYY-MM-DD date in loc. An empty string yields today.
func ParseDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return aggregate.Day(now.In(loc)), nil
	}
	t, err := time.ParseInLocation(models.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Location returns the runner's time zone.
func (r *Runner) Location() *time.Location { return r.loc }

// Now returns the runner's current time.
func (r *Runner) Now() time.Time { return r.now() }

// Run executes job for one user. date is the job's reference day; empty means today.
func (r *Runner) Run(ctx context.Context, job Name, fitbitUserID, date string) Result {
	res := Result{Job: job, FitbitUserID: fitbitUserID}
	timer := time.Now()

	err := r.run(ctx, job, fitbitUserID, date, &res)

	metrics.JobDuration.WithLabelValues(string(job)).Observe(time.Since(timer).Seconds())
	if err != nil {
		res.Kind = Classify(err)
		res.Error = err.Error()
		r.log.Error("job_failed",
			slog.String("job", string(job)),
			slog.String("fitbit_user_id", fitbitUserID),
			slog.String("kind", res.Kind),
			slog.Any("err", err),
		)
	} else {
		res.Success = true
		r.log.Info("job_completed",
			slog.String("job", string(job)),
			slog.String("fitbit_user_id", fitbitUserID),
			slog.String("date", res.Date),
		)
	}
	metrics.JobRuns.WithLabelValues(string(job), fmt.Sprint(res.Success), res.Kind).Inc()
	return res
}

func (r *Runner) run(ctx context.Context, job Name, fitbitUserID, date string, res *Result) error {
	day, err := ParseDate(date, r.now(), r.loc)
	if err != nil {
		return err
	}
	res.Date = day.Format(models.DateLayout)

	u, err := r.store.GetUserByFitbitID(ctx, fitbitUserID)
	if err != nil {
		return fmt.Errorf("find user %s: %w", fitbitUserID, err)
	}

	switch job {
	case CollectIntraday:
		return r.collectIntraday(ctx, u)
	case CollectSleep:
		return r.collectSleep(ctx, u, day)
	case CollectActivity:
		return r.collectActivity(ctx, u, day)
	case CollectHealthMetrics:
		return r.collectHealthMetrics(ctx, u, day)
	case ShortTermAverages:
		return r.shortTermAverages(ctx, u, day)
	case LongTermAverages:
		return r.longTermAverages(ctx, u, day)
	case DetectAnomalies:
		return r.detectAnomalies(ctx, u)
	}
	return fmt.Errorf("unknown job %q", job)
}

// RunForUsers runs job for each user concurrently. One user's failure never cancels the others.
// Results are sorted by Fitbit user id.
func (r *Runner) RunForUsers(ctx context.Context, job Name, fitbitUserIDs []string, date string) []Result {
	results := make([]Result, len(fitbitUserIDs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range fitbitUserIDs {
		g.Go(func() error {
			results[i] = r.Run(ctx, job, id, date)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FitbitUserID < results[j].FitbitUserID
	})
	return results
}

// RunAll runs job for every eligible user. Failing to list users is fatal for the run.
func (r *Runner) RunAll(ctx context.Context, job Name, date string) ([]Result, error) {
	users, err := r.store.ListEligibleUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.FitbitID)
	}
	return r.RunForUsers(ctx, job, ids, date), nil
}

// HandleEvent runs the job an inbound event maps to.
func (r *Runner) HandleEvent(ctx context.Context, e events.Event) error {
	name, err := e.Job()
	if err != nil {
		return err
	}
	job, err := ParseName(name)
	if err != nil {
		return err
	}
	res := r.Run(ctx, job, e.Detail.FitbitUserID, e.ReferenceDate(r.loc))
	if !res.Success {
		return fmt.Errorf("%s for %s: %s", job, e.Detail.FitbitUserID, res.Error)
	}
	return nil
}

// publish sends a follow-up event. Failures are logged and counted, never returned.
func (r *Runner) publish(ctx context.Context, t events.Type, detail events.Detail) {
	e := events.New(t, r.source, detail, r.now())
	if err := r.pub.Publish(ctx, e); err != nil {
		r.log.Warn("event_publish_failed",
			slog.String("type", string(t)),
			slog.String("fitbit_user_id", detail.FitbitUserID),
			slog.Any("err", err),
		)
	}
}

// accessToken returns the user's bearer token. Refreshing tokens happens outside this service.
func (r *Runner) accessToken(u *models.User) (string, error) {
	if u.TokenExpired(r.now()) {
		return "", fmt.Errorf("%w: access token for %s missing or expired", fitbit.ErrUpstream, u.FitbitID)
	}
	return u.AccessToken, nil
}

func persist(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// findOptional returns nil for ErrNotFound so callers can report missing inputs together.
func findOptional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return v, err
}
