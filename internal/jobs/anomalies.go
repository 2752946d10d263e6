// ABOUTME: Anomaly detection job over the trailing window of intraday samples.
// ABOUTME: Records an anomaly event and notifies downstream when a rule fires.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harperreed/bloom/internal/anomaly"
	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/metrics"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

// AnomalyWindow is the trailing span of samples inspected by detection.
const AnomalyWindow = 6 * time.Hour

func (r *Runner) detectAnomalies(ctx context.Context, u *models.User) error {
	now := r.now().In(r.loc)

	samples, err := r.store.ListIntradaySamples(ctx, storage.IntradayQuery{
		UserID: u.ID,
		From:   now.Add(-AnomalyWindow),
		To:     now,
	})
	if err != nil {
		return fmt.Errorf("load intraday samples: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("%w: no intraday samples in the last %s", ErrInsufficientData, AnomalyWindow)
	}

	res := anomaly.Detect(samples)
	if !res.Triggered {
		r.log.Debug("no_anomaly", slog.String("fitbit_user_id", u.FitbitID), slog.Int("samples", len(samples)))
		return nil
	}

	ev := models.NewAnomalyEvent(u.ID, res.Reason, res.Detail, now)
	if err := r.store.CreateAnomalyEvent(ctx, ev); err != nil {
		return persist("save anomaly event", err)
	}
	metrics.AnomaliesDetected.WithLabelValues(res.Reason).Inc()
	r.log.Warn("anomaly_detected",
		slog.String("fitbit_user_id", u.FitbitID),
		slog.String("reason", res.Reason),
	)

	r.publish(ctx, events.TypeAnomalyDetected, events.Detail{
		FitbitUserID: u.FitbitID,
		Date:         now.Format(time.RFC3339),
		Message:      res.Detail,
	})
	return nil
}
