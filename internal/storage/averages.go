// ABOUTME: Period average and anomaly event operations for SQLite storage.
// ABOUTME: Each average family is saved all-or-nothing inside one transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/bloom/internal/models"
)

func averageSelect(table string) string {
	return `SELECT id, user_id, recorded_at, period_type, ` +
		strings.Join(models.AverageColumns, ", ") +
		`, created_at FROM ` + table
}

func averageInsert(table string) string {
	cols := append([]string{"id", "user_id", "recorded_at", "period_type"}, models.AverageColumns...)
	cols = append(cols, "created_at")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return `INSERT INTO ` + table + ` (` + strings.Join(cols, ", ") + `) VALUES (` + marks + `)`
}

func averageArgs(p *models.PeriodAverage) []any {
	args := []any{p.ID.String(), p.UserID.String(), p.RecordedAt, string(p.PeriodType)}
	for _, f := range p.Averages.Fields() {
		args = append(args, *f)
	}
	return append(args, formatTime(p.CreatedAt))
}

// FindPeriodAverage returns one row of family for a user, date and period.
func (d *DB) FindPeriodAverage(ctx context.Context, family models.Family, userID uuid.UUID, recordedAt string, period models.PeriodType) (*models.PeriodAverage, error) {
	list, err := d.ListPeriodAverages(ctx, AverageQuery{
		Family:     family,
		UserID:     userID,
		PeriodType: period,
		From:       recordedAt,
		To:         recordedAt,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%s average %s %s: %w", family, period, recordedAt, ErrNotFound)
	}
	return list[0], nil
}

// ListPeriodAverages returns rows matching q, newest recorded_at first.
func (d *DB) ListPeriodAverages(ctx context.Context, q AverageQuery) ([]*models.PeriodAverage, error) {
	table, err := averageTable(q.Family)
	if err != nil {
		return nil, err
	}

	query := averageSelect(table) + ` WHERE user_id = ?`
	args := []any{q.UserID.String()}
	if q.PeriodType != "" {
		query += ` AND period_type = ?`
		args = append(args, string(q.PeriodType))
	}
	if q.From != "" {
		query += ` AND recorded_at >= ?`
		args = append(args, q.From)
	}
	if q.To != "" {
		query += ` AND recorded_at <= ?`
		args = append(args, q.To)
	}
	query += ` ORDER BY recorded_at DESC, period_type`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list period averages: %w", err)
	}
	defer rows.Close()

	var list []*models.PeriodAverage
	for rows.Next() {
		var p models.PeriodAverage
		var idStr, userStr, period, createdAt string
		dest := []any{&idStr, &userStr, &p.RecordedAt, &period}
		for _, f := range p.Averages.Fields() {
			dest = append(dest, f)
		}
		dest = append(dest, &createdAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan period average: %w", err)
		}
		p.ID, _ = uuid.Parse(idStr)
		p.UserID, _ = uuid.Parse(userStr)
		p.PeriodType = models.PeriodType(period)
		p.CreatedAt = parseTime(createdAt)
		list = append(list, &p)
	}
	return list, rows.Err()
}

// SavePeriodAverages inserts rows into family's table in one transaction.
// A unique key violation on any row rolls back every row.
func (d *DB) SavePeriodAverages(ctx context.Context, family models.Family, rows []*models.PeriodAverage) (err error) {
	table, err := averageTable(family)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, averageInsert(table))
	if err != nil {
		return fmt.Errorf("prepare average insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		if _, err = stmt.ExecContext(ctx, averageArgs(p)...); err != nil {
			return fmt.Errorf("save %s average %s: %w", family, p.PeriodType, translateErr(err))
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit averages: %w", err)
	}
	return nil
}

// CreateAnomalyEvent stores a triggered anomaly.
func (d *DB) CreateAnomalyEvent(ctx context.Context, e *models.AnomalyEvent) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO anomaly_events (id, user_id, analysis_type, trigger_type, detail, triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID.String(), e.UserID.String(), e.AnalysisType, e.TriggerType, e.Detail,
		formatTime(e.TriggeredAt), formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create anomaly event: %w", translateErr(err))
	}
	return nil
}

// ListAnomalyEvents returns events newest first.
func (d *DB) ListAnomalyEvents(ctx context.Context, q AnomalyQuery) ([]*models.AnomalyEvent, error) {
	query := `SELECT id, user_id, analysis_type, trigger_type, detail, triggered_at, created_at FROM anomaly_events`
	var args []any
	if q.UserID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, q.UserID.String())
	}
	query += ` ORDER BY triggered_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list anomaly events: %w", err)
	}
	defer rows.Close()

	return scanAnomalyEvents(rows)
}

func scanAnomalyEvents(rows *sql.Rows) ([]*models.AnomalyEvent, error) {
	var list []*models.AnomalyEvent
	for rows.Next() {
		var e models.AnomalyEvent
		var idStr, userStr, triggeredAt, createdAt string
		if err := rows.Scan(&idStr, &userStr, &e.AnalysisType, &e.TriggerType, &e.Detail, &triggeredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan anomaly event: %w", err)
		}
		e.ID, _ = uuid.Parse(idStr)
		e.UserID, _ = uuid.Parse(userStr)
		e.TriggeredAt = parseTime(triggeredAt)
		e.CreatedAt = parseTime(createdAt)
		list = append(list, &e)
	}
	return list, rows.Err()
}
