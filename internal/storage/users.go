// ABOUTME: User and device operations for SQLite storage.
// ABOUTME: Users resolve by full UUID or unique prefix; devices upsert on (user, device id).
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/bloom/internal/models"
)

const userColumns = `id, fitbit_id, role, status, access_token, access_token_expires, refresh_token, created_at`

// CreateUser stores a new user.
func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := d.db.ExecContext(ctx, query,
		u.ID.String(),
		u.FitbitID,
		u.Role,
		u.Status,
		u.AccessToken,
		nullableTime(u.AccessTokenExpires),
		u.RefreshToken,
		formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", translateErr(err))
	}
	return nil
}

// GetUser retrieves a user by ID or ID prefix.
func (d *DB) GetUser(ctx context.Context, idOrPrefix string) (*models.User, error) {
	id, err := d.resolveUserID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByFitbitID retrieves a user by upstream encoded id.
func (d *DB) GetUserByFitbitID(ctx context.Context, fitbitID string) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE fitbit_id = ?`, fitbitID)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", fitbitID, err)
	}
	return u, nil
}

// ListUsers returns every user ordered by creation time.
func (d *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	return d.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, fitbit_id`)
}

// ListEligibleUsers returns active seniors with a refresh token.
func (d *DB) ListEligibleUsers(ctx context.Context) ([]*models.User, error) {
	return d.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = ? AND status = ? AND refresh_token != ''
		ORDER BY created_at, fitbit_id
	`, models.RoleSenior, models.StatusActive)
}

// UpdateUserTokens replaces the stored OAuth tokens for a user.
func (d *DB) UpdateUserTokens(ctx context.Context, u *models.User) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE users SET access_token = ?, access_token_expires = ?, refresh_token = ? WHERE id = ?`,
		u.AccessToken, nullableTime(u.AccessTokenExpires), u.RefreshToken, u.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update user tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user tokens: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update user tokens %s: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (d *DB) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// resolveUserID finds the full ID from a prefix.
func (d *DB) resolveUserID(ctx context.Context, idOrPrefix string) (string, error) {
	if len(idOrPrefix) == 36 && strings.Count(idOrPrefix, "-") == 4 {
		return idOrPrefix, nil
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id FROM users WHERE id LIKE ? || '%'`, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve user ID: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan user ID: %w", err)
		}
		matches = append(matches, id)
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("user %s: %w", idOrPrefix, ErrNotFound)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous prefix %s: matches multiple records", idOrPrefix)
	}
	return matches[0], nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var idStr, createdAt string
	var expires sql.NullString

	err := row.Scan(&idStr, &u.FitbitID, &u.Role, &u.Status, &u.AccessToken, &expires, &u.RefreshToken, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.ID, _ = uuid.Parse(idStr)
	u.CreatedAt = parseTime(createdAt)
	if expires.Valid && expires.String != "" {
		t := parseTime(expires.String)
		u.AccessTokenExpires = &t
	}
	return &u, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// UpsertDevice inserts the device or updates version, battery and sync time for an existing (user, device id).
func (d *DB) UpsertDevice(ctx context.Context, dev *models.Device) error {
	query := `
		INSERT INTO devices (id, user_id, device_id, device_version, battery_level, last_sync_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_version = excluded.device_version,
			battery_level = excluded.battery_level,
			last_sync_time = excluded.last_sync_time
	`
	_, err := d.db.ExecContext(ctx, query,
		dev.ID.String(),
		dev.UserID.String(),
		dev.DeviceID,
		dev.DeviceVersion,
		dev.BatteryLevel,
		formatTime(dev.LastSyncTime),
		formatTime(dev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert device: %w", translateErr(err))
	}
	return nil
}

// ListDevices returns a user's devices, most recently synced first.
func (d *DB) ListDevices(ctx context.Context, userID uuid.UUID) ([]*models.Device, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, device_id, device_version, battery_level, last_sync_time, created_at
		FROM devices WHERE user_id = ?
		ORDER BY last_sync_time DESC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		var dev models.Device
		var idStr, userStr, lastSync, createdAt string
		if err := rows.Scan(&idStr, &userStr, &dev.DeviceID, &dev.DeviceVersion, &dev.BatteryLevel, &lastSync, &createdAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		dev.ID, _ = uuid.Parse(idStr)
		dev.UserID, _ = uuid.Parse(userStr)
		dev.LastSyncTime = parseTime(lastSync)
		dev.CreatedAt = parseTime(createdAt)
		devices = append(devices, &dev)
	}
	return devices, rows.Err()
}
