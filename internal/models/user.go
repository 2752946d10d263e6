// ABOUTME: User and Device models for wearable account owners.
// ABOUTME: Users carry the upstream OAuth token; devices are keyed by (user, device id).
package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles and statuses that make a user eligible for scheduled collection.
const (
	RoleSenior   = "senior"
	StatusActive = "active"
)

// User is an account whose wearable data is collected.
type User struct {
	ID                 uuid.UUID
	FitbitID           string
	Role               string
	Status             string
	AccessToken        string
	AccessTokenExpires *time.Time
	RefreshToken       string
	CreatedAt          time.Time
}

// NewUser creates an active senior user for the given Fitbit encoded id.
func NewUser(fitbitID string) *User {
	return &User{
		ID:        uuid.New(),
		FitbitID:  fitbitID,
		Role:      RoleSenior,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
}

// WithTokens sets the OAuth tokens on the user.
func (u *User) WithTokens(access, refresh string, expires time.Time) *User {
	u.AccessToken = access
	u.RefreshToken = refresh
	u.AccessTokenExpires = &expires
	return u
}

// Eligible reports whether scheduled jobs should fan out to this user.
func (u *User) Eligible() bool {
	return u.Role == RoleSenior && u.Status == StatusActive && u.RefreshToken != ""
}

// TokenExpired reports whether the access token is missing or past its expiry at now.
func (u *User) TokenExpired(now time.Time) bool {
	if u.AccessToken == "" || u.AccessTokenExpires == nil {
		return true
	}
	return u.AccessTokenExpires.Before(now)
}

// Device is a wearable paired to a user.
type Device struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	DeviceID      string
	DeviceVersion string
	BatteryLevel  int
	LastSyncTime  time.Time
	CreatedAt     time.Time
}

// NewDevice creates a Device with generated UUID.
func NewDevice(userID uuid.UUID, deviceID string) *Device {
	return &Device{
		ID:        uuid.New(),
		UserID:    userID,
		DeviceID:  deviceID,
		CreatedAt: time.Now(),
	}
}
