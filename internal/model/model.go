// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/base64"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User is an account together with its reward ledger.
type User struct {
	ID       uuid.UUID // PK, the only stable lookup key
	Name     string    // unique, display name; kept as a secondary lookup for older clients
	Email    string    // unique
	PwdHash  []byte    // Argon2id(password, Salt)
	Salt     []byte
	Points   int64 // cumulative, never decreases
	Badges   []Badge
	Calendar []CalendarEntry // append-only, insertion ordered

	// quest ladder counters, mutated only by the quest service
	GamePoints            int64
	HighestCompletedLevel int
	LastBonusDay          time.Time // zero if never claimed

	CreatedAt time.Time
}

// CO2Saved sums the calendar; the aggregate is not stored.
func (u *User) CO2Saved() float64 {
	var total float64
	for _, e := range u.Calendar {
		total += e.CO2Saved
	}
	return total
}

// BadgeIDs returns the set of owned badge ids.
func (u *User) BadgeIDs() map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(u.Badges))
	for _, b := range u.Badges {
		set[b.ID] = struct{}{}
	}
	return set
}

// CalendarEntry mirrors one accepted activity inside the user's ledger.
type CalendarEntry struct {
	ActivityID   uuid.UUID // at most one entry per activity
	ActivityType string
	PointsEarned int64
	CO2Saved     float64
	Date         time.Time
}

// Location is a WGS84 point.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Verification outcomes recorded on activities that carry an image.
const (
	VerificationNone       = ""
	VerificationAccepted   = "accepted"
	VerificationUnverified = "unverified"
)

// Activity is an immutable record of one accepted submission.
type Activity struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Type         string
	Points       int64
	CO2Saved     float64
	Date         time.Time
	UploadedAt   time.Time
	Location     *Location // nil when no coordinates were sent
	Image        []byte
	ImageType    string
	ImageHash    string // set iff Image is set; (UserID, ImageHash) is unique
	Verification string
}

// HasImage reports whether an image is attached.
func (a *Activity) HasImage() bool { return len(a.Image) > 0 }

// ImageSrc renders the image as a data URI, or "" without an image.
func (a *Activity) ImageSrc() string {
	if !a.HasImage() || a.ImageType == "" {
		return ""
	}
	return "data:" + a.ImageType + ";base64," + base64.StdEncoding.EncodeToString(a.Image)
}

// Badge is a reward unlocked once cumulative points reach Threshold.
type Badge struct {
	ID          uuid.UUID
	Name        string
	Description string
	Icon        string
	Threshold   int64
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	UserID uuid.UUID
	Name   string
	Points int64
	Rank   int
}
