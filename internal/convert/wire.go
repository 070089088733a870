// Package convert maps between wire shapes (JSON bodies, structpb messages)
// and service types.
package convert

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/service"
)

// ActivityRequest is the JSON form of a submission. Image is base64 or a data URI.
type ActivityRequest struct {
	UserID    string     `json:"userId,omitempty"`
	Name      string     `json:"name,omitempty"`
	Type      string     `json:"type"`
	Points    float64    `json:"points"`
	CO2Saved  float64    `json:"co2Saved"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Image     string     `json:"image,omitempty"`
	ImageType string     `json:"imageType,omitempty"`
}

// Identifier prefers the user id over the name.
func (r ActivityRequest) Identifier() string {
	if id := strings.TrimSpace(r.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Name)
}

// ToSubmit decodes the image and builds a pipeline request.
func (r ActivityRequest) ToSubmit() (service.SubmitRequest, error) {
	req := service.SubmitRequest{
		UserIdentifier: r.Identifier(),
		ActivityType:   r.Type,
		Points:         r.Points,
		CO2Saved:       r.CO2Saved,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		ImageType:      r.ImageType,
	}
	if r.Date != nil {
		req.Date = *r.Date
	}
	if r.Image != "" {
		img, mime, err := DecodeImage(r.Image)
		if err != nil {
			return service.SubmitRequest{}, err
		}
		req.Image = img
		if req.ImageType == "" {
			req.ImageType = mime
		}
	}
	return req, nil
}

// DecodeImage accepts "data:<mime>;base64,<data>" or bare base64.
func DecodeImage(s string) ([]byte, string, error) {
	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", errs.Invalid("image data URI must be base64")
		}
		mime, s = strings.TrimSuffix(meta, ";base64"), data
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, "", errs.Invalid("image is not valid base64")
	}
	return b, mime, nil
}

// UserRequest names a user by id or name.
type UserRequest struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Identifier prefers the user id over the name.
func (r UserRequest) Identifier() string {
	if id := strings.TrimSpace(r.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Name)
}

// RegisterRequest is the account creation body.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginView is returned after a successful login.
type LoginView struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      model.UserView `json:"user"`
}

// SubmissionView is the success body of a submission.
type SubmissionView struct {
	Message   string                    `json:"message"`
	Activity  model.ActivityView        `json:"activity"`
	Points    int64                     `json:"points"`
	CO2Saved  float64                   `json:"co2Saved"`
	NewBadges []model.BadgeView         `json:"newBadges"`
	AllBadges []model.BadgeView         `json:"allBadges"`
	Calendar  []model.CalendarEntryView `json:"calendar"`
}

// ViewSubmission converts a pipeline result.
func ViewSubmission(res *service.SubmissionResult) SubmissionView {
	v := SubmissionView{
		Message:   "Activity added successfully",
		Activity:  model.ViewActivity(res.Activity),
		NewBadges: model.ViewBadges(res.NewBadges),
		AllBadges: model.ViewBadges(res.AllBadges),
		Calendar:  []model.CalendarEntryView{},
	}
	if res.User != nil {
		v.Points = res.User.Points
		v.CO2Saved = res.User.CO2Saved()
		v.Calendar = model.ViewCalendar(res.User.Calendar)
	}
	return v
}

// ActivitiesView lists a user's activities with their badges.
type ActivitiesView struct {
	Activities []model.ActivityView `json:"activities"`
	Badges     []model.BadgeView    `json:"badges"`
}

// LeaderboardRow is one ranked user.
type LeaderboardRow struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
	Rank   int    `json:"rank"`
}

// LeaderboardView wraps the ranked rows.
type LeaderboardView struct {
	Entries []LeaderboardRow `json:"entries"`
}

// ViewLeaderboard converts ranked entries, never returning nil rows.
func ViewLeaderboard(es []model.LeaderboardEntry) LeaderboardView {
	rows := make([]LeaderboardRow, 0, len(es))
	for _, e := range es {
		rows = append(rows, LeaderboardRow{UserID: e.UserID.String(), Name: e.Name, Points: e.Points, Rank: e.Rank})
	}
	return LeaderboardView{Entries: rows}
}

// ErrorView is the error body shared by all transports.
type ErrorView struct {
	ErrorKind  string `json:"errorKind"`
	Message    string `json:"message"`
	ActivityID string `json:"activityId,omitempty"`
}

// ViewError classifies err. Internal errors never leak their text.
func ViewError(err error) ErrorView {
	kind := errs.KindOf(err)
	v := ErrorView{ErrorKind: string(kind), Message: err.Error()}
	if kind == errs.KindInternal {
		v.Message = "internal error"
	}
	if id, ok := errs.PartialActivityID(err); ok {
		v.ActivityID = id.String()
	}
	return v
}
