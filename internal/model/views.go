package model

import "time"

// BadgeView is the client-facing badge shape.
type BadgeView struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Threshold int64  `json:"threshold"`
}

// LocationView is the client-facing location shape.
type LocationView struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ActivityView never carries raw image bytes, only the data URI.
type ActivityView struct {
	ID           string        `json:"_id"`
	User         string        `json:"user"`
	Type         string        `json:"type"`
	Points       int64         `json:"points"`
	CO2Saved     float64       `json:"co2Saved"`
	Date         time.Time     `json:"date"`
	UploadedAt   time.Time     `json:"uploadedAt"`
	Location     *LocationView `json:"location,omitempty"`
	ImageSrc     *string       `json:"imageSrc"`
	ImageHash    string        `json:"imageHash,omitempty"`
	Verification string        `json:"verification,omitempty"`
}

// CalendarEntryView is the client-facing calendar entry.
type CalendarEntryView struct {
	ActivityID   string    `json:"activityId"`
	ActivityType string    `json:"activityType"`
	PointsEarned int64     `json:"pointsEarned"`
	CO2Saved     float64   `json:"co2Saved"`
	Date         time.Time `json:"date"`
}

// UserView omits credentials.
type UserView struct {
	ID                    string              `json:"_id"`
	Name                  string              `json:"name"`
	Email                 string              `json:"email"`
	Points                int64               `json:"points"`
	CO2Saved              float64             `json:"co2Saved"`
	Badges                []BadgeView         `json:"badges"`
	Calendar              []CalendarEntryView `json:"calendar"`
	GamePoints            int64               `json:"gamePoints"`
	HighestCompletedLevel int                 `json:"highestCompletedLevel"`
}

// ViewBadge converts a badge.
func ViewBadge(b Badge) BadgeView {
	return BadgeView{Name: b.Name, Icon: b.Icon, Threshold: b.Threshold}
}

// ViewBadges converts a slice, never returning nil.
func ViewBadges(bs []Badge) []BadgeView {
	out := make([]BadgeView, 0, len(bs))
	for _, b := range bs {
		out = append(out, ViewBadge(b))
	}
	return out
}

// ViewActivity converts an activity.
func ViewActivity(a Activity) ActivityView {
	v := ActivityView{
		ID:           a.ID.String(),
		User:         a.UserID.String(),
		Type:         a.Type,
		Points:       a.Points,
		CO2Saved:     a.CO2Saved,
		Date:         a.Date,
		UploadedAt:   a.UploadedAt,
		ImageHash:    a.ImageHash,
		Verification: a.Verification,
	}
	if a.Location != nil {
		v.Location = &LocationView{Latitude: a.Location.Latitude, Longitude: a.Location.Longitude}
	}
	if src := a.ImageSrc(); src != "" {
		v.ImageSrc = &src
	}
	return v
}

// ViewActivities converts a slice, never returning nil.
func ViewActivities(as []Activity) []ActivityView {
	out := make([]ActivityView, 0, len(as))
	for _, a := range as {
		out = append(out, ViewActivity(a))
	}
	return out
}

// ViewCalendar converts calendar entries, never returning nil.
func ViewCalendar(es []CalendarEntry) []CalendarEntryView {
	out := make([]CalendarEntryView, 0, len(es))
	for _, e := range es {
		out = append(out, CalendarEntryView{
			ActivityID:   e.ActivityID.String(),
			ActivityType: e.ActivityType,
			PointsEarned: e.PointsEarned,
			CO2Saved:     e.CO2Saved,
			Date:         e.Date,
		})
	}
	return out
}

// ViewUser converts a user.
func ViewUser(u User) UserView {
	return UserView{
		ID:                    u.ID.String(),
		Name:                  u.Name,
		Email:                 u.Email,
		Points:                u.Points,
		CO2Saved:              u.CO2Saved(),
		Badges:                ViewBadges(u.Badges),
		Calendar:              ViewCalendar(u.Calendar),
		GamePoints:            u.GamePoints,
		HighestCompletedLevel: u.HighestCompletedLevel,
	}
}
