package mongo

import (
	"time"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

type userDoc struct {
	ID                    string        `bson:"_id"`
	Name                  string        `bson:"name"`
	Email                 string        `bson:"email"`
	PwdHash               []byte        `bson:"pwdHash"`
	Salt                  []byte        `bson:"salt"`
	Points                int64         `bson:"points"`
	Badges                []string      `bson:"badges"`
	Calendar              []calendarDoc `bson:"calendar"`
	GamePoints            int64         `bson:"gamePoints"`
	HighestCompletedLevel int           `bson:"highestCompletedLevel"`
	LastBonusDay          *time.Time    `bson:"lastBonusDay"`
	CreatedAt             time.Time     `bson:"createdAt"`
}

type calendarDoc struct {
	ActivityID   string    `bson:"activityId"`
	ActivityType string    `bson:"activityType"`
	PointsEarned int64     `bson:"pointsEarned"`
	CO2Saved     float64   `bson:"co2Saved"`
	Date         time.Time `bson:"date"`
}

type locationDoc struct {
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
}

type activityDoc struct {
	ID           string       `bson:"_id"`
	UserID       string       `bson:"userId"`
	Type         string       `bson:"type"`
	Points       int64        `bson:"points"`
	CO2Saved     float64      `bson:"co2Saved"`
	Date         time.Time    `bson:"date"`
	UploadedAt   time.Time    `bson:"uploadedAt"`
	Location     *locationDoc `bson:"location,omitempty"`
	Image        []byte       `bson:"image,omitempty"`
	ImageType    string       `bson:"imageType,omitempty"`
	ImageHash    string       `bson:"imageHash,omitempty"`
	Verification string       `bson:"verification"`
}

type badgeDoc struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	Description string `bson:"description"`
	Icon        string `bson:"icon"`
	Threshold   int64  `bson:"threshold"`
}

func toCalendarDoc(e model.CalendarEntry) calendarDoc {
	return calendarDoc{
		ActivityID:   e.ActivityID.String(),
		ActivityType: e.ActivityType,
		PointsEarned: e.PointsEarned,
		CO2Saved:     e.CO2Saved,
		Date:         e.Date.UTC(),
	}
}

// toUser converts d; badges are resolved by the caller.
func (d *userDoc) toUser() (*model.User, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:                    id,
		Name:                  d.Name,
		Email:                 d.Email,
		PwdHash:               d.PwdHash,
		Salt:                  d.Salt,
		Points:                d.Points,
		Badges:                []model.Badge{},
		Calendar:              make([]model.CalendarEntry, 0, len(d.Calendar)),
		GamePoints:            d.GamePoints,
		HighestCompletedLevel: d.HighestCompletedLevel,
		CreatedAt:             d.CreatedAt,
	}
	if d.LastBonusDay != nil {
		u.LastBonusDay = d.LastBonusDay.UTC()
	}
	for _, c := range d.Calendar {
		aid, err := uuid.FromString(c.ActivityID)
		if err != nil {
			return nil, err
		}
		u.Calendar = append(u.Calendar, model.CalendarEntry{
			ActivityID:   aid,
			ActivityType: c.ActivityType,
			PointsEarned: c.PointsEarned,
			CO2Saved:     c.CO2Saved,
			Date:         c.Date,
		})
	}
	return u, nil
}

func toActivityDoc(a *model.Activity) activityDoc {
	d := activityDoc{
		ID:           a.ID.String(),
		UserID:       a.UserID.String(),
		Type:         a.Type,
		Points:       a.Points,
		CO2Saved:     a.CO2Saved,
		Date:         a.Date.UTC(),
		UploadedAt:   a.UploadedAt.UTC(),
		Verification: a.Verification,
	}
	if a.Location != nil {
		d.Location = &locationDoc{Latitude: a.Location.Latitude, Longitude: a.Location.Longitude}
	}
	if a.HasImage() {
		d.Image = a.Image
		d.ImageType = a.ImageType
		d.ImageHash = a.ImageHash
	}
	return d
}

func (d *activityDoc) toActivity() (model.Activity, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return model.Activity{}, err
	}
	uid, err := uuid.FromString(d.UserID)
	if err != nil {
		return model.Activity{}, err
	}
	a := model.Activity{
		ID:           id,
		UserID:       uid,
		Type:         d.Type,
		Points:       d.Points,
		CO2Saved:     d.CO2Saved,
		Date:         d.Date,
		UploadedAt:   d.UploadedAt,
		Image:        d.Image,
		ImageType:    d.ImageType,
		ImageHash:    d.ImageHash,
		Verification: d.Verification,
	}
	if d.Location != nil {
		a.Location = &model.Location{Latitude: d.Location.Latitude, Longitude: d.Location.Longitude}
	}
	return a, nil
}

func (d *badgeDoc) toBadge() (model.Badge, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return model.Badge{}, err
	}
	return model.Badge{ID: id, Name: d.Name, Description: d.Description, Icon: d.Icon, Threshold: d.Threshold}, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
