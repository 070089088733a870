package model

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
)

func TestActivity_ImageSrc(t *testing.T) {
	t.Parallel()

	a := Activity{Image: []byte("hi"), ImageType: "image/png"}
	if got, want := a.ImageSrc(), "data:image/png;base64,aGk="; got != want {
		t.Fatalf("ImageSrc=%q, want %q", got, want)
	}

	var none Activity
	if none.ImageSrc() != "" || none.HasImage() {
		t.Fatalf("no image expected")
	}
	if v := ViewActivity(none); v.ImageSrc != nil {
		t.Fatalf("view must carry null imageSrc without image")
	}
}

func TestUser_CO2SavedAndBadgeIDs(t *testing.T) {
	t.Parallel()

	b := Badge{ID: uuid.Must(uuid.NewV4()), Name: "Sprout", Threshold: 10}
	u := User{
		Badges: []Badge{b},
		Calendar: []CalendarEntry{
			{CO2Saved: 0.5, Date: time.Now()},
			{CO2Saved: 20, Date: time.Now()},
		},
	}
	if got := u.CO2Saved(); got != 20.5 {
		t.Fatalf("CO2Saved=%v", got)
	}
	if _, ok := u.BadgeIDs()[b.ID]; !ok {
		t.Fatalf("badge id missing from set")
	}
}

func TestViewUser_EmptySlicesNotNil(t *testing.T) {
	t.Parallel()

	v := ViewUser(User{ID: uuid.Must(uuid.NewV4()), Name: "Asha"})
	if v.Badges == nil || v.Calendar == nil {
		t.Fatalf("views must render [] rather than null")
	}
}
