package service

import (
	"context"
	"math"
	"strings"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/gofrs/uuid/v5"
)

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return errs.Invalid("%s must be a finite non-negative number", field)
	}
	return nil
}

func checkLocation(l *model.Location) error {
	if l == nil {
		return nil
	}
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return errs.Invalid("latitude out of range")
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return errs.Invalid("longitude out of range")
	}
	return nil
}

func errInvalidBadge(b model.Badge) error {
	return errs.Invalid("badge %q: name and non-negative threshold required", b.Name)
}

// resolveUser looks the identifier up by id when it parses as a UUID and by name otherwise.
func resolveUser(ctx context.Context, users repository.UserRepository, identifier string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errs.Invalid("user identifier required")
	}
	if id, err := uuid.FromString(identifier); err == nil {
		return users.GetByID(ctx, id)
	}
	return users.GetByName(ctx, identifier)
}
