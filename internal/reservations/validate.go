package reservations

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

const DateLayout = "2006-01-02"

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// ParseClock parses HH:MM or HH:MM:SS and returns minutes since midnight.
func ParseClock(field, value string) (int, error) {
	if !clockPattern.MatchString(value) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must match HH:MM[:SS]", field))
	}
	layout := "15:04"
	if len(value) == 8 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s", field))
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be YYYY-MM-DD", field))
	}
	return d, nil
}

func RequireMethod(method enums.PaymentMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	return nil
}

// RequireDistinct rejects empty lists, nil ids and duplicates.
func RequireDistinct(field string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" must not be empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" contains an empty id")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s contains %s twice", field, id))
		}
		seen[id] = struct{}{}
	}
	return nil
}
