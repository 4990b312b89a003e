// Package venuebookings creates venue slot bookings ahead of payment.
package venuebookings

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/users"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

const slotMinutes = 30

type CreateInput struct {
	UserID          uuid.UUID
	PartnerID       uuid.UUID
	VenueID         uuid.UUID
	FacilityID      uuid.UUID
	ActivityID      uuid.UUID
	SlotIDs         []uuid.UUID
	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes int
	Method          enums.PaymentMethod
}

type Service struct {
	repo      *Repository
	directory *users.Directory
	creator   *reservations.Creator
	gst       decimal.Decimal
}

// NewService wires the venue booking service. gstMultiplier is applied to
// the summed slot prices.
func NewService(repo *Repository, directory *users.Directory, creator *reservations.Creator, gstMultiplier decimal.Decimal) (*Service, error) {
	if repo == nil || directory == nil || creator == nil {
		return nil, fmt.Errorf("venue booking dependencies required")
	}
	if !gstMultiplier.IsPositive() {
		gstMultiplier = decimal.NewFromInt(1)
	}
	return &Service{repo: repo, directory: directory, creator: creator, gst: gstMultiplier}, nil
}

// CreateBeforePayment books the slots in a Pending reservation holding them.
func (s *Service) CreateBeforePayment(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	if _, err := s.directory.RequireUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if _, err := s.directory.RequirePartner(ctx, in.PartnerID); err != nil {
		return nil, err
	}
	venue, err := s.repo.FindVenue(ctx, in.VenueID)
	if err != nil {
		return nil, err
	}
	if venue.PartnerID != in.PartnerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "venue does not belong to partner")
	}
	facility, err := s.repo.FindFacility(ctx, in.FacilityID)
	if err != nil {
		return nil, err
	}
	if facility.VenueID != venue.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "facility does not belong to venue")
	}
	if _, err := s.repo.FindActivity(ctx, in.ActivityID); err != nil {
		return nil, err
	}

	slots, err := s.repo.SlotsOnFacility(ctx, in.FacilityID, in.Date, in.SlotIDs)
	if err != nil {
		return nil, err
	}
	if len(slots) != len(in.SlotIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "one or more slots are not available").
			WithDetails(map[string]any{"requested": len(in.SlotIDs), "found": len(slots)})
	}
	if err := coversWindow(slots, in.StartTime, in.EndTime); err != nil {
		return nil, err
	}
	subtotal := decimal.Zero
	for _, slot := range slots {
		subtotal = subtotal.Add(slot.Price)
	}

	partnerID := in.PartnerID
	date := in.Date
	res := &models.Reservation{
		Kind:      enums.ReservationKindVenue,
		UserID:    in.UserID,
		PartnerID: &partnerID,
		Payload: models.ReservationPayload{Venue: &models.VenuePayload{
			VenueID:         in.VenueID,
			FacilityID:      in.FacilityID,
			ActivityID:      in.ActivityID,
			SlotIDs:         in.SlotIDs,
			Date:            in.Date,
			StartTime:       in.StartTime,
			EndTime:         in.EndTime,
			DurationMinutes: in.DurationMinutes,
		}},
		Amount:         subtotal.Mul(s.gst).Round(2),
		BookedDate:     &date,
		PaymentDetails: models.PaymentDetails{Method: in.Method},
	}
	if err := s.creator.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// coversWindow checks that slots, in any order, run back to back from start
// to end.
func coversWindow(slots []models.Slot, start, end string) error {
	type span struct{ from, to int }
	spans := make([]span, 0, len(slots))
	for _, slot := range slots {
		from, err := reservations.ParseClock("slot start_time", slot.StartTime)
		if err != nil {
			return err
		}
		to, err := reservations.ParseClock("slot end_time", slot.EndTime)
		if err != nil {
			return err
		}
		spans = append(spans, span{from, to})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })

	cursor, err := reservations.ParseClock("start_time", start)
	if err != nil {
		return err
	}
	last, err := reservations.ParseClock("end_time", end)
	if err != nil {
		return err
	}
	for _, sp := range spans {
		if sp.from != cursor || sp.to <= sp.from {
			return pkgerrors.New(pkgerrors.CodeValidation, "slots do not cover start_time to end_time contiguously").
				WithDetails(map[string]any{"expected_start": clock(cursor), "slot_start": clock(sp.from)})
		}
		cursor = sp.to
	}
	if cursor != last {
		return pkgerrors.New(pkgerrors.CodeValidation, "slots do not cover start_time to end_time contiguously").
			WithDetails(map[string]any{"expected_end": end, "slots_end": clock(cursor)})
	}
	return nil
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func validate(in CreateInput) error {
	required := []struct {
		name string
		id   uuid.UUID
	}{
		{"user_id", in.UserID},
		{"partner_id", in.PartnerID},
		{"venue_id", in.VenueID},
		{"facility_id", in.FacilityID},
		{"activity_id", in.ActivityID},
	}
	for _, r := range required {
		if r.id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, r.name+" is required")
		}
	}
	if err := reservations.RequireDistinct("slot_ids", in.SlotIDs); err != nil {
		return err
	}
	if _, err := reservations.ParseDate("date", in.Date); err != nil {
		return err
	}
	start, err := reservations.ParseClock("start_time", in.StartTime)
	if err != nil {
		return err
	}
	end, err := reservations.ParseClock("end_time", in.EndTime)
	if err != nil {
		return err
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes%slotMinutes != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "duration must be a positive multiple of 30 minutes")
	}
	if end-start != in.DurationMinutes {
		return pkgerrors.New(pkgerrors.CodeValidation, "duration does not match start and end time")
	}
	if in.DurationMinutes != len(in.SlotIDs)*slotMinutes {
		return pkgerrors.New(pkgerrors.CodeValidation, "slot count does not cover the duration")
	}
	return reservations.RequireMethod(in.Method)
}
