package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/arena-backend/pkg/db/types"
	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// Reservation is the unit of booking intent tracked through payment. Kind
// selects which Payload variant is populated.
type Reservation struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Kind           enums.ReservationKind   `gorm:"column:kind;type:text;not null;index"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	PartnerID      *uuid.UUID              `gorm:"column:partner_id;type:uuid"`
	Payload        ReservationPayload      `gorm:"column:payload;type:jsonb;not null"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	BookedDate     *string                 `gorm:"column:booked_date;type:text"`
	Status         enums.ReservationStatus `gorm:"column:status;type:text;not null;index:idx_reservations_payment_state"`
	PaymentStatus  enums.PaymentStatus     `gorm:"column:payment_status;type:text;not null;index:idx_reservations_payment_state"`
	PaymentDetails PaymentDetails          `gorm:"column:payment_details;type:jsonb;not null"`
	OrderID        *string                 `gorm:"column:order_id;uniqueIndex"`
	CreatedAt      time.Time               `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	ConfirmedAt    *time.Time              `gorm:"column:confirmed_at"`
	CancelledAt    *time.Time              `gorm:"column:cancelled_at"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ReservationPayload is a tagged union; exactly one variant is set and it must
// agree with the owning reservation's Kind.
type ReservationPayload struct {
	Venue *VenuePayload `json:"venue,omitempty"`
	Event *EventPayload `json:"event,omitempty"`
	Shop  *ShopPayload  `json:"shop,omitempty"`
}

type VenuePayload struct {
	VenueID         uuid.UUID   `json:"venue_id"`
	FacilityID      uuid.UUID   `json:"facility_id"`
	ActivityID      uuid.UUID   `json:"activity_id"`
	SlotIDs         []uuid.UUID `json:"slot_ids"`
	Date            string      `json:"date"`
	StartTime       string      `json:"start_time"`
	EndTime         string      `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
}

type EventPayload struct {
	EventID uuid.UUID `json:"event_id"`
	Seats   int       `json:"seats"`
}

type ShopPayload struct {
	Lines           []ShopLine      `json:"lines"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

type ShopLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate checks that exactly the variant named by kind is populated.
func (p ReservationPayload) Validate(kind enums.ReservationKind) error {
	set := 0
	for _, present := range []bool{p.Venue != nil, p.Event != nil, p.Shop != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("reservation payload must hold exactly one variant, got %d", set)
	}
	switch kind {
	case enums.ReservationKindVenue:
		if p.Venue == nil {
			return fmt.Errorf("venue reservation missing venue payload")
		}
	case enums.ReservationKindEvent:
		if p.Event == nil {
			return fmt.Errorf("event reservation missing event payload")
		}
	case enums.ReservationKindShop:
		if p.Shop == nil {
			return fmt.Errorf("shop reservation missing shop payload")
		}
	default:
		return fmt.Errorf("unknown reservation kind %q", kind)
	}
	return nil
}

// PaymentDetails is filled progressively: method and amount at creation,
// order id at order creation, payment id and capture state at settlement.
type PaymentDetails struct {
	Amount           decimal.Decimal     `json:"amount"`
	Method           enums.PaymentMethod `json:"method"`
	Currency         string              `json:"currency,omitempty"`
	OrderID          string              `json:"order_id,omitempty"`
	Receipt          string              `json:"receipt,omitempty"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty"`
	Captured         bool                `json:"captured"`
	Refunded         bool                `json:"refunded"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// IsTerminal reports whether the reservation has already been settled.
func (r *Reservation) IsTerminal() bool {
	return r.Status.IsTerminal() || r.PaymentStatus != enums.PaymentStatusInitiated
}

func (p ReservationPayload) Value() (driver.Value, error) { return dbtypes.JSONValue(p) }

func (p *ReservationPayload) Scan(src any) error { return dbtypes.ScanJSON(src, p) }

func (d PaymentDetails) Value() (driver.Value, error) { return dbtypes.JSONValue(d) }

func (d *PaymentDetails) Scan(src any) error { return dbtypes.ScanJSON(src, d) }
