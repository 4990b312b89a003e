package enums

// ReservationKind discriminates the reservation payload union.
type ReservationKind string

const (
	ReservationKindVenue ReservationKind = "venue"
	ReservationKindEvent ReservationKind = "event"
	ReservationKindShop  ReservationKind = "shop"
)

var validReservationKinds = values[ReservationKind]{
	ReservationKindVenue,
	ReservationKindEvent,
	ReservationKindShop,
}

// String implements fmt.Stringer.
func (r ReservationKind) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationKind.
func (r ReservationKind) IsValid() bool {
	return validReservationKinds.has(r)
}

// ParseReservationKind converts raw input into a ReservationKind.
func ParseReservationKind(value string) (ReservationKind, error) {
	return validReservationKinds.parse("reservation kind", value)
}
