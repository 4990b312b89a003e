package enums

// ReservationStatus tracks the booking or order side of a reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusFailed    ReservationStatus = "failed"
)

var validReservationStatuses = values[ReservationStatus]{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusCancelled,
	ReservationStatusFailed,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	return validReservationStatuses.has(r)
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	return validReservationStatuses.parse("reservation status", value)
}

// IsTerminal reports whether no further transition is allowed.
func (r ReservationStatus) IsTerminal() bool {
	return r != ReservationStatusPending
}
