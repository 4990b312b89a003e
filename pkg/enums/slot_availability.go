package enums

// SlotAvailability is the lock state of a venue time slot.
type SlotAvailability string

const (
	SlotAvailable    SlotAvailability = "available"
	SlotLocked       SlotAvailability = "locked"
	SlotBooked       SlotAvailability = "booked"
	SlotNotAvailable SlotAvailability = "not_available"
	SlotFillingFast  SlotAvailability = "filling_fast"
)

var validSlotAvailabilities = values[SlotAvailability]{
	SlotAvailable,
	SlotLocked,
	SlotBooked,
	SlotNotAvailable,
	SlotFillingFast,
}

// String implements fmt.Stringer.
func (s SlotAvailability) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SlotAvailability.
func (s SlotAvailability) IsValid() bool {
	return validSlotAvailabilities.has(s)
}

// ParseSlotAvailability converts raw input into a SlotAvailability.
func ParseSlotAvailability(value string) (SlotAvailability, error) {
	return validSlotAvailabilities.parse("slot availability", value)
}
