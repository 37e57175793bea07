package tools

import (
	"time"

	"receptionist/internal/ledger"
	"receptionist/internal/reception"
)

// DateTimeResult is returned by getCurrentDateAndTime.
type DateTimeResult struct {
	DateTime string `json:"datetime"` // RFC 3339
	Date     string `json:"date"`     // YYYY-MM-DD
	Day      string `json:"day"`
	Spoken   string `json:"spoken"`
	Timezone string `json:"timezone"`
}

// AvailabilityResult is returned by checkAvailability.
type AvailabilityResult struct {
	Branch              string   `json:"branch"`
	Day                 string   `json:"day"`
	Valid               bool     `json:"valid"`
	AvailableSlots      []string `json:"availableSlots"`
	AvailableSlotLabels []string `json:"availableSlotLabels"`
	AlternativeBranches []string `json:"alternativeBranches"`
}

// BookingResult is returned by bookAppointment. Booking and Doctor are set
// only when Outcome is "Booked".
type BookingResult struct {
	Outcome string            `json:"outcome"`
	Booking *BookingView      `json:"booking,omitempty"`
	Doctor  *reception.Doctor `json:"doctor,omitempty"`
}

// ListResult is returned by listBookings.
type ListResult struct {
	Count    int           `json:"count"`
	Bookings []BookingView `json:"bookings"`
}

// BookingView is the JSON shape of a booking.
type BookingView struct {
	ID           string `json:"id"`
	PatientName  string `json:"patientName"`
	Branch       string `json:"branch"`
	Day          string `json:"day"`
	Date         string `json:"date"`
	Slot         string `json:"slot"`
	SlotLabel    string `json:"slotLabel"`
	CreatedAt    string `json:"createdAt"`
	CalendarLink string `json:"calendarLink,omitempty"`
}

// NewBookingView converts a ledger booking.
func NewBookingView(b ledger.Booking) BookingView {
	return BookingView{
		ID:           b.ID,
		PatientName:  b.PatientName,
		Branch:       b.Branch.String(),
		Day:          b.Day.String(),
		Date:         b.Date.Format(dateLayout),
		Slot:         b.Slot.String(),
		SlotLabel:    b.Slot.Label(),
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
		CalendarLink: b.CalendarLink,
	}
}
