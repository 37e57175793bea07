// Package reception exposes the clinic receptionist operations invoked by the
// dialogue layer: current time, availability, booking and listing.
package reception

import (
	"time"

	"receptionist/internal/events"
	"receptionist/internal/ledger"
	"receptionist/internal/metrics"
	"receptionist/internal/schedule"

	"github.com/rs/zerolog"
)

// SpokenTimeLayout renders the current time for speech, e.g.
// "Monday, November 17, 2025 at 09:00 AM".
const SpokenTimeLayout = "Monday, January 02, 2006 at 03:04 PM"

// Doctor describes the practitioner seeing patients at every branch.
type Doctor struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Fee       int    `json:"fee"`
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

// DateTime is the answer of CurrentDateTime.
type DateTime struct {
	Time     time.Time
	Spoken   string
	Timezone string
}

// AvailabilityResult extends the ledger answer with branches open that day
// when the requested one is closed.
type AvailabilityResult struct {
	Branch         schedule.Branch
	Day            schedule.Day
	Valid          bool
	AvailableSlots []schedule.Slot
	Alternatives   []schedule.Branch
}

// BookingResult is the outcome of BookAppointment.
type BookingResult struct {
	Outcome ledger.Outcome
	Booking *ledger.Booking
	Doctor  *Doctor
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the clinic time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPublisher sets the event publisher for booking.created events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// Service implements the receptionist operations on top of a ledger.
type Service struct {
	ledger    *ledger.Ledger
	catalog   *schedule.Catalog
	doctor    Doctor
	now       func() time.Time
	loc       *time.Location
	publisher EventPublisher
	logger    zerolog.Logger
}

// NewService wires a service. The ledger must validate against the same catalog.
func NewService(l *ledger.Ledger, catalog *schedule.Catalog, doctor Doctor, logger *zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:  l,
		catalog: catalog,
		doctor:  doctor,
		now:     time.Now,
		loc:     time.Local,
		logger:  zerolog.Nop(),
	}
	if logger != nil {
		s.logger = logger.With().Str("component", "reception").Logger()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Doctor returns the configured doctor profile.
func (s *Service) Doctor() Doctor {
	return s.doctor
}

// CurrentDateTime returns the current time in the clinic time zone.
func (s *Service) CurrentDateTime() DateTime {
	now := s.now().In(s.loc)
	return DateTime{
		Time:     now,
		Spoken:   now.Format(SpokenTimeLayout),
		Timezone: s.loc.String(),
	}
}

// CheckAvailability reports the free slots of branch on day.
func (s *Service) CheckAvailability(branch schedule.Branch, day schedule.Day) (AvailabilityResult, error) {
	avail, err := s.ledger.CheckAvailability(branch, day)
	if err != nil {
		return AvailabilityResult{}, err
	}

	res := AvailabilityResult{
		Branch:         branch,
		Day:            day,
		Valid:          avail.Valid,
		AvailableSlots: avail.AvailableSlots,
		Alternatives:   []schedule.Branch{},
	}
	if !avail.Valid {
		open, err := s.catalog.BranchesOpenOn(day)
		if err != nil {
			return AvailabilityResult{}, err
		}
		for _, b := range open {
			if b != branch {
				res.Alternatives = append(res.Alternatives, b)
			}
		}
	}

	metrics.IncAvailabilityCheck(res.Valid)
	s.logger.Debug().
		Str("branch", branch.String()).
		Str("day", day.String()).
		Bool("valid", res.Valid).
		Int("free", len(res.AvailableSlots)).
		Msg("availability checked")

	return res, nil
}

// BookAppointment books a slot and publishes booking.created on success.
func (s *Service) BookAppointment(patientName string, branch schedule.Branch, day schedule.Day, slot schedule.Slot) (BookingResult, error) {
	res, err := s.ledger.BookAppointment(patientName, branch, day, slot)
	if err != nil {
		return BookingResult{}, err
	}

	metrics.IncBookingOutcome(res.Outcome.String())

	if res.Outcome != ledger.OutcomeBooked {
		s.logger.Debug().
			Str("outcome", res.Outcome.String()).
			Str("branch", branch.String()).
			Str("day", day.String()).
			Str("slot", slot.String()).
			Msg("booking rejected")
		return BookingResult{Outcome: res.Outcome}, nil
	}

	b := res.Booking
	metrics.SetBookingsHeld(s.ledger.Len())
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("branch", b.Branch.String()).
		Str("day", b.Day.String()).
		Str("slot", b.Slot.String()).
		Time("date", b.Date).
		Msg("appointment booked")

	if s.publisher != nil {
		s.publisher.Publish(events.TypeBookingCreated, s.bookingCreated(b))
	}

	doctor := s.doctor
	return BookingResult{Outcome: res.Outcome, Booking: b, Doctor: &doctor}, nil
}

// ListBookings returns all bookings ordered by branch, day and slot.
func (s *Service) ListBookings() []ledger.Booking {
	return s.ledger.ListBookings()
}

// AttachCalendarLink records the calendar link of a booking.
func (s *Service) AttachCalendarLink(bookingID, link string) bool {
	return s.ledger.AttachCalendarLink(bookingID, link)
}

func (s *Service) bookingCreated(b *ledger.Booking) events.BookingCreated {
	return events.BookingCreated{
		BookingID:   b.ID,
		PatientName: b.PatientName,
		Branch:      b.Branch.String(),
		Day:         b.Day.String(),
		Date:        b.Date.Format("2006-01-02"),
		Slot:        b.Slot.String(),
		SlotLabel:   b.Slot.Label(),
		Start:       b.Start(),
		End:         b.End(),
		Timezone:    s.loc.String(),
		DoctorName:  s.doctor.Name,
		CreatedAt:   b.CreatedAt,
	}
}
