// Package ledger holds accepted appointments and enforces that a branch, day
// and slot can be booked at most once.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"receptionist/internal/schedule"
)

// DefaultFirstNumber is the numeric part of the first appointment ID (APT1001).
const DefaultFirstNumber = 1001

// Key identifies a bookable unit. At most one Booking exists per Key.
type Key struct {
	Branch schedule.Branch
	Day    schedule.Day
	Slot   schedule.Slot
}

// Booking is an accepted appointment. Only the Ledger creates bookings.
type Booking struct {
	ID           string          `json:"id"`
	PatientName  string          `json:"patientName"`
	Branch       schedule.Branch `json:"branch"`
	Day          schedule.Day    `json:"day"`
	Slot         schedule.Slot   `json:"slot"`
	Date         time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"createdAt"`
	CalendarLink string          `json:"calendarLink,omitempty"`
}

// Key returns the booking's uniqueness key.
func (b Booking) Key() Key {
	return Key{Branch: b.Branch, Day: b.Day, Slot: b.Slot}
}

// Start and End return the appointment window on the booking date.
func (b Booking) Start() time.Time {
	start, _ := b.Slot.On(b.Date)
	return start
}

func (b Booking) End() time.Time {
	_, end := b.Slot.On(b.Date)
	return end
}

// Outcome is the closed set of results of BookAppointment.
type Outcome uint8

const (
	OutcomeBooked Outcome = iota + 1
	OutcomeInvalidPatientName
	OutcomeBranchClosedOnDay
	OutcomeUnknownSlot
	OutcomeSlotAlreadyBooked
)

var outcomeNames = map[Outcome]string{
	OutcomeBooked:             "Booked",
	OutcomeInvalidPatientName: "InvalidPatientName",
	OutcomeBranchClosedOnDay:  "BranchClosedOnDay",
	OutcomeUnknownSlot:        "UnknownSlot",
	OutcomeSlotAlreadyBooked:  "SlotAlreadyBooked",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is returned by BookAppointment. Booking is set only for OutcomeBooked.
type Result struct {
	Outcome Outcome
	Booking *Booking
}

// Availability is the answer to CheckAvailability.
type Availability struct {
	Valid          bool
	AvailableSlots []schedule.Slot
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now, used for CreatedAt and booking dates.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the clinic time zone used to resolve booking dates.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithFirstNumber sets the number of the first appointment ID.
func WithFirstNumber(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.next = n
		}
	}
}

// Ledger is the in-memory booking store. It is safe for concurrent use.
type Ledger struct {
	catalog *schedule.Catalog
	now     func() time.Time
	loc     *time.Location

	mu       sync.RWMutex
	bookings map[Key]*Booking
	byID     map[string]Key
	next     int
}

// New constructs an empty ledger validating against catalog.
func New(catalog *schedule.Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		catalog:  catalog,
		now:      time.Now,
		loc:      time.Local,
		bookings: make(map[Key]*Booking),
		byID:     make(map[string]Key),
		next:     DefaultFirstNumber,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAvailability returns the free slots of branch on day. A closed day is a
// normal negative answer with Valid=false and no slots.
func (l *Ledger) CheckAvailability(branch schedule.Branch, day schedule.Day) (Availability, error) {
	open, err := l.catalog.IsOperatingDay(branch, day)
	if err != nil {
		return Availability{}, err
	}
	if !open {
		return Availability{Valid: false, AvailableSlots: []schedule.Slot{}}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	free := make([]schedule.Slot, 0, len(l.catalog.ListSlots()))
	for _, slot := range l.catalog.ListSlots() {
		if _, taken := l.bookings[Key{Branch: branch, Day: day, Slot: slot}]; !taken {
			free = append(free, slot)
		}
	}
	return Availability{Valid: true, AvailableSlots: free}, nil
}

// BookAppointment books slot at branch on day for patientName. Preconditions are
// checked in order: name, operating day, slot offered, slot free. Only values
// outside the branch or day enumerations produce an error.
func (l *Ledger) BookAppointment(patientName string, branch schedule.Branch, day schedule.Day, slot schedule.Slot) (Result, error) {
	open, err := l.catalog.IsOperatingDay(branch, day)
	if err != nil {
		return Result{}, err
	}

	name := strings.TrimSpace(patientName)
	switch {
	case name == "":
		return Result{Outcome: OutcomeInvalidPatientName}, nil
	case !open:
		return Result{Outcome: OutcomeBranchClosedOnDay}, nil
	case !l.catalog.HasSlot(slot):
		return Result{Outcome: OutcomeUnknownSlot}, nil
	}

	key := Key{Branch: branch, Day: day, Slot: slot}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.bookings[key]; taken {
		return Result{Outcome: OutcomeSlotAlreadyBooked}, nil
	}

	now := l.now().In(l.loc)
	b := &Booking{
		ID:          fmt.Sprintf("APT%d", l.next),
		PatientName: name,
		Branch:      branch,
		Day:         day,
		Slot:        slot,
		Date:        nextDate(now, day),
		CreatedAt:   now,
	}
	l.next++
	l.bookings[key] = b
	l.byID[b.ID] = key

	created := *b
	return Result{Outcome: OutcomeBooked, Booking: &created}, nil
}

// ListBookings returns a snapshot of all bookings ordered by branch, day and slot.
func (l *Ledger) ListBookings() []Booking {
	l.mu.RLock()
	out := make([]Booking, 0, len(l.bookings))
	for _, b := range l.bookings {
		out = append(out, *b)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Branch != b.Branch {
			return a.Branch < b.Branch
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Slot.StartHour() < b.Slot.StartHour()
	})
	return out
}

// Len returns the number of bookings held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bookings)
}

// AttachCalendarLink records the calendar event link of booking id. The
// booking's key and patient data are untouched.
func (l *Ledger) AttachCalendarLink(id, link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, ok := l.byID[id]
	if !ok {
		return false
	}
	l.bookings[key].CalendarLink = link
	return true
}

// nextDate returns midnight of the next date falling on day, today included.
func nextDate(now time.Time, day schedule.Day) time.Time {
	ahead := (int(day.Weekday()) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d+ahead, 0, 0, 0, 0, now.Location())
}
