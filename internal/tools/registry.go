// Package tools binds the reception operations to named function-calling
// tools with JSON arguments and structured JSON results.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist/internal/ledger"
	"receptionist/internal/metrics"
	"receptionist/internal/reception"
	"receptionist/internal/schedule"
)

// Tool names understood by the dialogue layer.
const (
	NameGetCurrentDateAndTime = "getCurrentDateAndTime"
	NameCheckAvailability     = "checkAvailability"
	NameBookAppointment       = "bookAppointment"
	NameListBookings          = "listBookings"
)

const dateLayout = "2006-01-02"

// ErrUnknownTool is returned by Call for names outside Definitions.
var ErrUnknownTool = errors.New("unknown tool")

// Reception is the subset of reception.Service used by the registry.
type Reception interface {
	CurrentDateTime() reception.DateTime
	CheckAvailability(branch schedule.Branch, day schedule.Day) (reception.AvailabilityResult, error)
	BookAppointment(patientName string, branch schedule.Branch, day schedule.Day, slot schedule.Slot) (reception.BookingResult, error)
	ListBookings() []ledger.Booking
}

// Parameter describes one tool argument.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Definition describes a tool for the dialogue layer.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Registry dispatches tool calls to the reception service.
type Registry struct {
	svc     Reception
	catalog *schedule.Catalog
	loc     *time.Location
}

// NewRegistry creates a registry. Calendar dates passed as day tokens are
// interpreted in loc.
func NewRegistry(svc Reception, catalog *schedule.Catalog, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.Local
	}
	return &Registry{svc: svc, catalog: catalog, loc: loc}
}

// Definitions lists the tools in a stable order.
func (r *Registry) Definitions() []Definition {
	branches := make([]string, 0, len(schedule.Branches()))
	for _, b := range schedule.Branches() {
		branches = append(branches, b.String())
	}
	slots := make([]string, 0)
	for _, s := range r.catalog.ListSlots() {
		slots = append(slots, s.String())
	}

	branch := Parameter{Name: "branch", Type: "string", Description: "Clinic branch.", Required: true, Enum: branches}
	day := Parameter{
		Name:        "day",
		Type:        "string",
		Description: "Weekday name (e.g. Monday) or a date within the next 7 days, such as 2025-11-15 or 15 November 2025.",
		Required:    true,
	}

	return []Definition{
		{
			Name:        NameGetCurrentDateAndTime,
			Description: "Get the current date and time in the clinic time zone.",
			Parameters:  []Parameter{},
		},
		{
			Name:        NameCheckAvailability,
			Description: "Check which appointment slots are free at a branch on a day.",
			Parameters:  []Parameter{branch, day},
		},
		{
			Name:        NameBookAppointment,
			Description: "Book an appointment slot for a patient.",
			Parameters: []Parameter{
				{Name: "patientName", Type: "string", Description: "Full name of the patient.", Required: true},
				branch,
				day,
				{Name: "slot", Type: "string", Description: "Appointment slot as start-end hours, one of: " + strings.Join(slots, ", ") + ".", Required: true, Enum: slots},
			},
		},
		{
			Name:        NameListBookings,
			Description: "List every booked appointment.",
			Parameters:  []Parameter{},
		},
	}
}

// Call runs the named tool with JSON arguments. Malformed arguments and
// unrecognized branch or day tokens fail with schedule.ErrInvalidArgument.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		out any
		err error
	)
	switch name {
	case NameGetCurrentDateAndTime:
		out, err = r.currentDateTime(args)
	case NameCheckAvailability:
		out, err = r.checkAvailability(args)
	case NameBookAppointment:
		out, err = r.bookAppointment(args)
	case NameListBookings:
		out, err = r.listBookings(args)
	default:
		metrics.IncToolCall("unknown", "error")
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if err != nil {
		metrics.IncToolCall(name, "error")
		return nil, err
	}
	metrics.IncToolCall(name, "ok")
	return out, nil
}

func (r *Registry) currentDateTime(args json.RawMessage) (DateTimeResult, error) {
	if err := decodeArgs(args, &struct{}{}); err != nil {
		return DateTimeResult{}, err
	}
	now := r.svc.CurrentDateTime()
	return DateTimeResult{
		DateTime: now.Time.Format(time.RFC3339),
		Date:     now.Time.Format(dateLayout),
		Day:      schedule.DayOf(now.Time.Weekday()).String(),
		Spoken:   now.Spoken,
		Timezone: now.Timezone,
	}, nil
}

func (r *Registry) checkAvailability(args json.RawMessage) (AvailabilityResult, error) {
	var in struct {
		Branch string `json:"branch"`
		Day    string `json:"day"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return AvailabilityResult{}, err
	}
	branch, err := schedule.ParseBranch(in.Branch)
	if err != nil {
		return AvailabilityResult{}, err
	}
	day, err := r.parseDay(in.Day)
	if err != nil {
		return AvailabilityResult{}, err
	}

	res, err := r.svc.CheckAvailability(branch, day)
	if err != nil {
		return AvailabilityResult{}, err
	}

	out := AvailabilityResult{
		Branch:              res.Branch.String(),
		Day:                 res.Day.String(),
		Valid:               res.Valid,
		AvailableSlots:      make([]string, 0, len(res.AvailableSlots)),
		AvailableSlotLabels: make([]string, 0, len(res.AvailableSlots)),
		AlternativeBranches: make([]string, 0, len(res.Alternatives)),
	}
	for _, s := range res.AvailableSlots {
		out.AvailableSlots = append(out.AvailableSlots, s.String())
		out.AvailableSlotLabels = append(out.AvailableSlotLabels, s.Label())
	}
	for _, b := range res.Alternatives {
		out.AlternativeBranches = append(out.AlternativeBranches, b.String())
	}
	return out, nil
}

func (r *Registry) bookAppointment(args json.RawMessage) (BookingResult, error) {
	var in struct {
		PatientName string `json:"patientName"`
		Branch      string `json:"branch"`
		Day         string `json:"day"`
		Slot        string `json:"slot"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return BookingResult{}, err
	}
	branch, err := schedule.ParseBranch(in.Branch)
	if err != nil {
		return BookingResult{}, err
	}
	day, err := r.parseDay(in.Day)
	if err != nil {
		return BookingResult{}, err
	}

	// An unparseable slot is patient input: the zero Slot reaches the ledger,
	// which reports UnknownSlot after the name and closed-day checks.
	slot, _ := schedule.ParseSlot(in.Slot)

	res, err := r.svc.BookAppointment(in.PatientName, branch, day, slot)
	if err != nil {
		return BookingResult{}, err
	}

	out := BookingResult{Outcome: res.Outcome.String()}
	if res.Booking != nil {
		view := NewBookingView(*res.Booking)
		out.Booking = &view
	}
	out.Doctor = res.Doctor
	return out, nil
}

func (r *Registry) listBookings(args json.RawMessage) (ListResult, error) {
	if err := decodeArgs(args, &struct{}{}); err != nil {
		return ListResult{}, err
	}
	bookings := r.svc.ListBookings()
	out := ListResult{Bookings: make([]BookingView, 0, len(bookings))}
	for _, b := range bookings {
		out.Bookings = append(out.Bookings, NewBookingView(b))
	}
	out.Count = len(out.Bookings)
	return out, nil
}

// bookingWindowDays is how far ahead a calendar date may be. The ledger books
// the next occurrence of a weekday, so only dates in the coming week resolve
// to the date the patient asked for.
const bookingWindowDays = 7

// parseDay accepts a weekday name, or a calendar date from today through the
// next six days, which maps to its weekday.
func (r *Registry) parseDay(token string) (schedule.Day, error) {
	if day, err := schedule.ParseDay(token); err == nil {
		return day, nil
	}
	trimmed := strings.Join(strings.Fields(token), " ")
	for _, layout := range []string{dateLayout, "2 January 2006", "2 Jan 2006", "January 2 2006", "January 2, 2006"} {
		t, err := time.ParseInLocation(layout, trimmed, r.loc)
		if err != nil {
			continue
		}
		now := r.svc.CurrentDateTime().Time.In(r.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
		last := today.AddDate(0, 0, bookingWindowDays-1)
		if t.Before(today) {
			return 0, fmt.Errorf("%w: date %s is in the past", schedule.ErrInvalidArgument, t.Format(dateLayout))
		}
		if t.After(last) {
			return 0, fmt.Errorf("%w: date %s is beyond %s, the last bookable date",
				schedule.ErrInvalidArgument, t.Format(dateLayout), last.Format(dateLayout))
		}
		return schedule.DayOf(t.Weekday()), nil
	}
	return 0, fmt.Errorf("%w: unknown day %q", schedule.ErrInvalidArgument, token)
}

func decodeArgs(args json.RawMessage, out any) error {
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage("{}")
	}
	decoder := json.NewDecoder(bytes.NewReader(args))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", schedule.ErrInvalidArgument, err)
	}
	return nil
}
