// Package calendar mirrors accepted bookings into Google Calendar. Sync is
// best effort: failures are logged and counted, and never affect the ledger.
package calendar

import (
	"context"
	"fmt"
	"time"

	"receptionist/internal/events"
	"receptionist/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
)

// EventInserter creates a calendar event and returns its link.
type EventInserter interface {
	Insert(ctx context.Context, event *gcal.Event) (string, error)
}

// Linker records the calendar link of a booking.
type Linker interface {
	AttachCalendarLink(bookingID, link string) bool
}

// Syncer consumes booking.created events on a worker goroutine.
type Syncer struct {
	inserter EventInserter
	linker   Linker
	limiter  *rate.Limiter
	queue    chan events.BookingCreated
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewSyncer creates a syncer allowing requestsPerMinute inserts.
func NewSyncer(inserter EventInserter, linker Linker, requestsPerMinute, queueSize int, logger *zerolog.Logger) *Syncer {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "calendar_sync").Logger()
	}
	return &Syncer{
		inserter: inserter,
		linker:   linker,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		queue:    make(chan events.BookingCreated, queueSize),
		timeout:  15 * time.Second,
		logger:   l,
	}
}

// Handle is an events.EventHandler. It never blocks.
func (s *Syncer) Handle(event events.Event) error {
	if event.Type != events.TypeBookingCreated {
		return nil
	}
	var payload events.BookingCreated
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	select {
	case s.queue <- payload:
	default:
		metrics.IncCalendarSync("dropped")
		s.logger.Warn().Str("booking_id", payload.BookingID).Msg("calendar queue full, dropping")
	}
	return nil
}

// Run processes queued bookings until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.sync(ctx, b); err != nil {
				metrics.IncCalendarSync("failed")
				s.logger.Error().Err(err).Str("booking_id", b.BookingID).Msg("calendar sync failed")
				continue
			}
			metrics.IncCalendarSync("ok")
		}
	}
}

func (s *Syncer) sync(ctx context.Context, b events.BookingCreated) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.inserter.Insert(ctx, BuildEvent(b))
	if err != nil {
		return err
	}
	if link != "" && s.linker != nil && !s.linker.AttachCalendarLink(b.BookingID, link) {
		s.logger.Warn().Str("booking_id", b.BookingID).Msg("booking not found for calendar link")
	}
	s.logger.Info().Str("booking_id", b.BookingID).Str("link", link).Msg("calendar event created")
	return nil
}

// BuildEvent maps a booking to a calendar event.
func BuildEvent(b events.BookingCreated) *gcal.Event {
	description := "Doctor consultation appointment."
	if b.DoctorName != "" {
		description = fmt.Sprintf("Doctor consultation appointment with %s.", b.DoctorName)
	}
	return &gcal.Event{
		Summary:     "Doctor Appointment - " + b.PatientName,
		Location:    b.Branch,
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: b.Start.Format(time.RFC3339),
			TimeZone: b.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: b.End.Format(time.RFC3339),
			TimeZone: b.Timezone,
		},
	}
}
