package tools

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"receptionist/internal/ledger"
	"receptionist/internal/reception"
	"receptionist/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pkt = time.FixedZone("PKT", 5*60*60)

type mockReception struct {
	mock.Mock
}

func (m *mockReception) CurrentDateTime() reception.DateTime {
	args := m.Called()
	return args.Get(0).(reception.DateTime)
}

func (m *mockReception) CheckAvailability(branch schedule.Branch, day schedule.Day) (reception.AvailabilityResult, error) {
	args := m.Called(branch, day)
	return args.Get(0).(reception.AvailabilityResult), args.Error(1)
}

func (m *mockReception) BookAppointment(patientName string, branch schedule.Branch, day schedule.Day, slot schedule.Slot) (reception.BookingResult, error) {
	args := m.Called(patientName, branch, day, slot)
	return args.Get(0).(reception.BookingResult), args.Error(1)
}

func (m *mockReception) ListBookings() []ledger.Booking {
	args := m.Called()
	return args.Get(0).([]ledger.Booking)
}

func newLiveRegistry(t *testing.T) *Registry {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 11, 17, 9, 0, 0, 0, pkt) }
	catalog := schedule.DefaultCatalog()
	l := ledger.New(catalog, ledger.WithClock(now), ledger.WithLocation(pkt))
	logger := zerolog.New(io.Discard)
	svc := reception.NewService(l, catalog, reception.Doctor{Name: "Dr. Sarah Khan"}, &logger,
		reception.WithClock(now), reception.WithLocation(pkt))
	return NewRegistry(svc, catalog, pkt)
}

func TestDefinitions(t *testing.T) {
	r := NewRegistry(new(mockReception), schedule.DefaultCatalog(), pkt)

	defs := r.Definitions()
	require.Len(t, defs, 4)
	names := []string{defs[0].Name, defs[1].Name, defs[2].Name, defs[3].Name}
	assert.Equal(t, []string{"getCurrentDateAndTime", "checkAvailability", "bookAppointment", "listBookings"}, names)

	book := defs[2]
	require.Len(t, book.Parameters, 4)
	assert.Equal(t, "patientName", book.Parameters[0].Name)
	assert.Equal(t, []string{"Sialkot", "Lahore"}, book.Parameters[1].Enum)
	slot := book.Parameters[3]
	assert.Len(t, slot.Enum, 8)
	for _, v := range slot.Enum {
		assert.Contains(t, slot.Description, v)
	}
	assert.NotContains(t, slot.Description, "AM")
}

func TestCall_UnknownTool(t *testing.T) {
	r := NewRegistry(new(mockReception), schedule.DefaultCatalog(), pkt)

	_, err := r.Call(context.Background(), "cancelAppointment", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestCall_CanceledContext(t *testing.T) {
	svc := new(mockReception)
	r := NewRegistry(svc, schedule.DefaultCatalog(), pkt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Call(ctx, NameListBookings, nil)
	assert.ErrorIs(t, err, context.Canceled)
	svc.AssertNotCalled(t, "ListBookings")
}

func TestCall_CurrentDateAndTime(t *testing.T) {
	svc := new(mockReception)
	now := time.Date(2025, 11, 17, 14, 5, 0, 0, pkt)
	svc.On("CurrentDateTime").Return(reception.DateTime{
		Time:     now,
		Spoken:   now.Format(reception.SpokenTimeLayout),
		Timezone: "Asia/Karachi",
	})
	r := NewRegistry(svc, schedule.DefaultCatalog(), pkt)

	out, err := r.Call(context.Background(), NameGetCurrentDateAndTime, json.RawMessage(`{}`))
	require.NoError(t, err)
	res := out.(DateTimeResult)
	assert.Equal(t, "2025-11-17T14:05:00+05:00", res.DateTime)
	assert.Equal(t, "2025-11-17", res.Date)
	assert.Equal(t, "Monday", res.Day)
	assert.Equal(t, "Monday, November 17, 2025 at 02:05 PM", res.Spoken)
	svc.AssertExpectations(t)
}

func TestCall_InvalidArguments(t *testing.T) {
	r := NewRegistry(new(mockReception), schedule.DefaultCatalog(), pkt)

	tests := []struct {
		name string
		tool string
		args string
	}{
		{"malformed json", NameCheckAvailability, `{"branch":`},
		{"unknown field", NameCheckAvailability, `{"branch":"Sialkot","day":"Monday","city":"x"}`},
		{"unknown branch", NameCheckAvailability, `{"branch":"Karachi","day":"Monday"}`},
		{"unknown day", NameCheckAvailability, `{"branch":"Sialkot","day":"someday"}`},
		{"empty day", NameBookAppointment, `{"patientName":"Ali","branch":"Sialkot","day":"","slot":"10-11"}`},
		{"wrong type", NameBookAppointment, `{"patientName":7,"branch":"Sialkot","day":"Monday","slot":"10-11"}`},
		{"args on list", NameListBookings, `{"all":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(context.Background(), tt.tool, json.RawMessage(tt.args))
			assert.ErrorIs(t, err, schedule.ErrInvalidArgument)
		})
	}
}

func TestCall_DayTokens(t *testing.T) {
	svc := new(mockReception)
	svc.On("CurrentDateTime").Return(reception.DateTime{Time: time.Date(2025, 11, 17, 23, 30, 0, 0, pkt)}).Maybe()
	r := NewRegistry(svc, schedule.DefaultCatalog(), pkt)

	tests := []struct {
		token string
		want  schedule.Day
	}{
		{"Monday", schedule.Monday},
		{"sat", schedule.Saturday},
		{"2025-11-17", schedule.Monday},
		{"2025-11-22", schedule.Saturday},
		{"22 November 2025", schedule.Saturday},
		{"22 Nov 2025", schedule.Saturday},
		{"November 20, 2025", schedule.Thursday},
		{"2025-11-23", schedule.Sunday},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := r.parseDay(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCall_DatesOutsideBookingWindow(t *testing.T) {
	r := newLiveRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		date string
	}{
		{"more than a week ahead", "2025-12-04"},
		{"first day past the window", "2025-11-24"},
		{"yesterday", "2025-11-16"},
		{"previous year", "2024-01-04"},
		{"spelled out past date", "4 January 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(ctx, NameCheckAvailability, json.RawMessage(`{"branch":"Sialkot","day":"`+tt.date+`"}`))
			assert.ErrorIs(t, err, schedule.ErrInvalidArgument)

			_, err = r.Call(ctx, NameBookAppointment, json.RawMessage(
				`{"patientName":"Ali Khan","branch":"Sialkot","day":"`+tt.date+`","slot":"10-11"}`))
			assert.ErrorIs(t, err, schedule.ErrInvalidArgument)
		})
	}

	out, err := r.Call(ctx, NameListBookings, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.(ListResult).Count)
}

func TestCall_BookAppointmentKeepsRequestedDate(t *testing.T) {
	r := newLiveRegistry(t)

	out, err := r.Call(context.Background(), NameBookAppointment, json.RawMessage(
		`{"patientName":"Hina","branch":"Lahore","day":"2025-11-21","slot":"10-11"}`))
	require.NoError(t, err)
	res := out.(BookingResult)
	require.Equal(t, "Booked", res.Outcome)
	assert.Equal(t, "Friday", res.Booking.Day)
	assert.Equal(t, "2025-11-21", res.Booking.Date)
}

func TestCall_CheckAvailabilityPassesThrough(t *testing.T) {
	svc := new(mockReception)
	svc.On("CheckAvailability", schedule.BranchSialkot, schedule.Thursday).Return(reception.AvailabilityResult{
		Branch:         schedule.BranchSialkot,
		Day:            schedule.Thursday,
		Valid:          false,
		AvailableSlots: []schedule.Slot{},
		Alternatives:   []schedule.Branch{schedule.BranchLahore},
	}, nil)
	r := NewRegistry(svc, schedule.DefaultCatalog(), pkt)

	out, err := r.Call(context.Background(), NameCheckAvailability, json.RawMessage(`{"branch":"sialkot","day":"thursday"}`))
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"branch":"Sialkot","day":"Thursday","valid":false,
		"availableSlots":[],"availableSlotLabels":[],
		"alternativeBranches":["Lahore"]
	}`, string(data))
	svc.AssertExpectations(t)
}

func TestCall_BookAppointmentEndToEnd(t *testing.T) {
	r := newLiveRegistry(t)
	ctx := context.Background()

	out, err := r.Call(ctx, NameBookAppointment, json.RawMessage(
		`{"patientName":"Ali Khan","branch":"Sialkot","day":"Monday","slot":"10:00 AM - 11:00 AM"}`))
	require.NoError(t, err)
	res := out.(BookingResult)
	assert.Equal(t, "Booked", res.Outcome)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "APT1001", res.Booking.ID)
	assert.Equal(t, "10-11", res.Booking.Slot)
	assert.Equal(t, "2025-11-17", res.Booking.Date)
	require.NotNil(t, res.Doctor)
	assert.Equal(t, "Dr. Sarah Khan", res.Doctor.Name)

	out, err = r.Call(ctx, NameBookAppointment, json.RawMessage(
		`{"patientName":"Sara","branch":"Sialkot","day":"mon","slot":"10-11"}`))
	require.NoError(t, err)
	assert.Equal(t, "SlotAlreadyBooked", out.(BookingResult).Outcome)
	assert.Nil(t, out.(BookingResult).Booking)

	out, err = r.Call(ctx, NameCheckAvailability, json.RawMessage(`{"branch":"Sialkot","day":"Monday"}`))
	require.NoError(t, err)
	avail := out.(AvailabilityResult)
	assert.True(t, avail.Valid)
	assert.NotContains(t, avail.AvailableSlots, "10-11")
	assert.Len(t, avail.AvailableSlots, 7)

	out, err = r.Call(ctx, NameListBookings, nil)
	require.NoError(t, err)
	list := out.(ListResult)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "Ali Khan", list.Bookings[0].PatientName)
}

func TestCall_BookAppointmentOutcomes(t *testing.T) {
	r := newLiveRegistry(t)

	tests := []struct {
		name string
		args string
		want string
	}{
		{"blank name", `{"patientName":"  ","branch":"Lahore","day":"Friday","slot":"10-11"}`, "InvalidPatientName"},
		{"blank name beats closed day", `{"patientName":"","branch":"Lahore","day":"Monday","slot":"nonsense"}`, "InvalidPatientName"},
		{"closed day", `{"patientName":"Ali","branch":"Lahore","day":"Monday","slot":"10-11"}`, "BranchClosedOnDay"},
		{"closed day beats bad slot", `{"patientName":"Ali","branch":"Lahore","day":"Sunday","slot":"nonsense"}`, "BranchClosedOnDay"},
		{"unparseable slot", `{"patientName":"Ali","branch":"Lahore","day":"Friday","slot":"lunchtime"}`, "UnknownSlot"},
		{"slot not offered", `{"patientName":"Ali","branch":"Lahore","day":"Friday","slot":"14-15"}`, "UnknownSlot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Call(context.Background(), NameBookAppointment, json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.(BookingResult).Outcome)
		})
	}
}
