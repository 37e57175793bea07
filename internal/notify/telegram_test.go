package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"receptionist/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func noDelay() RetryConfig {
	return RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{0, 0}}
}

func bookingEvent(t *testing.T, id string) events.Event {
	t.Helper()
	payload, err := json.Marshal(events.BookingCreated{
		BookingID:   id,
		PatientName: "Ali Khan",
		Branch:      "Sialkot",
		Day:         "Monday",
		Date:        "2025-11-17",
		SlotLabel:   "10:00 AM - 11:00 AM",
		DoctorName:  "Dr. Sarah Khan",
	})
	require.NoError(t, err)
	return events.Event{Type: events.TypeBookingCreated, Payload: payload}
}

func chatIs(chatID int64) any {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID
	})
}

func TestFormatBooking(t *testing.T) {
	text := FormatBooking(events.BookingCreated{
		BookingID:   "APT1001",
		PatientName: "Ali Khan",
		Branch:      "Sialkot",
		Day:         "Monday",
		Date:        "2025-11-17",
		SlotLabel:   "10:00 AM - 11:00 AM",
	})

	assert.Equal(t, "New appointment booked\n"+
		"ID: APT1001\n"+
		"Patient: Ali Khan\n"+
		"Branch: Sialkot\n"+
		"When: Monday 2025-11-17, 10:00 AM - 11:00 AM", text)
}

func TestNotifier_SendsToEveryManager(t *testing.T) {
	sender := new(mockSender)
	done := make(chan struct{}, 2)
	sender.On("Send", chatIs(1)).Return(tgbotapi.Message{}, nil).Run(func(mock.Arguments) { done <- struct{}{} }).Once()
	sender.On("Send", chatIs(2)).Return(tgbotapi.Message{}, nil).Run(func(mock.Arguments) { done <- struct{}{} }).Once()

	n := NewNotifier(sender, []int64{1, 2}, 10, noDelay(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, n.Handle(bookingEvent(t, "APT1001")))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("notification not sent")
		}
	}
	sender.AssertExpectations(t)
}

func TestNotifier_HandleIgnoresOtherEventsAndRejectsBadPayload(t *testing.T) {
	n := NewNotifier(new(mockSender), []int64{1}, 1, noDelay(), nil)

	assert.NoError(t, n.Handle(events.Event{Type: "other"}))
	assert.Error(t, n.Handle(events.Event{Type: events.TypeBookingCreated, Payload: []byte("{")}))
	assert.Len(t, n.queue, 0)
}

func TestNotifier_DropsWhenQueueFull(t *testing.T) {
	n := NewNotifier(new(mockSender), []int64{1}, 1, noDelay(), nil)

	require.NoError(t, n.Handle(bookingEvent(t, "APT1001")))
	require.NoError(t, n.Handle(bookingEvent(t, "APT1002")))
	assert.Len(t, n.queue, 1)
}

func TestSendWithRetry(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", chatIs(7)).Return(tgbotapi.Message{}, errors.New("timeout")).Twice()
		sender.On("Send", chatIs(7)).Return(tgbotapi.Message{}, nil).Once()

		n := NewNotifier(sender, nil, 1, noDelay(), nil)
		assert.NoError(t, n.sendWithRetry(context.Background(), 7, "hi"))
		sender.AssertNumberOfCalls(t, "Send", 3)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", chatIs(7)).Return(tgbotapi.Message{}, errors.New("timeout"))

		n := NewNotifier(sender, nil, 1, noDelay(), nil)
		err := n.sendWithRetry(context.Background(), 7, "hi")
		assert.ErrorContains(t, err, "max retries exceeded")
		sender.AssertNumberOfCalls(t, "Send", 3)
	})

	t.Run("blocked bot is not retried", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", chatIs(7)).Return(tgbotapi.Message{}, &tgbotapi.Error{Code: 403, Message: "Forbidden"})

		n := NewNotifier(sender, nil, 1, noDelay(), nil)
		assert.Error(t, n.sendWithRetry(context.Background(), 7, "hi"))
		sender.AssertNumberOfCalls(t, "Send", 1)
	})
}
