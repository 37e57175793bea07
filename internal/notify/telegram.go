// Package notify tells clinic managers about new bookings over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist/internal/events"
	"receptionist/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  2,
		RetryDelays: []time.Duration{1 * time.Second, 5 * time.Second},
	}
}

// Notifier queues booking.created events and sends a summary to every
// manager chat.
type Notifier struct {
	sender  TelegramSender
	chatIDs []int64
	queue   chan events.BookingCreated
	retry   RetryConfig
	logger  zerolog.Logger
}

// NewNotifier creates a notifier. Handle drops events when queueSize
// notifications are already pending.
func NewNotifier(sender TelegramSender, chatIDs []int64, queueSize int, retry RetryConfig, logger *zerolog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 100
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram_notify").Logger()
	}
	return &Notifier{
		sender:  sender,
		chatIDs: append([]int64(nil), chatIDs...),
		queue:   make(chan events.BookingCreated, queueSize),
		retry:   retry,
		logger:  l,
	}
}

// Handle is an events.EventHandler. It never blocks.
func (n *Notifier) Handle(event events.Event) error {
	if event.Type != events.TypeBookingCreated {
		return nil
	}
	var payload events.BookingCreated
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	select {
	case n.queue <- payload:
	default:
		metrics.IncNotification("dropped")
		n.logger.Warn().Str("booking_id", payload.BookingID).Msg("notification queue full, dropping")
	}
	return nil
}

// Run sends queued notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-n.queue:
			text := FormatBooking(b)
			for _, chatID := range n.chatIDs {
				if err := n.sendWithRetry(ctx, chatID, text); err != nil {
					metrics.IncNotification("failed")
					n.logger.Error().Err(err).Int64("chat_id", chatID).Str("booking_id", b.BookingID).Msg("failed to notify manager")
					continue
				}
				metrics.IncNotification("sent")
			}
		}
	}
}

func (n *Notifier) sendWithRetry(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		_, err := n.sender.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		var wait time.Duration
		if attempt < len(n.retry.RetryDelays) {
			wait = n.retry.RetryDelays[attempt]
		}

		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
			case 400, 403:
				// Bad chat id or bot blocked; retrying will not help.
				return err
			}
		}

		if attempt == n.retry.MaxRetries {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// FormatBooking renders the manager message for a booking.
func FormatBooking(b events.BookingCreated) string {
	var sb strings.Builder
	sb.WriteString("New appointment booked\n")
	fmt.Fprintf(&sb, "ID: %s\n", b.BookingID)
	fmt.Fprintf(&sb, "Patient: %s\n", b.PatientName)
	fmt.Fprintf(&sb, "Branch: %s\n", b.Branch)
	fmt.Fprintf(&sb, "When: %s %s, %s\n", b.Day, b.Date, b.SlotLabel)
	if b.DoctorName != "" {
		fmt.Fprintf(&sb, "Doctor: %s\n", b.DoctorName)
	}
	return strings.TrimRight(sb.String(), "\n")
}
