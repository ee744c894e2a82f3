package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// BookingCanceller signals the booking module that a booking lost its deposit
// and must be cancelled.
type BookingCanceller interface {
	CancelBooking(ctx context.Context, bookingID, reason string) error
}

// Webhook posts the cancellation to the booking module's endpoint. An error
// leaves the deposit unnotified so the next sweep retries.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type cancelPayload struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

func (w *Webhook) CancelBooking(ctx context.Context, bookingID, reason string) error {
	body, err := json.Marshal(cancelPayload{BookingID: bookingID, Reason: reason})
	if err != nil {
		return fmt.Errorf("encode cancel payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send cancel request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cancel booking %s: unexpected status %d", bookingID, resp.StatusCode)
	}
	return nil
}

// LogOnly records the cancellation signal without delivering it anywhere.
// Used when no webhook is configured.
type LogOnly struct{}

func (LogOnly) CancelBooking(_ context.Context, bookingID, reason string) error {
	log.Info().
		Str("booking_id", bookingID).
		Str("reason", reason).
		Msg("booking cancellation signal (no webhook configured)")
	return nil
}
