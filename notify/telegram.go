// Package notify delivers best-effort login notifications to an external
// chat channel. Delivery is fire-and-forget: failures are logged by the
// caller and must never affect the authentication outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event describes one login attempt.
type Event struct {
	// ID is a unique identifier for this notification.
	ID string
	// Success reports whether the attempt authenticated.
	Success bool
	// ClientID is the rate-limit client identifier of the attempt.
	ClientID string
	// Time is when the attempt happened.
	Time time.Time
}

// Notifier delivers login attempt notifications.
type Notifier interface {
	LoginAttempt(ctx context.Context, ev Event) error
}

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends notifications via the Telegram Bot API.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram creates a notifier posting to the given chat.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		token:   botToken,
		chatID:  chatID,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// LoginAttempt posts a short message describing the attempt.
func (t *Telegram) LoginAttempt(ctx context.Context, ev Event) error {
	outcome := "failed"
	if ev.Success {
		outcome = "successful"
	}
	text := fmt.Sprintf("keygate: %s login attempt from %s at %s (id %s)",
		outcome, ev.ClientID, ev.Time.UTC().Format(time.RFC3339), ev.ID)

	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("encoding telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}
