// Package webhook forwards notification events to an external HTTP endpoint,
// for tenants that route alerts into chat or ticketing tools.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const SignatureHeader = "X-Audit-Signature"

type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Retries int
	// Backoff is the base delay before a retry; each attempt waits up to
	// twice as long as the previous one plus jitter.
	Backoff time.Duration
}

// Event is the JSON body posted for every emitted notification.
type Event struct {
	Event   string      `json:"event"`
	UserID  int64       `json:"user_id"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type Dispatcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) Emit(ctx context.Context, userID int64, event string, payload interface{}) error {
	body, err := json.Marshal(Event{Event: event, UserID: userID, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := d.cfg.Backoff<<(attempt-1) + time.Duration(rand.Int63n(int64(d.cfg.Backoff)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("webhook %s to user %d: %w", event, userID, ctx.Err())
			}
		}

		retry, err := d.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		d.logger.Warn("webhook delivery failed",
			"event", event,
			"user_id", userID,
			"attempt", attempt+1,
			"error", err)
		if !retry {
			break
		}
	}
	return fmt.Errorf("webhook %s to user %d: %w", event, userID, lastErr)
}

// post reports whether a failure is worth retrying: transport errors and
// 5xx or 429 responses are, other statuses are not.
func (d *Dispatcher) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(d.cfg.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
}
