package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frahmantamala/audit-management/internal"
	goredis "github.com/redis/go-redis/v9"
)

// Envelope is the JSON message published on a recipient channel.
type Envelope struct {
	Event   string      `json:"event"`
	UserID  int64       `json:"user_id"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Dispatcher publishes real-time events on "<prefix>:user:<id>" channels.
type Dispatcher struct {
	client goredis.UniversalClient
	prefix string
}

func NewDispatcher(client goredis.UniversalClient, prefix string) *Dispatcher {
	if prefix == "" {
		prefix = "notifications"
	}
	return &Dispatcher{client: client, prefix: prefix}
}

func (d *Dispatcher) Channel(userID int64) string {
	return fmt.Sprintf("%s:user:%d", d.prefix, userID)
}

func (d *Dispatcher) Emit(ctx context.Context, userID int64, event string, payload interface{}) error {
	body, err := json.Marshal(Envelope{Event: event, UserID: userID, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := d.client.Publish(ctx, d.Channel(userID), body).Err(); err != nil {
		return fmt.Errorf("publish %s to user %d: %w", event, userID, err)
	}
	return nil
}

// NewClient connects and pings within the configured dial timeout.
func NewClient(ctx context.Context, cfg internal.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := internal.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
