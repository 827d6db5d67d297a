package notification

import (
	"context"
	"encoding/json"
	"time"

	errors "github.com/frahmantamala/audit-management/internal"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/notification"
)

// EventNew is the real-time event name emitted after a notification is stored.
const EventNew = "notification:new"

var ErrNotificationNotFound = errors.NewNotFoundError("Notification not found", errors.ErrCodeNotificationNotFound)

type Notification struct {
	ID        string                 `json:"id"`
	TenantID  int64                  `json:"tenant_id"`
	UserID    int64                  `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Link      string                 `json:"link,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, n *datamodel.Notification) error
}

type ReadModel interface {
	ListForUser(ctx context.Context, tenantID, userID int64, unreadOnly bool, limit, offset int) ([]*datamodel.Notification, error)
	CountUnread(ctx context.Context, tenantID, userID int64) (int, error)
	MarkRead(ctx context.Context, tenantID, userID int64, id string, at time.Time) (bool, error)
}

// Dispatcher pushes an event to one recipient's real-time channel. Delivery is
// best effort; callers must tolerate errors.
type Dispatcher interface {
	Emit(ctx context.Context, userID int64, event string, payload interface{}) error
}

type NopDispatcher struct{}

func (NopDispatcher) Emit(context.Context, int64, string, interface{}) error { return nil }

func ToDataModel(n *Notification) (*datamodel.Notification, error) {
	metadata := ""
	if len(n.Metadata) > 0 {
		raw, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = string(raw)
	}
	return &datamodel.Notification{
		ID:        n.ID,
		TenantID:  n.TenantID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Metadata:  metadata,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}, nil
}

func FromDataModel(row *datamodel.Notification) *Notification {
	n := &Notification{
		ID:        row.ID,
		TenantID:  row.TenantID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Link:      row.Link,
		IsRead:    row.IsRead,
		ReadAt:    row.ReadAt,
		CreatedAt: row.CreatedAt,
	}
	if row.Metadata != "" {
		// metadata is informational; a corrupt blob should not hide the notification
		_ = json.Unmarshal([]byte(row.Metadata), &n.Metadata)
	}
	return n
}
