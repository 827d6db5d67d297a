package postgres

import (
	"context"
	"time"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/notification"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *datamodel.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// NotificationQueries is the sqlx read model behind the inbox endpoints.
type NotificationQueries struct {
	db *sqlx.DB
}

func NewNotificationQueries(db *sqlx.DB) *NotificationQueries {
	return &NotificationQueries{db: db}
}

const notificationColumns = `id, tenant_id, user_id, type, title, message, link, metadata, is_read, read_at, created_at`

func (q *NotificationQueries) ListForUser(ctx context.Context, tenantID, userID int64, unreadOnly bool, limit, offset int) ([]*datamodel.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE tenant_id = ? AND user_id = ?`
	args := []interface{}{tenantID, userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows := make([]*datamodel.Notification, 0)
	if err := q.db.SelectContext(ctx, &rows, q.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q *NotificationQueries) CountUnread(ctx context.Context, tenantID, userID int64) (int, error) {
	var count int
	query := q.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE tenant_id = ? AND user_id = ? AND is_read = ?`)
	err := q.db.GetContext(ctx, &count, query, tenantID, userID, false)
	return count, err
}

func (q *NotificationQueries) MarkRead(ctx context.Context, tenantID, userID int64, id string, at time.Time) (bool, error) {
	query := q.db.Rebind(`UPDATE notifications SET is_read = ?, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND tenant_id = ? AND user_id = ?`)
	res, err := q.db.ExecContext(ctx, query, true, at, id, tenantID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
