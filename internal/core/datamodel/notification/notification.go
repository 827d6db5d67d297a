package notification

import "time"

type Notification struct {
	ID        string     `gorm:"primaryKey;column:id;type:varchar(36)" db:"id"`
	TenantID  int64      `gorm:"column:tenant_id;not null;index:idx_notifications_target" db:"tenant_id"`
	UserID    int64      `gorm:"column:user_id;not null;index:idx_notifications_target" db:"user_id"`
	Type      string     `gorm:"column:type;not null" db:"type"`
	Title     string     `gorm:"column:title;not null" db:"title"`
	Message   string     `gorm:"column:message;not null" db:"message"`
	Link      string     `gorm:"column:link" db:"link"`
	Metadata  string     `gorm:"column:metadata;type:text" db:"metadata"`
	IsRead    bool       `gorm:"column:is_read;default:false" db:"is_read"`
	ReadAt    *time.Time `gorm:"column:read_at" db:"read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" db:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
