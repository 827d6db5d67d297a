package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/audit-management/internal/core/common/validation"
	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Service struct {
	repo   Repository
	reads  ReadModel
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, reads ReadModel, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		reads:  reads,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateNotification durably stores one notification for one recipient.
func (s *Service) CreateNotification(ctx context.Context, in CreateInput) (*Notification, error) {
	if verr := validation.Struct(in); verr != nil {
		return nil, verr
	}

	n := &Notification{
		ID:        uuid.NewString(),
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Link:      in.Link,
		Metadata:  in.Metadata,
		CreatedAt: s.now(),
	}

	row, err := ToDataModel(n)
	if err != nil {
		s.logger.Error("failed to encode notification metadata", "error", err, "user_id", in.UserID)
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to persist notification", "error", err, "user_id", in.UserID, "type", in.Type)
		return nil, err
	}

	return n, nil
}

func (s *Service) List(ctx context.Context, tenantID, userID int64, q ListQuery) ([]*Notification, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.reads.ListForUser(ctx, tenantID, userID, q.UnreadOnly, limit, offset)
	if err != nil {
		s.logger.Error("failed to list notifications", "error", err, "user_id", userID)
		return nil, err
	}

	out := make([]*Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, tenantID, userID int64) (int, error) {
	return s.reads.CountUnread(ctx, tenantID, userID)
}

// MarkRead only touches notifications owned by userID inside tenantID.
func (s *Service) MarkRead(ctx context.Context, tenantID, userID int64, id string) error {
	updated, err := s.reads.MarkRead(ctx, tenantID, userID, id, s.now())
	if err != nil {
		s.logger.Error("failed to mark notification read", "error", err, "notification_id", id)
		return err
	}
	if !updated {
		return ErrNotificationNotFound
	}
	return nil
}
