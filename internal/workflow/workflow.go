package workflow

import (
	"context"
	"fmt"

	apperrors "github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/discovery"
	"github.com/frahmantamala/audit-management/internal/notification"
)

// Context describes the transition that fired a trigger.
type Context struct {
	TenantID   int64                  `json:"tenant_id" validate:"required"`
	ActorID    int64                  `json:"actor_id" validate:"required"`
	EntityType string                 `json:"entity_type" validate:"required"`
	EntityID   string                 `json:"entity_id" validate:"required"`
	Department string                 `json:"department,omitempty"`
	Reference  string                 `json:"reference,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

func (c Context) label() string {
	if c.Reference != "" {
		return c.Reference
	}
	return c.EntityType + " " + c.EntityID
}

func (c Context) metadata() map[string]interface{} {
	md := map[string]interface{}{
		"entity_type": c.EntityType,
		"entity_id":   c.EntityID,
		"actor_id":    c.ActorID,
	}
	if c.Department != "" {
		md["department"] = c.Department
	}
	if c.Reference != "" {
		md["reference"] = c.Reference
	}
	if len(c.Extra) > 0 {
		md["extra"] = c.Extra
	}
	return md
}

// Plan is a resolved, not yet delivered, audience for one trigger.
type Plan struct {
	Rule       Rule
	Context    Context
	Recipients []discovery.Recipient
}

type FailureStage string

const (
	StagePersist  FailureStage = "persist"
	StageDispatch FailureStage = "dispatch"
)

// DeliveryFailure records one recipient that could not be fully notified.
// A dispatch failure still has a persisted notification.
type DeliveryFailure struct {
	UserID         int64        `json:"user_id"`
	Stage          FailureStage `json:"stage"`
	NotificationID string       `json:"notification_id,omitempty"`
	Message        string       `json:"message"`
	Err            error        `json:"-"`
}

type Report struct {
	Trigger         TriggerType       `json:"trigger"`
	Planned         int               `json:"planned"`
	Persisted       int               `json:"persisted"`
	Dispatched      int               `json:"dispatched"`
	NotificationIDs []string          `json:"notification_ids,omitempty"`
	Failures        []DeliveryFailure `json:"failures,omitempty"`
}

func (r Report) Complete() bool {
	return len(r.Failures) == 0
}

// EmptyAudienceError is returned by Plan when a required trigger finds nobody.
type EmptyAudienceError struct {
	Trigger    TriggerType
	Capability string
	Department string
}

func (e *EmptyAudienceError) Error() string {
	if e.Department != "" {
		return fmt.Sprintf("no recipient holds %s in department %q for %s", e.Capability, e.Department, e.Trigger)
	}
	return fmt.Sprintf("no recipient holds %s for %s", e.Capability, e.Trigger)
}

// Unwrap exposes the HTTP shape of the error to errors.As.
func (e *EmptyAudienceError) Unwrap() error {
	return apperrors.NewConflictError(e.Error(), apperrors.ErrCodeEmptyAudience)
}

var ErrUnknownTrigger = apperrors.NewValidationError("unknown workflow trigger", apperrors.ErrCodeUnknownTrigger)

type Finder interface {
	FindPrincipalsWithCapability(ctx context.Context, tenantID int64, module, action, department string) ([]discovery.Recipient, error)
}

type NotificationCreator interface {
	CreateNotification(ctx context.Context, in notification.CreateInput) (*notification.Notification, error)
}

// Deliverer is what an Outbox needs to flush.
type Deliverer interface {
	Deliver(ctx context.Context, plan *Plan) Report
}
