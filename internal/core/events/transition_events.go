package events

import (
	"time"

	"github.com/google/uuid"
)

// TransitionEvent announces a workflow state change. Type is the trigger name.
type TransitionEvent struct {
	BaseEvent
	TenantID   int64                  `json:"tenant_id"`
	ActorID    int64                  `json:"actor_id"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Department string                 `json:"department,omitempty"`
	Reference  string                 `json:"reference,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

func NewTransitionEvent(trigger string, tenantID, actorID int64, entityType, entityID, department, reference string, extra map[string]interface{}) *TransitionEvent {
	return &TransitionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      trigger,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"tenant_id":   tenantID,
				"actor_id":    actorID,
				"entity_type": entityType,
				"entity_id":   entityID,
				"department":  department,
				"reference":   reference,
			},
		},
		TenantID:   tenantID,
		ActorID:    actorID,
		EntityType: entityType,
		EntityID:   entityID,
		Department: department,
		Reference:  reference,
		Extra:      extra,
	}
}
