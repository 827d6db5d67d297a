package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/audit-management/internal/core/events"
)

type EventHandler struct {
	router *Router
	logger *slog.Logger
}

func NewEventHandler(router *Router, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{router: router, logger: logger}
}

// RegisterHandlers subscribes the router to every trigger type on bus.
func (h *EventHandler) RegisterHandlers(bus *events.EventBus) {
	for _, trigger := range Triggers() {
		bus.Subscribe(string(trigger), h.HandleTransition)
	}
}

func (h *EventHandler) HandleTransition(ctx context.Context, event events.Event) error {
	te, ok := event.(*events.TransitionEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T for %s", event, event.EventType())
	}

	trigger := TriggerType(te.EventType())
	report, err := h.router.Route(ctx, trigger, Context{
		TenantID:   te.TenantID,
		ActorID:    te.ActorID,
		EntityType: te.EntityType,
		EntityID:   te.EntityID,
		Department: te.Department,
		Reference:  te.Reference,
		Extra:      te.Extra,
	})
	if err != nil {
		h.logger.Error("failed to route transition event",
			"event_id", te.EventID(), "trigger", trigger, "error", err)
		return err
	}

	h.logger.Info("transition event routed",
		"event_id", te.EventID(),
		"trigger", trigger,
		"persisted", report.Persisted,
		"failures", len(report.Failures))
	return nil
}
