package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/core/common/validation"
	"github.com/frahmantamala/audit-management/internal/discovery"
	"github.com/frahmantamala/audit-management/internal/notification"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

type Options struct {
	Concurrency     int
	DispatchTimeout time.Duration
	LinkBaseURL     string
}

type Router struct {
	finder     Finder
	creator    NotificationCreator
	dispatcher notification.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	opts       Options
}

func NewRouter(finder Finder, creator NotificationCreator, dispatcher notification.Dispatcher, metrics *Metrics, logger *slog.Logger, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = notification.NopDispatcher{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Router{
		finder:     finder,
		creator:    creator,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// Route plans and delivers a trigger in one call.
func (r *Router) Route(ctx context.Context, trigger TriggerType, wc Context) (Report, error) {
	plan, err := r.Plan(ctx, trigger, wc)
	if err != nil {
		return Report{Trigger: trigger}, err
	}
	return r.Deliver(ctx, plan), nil
}

// Plan resolves the audience of trigger without side effects. The actor never
// receives their own notification.
func (r *Router) Plan(ctx context.Context, trigger TriggerType, wc Context) (*Plan, error) {
	rule, ok := RuleFor(trigger)
	if !ok {
		return nil, ErrUnknownTrigger
	}
	if verr := validation.Struct(wc); verr != nil {
		return nil, verr
	}

	wc.Department = strings.TrimSpace(wc.Department)
	department := ""
	if rule.DepartmentScoped {
		if wc.Department == "" {
			return nil, apperrors.NewValidationFieldError("department",
				fmt.Sprintf("department is required for %s", trigger), apperrors.ErrCodeValidationFailed)
		}
		department = wc.Department
	}

	found, err := r.finder.FindPrincipalsWithCapability(ctx, wc.TenantID, rule.Module, rule.Action, department)
	if err != nil {
		r.logger.Error("recipient discovery failed", "trigger", trigger, "tenant_id", wc.TenantID, "error", err)
		return nil, err
	}

	audience := make([]discovery.Recipient, 0, len(found))
	seen := make(map[int64]struct{}, len(found))
	for _, rcpt := range found {
		if rcpt.UserID == wc.ActorID {
			continue
		}
		if _, dup := seen[rcpt.UserID]; dup {
			continue
		}
		seen[rcpt.UserID] = struct{}{}
		audience = append(audience, rcpt)
	}

	if len(audience) == 0 {
		if rule.Required {
			r.metrics.recordEmptyAudience(trigger)
			r.logger.Warn("required trigger has no audience",
				"trigger", trigger, "tenant_id", wc.TenantID, "department", department, "capability", rule.Capability())
			return nil, &EmptyAudienceError{Trigger: trigger, Capability: rule.Capability(), Department: department}
		}
		r.logger.Debug("optional trigger has no audience", "trigger", trigger, "tenant_id", wc.TenantID)
	}

	return &Plan{Rule: rule, Context: wc, Recipients: audience}, nil
}

type outcome struct {
	notificationID string
	persisted      bool
	dispatched     bool
	failure        *DeliveryFailure
}

// Deliver persists one notification per recipient and then pushes it on the
// real-time channel. Failures are collected per recipient and never stop the batch.
func (r *Router) Deliver(ctx context.Context, plan *Plan) Report {
	report := Report{}
	if plan == nil {
		return report
	}
	trigger := plan.Rule.Trigger
	report.Trigger = trigger
	report.Planned = len(plan.Recipients)
	if report.Planned == 0 {
		return report
	}

	start := time.Now()
	defer r.metrics.observeDuration(trigger, start)

	outcomes := make([]outcome, len(plan.Recipients))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	for i, rcpt := range plan.Recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			outcomes[i] = r.deliverOne(ctx, plan, rcpt)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.persisted {
			report.Persisted++
			report.NotificationIDs = append(report.NotificationIDs, o.notificationID)
		}
		if o.dispatched {
			report.Dispatched++
		}
		if o.failure != nil {
			report.Failures = append(report.Failures, *o.failure)
		}
	}

	if len(report.Failures) > 0 {
		r.logger.Warn("workflow delivery finished with failures",
			"trigger", trigger,
			"planned", report.Planned,
			"persisted", report.Persisted,
			"failures", len(report.Failures))
	} else {
		r.logger.Info("workflow delivery finished",
			"trigger", trigger,
			"tenant_id", plan.Context.TenantID,
			"recipients", report.Planned)
	}
	return report
}

func (r *Router) deliverOne(ctx context.Context, plan *Plan, rcpt discovery.Recipient) outcome {
	trigger := plan.Rule.Trigger

	n, err := r.creator.CreateNotification(ctx, notification.CreateInput{
		TenantID: plan.Context.TenantID,
		UserID:   rcpt.UserID,
		Type:     string(trigger),
		Title:    plan.Rule.Title(plan.Context),
		Message:  plan.Rule.Message(plan.Context),
		Link:     r.link(plan),
		Metadata: plan.Context.metadata(),
	})
	if err != nil {
		r.metrics.recordFailure(trigger, StagePersist)
		r.logger.Error("failed to persist workflow notification",
			"trigger", trigger, "user_id", rcpt.UserID, "error", err)
		return outcome{failure: &DeliveryFailure{UserID: rcpt.UserID, Stage: StagePersist, Message: err.Error(), Err: err}}
	}
	r.metrics.recordPersisted(trigger)

	dispatchCtx, cancel := apperrors.WithTimeout(ctx, r.opts.DispatchTimeout)
	defer cancel()

	if err := r.dispatcher.Emit(dispatchCtx, rcpt.UserID, notification.EventNew, n); err != nil {
		r.metrics.recordFailure(trigger, StageDispatch)
		r.logger.Warn("failed to dispatch workflow notification",
			"trigger", trigger, "user_id", rcpt.UserID, "notification_id", n.ID, "error", err)
		return outcome{
			notificationID: n.ID,
			persisted:      true,
			failure: &DeliveryFailure{
				UserID: rcpt.UserID, Stage: StageDispatch, NotificationID: n.ID, Message: err.Error(), Err: err,
			},
		}
	}

	return outcome{notificationID: n.ID, persisted: true, dispatched: true}
}

func (r *Router) link(plan *Plan) string {
	base := strings.TrimRight(r.opts.LinkBaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, plan.Rule.EntityPath, plan.Context.EntityID)
}
