package workflow

import (
	"context"
	"sync"
)

// Outbox collects plans made inside a transaction so they are delivered only
// after it commits. Each transaction caller owns its own Outbox.
type Outbox struct {
	mu    sync.Mutex
	plans []*Plan
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(plan *Plan) {
	if plan == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plans = append(o.plans, plan)
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.plans)
}

// Discard drops pending plans, used when the transaction rolls back.
func (o *Outbox) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plans = nil
}

// Flush delivers and empties the pending plans in the order they were added.
func (o *Outbox) Flush(ctx context.Context, d Deliverer) []Report {
	o.mu.Lock()
	plans := o.plans
	o.plans = nil
	o.mu.Unlock()

	reports := make([]Report, 0, len(plans))
	for _, p := range plans {
		reports = append(reports, d.Deliver(ctx, p))
	}
	return reports
}
