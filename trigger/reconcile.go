package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/domain/model"
	"github.com/robfig/cron/v3"
)

// Reconciler republishes events for questions a trigger never finished: created events for
// questions without a display ID or topic, and replied transitions whose mail was never claimed.
type Reconciler struct {
	ds    infra.Datastore
	bus   infra.EventBus
	grace time.Duration
	now   func() time.Time
}

func NewReconciler(ds infra.Datastore, bus infra.EventBus, grace time.Duration) *Reconciler {
	return &Reconciler{
		ds:    ds,
		bus:   bus,
		grace: grace,
		now:   time.Now,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	questions, err := r.ds.ListIncompleteQuestions(ctx, r.now().Add(-r.grace))
	if err != nil {
		return 0, fmt.Errorf("list incomplete questions: %w", err)
	}
	n := 0
	for i := range questions {
		q := questions[i]
		if err := r.bus.Publish(ctx, model.QuestionCreated(&q)); err != nil {
			return n, fmt.Errorf("republish %s: %w", q.ID, err)
		}
		n++
	}

	replied, err := r.ds.ListUnnotifiedReplies(ctx, r.now().Add(-r.grace))
	if err != nil {
		return n, fmt.Errorf("list unnotified replies: %w", err)
	}
	for i := range replied {
		after := replied[i]
		before := after
		before.Status = model.StatusPending
		if err := r.bus.Publish(ctx, model.QuestionUpdated(&before, &after)); err != nil {
			return n, fmt.Errorf("republish reply %s: %w", after.ID, err)
		}
		n++
	}
	return n, nil
}

// Start schedules Reconcile and returns the running cron. Stop it on shutdown.
func (r *Reconciler) Start(ctx context.Context, schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		n, err := r.Reconcile(ctx)
		if err != nil {
			slog.Error("reconcile failed", slog.Any("err", err))
			return
		}
		if n > 0 {
			slog.Info("republished incomplete questions", slog.Int("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	slog.Info("reconcile monitor started", slog.String("schedule", schedule))
	c.Start()
	return c, nil
}
