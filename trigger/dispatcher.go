package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/domain/model"
)

// Func handles one event. A returned error is retried unless it is permanent.
type Func func(ctx context.Context, ev model.Event) error

type registration struct {
	name      string
	eventType model.EventType
	fn        Func
}

type Dispatcher struct {
	bus         infra.EventBus
	triggers    []registration
	timeout     time.Duration
	maxAttempts int
	backoff     *retry.ExponentialJitterBackoff
	sem         chan struct{} // 同時に処理するイベント数の上限
	wg          sync.WaitGroup
}

var errPanic = errors.New("trigger panicked")

func NewDispatcher(bus infra.EventBus, timeout time.Duration, maxAttempts, concurrency int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		bus:         bus,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoff:     retry.NewExponentialJitterBackoff(5 * time.Second),
		sem:         make(chan struct{}, concurrency),
	}
}

func (d *Dispatcher) Register(name string, eventType model.EventType, fn Func) {
	d.triggers = append(d.triggers, registration{name: name, eventType: eventType, fn: fn})
}

// Run consumes the bus until ctx is done and waits for in-flight events.
// At most cap(sem) events are dispatched at once; the bus is not read while all slots are busy.
func (d *Dispatcher) Run(ctx context.Context) error {
	err := d.bus.Subscribe(ctx, func(ev model.Event) {
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			// 未処理の質問は定期的な再送で拾われる
			slog.Warn("dispatcher stopped before handling event", slog.String("question", ev.QuestionID))
			return
		}
		d.wg.Add(1)
		go func() {
			defer func() {
				<-d.sem
				d.wg.Done()
			}()
			d.Dispatch(ctx, ev)
		}()
	})
	d.wg.Wait()
	return err
}

// Dispatch runs every trigger registered for ev.Type concurrently and waits for them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) {
	var wg sync.WaitGroup
	for _, r := range d.triggers {
		if r.eventType != ev.Type {
			continue
		}
		wg.Add(1)
		go func(r registration) {
			defer wg.Done()
			d.invoke(ctx, r, ev)
		}(r)
	}
	wg.Wait()
}

func isPermanent(err error) bool {
	return errors.Is(err, infra.ErrNotFound) || errors.Is(err, errPanic)
}

func (d *Dispatcher) invoke(ctx context.Context, r registration, ev model.Event) {
	for attempt := 1; ; attempt++ {
		err := d.call(ctx, r, ev)
		if err == nil {
			return
		}
		if isPermanent(err) || attempt >= d.maxAttempts {
			slog.Error("trigger failed",
				slog.String("trigger", r.name),
				slog.String("question", ev.QuestionID),
				slog.Int("attempt", attempt),
				slog.Any("err", err),
			)
			return
		}

		delay, berr := d.backoff.BackoffDelay(attempt, err)
		if berr != nil {
			slog.Error("failed to compute backoff", slog.String("trigger", r.name), slog.Any("err", berr))
			return
		}
		slog.Warn("trigger failed, retrying",
			slog.String("trigger", r.name),
			slog.String("question", ev.QuestionID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("err", err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (d *Dispatcher) call(ctx context.Context, r registration, ev model.Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("trigger panicked", slog.String("trigger", r.name), slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %v: %w", r.name, rec, errPanic)
		}
	}()
	return r.fn(ctx, ev)
}
