package infra

import (
	"context"
	"os"

	"github.com/pyama86/itdesk/domain/model"
)

//go:generate mockgen -destination=mock/eventbus.go -package=mock . EventBus

type EventBus interface {
	Publish(ctx context.Context, ev model.Event) error
	// ctx が終了するまでブロックし、受け取ったイベントを順に fn に渡す
	Subscribe(ctx context.Context, fn func(model.Event)) error
}

// NewEventBus uses Redis when REDIS_ADDR is set, otherwise an in-process queue.
func NewEventBus() (EventBus, error) {
	if os.Getenv("REDIS_ADDR") != "" {
		return NewRedisBus()
	}
	return NewMemoryBus(256), nil
}

type MemoryBus struct {
	ch chan model.Event
}

var _ EventBus = (*MemoryBus)(nil)

func NewMemoryBus(size int) *MemoryBus {
	return &MemoryBus{ch: make(chan model.Event, size)}
}

func (b *MemoryBus) Publish(ctx context.Context, ev model.Event) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, fn func(model.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.ch:
			fn(ev)
		}
	}
}
