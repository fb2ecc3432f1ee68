package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pyama86/itdesk/domain/model"
	"github.com/redis/go-redis/v9"
)

const defaultEventQueue = "itdesk:events"

type RedisBus struct {
	client *redis.Client
	key    string
	// BRPOP のタイムアウト。ctx の終了を確認する間隔になる
	pollTimeout time.Duration
}

var _ EventBus = (*RedisBus)(nil)

func NewRedisBus() (*RedisBus, error) {
	db := 0
	if os.Getenv("REDIS_DB") != "" {
		n, err := strconv.Atoi(os.Getenv("REDIS_DB"))
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		db = n
	}
	client := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})
	if err := client.Ping(context.TODO()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	key := defaultEventQueue
	if os.Getenv("REDIS_EVENT_QUEUE") != "" {
		key = os.Getenv("REDIS_EVENT_QUEUE")
	}
	return newRedisBus(client, key), nil
}

func newRedisBus(client *redis.Client, key string) *RedisBus {
	return &RedisBus{
		client:      client,
		key:         key,
		pollTimeout: time.Second,
	}
}

func (b *RedisBus) Publish(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.LPush(ctx, b.key, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(model.Event)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := b.client.BRPop(ctx, b.pollTimeout, b.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to pop event", slog.String("key", b.key), slog.Any("err", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.pollTimeout):
			}
			continue
		}
		// res[0] はキー名
		if len(res) != 2 {
			continue
		}

		var ev model.Event
		if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
			slog.Error("failed to decode event", slog.String("payload", res[1]), slog.Any("err", err))
			continue
		}
		fn(ev)
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
