package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier appends events to a redis stream.
type RedisNotifier struct {
	rdb    *redis.Client
	stream string
}

func NewRedisNotifier(rdb *redis.Client, stream string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, stream: stream}
}

// Dial connects to redis at url (redis://...).
func Dial(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

func (r *RedisNotifier) Notify(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	_, err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"event":      evt.Name,
			"businessId": evt.BusinessID,
			"payload":    string(payload),
			"at":         evt.At.UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}
