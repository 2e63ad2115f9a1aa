// README: Redis-backed alert store (hash + sorted set) and chime channel.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/redis/go-redis/v9"
)

var ErrAlertNotFound = errors.New("alert not found")

const (
	alertsKeyFmt = "%s:alerts"
	indexKeyFmt  = "%s:alerts:index"
	chimeKeyFmt  = "%s:chime"
)

// RedisAlerts keeps alerts until dismissed and publishes chimes for dashboards.
type RedisAlerts struct {
	redis  *redis.Client
	prefix string
}

func NewRedisAlerts(rdb *redis.Client, prefix string) *RedisAlerts {
	if prefix == "" {
		prefix = "fluentops"
	}
	return &RedisAlerts{redis: rdb, prefix: prefix}
}

func (s *RedisAlerts) alertsKey() string { return fmt.Sprintf(alertsKeyFmt, s.prefix) }
func (s *RedisAlerts) indexKey() string  { return fmt.Sprintf(indexKeyFmt, s.prefix) }

// ChimeChannel is the pub/sub channel chimes are published on.
func (s *RedisAlerts) ChimeChannel() string { return fmt.Sprintf(chimeKeyFmt, s.prefix) }

func (s *RedisAlerts) Notify(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, s.alertsKey(), a.ID, raw)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(a.RaisedAt.UnixMilli()), Member: a.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// List returns open alerts, newest first.
func (s *RedisAlerts) List(ctx context.Context) ([]Alert, error) {
	ids, err := s.redis.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Alert{}, nil
	}
	vals, err := s.redis.HMGet(ctx, s.alertsKey(), ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Alert, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var a Alert
		if err := json.Unmarshal([]byte(str), &a); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisAlerts) Dismiss(ctx context.Context, id string) error {
	pipe := s.redis.TxPipeline()
	del := pipe.HDel(ctx, s.alertsKey(), id)
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// Play publishes the alert on the chime channel.
func (s *RedisAlerts) Play(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.redis.Publish(ctx, s.ChimeChannel(), raw).Err()
}

// BellChime rings the terminal bell and prints the alert line.
type BellChime struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBellChime(w io.Writer) *BellChime {
	return &BellChime{w: w}
}

func (b *BellChime) Play(_ context.Context, a Alert) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := fmt.Fprintf(b.w, "\a%s  %s (order %s)\n", a.RaisedAt.Local().Format("15:04:05"), a.Message, a.OrderID)
	return err
}
