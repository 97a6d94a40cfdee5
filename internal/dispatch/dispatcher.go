package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/redis"
)

// popDueScript atomically pops jobs whose due time has passed.
var popDueScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for i, name in ipairs(due) do
    redis.call('ZREM', KEYS[1], name)
end
return due
`)

// Dispatcher schedules delayed, deduplicated "process this conversation" jobs.
// The job name bakes in the current debounce time bucket, so repeated
// schedule calls within one window collapse to a single queued job — the
// queue enforces the dedup, not the application.
type Dispatcher struct {
	client *redis.Client
	min    time.Duration
	max    time.Duration
	now    func() time.Time
}

func NewDispatcher(client *redis.Client, min, max time.Duration) *Dispatcher {
	return &Dispatcher{
		client: client,
		min:    min,
		max:    max,
		now:    time.Now,
	}
}

// JobName builds the dedup key for a conversation and time bucket.
func JobName(conversationKey string, bucket int64) string {
	return fmt.Sprintf("dispatch:%s:%d", conversationKey, bucket)
}

// ParseJobName recovers the conversation key from a job name.
func ParseJobName(name string) (string, error) {
	trimmed := strings.TrimPrefix(name, "dispatch:")
	if trimmed == name {
		return "", fmt.Errorf("malformed job name: %s", name)
	}
	idx := strings.LastIndexByte(trimmed, ':')
	if idx <= 0 {
		return "", fmt.Errorf("malformed job name: %s", name)
	}
	return trimmed[:idx], nil
}

// Bucket floors t onto the debounce window grid.
func (d *Dispatcher) Bucket(t time.Time) int64 {
	return t.Unix() / int64(d.max.Seconds())
}

// Schedule enqueues a dispatch for the conversation after a randomized delay
// in [min, max]. A job already queued for the same conversation and bucket is
// treated as success: an equivalent dispatch is on its way.
func (d *Dispatcher) Schedule(ctx context.Context, conversationKey string) error {
	now := d.now()
	name := JobName(conversationKey, d.Bucket(now))

	delay := d.min
	if d.max > d.min {
		delay += time.Duration(rand.Int63n(int64(d.max - d.min)))
	}
	due := now.Add(delay)

	added, err := d.client.ZAddNX(ctx, redis.DispatchQueueKey, goredis.Z{
		Score:  float64(due.UnixMilli()),
		Member: name,
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue dispatch job: %w", err)
	}

	if added == 0 {
		log.Debug().
			Str("conversationKey", conversationKey).
			Str("job", name).
			Msg("dispatch already scheduled for this window")
		return nil
	}

	log.Info().
		Str("conversationKey", conversationKey).
		Str("job", name).
		Dur("delay", delay).
		Msg("dispatch scheduled")
	return nil
}

// PopDue removes and returns up to limit jobs due at t.
func (d *Dispatcher) PopDue(ctx context.Context, t time.Time, limit int) ([]string, error) {
	names, err := popDueScript.Run(
		ctx,
		d.client.Client,
		[]string{redis.DispatchQueueKey},
		t.UnixMilli(),
		limit,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("pop due dispatch jobs: %w", err)
	}
	return names, nil
}

// Requeue puts a failed job back with the given delay, preserving its name so
// the debounce dedup still applies.
func (d *Dispatcher) Requeue(ctx context.Context, name string, delay time.Duration) error {
	due := d.now().Add(delay)
	err := d.client.ZAdd(ctx, redis.DispatchQueueKey, goredis.Z{
		Score:  float64(due.UnixMilli()),
		Member: name,
	}).Err()
	if err != nil {
		return fmt.Errorf("requeue dispatch job: %w", err)
	}
	return nil
}

// BumpAttempts increments and returns the attempt count for a job.
func (d *Dispatcher) BumpAttempts(ctx context.Context, name string) (int64, error) {
	return d.client.HIncrBy(ctx, redis.DispatchAttemptsKey, name, 1).Result()
}

// ClearAttempts forgets the attempt count after success or abandonment.
func (d *Dispatcher) ClearAttempts(ctx context.Context, name string) error {
	return d.client.HDel(ctx, redis.DispatchAttemptsKey, name).Err()
}
