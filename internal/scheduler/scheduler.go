// Package scheduler implements the per-job wake-up primitive of spec
// §4.4: armAt(jobId, absoluteTime), firing the Orchestrator's resume
// entry. Grounded on the teacher's internal/queue package (queue.go) —
// same go-redis/v8 client construction and connection-check-on-New idiom
// — but the Redis data structure itself is repurposed from a blocking
// list queue (BLPop) into a sorted set of absolute wake times, since a
// timer store and a work queue are different primitives (spec §4.4: "the
// scheduler is not a thread pool — it is only a clock").
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const wakeupsKey = "scheduler:wakeups"

// redisCommander is the slice of the go-redis client this package
// depends on, kept narrow so tests can substitute a fake without a real
// Redis instance.
type redisCommander interface {
	ZAdd(ctx context.Context, key string, members ...*redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// ResumeFunc is invoked with a job ID when its timer fires.
type ResumeFunc func(ctx context.Context, jobID uuid.UUID)

// Scheduler arms and fires per-job wake-up timers backed by a Redis
// sorted set (member = job ID string, score = absolute wake time as Unix
// nanoseconds).
type Scheduler struct {
	client redisCommander
	resume ResumeFunc
	tick   time.Duration
}

func New(redisURL string) (*Scheduler, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("scheduler: connect to redis: %w", err)
	}

	return &Scheduler{client: client, tick: time.Second}, nil
}

// newWithCommander is used by tests to inject a fake redisCommander.
func newWithCommander(c redisCommander) *Scheduler {
	return &Scheduler{client: c, tick: time.Millisecond}
}

// OnResume registers the callback Run invokes for each fired job.
func (s *Scheduler) OnResume(fn ResumeFunc) {
	s.resume = fn
}

// ArmAt schedules (or re-schedules, replacing any existing timer) a
// wake-up for jobID at absoluteTime (spec §4.4: "rearming replaces any
// existing timer").
func (s *Scheduler) ArmAt(ctx context.Context, jobID uuid.UUID, absoluteTime time.Time) error {
	score := float64(absoluteTime.UnixNano())
	return s.client.ZAdd(ctx, wakeupsKey, &redis.Z{Score: score, Member: jobID.String()}).Err()
}

// Run polls the sorted set every tick, popping and firing every job
// whose wake time has passed. Firings are at-least-once: a crash between
// ZRangeByScore and ZRem redelivers the same job on the next tick, which
// is why Orchestrator.Resume must be idempotent (spec §4.4/§8).
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				log.Printf("[scheduler] poll error: %v", err)
			}
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	due, err := s.client.ZRangeByScore(ctx, wakeupsKey, &redis.ZRangeBy{Min: "0", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("scheduler: range due jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	members := make([]interface{}, len(due))
	for i, m := range due {
		members[i] = m
	}
	if err := s.client.ZRem(ctx, wakeupsKey, members...).Err(); err != nil {
		return fmt.Errorf("scheduler: remove fired jobs: %w", err)
	}

	for _, raw := range due {
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Printf("[scheduler] skipping malformed job id %q: %v", raw, err)
			continue
		}
		if s.resume != nil {
			s.resume(ctx, id)
		}
	}
	return nil
}
