package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("scheduler closed")

const (
	DefaultKey  = "orchestrator:rearm"
	pollBatch   = 100
	defaultPoll = time.Second
)

// Redis keeps tasks in a sorted set scored by due time in milliseconds.
// Any number of instances may poll the same key: a task is handed to the
// instance whose ZREM removed it.
type Redis struct {
	client  redis.UniversalClient
	key     string
	poll    time.Duration
	handler Handler
}

func NewRedis(client redis.UniversalClient, key string, poll time.Duration, handler Handler) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Redis{
		client:  client,
		key:     key,
		poll:    poll,
		handler: handler,
	}
}

// Schedule stores the task. Scheduling the same task again moves its due time.
func (s *Redis) Schedule(ctx context.Context, task Task, delay time.Duration) error {
	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	due := time.Now().Add(delay).UnixMilli()
	if err := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(due), Member: string(member)}).Err(); err != nil {
		return fmt.Errorf("failed to schedule re-arm: %w", err)
	}
	return nil
}

// Run polls for due tasks until ctx is cancelled.
func (s *Redis) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Redis scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunDue(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to poll due re-arms")
			}
		}
	}
}

// RunDue claims and handles every task that is due now. It returns the
// number of tasks this instance handled.
func (s *Redis) RunDue(ctx context.Context) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: pollBatch,
	}).Result()
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, member := range members {
		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return handled, err
		}
		if removed == 0 {
			// claimed by another instance
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			log.Error().Err(err).Str("member", member).Msg("Dropping malformed re-arm task")
			continue
		}
		s.handler(ctx, task)
		handled++
	}

	return handled, nil
}

// Pending returns the number of stored tasks, due or not.
func (s *Redis) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.key).Result()
}
