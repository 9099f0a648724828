package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task identifies one pending re-arm.
type Task struct {
	CameraID  string `json:"camera_id"`
	Algorithm string `json:"algorithm"`
}

// Handler runs a task once it is due.
type Handler func(ctx context.Context, task Task)

type Scheduler interface {
	Schedule(ctx context.Context, task Task, delay time.Duration) error
}

// Timer runs each task on its own time.AfterFunc timer. Scheduling a task
// that is already pending moves its due time, so a task fires at most once
// per pending entry. Pending tasks do not survive a restart.
type Timer struct {
	ctx     context.Context
	handler Handler

	mu     sync.Mutex
	timers map[Task]*time.Timer
	closed bool
}

// NewTimer creates a scheduler whose handlers run with ctx.
func NewTimer(ctx context.Context, handler Handler) *Timer {
	return &Timer{
		ctx:     ctx,
		handler: handler,
		timers:  make(map[Task]*time.Timer),
	}
}

func (s *Timer) Schedule(_ context.Context, task Task, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// a stopped timer whose func already started sees it was replaced
	if prev, ok := s.timers[task]; ok {
		prev.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current := s.timers[task] == t
		if current {
			delete(s.timers, task)
		}
		s.mu.Unlock()

		if !current {
			return
		}
		s.handler(s.ctx, task)
	})
	s.timers[task] = t

	return nil
}

// Pending returns the number of tasks that have not fired yet.
func (s *Timer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops every pending timer. Their tasks are dropped.
func (s *Timer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	if n := len(s.timers); n > 0 {
		log.Warn().Int("pending", n).Msg("Scheduler closed with pending re-arms")
	}
	s.timers = make(map[Task]*time.Timer)

	return nil
}
