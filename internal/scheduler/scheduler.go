package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context)

type Scheduler interface {
	After(d time.Duration, task Task)
}

// TimerScheduler runs each task on its own timer goroutine. Stop cancels timers that have not
// fired yet and waits for the ones already running.
type TimerScheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool
	wg      sync.WaitGroup
}

var _ Scheduler = (*TimerScheduler)(nil)

func NewTimerScheduler(logger *zap.Logger) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		timers: make(map[uint64]*time.Timer),
	}
}

func (s *TimerScheduler) After(d time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Warn("Scheduler stopped, dropping task", zap.Duration("delay", d))
		return
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		s.run(task)
	})
}

func (s *TimerScheduler) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked", zap.Any("panic", r))
		}
	}()
	task(s.ctx)
}

func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop is safe to call more than once. When ctx expires before running tasks finish, their
// context is cancelled and ctx.Err() is returned.
func (s *TimerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	cancelled := 0
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
			cancelled++
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.logger.Info("Scheduler stopping", zap.Int("cancelled", cancelled))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
