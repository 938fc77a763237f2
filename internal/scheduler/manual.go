package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual runs tasks only when Advance moves its clock past their due time. Used in tests.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []manualTask
}

type manualTask struct {
	due  time.Duration
	seq  int
	task Task
}

var _ Scheduler = (*Manual)(nil)

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) After(d time.Duration, task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = append(m.tasks, manualTask{due: m.now + d, seq: m.seq, task: task})
	m.seq++
}

// Advance moves the clock forward by d and runs every task that became due, earliest first.
// Tasks run on the calling goroutine without the lock held, so they may schedule more work.
func (m *Manual) Advance(ctx context.Context, d time.Duration) {
	m.mu.Lock()
	m.now += d
	now := m.now

	var due, rest []manualTask
	for _, t := range m.tasks {
		if t.due <= now {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	m.tasks = rest
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due == due[j].due {
			return due[i].seq < due[j].seq
		}
		return due[i].due < due[j].due
	})
	for _, t := range due {
		t.task(ctx)
	}
}

func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
