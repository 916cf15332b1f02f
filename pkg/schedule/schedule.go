// Package schedule runs named maintenance jobs on fixed intervals.
//
//	s := schedule.New()
//	s.Every(time.Hour, "purge-unverified", purge)
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
)

// Job is a unit of scheduled work. It receives the scheduler's context.
type Job func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	job      Job

	mu      sync.Mutex
	running bool
}

// Scheduler dispatches registered jobs. A job never overlaps itself: a tick
// that lands while the previous run is still going is skipped.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
	started bool
}

func New() *Scheduler { return &Scheduler{} }

// Every registers job to run every d. Must be called before Start.
func (s *Scheduler) Every(d time.Duration, name string, job Job) *Scheduler {
	if d <= 0 {
		panic(fmt.Sprintf("schedule: non-positive interval for %q", name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("schedule: Every called after Start")
	}
	s.entries = append(s.entries, &entry{name: name, interval: d, job: job})
	return s
}

// Start launches one ticker per job. Jobs stop when ctx is cancelled; Wait
// blocks until in-flight runs have returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
	logger.Info("schedule: started", "jobs", len(entries))
}

// Wait blocks until every job loop has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

// List describes the registered jobs.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [%s]", e.name, e.interval))
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.dispatch(ctx, e)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping run", "job", e.name)
		return
	}
	e.running = true
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()

			metrics.RecordJob(e.name, err, start)
			if err != nil {
				logger.Error("schedule: job failed", "job", e.name, "error", err)
			}
		}()
		err = e.job(ctx)
	}()
}
