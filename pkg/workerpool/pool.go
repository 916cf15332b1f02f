// Package workerpool is a bounded goroutine pool used for work that must not
// hold up a response, such as outgoing mail.
//
//	pool := workerpool.New(4)
//	defer pool.Shutdown()
//
//	err := pool.Run("mail.verify", func() error { return send(msg) })
//	if errors.Is(err, workerpool.ErrPoolFull) {
//	    // shed or retry
//	}
package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

// Pool runs tasks on a fixed number of goroutines with a queue of twice that.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closeCh chan struct{}

	// held for reading while sending so Shutdown never closes tasks mid-send
	sendMu sync.RWMutex
}

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until the task is queued or the pool closes.
func (p *Pool) SubmitWait(task func()) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	default:
	}

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	case p.tasks <- task:
		return nil
	}
}

// Run submits a named job. Failures and panics are logged and counted under
// name; they never reach the caller.
func (p *Pool) Run(name string, job func() error) error {
	return p.Submit(func() {
		start := time.Now()
		err := guard(job)
		metrics.RecordJob(name, err, start)
		if err != nil {
			logger.Error("job failed", "job", name, "error", err)
		}
	})
}

// Shutdown stops intake, drains queued tasks and waits for the workers.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.closeCh)
		p.sendMu.Lock()
		close(p.tasks)
		p.sendMu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		safeRun(task)
	}
}

func safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "panic", fmt.Sprint(r))
		}
	}()
	task()
}

func guard(job func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job()
}
