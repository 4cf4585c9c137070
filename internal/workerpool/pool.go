// Package workerpool runs provider updates off the consumer's goroutine.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is a unit of work submitted to the pool.
type Task func()

// PanicHandler is told about a task that panicked after the panic is recovered.
type PanicHandler func(recovered any, stack []byte)

// Pool is a bounded goroutine pool with a fixed-size task queue.
type Pool struct {
	maxWorkers int
	queue      chan Task
	wg         sync.WaitGroup
	accepting  atomic.Bool
	stopOnce   sync.Once
	closeOnce  sync.Once
	stopChan   chan struct{}
	logger     *zap.Logger
	onPanic    PanicHandler
}

// New creates a pool with maxWorkers goroutines and a task queue of queueSize.
func New(maxWorkers, queueSize int, logger *zap.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		queue:      make(chan Task, queueSize),
		stopChan:   make(chan struct{}),
		logger:     logger,
	}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}

	logger.Debug("worker pool started", zap.Int("workers", maxWorkers), zap.Int("queue_size", queueSize))
	return p
}

// OnPanic installs a handler invoked after a task panic has been recovered.
func (p *Pool) OnPanic(h PanicHandler) {
	p.onPanic = h
}

// Submit enqueues a task. Returns false if the pool is stopped or the queue is full.
// wg.Add is called here (before enqueue) to prevent a race with Drain.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done() // undo the Add since task was not enqueued
		p.logger.Warn("worker pool queue full, task rejected")
		return false
	}
}

// StopAccepting prevents new tasks from being submitted.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for all in-flight and queued tasks to complete, respecting the
// context deadline. After Drain returns, the queue is closed so workers exit.
func (p *Pool) Drain(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		p.logger.Debug("worker pool drained")
	case <-ctx.Done():
		p.logger.Warn("worker pool drain timed out")
		err = fmt.Errorf("drain worker pool: %w", ctx.Err())
	}

	p.closeOnce.Do(func() {
		close(p.queue)
	})
	return err
}

// Shutdown stops accepting tasks and drains the pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.StopAccepting()
	return p.Drain(ctx)
}

func (p *Pool) worker() {
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.runTask(task)
		case <-p.stopChan:
			for {
				select {
				case task, ok := <-p.queue:
					if !ok {
						return
					}
					p.runTask(task)
				default:
					return
				}
			}
		}
	}
}

// runTask executes a single task with panic recovery. wg.Done is called here
// to match the wg.Add in Submit.
func (p *Pool) runTask(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			p.logger.Error("task panicked", zap.Any("panic", r), zap.ByteString("stack", stack))
			if p.onPanic != nil {
				p.onPanic(r, stack)
			}
		}
	}()
	task()
}
