// Package progress implements the multi-producer, single-consumer queue that
// carries sdk.Progress records from provider workers to the orchestrator.
//
// Unlike a plain Go channel, the queue tracks how many senders are alive so
// the consumer can tell "nothing yet" apart from "nothing ever again" without
// blocking, and senders can be released independently of each other.
package progress

import (
	"sync"

	"github.com/renovatio/renovatio/pkg/sdk"
)

// Status is the outcome of a non-blocking receive.
type Status int

const (
	// Empty means no record is queued but at least one sender is alive.
	Empty Status = iota
	// Received means a record was returned.
	Received
	// Disconnected means every sender is closed and the queue is drained.
	Disconnected
)

func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Received:
		return "received"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Channel is an unbounded FIFO queue of progress records.
type Channel struct {
	mu      sync.Mutex
	queue   []sdk.Progress
	senders int
	closed  bool // receiver gone
	notify  chan struct{}
}

// New creates a channel with no senders. A channel that never gets a sender
// reports Disconnected immediately.
func New() *Channel {
	return &Channel{notify: make(chan struct{}, 1)}
}

// Sender registers a new producer.
func (c *Channel) Sender() *Sender {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.senders++
	return &Sender{ch: c}
}

// TryRecv returns the oldest queued record without blocking.
func (c *Channel) TryRecv() (sdk.Progress, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) > 0 {
		p := c.queue[0]
		c.queue[0] = sdk.Progress{}
		c.queue = c.queue[1:]
		return p, Received
	}
	if c.senders == 0 {
		return sdk.Progress{}, Disconnected
	}
	return sdk.Progress{}, Empty
}

// Notify returns a channel that is signalled whenever a record is queued or a
// sender closes. Signals coalesce; always drain with TryRecv afterwards.
func (c *Channel) Notify() <-chan struct{} {
	return c.notify
}

// Close marks the receiver as gone. Further sends are dropped and return false.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.queue = nil
	c.mu.Unlock()
	c.signal()
}

func (c *Channel) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Sender is one producer's handle. It implements sdk.Sender.
type Sender struct {
	ch   *Channel
	once sync.Once
	done bool
	mu   sync.Mutex
}

var _ sdk.Sender = (*Sender)(nil)

// Send queues a copy of p. It returns false after the sender or the receiver
// has been closed.
func (s *Sender) Send(p sdk.Progress) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}

	c := s.ch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, p.Clone())
	c.mu.Unlock()

	c.signal()
	return true
}

// Close releases this producer. It is safe to call more than once.
func (s *Sender) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()

		c := s.ch
		c.mu.Lock()
		c.senders--
		c.mu.Unlock()
		c.signal()
	})
}
