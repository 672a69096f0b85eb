// Package bus provides typed publish/subscribe topics for in-process message
// fan-out. Each subscriber owns a buffered channel; a publish offers the
// message to every subscriber and waits at most the topic's publish timeout
// for a slow one before giving up on it.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPublishTimeout is returned when at least one subscriber could not
	// accept the message within the publish timeout.
	ErrPublishTimeout = errors.New("publish timed out")
	// ErrClosed is returned when publishing to a closed topic.
	ErrClosed = errors.New("topic closed")
)

// DefaultPublishTimeout bounds how long Publish waits for each subscriber.
const DefaultPublishTimeout = 50 * time.Millisecond

// Subscription is one subscriber's handle on a topic.
type Subscription[T any] struct {
	id string
	ch chan T
}

// ID returns the subscription id used to unsubscribe.
func (s *Subscription[T]) ID() string { return s.id }

// C returns the channel messages are delivered on. It is closed on
// Unsubscribe or when the topic closes.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Stats is a snapshot of topic counters.
type Stats struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Timeouts    uint64 `json:"timeouts"`
}

// Topic is a typed publish/subscribe channel.
type Topic[T any] struct {
	name    string
	timeout time.Duration

	// mu guards the subscriber map; Publish holds it for reading while it
	// delivers so that Unsubscribe cannot close a channel mid-send.
	mu          sync.RWMutex
	subscribers map[string]*Subscription[T]
	closed      bool

	published atomic.Uint64
	timeouts  atomic.Uint64
}

// NewTopic creates a topic. A non-positive timeout selects
// DefaultPublishTimeout.
func NewTopic[T any](name string, timeout time.Duration) *Topic[T] {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Topic[T]{
		name:        name,
		timeout:     timeout,
		subscribers: make(map[string]*Subscription[T]),
	}
}

// Name returns the topic name.
func (t *Topic[T]) Name() string { return t.name }

// Subscribe registers a new subscriber whose channel buffers up to depth
// messages. A depth below one is raised to one.
func (t *Topic[T]) Subscribe(depth int) *Subscription[T] {
	if depth < 1 {
		depth = 1
	}
	sub := &Subscription[T]{
		id: uuid.NewString(),
		ch: make(chan T, depth),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(sub.ch)
		return sub
	}
	t.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Topic[T]) Unsubscribe(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sub, ok := t.subscribers[id]; ok {
		close(sub.ch)
		delete(t.subscribers, id)
	}
}

// Publish offers msg to every subscriber. Subscribers with buffer space
// receive it immediately; for a full subscriber Publish waits up to the topic
// timeout and then skips it. The message is never retried. Publishing with no
// subscribers succeeds.
func (t *Topic[T]) Publish(ctx context.Context, msg T) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrClosed
	}

	var missed bool
	for _, sub := range t.subscribers {
		select {
		case sub.ch <- msg:
			continue
		default:
		}

		timer := time.NewTimer(t.timeout)
		select {
		case sub.ch <- msg:
		case <-timer.C:
			missed = true
		case <-ctx.Done():
			timer.Stop()
			t.timeouts.Add(1)
			return ctx.Err()
		}
		timer.Stop()
	}

	if missed {
		t.timeouts.Add(1)
		return ErrPublishTimeout
	}
	t.published.Add(1)
	return nil
}

// Close closes every subscription. Further publishes return ErrClosed.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, sub := range t.subscribers {
		close(sub.ch)
		delete(t.subscribers, id)
	}
}

// Stats returns the current counters.
func (t *Topic[T]) Stats() Stats {
	t.mu.RLock()
	n := len(t.subscribers)
	t.mu.RUnlock()
	return Stats{
		Name:        t.name,
		Subscribers: n,
		Published:   t.published.Load(),
		Timeouts:    t.timeouts.Load(),
	}
}
