// Package queue provides the bounded FIFO channels that connect the pipeline
// stages. Put never blocks: when the queue is full the new item is dropped and
// ErrFull returned, so producers favour freshness over buffering. Get blocks
// until an item arrives or the context is done.
package queue

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrFull is returned by TryPut when the queue has no free slot.
var ErrFull = errors.New("queue full")

// DropCallback is called with every item rejected by a full queue.
type DropCallback[T any] func(item T)

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithDropCallback registers a callback invoked for each dropped item.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(q *Queue[T]) {
		q.onDrop = cb
	}
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Len      int    `json:"len"`
	Puts     uint64 `json:"puts"`
	Gets     uint64 `json:"gets"`
	Drops    uint64 `json:"drops"`
}

// Queue is a fixed-capacity FIFO safe for any number of producers and
// consumers.
type Queue[T any] struct {
	name   string
	ch     chan T
	onDrop DropCallback[T]

	puts  atomic.Uint64
	gets  atomic.Uint64
	drops atomic.Uint64
}

// New creates a queue with the given name and capacity. A capacity below one
// is raised to one.
func New[T any](name string, capacity int, opts ...Option[T]) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue[T]{
		name: name,
		ch:   make(chan T, capacity),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Name returns the queue name used in logs and metrics.
func (q *Queue[T]) Name() string { return q.name }

// TryPut enqueues item without blocking. When the queue is full the item is
// discarded, the drop callback runs and ErrFull is returned.
func (q *Queue[T]) TryPut(item T) error {
	select {
	case q.ch <- item:
		q.puts.Add(1)
		return nil
	default:
		q.drops.Add(1)
		if q.onDrop != nil {
			q.onDrop(item)
		}
		return ErrFull
	}
}

// Get blocks until an item is available or ctx is done.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	select {
	case item := <-q.ch:
		q.gets.Add(1)
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Stats returns the current counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Name:     q.name,
		Capacity: cap(q.ch),
		Len:      len(q.ch),
		Puts:     q.puts.Load(),
		Gets:     q.gets.Load(),
		Drops:    q.drops.Load(),
	}
}
