// Package bus provides the bounded, non-blocking queue between the matching
// loop and the outbound Redis publisher. Publishing never waits: the loop
// must not stall on a slow consumer.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("outbound queue full")
	ErrQueueClosed = errors.New("outbound queue closed")
)

// Kind tells the publisher which Redis operation an envelope needs.
type Kind uint8

const (
	KindAPIReply Kind = iota + 1
	KindDBEvent
	KindStream
)

// Envelope is one outbound publish: the target channel or list plus the
// serialized payload.
type Envelope struct {
	Kind    Kind
	Target  string
	Payload []byte
}

// Queue is a bounded, non-blocking envelope queue.
type Queue struct {
	ch     chan Envelope
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Envelope, capacity)}
}

// TryPublish enqueues an envelope without blocking.
func (q *Queue) TryPublish(e Envelope) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new envelopes.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes envelopes until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Envelope)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
