// Package pubsub fans events out to subscribers.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBufferSize = 64

// Message wraps a published payload. Seq increases by one per Publish on the
// same broker, so a subscriber can tell how many events it missed.
type Message[T any] struct {
	Seq     uint64
	At      time.Time
	Payload T
}

// Broker delivers published payloads to every subscriber. Publishing never
// blocks: a subscriber whose buffer is full misses the message.
type Broker[T any] struct {
	mu         sync.RWMutex
	subs       map[chan Message[T]]struct{}
	done       chan struct{}
	bufferSize int

	seq     atomic.Uint64
	dropped atomic.Uint64
	now     func() time.Time
}

func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		subs:       make(map[chan Message[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: size,
		now:        time.Now,
	}
}

// Subscribe returns a channel that is closed when ctx is cancelled or the
// broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Message[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Message[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Message[T], b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub)
		}
	}()

	return sub
}

// Publish stamps payload and hands it to every subscriber with room for it.
// It returns the message's sequence number, or zero after Shutdown.
func (b *Broker[T]) Publish(payload T) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return 0
	default:
	}

	msg := Message[T]{Seq: b.seq.Add(1), At: b.now(), Payload: payload}
	for sub := range b.subs {
		select {
		case sub <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return msg.Seq
}

// LastSeq is the sequence number of the latest published message.
func (b *Broker[T]) LastSeq() uint64 {
	return b.seq.Load()
}

// Dropped counts deliveries skipped because a subscriber buffer was full.
func (b *Broker[T]) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Shutdown closes every subscriber channel. It is safe to call more than once.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}
	close(b.done)

	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub)
	}
}
