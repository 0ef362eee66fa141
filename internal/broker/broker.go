package broker

import (
	"sync"
	"sync/atomic"
)

const defaultBuffer = 16

// Broker fans out payloads published under an ID to every subscriber of that ID.
//
// Publish never blocks. A subscriber whose buffer is full misses the payload, so publishers can call Publish while
// holding their own locks. This fits the SSE streams of a case desk where a slow browser must not stall the game.
type Broker[TID comparable, TPayload any] struct {
	mu      sync.RWMutex
	subs    map[TID]map[chan TPayload]struct{}
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// New creates a Broker whose subscriber channels buffer the given number of payloads. A non-positive buffer uses
// the default of 16.
func New[TID comparable, TPayload any](buffer int) *Broker[TID, TPayload] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker[TID, TPayload]{
		subs:   make(map[TID]map[chan TPayload]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel receiving the payloads published under id and a function that ends the
// subscription. The channel is closed when the subscription ends or the broker is closed.
func (b *Broker[TID, TPayload]) Subscribe(id TID) (<-chan TPayload, func()) {
	ch := make(chan TPayload, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.subs[id] == nil {
		b.subs[id] = make(map[chan TPayload]struct{})
	}
	b.subs[id][ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id][ch]; !ok {
			return
		}
		delete(b.subs[id], ch)
		if len(b.subs[id]) == 0 {
			delete(b.subs, id)
		}
		close(ch)
	}
}

// Close ends every subscription. Later subscriptions receive an already closed channel.
func (b *Broker[TID, TPayload]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
	}
	b.subs = make(map[TID]map[chan TPayload]struct{})
	b.closed = true
}

// Publish sends payload to all subscribers of id and returns how many received it.
func (b *Broker[TID, TPayload]) Publish(id TID, payload TPayload) int {
	delivered := 0
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[id] {
		select {
		case ch <- payload:
			delivered++
		default:
			b.dropped.Add(1)
		}
	}
	return delivered
}

// Subscribers counts the current subscribers of id.
func (b *Broker[TID, TPayload]) Subscribers(id TID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[id])
}

// Dropped counts the payloads that were not delivered because a subscriber was too slow.
func (b *Broker[TID, TPayload]) Dropped() uint64 {
	return b.dropped.Load()
}
