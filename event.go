// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import "sync"

// Event subscribes listener to a stream of values and returns a function
// that detaches it. Calling the returned function more than once is safe.
type Event[T any] func(listener func(T)) (unsubscribe func())

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

func removeListener[T any](ls []listenerEntry[T], id uint64) []listenerEntry[T] {
	for i, entry := range ls {
		if entry.id == id {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}

// Emitter is a hot event source: Fire delivers to the listeners attached at
// that moment and drops the value when there are none.
type Emitter[T any] struct {
	mu        sync.Mutex
	listeners []listenerEntry[T]
	nextID    uint64
	disposed  bool
}

// NewEmitter returns an Emitter with no listeners.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Event returns the subscription side of e.
func (e *Emitter[T]) Event() Event[T] {
	return e.subscribe
}

func (e *Emitter[T]) subscribe(listener func(T)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return func() {}
	}

	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listenerEntry[T]{id: id, fn: listener})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.listeners = removeListener(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Fire delivers v synchronously, in subscription order, to the current
// listeners.
func (e *Emitter[T]) Fire(v T) {
	e.mu.Lock()
	listeners := e.listeners
	e.mu.Unlock()

	for _, entry := range listeners {
		entry.fn(v)
	}
}

// HasListeners reports whether any listener is attached.
func (e *Emitter[T]) HasListeners() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners) > 0
}

// Dispose detaches every listener. Later subscriptions are ignored.
func (e *Emitter[T]) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed = true
	e.listeners = nil
}

// Buffered adapts a hot Event. Built with buffering enabled, it queues the
// values that arrive while nobody listens and replays them, in order, to
// the first listener before any live value. After that first listener it
// is a plain pass-through and never buffers again.
//
// The backlog is unbounded. A buffered event that is never listened to
// retains every value until Dispose.
type Buffered[T any] struct {
	mu         sync.Mutex
	listeners  []listenerEntry[T]
	nextID     uint64
	buffering  bool
	backlog    []T
	queue      []delivery[T]
	delivering bool
	detach     func()
}

// delivery is a batch of values bound to the listeners attached when it
// was queued.
type delivery[T any] struct {
	listeners []listenerEntry[T]
	values    []T
}

// Buffer subscribes to source immediately and returns the adapter. With
// buffered set to false the adapter only forwards.
func Buffer[T any](source Event[T], buffered bool) *Buffered[T] {
	b := &Buffered[T]{buffering: buffered}
	b.detach = source(b.receive)
	return b
}

func (b *Buffered[T]) receive(v T) {
	b.mu.Lock()
	if len(b.listeners) == 0 {
		if b.buffering {
			b.backlog = append(b.backlog, v)
		}
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, delivery[T]{listeners: b.listeners, values: []T{v}})
	b.drainLocked()
}

// drainLocked delivers queued values in order and releases b.mu. Only one
// goroutine drains at a time; values queued meanwhile, including those
// fired from inside a listener, are delivered by that goroutine after the
// current value.
func (b *Buffered[T]) drainLocked() {
	if b.delivering {
		b.mu.Unlock()
		return
	}
	b.delivering = true

	finished := false
	defer func() {
		if !finished {
			b.mu.Lock()
			b.delivering = false
			b.mu.Unlock()
		}
	}()

	for len(b.queue) > 0 {
		d := b.queue[0]
		b.queue[0] = delivery[T]{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		for _, v := range d.values {
			for _, entry := range d.listeners {
				entry.fn(v)
			}
		}

		b.mu.Lock()
	}
	b.queue = nil
	b.delivering = false
	finished = true
	b.mu.Unlock()
}

// Subscribe attaches listener. The first listener of a buffering adapter
// receives the backlog ahead of any later value; it arrives before
// Subscribe returns unless another goroutine is delivering, in which case
// that goroutine hands it over.
func (b *Buffered[T]) Subscribe(listener func(T)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	entry := listenerEntry[T]{id: id, fn: listener}
	b.listeners = append(b.listeners, entry)
	backlog := b.backlog
	b.backlog = nil
	b.buffering = false
	if len(backlog) > 0 {
		b.queue = append(b.queue, delivery[T]{listeners: []listenerEntry[T]{entry}, values: backlog})
		b.drainLocked()
	} else {
		b.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.listeners = removeListener(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Event returns b as an Event.
func (b *Buffered[T]) Event() Event[T] {
	return b.Subscribe
}

// Backlog returns the number of values waiting for the first listener.
func (b *Buffered[T]) Backlog() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.backlog)
}

// Dispose detaches b from its source and drops listeners and backlog.
func (b *Buffered[T]) Dispose() {
	if b.detach != nil {
		b.detach()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = nil
	b.backlog = nil
	b.queue = nil
	b.buffering = false
}

// Erase converts a typed Event into one that delivers values as any.
func Erase[T any](e Event[T]) Event[any] {
	return func(listener func(any)) func() {
		return e(func(v T) { listener(v) })
	}
}
