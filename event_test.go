// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
)

func collect[T any](e Event[T]) (*[]T, func()) {
	var (
		mu  sync.Mutex
		got []T
	)
	unsubscribe := e(func(v T) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	return &got, unsubscribe
}

func TestEmitterFiresInSubscriptionOrder(t *testing.T) {
	e := NewEmitter[int]()
	var order []string
	e.Event()(func(int) { order = append(order, "a") })
	e.Event()(func(int) { order = append(order, "b") })

	e.Fire(1)
	if !slices.Equal(order, []string{"a", "b"}) {
		t.Errorf("got %v", order)
	}
}

func TestEmitterUnsubscribe(t *testing.T) {
	e := NewEmitter[int]()
	got, unsubscribe := collect(e.Event())
	if !e.HasListeners() {
		t.Fatal("expected a listener")
	}

	e.Fire(1)
	unsubscribe()
	unsubscribe()
	e.Fire(2)

	if !slices.Equal(*got, []int{1}) {
		t.Errorf("got %v, want [1]", *got)
	}
	if e.HasListeners() {
		t.Error("expected no listeners after unsubscribe")
	}
}

func TestEmitterDropsWithoutListeners(t *testing.T) {
	e := NewEmitter[string]()
	e.Fire("lost")
	got, _ := collect(e.Event())
	e.Fire("kept")
	if !slices.Equal(*got, []string{"kept"}) {
		t.Errorf("got %v", *got)
	}
}

func TestEmitterDispose(t *testing.T) {
	e := NewEmitter[int]()
	got, _ := collect(e.Event())
	e.Dispose()
	e.Fire(1)
	if len(*got) != 0 {
		t.Errorf("got %v after dispose", *got)
	}
}

func TestBufferedReplaysBacklogBeforeLive(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), true)
	defer b.Dispose()

	source.Fire(1)
	source.Fire(2)
	source.Fire(3)
	if got := b.Backlog(); got != 3 {
		t.Fatalf("backlog %d, want 3", got)
	}

	got, _ := collect(b.Event())
	if !slices.Equal(*got, []int{1, 2, 3}) {
		t.Fatalf("got %v after subscribe, want [1 2 3]", *got)
	}

	source.Fire(4)
	if !slices.Equal(*got, []int{1, 2, 3, 4}) {
		t.Errorf("got %v, want [1 2 3 4]", *got)
	}
	if b.Backlog() != 0 {
		t.Error("backlog not drained")
	}
}

func TestBufferedReplaysOnlyToFirstListener(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), true)
	defer b.Dispose()

	source.Fire(1)
	first, _ := collect(b.Event())
	second, _ := collect(b.Event())
	source.Fire(2)

	if !slices.Equal(*first, []int{1, 2}) {
		t.Errorf("first got %v", *first)
	}
	if !slices.Equal(*second, []int{2}) {
		t.Errorf("second got %v", *second)
	}
}

func TestBufferedStopsBufferingAfterFirstListener(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), true)
	defer b.Dispose()

	_, unsubscribe := collect(b.Event())
	unsubscribe()

	// Nobody listens, but buffering ended with the first listener.
	source.Fire(1)
	if got := b.Backlog(); got != 0 {
		t.Fatalf("backlog %d, want 0", got)
	}
	got, _ := collect(b.Event())
	source.Fire(2)
	if !slices.Equal(*got, []int{2}) {
		t.Errorf("got %v, want [2]", *got)
	}
}

// runWithin fails the test when fn does not return in time.
func runWithin(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery did not complete")
	}
}

func TestBufferedListenerFiresSameSource(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), true)
	defer b.Dispose()

	var order []string
	b.Subscribe(func(v int) {
		order = append(order, fmt.Sprintf("a%d", v))
		if v == 1 {
			source.Fire(2)
		}
	})
	b.Subscribe(func(v int) { order = append(order, fmt.Sprintf("b%d", v)) })

	runWithin(t, func() { source.Fire(1) })

	// Value 1 reaches every listener before the value fired from inside
	// the first callback.
	want := []string{"a1", "b1", "a2", "b2"}
	if !slices.Equal(order, want) {
		t.Errorf("got %v, want %v", order, want)
	}
}

func TestBufferedBacklogListenerFiresSameSource(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), true)
	defer b.Dispose()

	source.Fire(1)
	source.Fire(2)

	var got []int
	runWithin(t, func() {
		b.Subscribe(func(v int) {
			got = append(got, v)
			if v == 1 {
				source.Fire(9)
			}
		})
	})
	if !slices.Equal(got, []int{1, 2, 9}) {
		t.Errorf("got %v, want [1 2 9]", got)
	}
}

func TestBufferedSubscribeFromListener(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), false)
	defer b.Dispose()

	var late []int
	b.Subscribe(func(v int) {
		if v == 1 {
			b.Subscribe(func(v int) { late = append(late, v) })
		}
	})

	runWithin(t, func() {
		source.Fire(1)
		source.Fire(2)
	})
	if !slices.Equal(late, []int{2}) {
		t.Errorf("got %v, want [2]", late)
	}
}

func TestUnbufferedDropsWithoutListeners(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), false)
	defer b.Dispose()

	source.Fire(1)
	got, _ := collect(b.Event())
	source.Fire(2)
	if !slices.Equal(*got, []int{2}) {
		t.Errorf("got %v, want [2]", *got)
	}
}

func TestBufferedDisposeDetachesSource(t *testing.T) {
	source := NewEmitter[int]()
	b := Buffer(source.Event(), true)
	if !source.HasListeners() {
		t.Fatal("adapter should subscribe at construction")
	}

	source.Fire(1)
	b.Dispose()
	if source.HasListeners() {
		t.Error("source still has listeners after dispose")
	}
	if b.Backlog() != 0 {
		t.Error("backlog kept after dispose")
	}
}

func TestEraseForwardsValues(t *testing.T) {
	source := NewEmitter[int]()
	got, _ := collect(Erase(source.Event()))
	source.Fire(7)
	if len(*got) != 1 || (*got)[0] != any(7) {
		t.Errorf("got %v", *got)
	}
}
