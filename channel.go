// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"fmt"
	"sort"
)

// ServerChannel is the process-local end of a channel. It answers named
// calls and hands out named events.
type ServerChannel interface {
	// Call dispatches command with its encoded argument and returns the
	// result unchanged.
	Call(ctx context.Context, command string, arg Payload) (any, error)

	// Listen returns the event registered under event.
	Listen(ctx context.Context, event string) (Event[any], error)
}

// CallHandler handles one command of a channel.
type CallHandler func(ctx context.Context, arg Payload) (any, error)

// Handle adapts a typed function to a CallHandler. The argument is decoded
// into A before fn runs; a decode failure aborts the call.
func Handle[A, R any](fn func(ctx context.Context, arg A) (R, error)) CallHandler {
	return func(ctx context.Context, p Payload) (any, error) {
		var arg A
		if err := p.Decode(&arg); err != nil {
			return nil, fmt.Errorf("decode argument: %w", err)
		}
		return fn(ctx, arg)
	}
}

// HandleVoid adapts a typed function without a result.
func HandleVoid[A any](fn func(ctx context.Context, arg A) error) CallHandler {
	return func(ctx context.Context, p Payload) (any, error) {
		var arg A
		if err := p.Decode(&arg); err != nil {
			return nil, fmt.Errorf("decode argument: %w", err)
		}
		return nil, fn(ctx, arg)
	}
}

// HandleNoArg adapts a function that ignores the argument.
func HandleNoArg[R any](fn func(ctx context.Context) (R, error)) CallHandler {
	return func(ctx context.Context, _ Payload) (any, error) {
		return fn(ctx)
	}
}

// HandleNoArgVoid adapts a function with neither argument nor result.
func HandleNoArgVoid(fn func(ctx context.Context) error) CallHandler {
	return func(ctx context.Context, _ Payload) (any, error) {
		return nil, fn(ctx)
	}
}

// Table is a ServerChannel backed by fixed call and event tables. Both
// tables are copied at construction and never change afterwards.
type Table struct {
	calls  map[string]CallHandler
	events map[string]Event[any]
}

// NewTable returns a Table serving calls and events.
func NewTable(calls map[string]CallHandler, events map[string]Event[any]) *Table {
	t := &Table{
		calls:  make(map[string]CallHandler, len(calls)),
		events: make(map[string]Event[any], len(events)),
	}
	for name, h := range calls {
		t.calls[name] = h
	}
	for name, e := range events {
		t.events[name] = e
	}
	return t
}

// Call forwards command to its handler exactly once.
func (t *Table) Call(ctx context.Context, command string, arg Payload) (any, error) {
	h, ok := t.calls[command]
	if !ok {
		return nil, &UnknownCommandError{Command: command}
	}
	return h(ctx, arg)
}

// Listen returns the event registered under event.
func (t *Table) Listen(_ context.Context, event string) (Event[any], error) {
	e, ok := t.events[event]
	if !ok {
		return nil, &UnknownEventError{Event: event}
	}
	return e, nil
}

// Commands returns the sorted command names.
func (t *Table) Commands() []string {
	return sortedKeys(t.calls)
}

// Events returns the sorted event names.
func (t *Table) Events() []string {
	return sortedKeys(t.events)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
