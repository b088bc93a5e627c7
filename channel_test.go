// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestTableCallForwardsOnce(t *testing.T) {
	calls := 0
	table := NewTable(map[string]CallHandler{
		"add": Handle(func(_ context.Context, a addArgs) (int, error) {
			calls++
			return a.A + a.B, nil
		}),
	}, nil)

	arg, err := NewPayload(JSONCodec{}, addArgs{A: 1, B: 2})
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	result, err := table.Call(context.Background(), "add", arg)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != 3 || calls != 1 {
		t.Errorf("got result %v after %d calls", result, calls)
	}
}

func TestTableUnknownNames(t *testing.T) {
	table := NewTable(nil, nil)

	_, err := table.Call(context.Background(), "nope", Payload{})
	var unknownCommand *UnknownCommandError
	if !errors.As(err, &unknownCommand) || err.Error() != "Call not found: nope" {
		t.Errorf("got %v", err)
	}

	_, err = table.Listen(context.Background(), "onNope")
	var unknownEvent *UnknownEventError
	if !errors.As(err, &unknownEvent) || err.Error() != "Event not found: onNope" {
		t.Errorf("got %v", err)
	}
}

func TestTableCopiesMaps(t *testing.T) {
	calls := map[string]CallHandler{"a": HandleNoArgVoid(func(context.Context) error { return nil })}
	table := NewTable(calls, nil)
	calls["b"] = calls["a"]

	if got := table.Commands(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("got %v", got)
	}
}

func TestTableNamesSorted(t *testing.T) {
	noop := HandleNoArgVoid(func(context.Context) error { return nil })
	e := NewEmitter[int]()
	table := NewTable(
		map[string]CallHandler{"zeta": noop, "alpha": noop, "mid": noop},
		map[string]Event[any]{"onB": Erase(e.Event()), "onA": Erase(e.Event())},
	)
	if got := table.Commands(); !slices.Equal(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("commands %v", got)
	}
	if got := table.Events(); !slices.Equal(got, []string{"onA", "onB"}) {
		t.Errorf("events %v", got)
	}
}

func TestHandleDecodeError(t *testing.T) {
	h := Handle(func(_ context.Context, a addArgs) (int, error) { return 0, nil })
	_, err := h(context.Background(), RawPayload(JSONCodec{}, []byte("{broken")))
	if err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestHandleVoidReturnsNoResult(t *testing.T) {
	var got string
	h := HandleVoid(func(_ context.Context, s string) error {
		got = s
		return nil
	})
	arg, _ := NewPayload(JSONCodec{}, "hi")
	result, err := h(context.Background(), arg)
	if err != nil || result != nil {
		t.Fatalf("got %v, %v", result, err)
	}
	if got != "hi" {
		t.Errorf("got %q", got)
	}
}

func TestPayloadEmptyDecodeIsNoop(t *testing.T) {
	p, err := NewPayload(nil, nil)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	if !p.IsEmpty() {
		t.Fatal("expected empty payload")
	}
	v := 5
	if err := p.Decode(&v); err != nil || v != 5 {
		t.Errorf("got %d, %v", v, err)
	}
}
