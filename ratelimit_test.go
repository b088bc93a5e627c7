// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"testing"
	"time"
)

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(rateLimitConfig{Enabled: false, RPS: 1, Burst: 1})
	if l != nil {
		t.Fatal("expected nil limiter when disabled")
	}
	now := time.Now()
	for i := 0; i < 10; i++ {
		if !l.allow("peer", now) {
			t.Fatal("nil limiter must allow")
		}
	}
	l.forget("peer")
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	l := newRateLimiter(rateLimitConfig{Enabled: true, RPS: 1, Burst: 2})
	now := time.Now()

	if !l.allow("a", now) || !l.allow("a", now) {
		t.Fatal("burst should allow two requests")
	}
	if l.allow("a", now) {
		t.Fatal("third request should be limited")
	}
	if !l.allow("b", now) {
		t.Fatal("other keys have their own bucket")
	}
	if !l.allow("a", now.Add(time.Second)) {
		t.Fatal("bucket should refill after a second")
	}
}

func TestRateLimiterForget(t *testing.T) {
	l := newRateLimiter(rateLimitConfig{Enabled: true, RPS: 1, Burst: 1})
	now := time.Now()

	l.allow("a", now)
	if l.allow("a", now) {
		t.Fatal("expected limit")
	}
	l.forget("a")
	if !l.allow("a", now) {
		t.Fatal("forgotten key should start with a full bucket")
	}
}
