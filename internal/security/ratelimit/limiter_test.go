package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPerKey(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("user-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("user-1") {
		t.Fatalf("request over the limit should be denied")
	}

	// Other users have their own budget
	if !l.Allow("user-2") {
		t.Fatalf("other user should be unaffected")
	}

	// Unkeyed traffic is never limited here; auth handles identity
	if !l.Allow("") {
		t.Fatalf("empty key should pass")
	}
}

func TestAllowWindowSlides(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	defer l.Stop()

	if !l.Allow("user-1") {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow("user-1") {
		t.Fatalf("second request within window should be denied")
	}

	time.Sleep(60 * time.Millisecond)
	if !l.Allow("user-1") {
		t.Fatalf("request after window should be allowed")
	}
}

func TestAllowStrictIsSeparate(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	// The strict bucket is independent of the general one
	if !l.AllowStrict("1.2.3.4", 1, time.Minute) {
		t.Fatalf("first strict request should be allowed")
	}
	if l.AllowStrict("1.2.3.4", 1, time.Minute) {
		t.Fatalf("second strict request should be denied")
	}
	if !l.Allow("1.2.3.4") {
		t.Fatalf("general bucket should be unaffected")
	}
}
