package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(NotFound("book not found")); got != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", got)
	}

	// Untagged errors default to transient so storage failures never
	// surface as caller mistakes
	if got := KindOf(errors.New("connection refused")); got != KindTransient {
		t.Fatalf("expected KindTransient for untagged error, got %v", got)
	}

	// The kind survives wrapping
	wrapped := fmt.Errorf("submit: %w", Conflict("request already pending"))
	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("expected KindConflict through wrap, got %v", got)
	}
}

func TestIsKind(t *testing.T) {
	if !IsKind(Forbidden("nope"), KindForbidden) {
		t.Fatalf("expected IsKind true")
	}
	if IsKind(nil, KindTransient) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(Invalid("cannot request own book")); got != "cannot request own book" {
		t.Fatalf("unexpected message %q", got)
	}

	// Causes are never exposed
	inner := errors.New("pq: connection reset")
	if got := PublicMessage(Transient("failed to load book", inner)); got != "failed to load book" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := PublicMessage(inner); got != "internal error" {
		t.Fatalf("untagged errors must be masked, got %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := Transient("wrapped", inner)
	if !errors.Is(err, inner) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}

func TestValidCondition(t *testing.T) {
	for _, c := range []string{ConditionNew, ConditionLikeNew, ConditionVeryGood, ConditionGood, ConditionFair, ConditionPoor} {
		if !ValidCondition(c) {
			t.Fatalf("expected %q to be valid", c)
		}
	}
	for _, c := range []string{"", "Mint", "good", "NEW"} {
		if ValidCondition(c) {
			t.Fatalf("expected %q to be invalid", c)
		}
	}
}

func TestValidDecision(t *testing.T) {
	if !ValidDecision(StatusAccepted) || !ValidDecision(StatusDeclined) {
		t.Fatalf("terminal statuses must be valid decisions")
	}
	for _, s := range []string{StatusPending, "", "Accepted", "cancelled"} {
		if ValidDecision(s) {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}
