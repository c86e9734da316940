package provider

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	ht := NewHealthTracker(3, time.Minute)

	if !ht.Available("openai") {
		t.Fatal("breaker should start closed")
	}

	ht.RecordFailure("openai")
	ht.RecordFailure("openai")
	if !ht.Available("openai") {
		t.Error("breaker should stay closed below threshold")
	}

	ht.RecordFailure("openai")
	if ht.Available("openai") {
		t.Error("breaker should be open after threshold failures")
	}
	if ht.State("openai") != BreakerOpen {
		t.Errorf("expected open, got %s", ht.State("openai"))
	}
}

func TestBreakerSuccessResets(t *testing.T) {
	ht := NewHealthTracker(3, time.Minute)

	ht.RecordFailure("openai")
	ht.RecordFailure("openai")
	ht.RecordSuccess("openai")
	ht.RecordFailure("openai")
	ht.RecordFailure("openai")

	if !ht.Available("openai") {
		t.Error("success should reset the failure count")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	ht := NewHealthTracker(1, 10*time.Millisecond)

	ht.RecordFailure("anthropic")
	if ht.Available("anthropic") {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if !ht.Available("anthropic") {
		t.Fatal("breaker should allow a probe after the recovery interval")
	}
	if ht.State("anthropic") != BreakerHalfOpen {
		t.Errorf("expected half_open, got %s", ht.State("anthropic"))
	}

	// Failed probe reopens.
	ht.RecordFailure("anthropic")
	if ht.Available("anthropic") {
		t.Error("failed probe should reopen the breaker")
	}

	// Successful probe closes.
	time.Sleep(20 * time.Millisecond)
	ht.Available("anthropic")
	ht.RecordSuccess("anthropic")
	if ht.State("anthropic") != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %s", ht.State("anthropic"))
	}
}

func TestBreakersIndependentPerProvider(t *testing.T) {
	ht := NewHealthTracker(1, time.Minute)

	ht.RecordFailure("openai")
	if ht.Available("openai") {
		t.Error("openai breaker should be open")
	}
	if !ht.Available("anthropic") {
		t.Error("anthropic breaker must be unaffected")
	}
}

func TestBreakerStateString(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{BreakerClosed, "closed"},
		{BreakerOpen, "open"},
		{BreakerHalfOpen, "half_open"},
		{BreakerState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
