package poller

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 1000 * time.Millisecond, Max: 30 * time.Second}

	expected := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond, // capped
		30000 * time.Millisecond,
	}

	for attempt, want := range expected {
		if got := b.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}

	if got := b.Delay(200); got != 30*time.Second {
		t.Errorf("Delay(200) = %v, want cap", got)
	}
}

func TestBackoff_PolicyMatchesDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second}
	policy := b.Policy(7)

	for attempt := 0; attempt < 7; attempt++ {
		next, stop := policy.Next()
		if stop {
			t.Fatalf("policy stopped early at retry %d", attempt)
		}
		if want := b.Delay(attempt); next != want {
			t.Errorf("retry %d: policy = %v, Delay = %v", attempt, next, want)
		}
	}

	if _, stop := policy.Next(); !stop {
		t.Errorf("expected policy to stop after 7 retries")
	}
}

func TestBackoff_DefaultsWhenUnset(t *testing.T) {
	var b Backoff
	if got := b.Delay(0); got != DefaultBackoff.Base {
		t.Errorf("Delay(0) = %v, want %v", got, DefaultBackoff.Base)
	}
	if got := b.Delay(10); got != DefaultBackoff.Max {
		t.Errorf("Delay(10) = %v, want %v", got, DefaultBackoff.Max)
	}
}
