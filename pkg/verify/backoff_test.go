package verify

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(BackoffConfig{Jitter: 0})

	want := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: 100 * time.Millisecond, Max: 100 * time.Millisecond, Jitter: 0.25})

	for i := 0; i < 100; i++ {
		d := b.Next()
		if d < 100*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("Next() = %v, want within [100ms, 125ms]", d)
		}
	}
}

func TestBackoffMaxBelowInitial(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: time.Second, Max: 10 * time.Millisecond, Jitter: 0})
	if got := b.Next(); got != time.Second {
		t.Errorf("Next() = %v, want 1s", got)
	}
	if got := b.Next(); got != time.Second {
		t.Errorf("Next() = %v, want 1s (max raised to initial)", got)
	}
}
