package outbox

import (
	"context"
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 400*time.Millisecond)

	bounds := []time.Duration{100, 200, 400, 400}
	for i, base := range bounds {
		d := b.next()
		lo := time.Duration(float64(base*time.Millisecond) * 0.8)
		hi := time.Duration(float64(base*time.Millisecond) * 1.2)
		if d < lo || d > hi {
			t.Errorf("step %d: delay %s outside [%s, %s]", i, d, lo, hi)
		}
	}
}

func TestBackoffWaitHonoursContext(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := b.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Wait did not return promptly")
	}
}
