package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	var slept []time.Duration
	original := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = original })

	if err := WaitFor(context.Background(), 4*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 4*time.Second {
		t.Fatalf("unexpected sleeps: %v", slept)
	}

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error for zero wait: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("zero wait must not sleep")
	}
}

func TestWaitForCancelled(t *testing.T) {
	block := make(chan struct{})
	original := sleep
	sleep = func(time.Duration) { <-block }
	t.Cleanup(func() {
		close(block)
		sleep = original
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
