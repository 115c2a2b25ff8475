package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/queue"
)

func TestWatcherEnqueuesOnInterval(t *testing.T) {
	store := queue.NewMemStore()
	w := New([]Task{
		{Name: "banner-check", Interval: "@every 1s", WorkflowID: "wf-banner", Priority: 1},
	}, store, store, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(2500 * time.Millisecond)
	depth, err := store.QueueDepth(context.Background(), AlertPlatform)
	if err != nil {
		t.Fatalf("QueueDepth: %v", err)
	}
	if depth < 2 {
		t.Fatalf("QueueDepth = %d, want at least 2 emissions in 2.5s at 1s interval", depth)
	}

	<-done
}

func TestWatcherRejectsInvalidInterval(t *testing.T) {
	store := queue.NewMemStore()
	w := New([]Task{{Name: "bad", Interval: "not-a-schedule", WorkflowID: "wf"}}, store, store, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err == nil {
		t.Fatalf("expected error for invalid interval spec")
	}
}
