package platformscheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/queue"
)

func newTestScheduler(platforms []Platform) (*Scheduler, *queue.MemStore) {
	store := queue.NewMemStore()
	s := New(Config{InterPlatformDelay: time.Nanosecond}, platforms, store, store, zerolog.Nop())
	return s, store
}

func TestTickEmitsOnSaleUntilRatioThenOffSale(t *testing.T) {
	s, store := newTestScheduler([]Platform{{Tag: "hwahae", WorkflowID: "wf1", CoverageRatio: 2}})
	ctx := context.Background()
	_ = store.SetEnabled(ctx, true)

	now := time.Now()
	for i := 0; i < 3; i++ {
		s.tick(ctx, now.Add(time.Duration(i)*time.Second))
	}

	depth, err := store.QueueDepth(ctx, "hwahae")
	if err != nil {
		t.Fatalf("QueueDepth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("QueueDepth = %d, want 3", depth)
	}

	var states []string
	for i := 0; i < 3; i++ {
		j, err := store.Dequeue(ctx, "hwahae", time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if j == nil {
			t.Fatalf("expected job %d", i)
		}
		states = append(states, j.Params["sale_state"].(string))
	}
	if states[0] != "on_sale" || states[1] != "on_sale" || states[2] != "off_sale" {
		t.Fatalf("states = %v, want [on_sale on_sale off_sale]", states)
	}
}

func TestTickSkippedWhenDisabled(t *testing.T) {
	s, store := newTestScheduler([]Platform{{Tag: "hwahae", WorkflowID: "wf1", CoverageRatio: 2}})
	ctx := context.Background()

	s.tick(ctx, time.Now())

	depth, _ := store.QueueDepth(ctx, "hwahae")
	if depth != 0 {
		t.Fatalf("QueueDepth = %d, want 0 while disabled", depth)
	}
}

func TestCooldownBlocksReAdmission(t *testing.T) {
	s, store := newTestScheduler([]Platform{{Tag: "hwahae", WorkflowID: "wf1", CoverageRatio: 2, SameCooldown: time.Hour}})
	ctx := context.Background()
	_ = store.SetEnabled(ctx, true)

	now := time.Now()
	if err := s.NotifyCompletion(ctx, "hwahae", now); err != nil {
		t.Fatalf("NotifyCompletion: %v", err)
	}

	s.tick(ctx, now.Add(time.Minute))

	depth, _ := store.QueueDepth(ctx, "hwahae")
	if depth != 0 {
		t.Fatalf("QueueDepth = %d, want 0 during cooldown", depth)
	}
}

func TestStopClearsQueuesWhenRequested(t *testing.T) {
	s, store := newTestScheduler([]Platform{{Tag: "hwahae", WorkflowID: "wf1", CoverageRatio: 2}})
	ctx := context.Background()
	_ = store.SetEnabled(ctx, true)
	s.tick(ctx, time.Now())

	if err := s.Stop(ctx, true); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	enabled, _ := store.GetEnabled(ctx)
	if enabled {
		t.Fatalf("expected disabled after Stop")
	}
	depth, _ := store.QueueDepth(ctx, "hwahae")
	if depth != 0 {
		t.Fatalf("QueueDepth = %d, want 0 after Stop(clearQueues=true)", depth)
	}
}
