package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/job"
	"github.com/priceguard/sentinel/internal/node"
	"github.com/priceguard/sentinel/internal/queue"
	"github.com/priceguard/sentinel/internal/workflow"
)

func newTestEngine(t *testing.T) (*Engine, *queue.MemStore) {
	t.Helper()
	store := queue.NewMemStore()
	reg := node.NewRegistry()
	return New(reg, store, zerolog.Nop(), nil), store
}

func twoNodeDef() *workflow.Definition {
	return &workflow.Definition{
		WorkflowID: "wf-happy",
		StartNode:  "fetch",
		Nodes: map[string]workflow.Node{
			"fetch":   {Type: "fetch", Name: "fetch", NextNodes: []string{"compare"}, Retry: workflow.Retry{MaxAttempts: 1}},
			"compare": {Type: "compare", Name: "compare", NextNodes: []string{}, Retry: workflow.Retry{MaxAttempts: 1}},
		},
	}
}

func TestEngineHappyPathCompletes(t *testing.T) {
	e, _ := newTestEngine(t)
	e.registry.Register("fetch", node.Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *node.Context) node.Result {
			return node.Success(map[string]any{"fetched": true})
		},
	})
	e.registry.Register("compare", node.Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *node.Context) node.Result {
			if nctx.State["fetched"] != true {
				t.Fatalf("expected fetched=true in accumulated state, got %v", nctx.State)
			}
			return node.Success(map[string]any{"match": true})
		},
	})

	j := job.New("wf-happy", "hwahae", 5, nil)
	def := twoNodeDef()

	err := e.Run(context.Background(), def, j, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("Status = %s, want completed", j.Status)
	}
	if j.Progress != 1.0 {
		t.Fatalf("Progress = %v, want 1.0", j.Progress)
	}
	if j.CompletedAt == nil || j.StartedAt == nil || j.CompletedAt.Before(*j.StartedAt) {
		t.Fatalf("timestamps invalid: started=%v completed=%v", j.StartedAt, j.CompletedAt)
	}
	if j.Result["match"] != true {
		t.Fatalf("Result = %v, want match=true", j.Result)
	}
}

func TestEngineRetryExhaustionFailsJob(t *testing.T) {
	e, _ := newTestEngine(t)
	attempts := 0
	e.registry.Register("flaky", node.Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *node.Context) node.Result {
			attempts++
			return node.Failure("boom", "always fails")
		},
	})

	def := &workflow.Definition{
		WorkflowID: "wf-retry",
		StartNode:  "flaky",
		Nodes: map[string]workflow.Node{
			"flaky": {Type: "flaky", Name: "flaky", Retry: workflow.Retry{MaxAttempts: 3, BackoffMS: 1}},
		},
	}
	j := job.New("wf-retry", "oliveyoung", 1, nil)

	err := e.Run(context.Background(), def, j, nil)
	if err == nil {
		t.Fatalf("Run() error = nil, want failure after retries")
	}
	if j.Status != job.StatusFailed {
		t.Fatalf("Status = %s, want failed", j.Status)
	}
	if j.Error == nil || j.Error.NodeID != "flaky" {
		t.Fatalf("Error = %+v, want node_id=flaky", j.Error)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestEngineEmptyNextNodesTerminatesBranch(t *testing.T) {
	e, _ := newTestEngine(t)
	e.registry.Register("terminal", node.Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *node.Context) node.Result {
			return node.Result{Success: true, Data: map[string]any{"done": true}, NextNodes: []string{}}
		},
	})

	def := &workflow.Definition{
		WorkflowID: "wf-term",
		StartNode:  "terminal",
		Nodes: map[string]workflow.Node{
			"terminal": {Type: "terminal", Name: "terminal", NextNodes: []string{"unused"}, Retry: workflow.Retry{MaxAttempts: 1}},
			"unused":   {Type: "terminal", Name: "unused", Retry: workflow.Retry{MaxAttempts: 1}},
		},
	}
	j := job.New("wf-term", "hwahae", 1, nil)

	if err := e.Run(context.Background(), def, j, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("Status = %s, want completed", j.Status)
	}
}

func TestEngineConfigSubstitution(t *testing.T) {
	e, _ := newTestEngine(t)
	var seenURL string
	e.registry.Register("fetch", node.Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *node.Context) node.Result {
			seenURL = nctx.Config["url"].(string)
			return node.Success(nil)
		},
	})

	def := &workflow.Definition{
		WorkflowID: "wf-sub",
		StartNode:  "fetch",
		Nodes: map[string]workflow.Node{
			"fetch": {
				Type:      "fetch",
				Name:      "fetch",
				Config:    map[string]any{"url": "https://example.com/goods/${product_id}"},
				Retry:     workflow.Retry{MaxAttempts: 1},
			},
		},
	}
	j := job.New("wf-sub", "hwahae", 1, map[string]any{"product_id": "21320"})

	if err := e.Run(context.Background(), def, j, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := "https://example.com/goods/21320"; seenURL != want {
		t.Fatalf("seenURL = %q, want %q", seenURL, want)
	}
}

func TestEngineNodeTimeout(t *testing.T) {
	e, _ := newTestEngine(t)
	e.registry.Register("slow", node.Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *node.Context) node.Result {
			select {
			case <-time.After(200 * time.Millisecond):
				return node.Success(nil)
			case <-ctx.Done():
				return node.Result{}
			}
		},
	})

	def := &workflow.Definition{
		WorkflowID: "wf-timeout",
		StartNode:  "slow",
		Nodes: map[string]workflow.Node{
			"slow": {Type: "slow", Name: "slow", TimeoutMS: 10, Retry: workflow.Retry{MaxAttempts: 1}},
		},
	}
	j := job.New("wf-timeout", "hwahae", 1, nil)

	err := e.Run(context.Background(), def, j, nil)
	if err == nil {
		t.Fatalf("Run() error = nil, want timeout failure")
	}
	if j.Status != job.StatusFailed {
		t.Fatalf("Status = %s, want failed", j.Status)
	}
}
