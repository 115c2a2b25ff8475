// Package engine implements the DAG Execution Engine (spec §4.D): it walks
// a workflow.Definition from its start node, honoring per-node retry
// policy, merging each node's output into accumulated state, and
// respecting runtime branch overrides. The engine is single-threaded per
// job; multi-node parallelism within a job is explicitly out of scope
// (spec §4.D).
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/job"
	"github.com/priceguard/sentinel/internal/metrics"
	"github.com/priceguard/sentinel/internal/node"
	"github.com/priceguard/sentinel/internal/queue"
	"github.com/priceguard/sentinel/internal/workflow"
)

// JobUpdater persists a job record after every step. queue.Store satisfies
// this; it is narrowed here so the engine doesn't depend on the rest of
// Store's surface.
type JobUpdater interface {
	Update(ctx context.Context, j *job.Job) error
}

// Engine walks one workflow.Definition per Run call on behalf of one Job.
type Engine struct {
	registry *node.Registry
	jobs     JobUpdater
	log      zerolog.Logger
	rng      *rand.Rand
	metrics  *metrics.Metrics
}

// New builds an Engine. registry resolves node type tags; jobs persists
// job state after every step (spec §4.D step 9). m is optional; a nil
// value disables instrumentation.
func New(registry *node.Registry, jobs JobUpdater, log zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		registry: registry,
		jobs:     jobs,
		log:      log.With().Str("component", "engine").Logger(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		metrics:  m,
	}
}

// Run executes def on behalf of j, mutating j in place and persisting it
// after every node (spec §4.D steps 1-11). platformConfig is handed
// through to every node.Context verbatim. The returned error is non-nil
// only for logging; by the time Run returns, j.Status and j.Error already
// reflect the outcome.
func (e *Engine) Run(ctx context.Context, def *workflow.Definition, j *job.Job, platformConfig any) error {
	now := time.Now()
	j.Status = job.StatusRunning
	j.StartedAt = &now
	j.CurrentNode = def.StartNode
	if err := e.jobs.Update(ctx, j); err != nil {
		return err
	}

	state := map[string]any{
		"job_metadata": map[string]any{"started_at": now},
	}
	executed := map[string]bool{}
	queued := map[string]bool{def.StartNode: true}
	ready := []string{def.StartNode}

	var runErr error
	var failedNode, failedNodeType string

runLoop:
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		if executed[id] {
			continue
		}

		n, found := def.Nodes[id]
		if !found {
			// Unreachable given loader validation, but the engine must not
			// trust a definition it didn't itself validate.
			runErr = &NodeExecutionError{NodeID: id, Message: "node not present in definition"}
			failedNode = id
			break runLoop
		}

		result, err := e.executeNodeWithRetry(ctx, j, def, id, n, state, platformConfig)
		if err != nil {
			runErr = err
			failedNode = id
			failedNodeType = n.Type
			break runLoop
		}

		for k, v := range result.Data {
			state[k] = v
		}
		executed[id] = true

		successors := n.NextNodes
		if result.NextNodes != nil {
			successors = result.NextNodes
		}
		for _, next := range successors {
			if executed[next] || queued[next] {
				continue
			}
			ready = append(ready, next)
			queued[next] = true
		}

		j.Progress = float64(len(executed)) / float64(len(def.Nodes))
		if len(ready) > 0 {
			j.CurrentNode = ready[0]
		} else {
			j.CurrentNode = ""
		}
		if err := e.jobs.Update(ctx, j); err != nil {
			return err
		}
	}

	completedAt := time.Now()
	j.CompletedAt = &completedAt
	if runErr != nil {
		if failedNode == "" {
			failedNode = "unknown"
		}
		j.Status = job.StatusFailed
		j.Error = &job.Error{Message: runErr.Error(), NodeID: failedNode, Timestamp: completedAt}
		if e.metrics != nil {
			e.metrics.ObserveJobDuration(j.Platform, string(job.StatusFailed), completedAt.Sub(now))
			if failedNodeType != "" {
				e.metrics.IncNodeFailure(failedNodeType)
			}
		}
	} else {
		j.Status = job.StatusCompleted
		j.Progress = 1.0
		j.Result = state
		if e.metrics != nil {
			e.metrics.ObserveJobDuration(j.Platform, string(job.StatusCompleted), completedAt.Sub(now))
		}
	}
	if err := e.jobs.Update(ctx, j); err != nil {
		return err
	}
	return runErr
}

// executeNodeWithRetry builds the merged config and NodeContext, then
// retries up to n.Retry.MaxAttempts times with jittered, capped linear
// backoff, honoring n.TimeoutMS per attempt (spec §4.D step 4, §5
// cancellation point b).
func (e *Engine) executeNodeWithRetry(
	ctx context.Context,
	j *job.Job,
	def *workflow.Definition,
	id string,
	n workflow.Node,
	state map[string]any,
	platformConfig any,
) (node.Result, error) {
	merged := mergeConfig(n.Config, j.Params)
	nctx := &node.Context{
		JobID:          j.ID,
		WorkflowID:     def.WorkflowID,
		NodeID:         id,
		Config:         merged,
		Platform:       j.Platform,
		PlatformConfig: platformConfig,
		State:          state,
		Log:            e.log.With().Str("job_id", j.ID).Str("node_id", id).Logger(),
	}

	impl, err := e.registry.Get(n.Type)
	if err != nil {
		return node.Result{}, err
	}

	maxAttempts := n.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, execErr := e.runOnce(ctx, impl, merged, nctx, n.TimeoutMS)
		if execErr == nil && result.Success {
			return result, nil
		}
		reason := "error"
		if execErr == nil && !result.Success {
			execErr = &NodeExecutionError{NodeID: id, Message: result.Err.Message}
			reason = result.Err.Code
		}
		lastErr = execErr
		nctx.Log.Warn().Int("attempt", attempt).Int("max_attempts", maxAttempts).Err(execErr).Msg("node attempt failed")

		if attempt < maxAttempts {
			if e.metrics != nil {
				e.metrics.IncNodeRetry(n.Type, reason)
			}
			wait := e.backoff(attempt, n.Retry.BackoffMS)
			select {
			case <-ctx.Done():
				return node.Result{}, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return node.Result{}, lastErr
}

// runOnce invokes the node's Execute once, recovering panics into
// NodeExecutionError (spec §9) and enforcing timeoutMS via context
// deadline when set.
func (e *Engine) runOnce(ctx context.Context, impl node.Node, input map[string]any, nctx *node.Context, timeoutMS int) (res node.Result, err error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeoutMS > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
		defer cancel()
	}

	type outcome struct {
		res node.Result
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{res: node.Result{
					Success: false,
					Err:     &node.ResultError{Code: "panic", Message: fmt.Sprintf("%v", r)},
				}}
			}
		}()
		done <- outcome{res: impl.Execute(runCtx, input, nctx)}
	}()

	select {
	case o := <-done:
		return o.res, nil
	case <-runCtx.Done():
		if timeoutMS > 0 {
			return node.Result{}, ErrTimeout
		}
		return node.Result{}, runCtx.Err()
	}
}

// backoff mirrors the retry_policy's backoff_ms*attempt floor from spec
// §4.D step 4, capping that linear growth at ten times backoff_ms and
// adding up to backoff_ms of random jitter so retries
// across nodes sharing a scarce resource (the browser pool) don't
// synchronize.
func (e *Engine) backoff(attempt int, backoffMS int) time.Duration {
	base := time.Duration(backoffMS) * time.Millisecond
	if base <= 0 {
		return 0
	}
	linear := base * time.Duration(attempt)
	ceiling := base * 10
	if linear > ceiling {
		linear = ceiling
	}
	jitter := time.Duration(e.rng.Int63n(int64(base) + 1))
	return linear + jitter
}
