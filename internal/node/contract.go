// Package node defines the typed node contract every workflow step
// implements (spec §4.C) and the registry that maps a workflow node's
// type tag to a concrete implementation.
package node

import (
	"context"

	"github.com/rs/zerolog"
)

// ValidationResult is the pure, I/O-free check a node performs on its
// input before execution. Validate must never perform I/O (spec §4.C).
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// OK is the zero-cost valid result.
func OK() ValidationResult { return ValidationResult{Valid: true} }

// Invalid builds a failing ValidationResult from one or more reasons.
func Invalid(reasons ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: reasons}
}

// Context carries everything a node's Execute needs beyond its input: job
// and workflow identity, the merged config (node config overlaid with job
// params), the platform tag and a snapshot of that platform's config, a
// shared DAG-scoped state map the node may read and write, and a logger.
//
// PlatformConfig is untyped (any) so this package does not import
// platformconfig, which itself has no reason to depend on node; callers
// type-assert to the concrete platform config type they expect.
type Context struct {
	JobID          string
	WorkflowID     string
	NodeID         string
	Config         map[string]any
	Platform       string
	PlatformConfig any
	State          map[string]any
	Log            zerolog.Logger
}

// ResultError is the structured failure a node reports instead of
// returning a bare error, so the engine and callers can branch on Code
// without string matching.
type ResultError struct {
	Message string
	Code    string
	Details map[string]any
}

// Result is the tagged success/failure union Execute returns (spec §4.C,
// §9 "exception-for-control-flow -> Result<T, E>").
type Result struct {
	Success   bool
	Data      map[string]any
	NextNodes []string // runtime override of Node.NextNodes, if non-nil
	Err       *ResultError
}

// Success builds a successful Result carrying data.
func Success(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Failure builds a failed Result.
func Failure(code, message string) Result {
	return Result{Success: false, Err: &ResultError{Code: code, Message: message}}
}

// Node is the typed contract every workflow step satisfies: a pure
// validator, a (possibly I/O-performing) executor, and a best-effort
// rollback hook. The engine does not call Rollback itself, including when
// a later node in the same DAG fails.
type Node interface {
	Validate(input map[string]any) ValidationResult
	Execute(ctx context.Context, input map[string]any, nctx *Context) Result
	Rollback(ctx context.Context, input map[string]any, nctx *Context)
}

// Func adapts three plain functions into a Node, mirroring the teacher's
// NodeFunc function-adapter idiom for nodes with no rollback behavior.
type Func struct {
	ValidateFn func(input map[string]any) ValidationResult
	ExecuteFn  func(ctx context.Context, input map[string]any, nctx *Context) Result
	RollbackFn func(ctx context.Context, input map[string]any, nctx *Context)
}

func (f Func) Validate(input map[string]any) ValidationResult {
	if f.ValidateFn == nil {
		return OK()
	}
	return f.ValidateFn(input)
}

func (f Func) Execute(ctx context.Context, input map[string]any, nctx *Context) Result {
	return f.ExecuteFn(ctx, input, nctx)
}

func (f Func) Rollback(ctx context.Context, input map[string]any, nctx *Context) {
	if f.RollbackFn != nil {
		f.RollbackFn(ctx, input, nctx)
	}
}
