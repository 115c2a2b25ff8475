package engine

import (
	"errors"
	"fmt"
)

// ErrDefinitionInvalid mirrors spec §7 DefinitionInvalid: the workflow
// failed to load (schema or structure), fatal for the job that referenced
// it.
var ErrDefinitionInvalid = errors.New("engine: workflow definition invalid")

// NodeExecutionError wraps a node's reported failure (returned
// success:false) or a recovered panic, after retries are exhausted (spec
// §7 NodeExecutionError, Timeout).
type NodeExecutionError struct {
	NodeID  string
	Message string
	Cause   error
}

func (e *NodeExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("engine: node %s failed: %s", e.NodeID, e.Message)
	}
	return fmt.Sprintf("engine: node failed: %s", e.Message)
}

func (e *NodeExecutionError) Unwrap() error { return e.Cause }

// ErrTimeout marks a node execution that exceeded its configured
// timeout-ms; the engine counts it as a NodeExecutionError for retry
// accounting (spec §7 Timeout).
var ErrTimeout = errors.New("engine: node execution timed out")
