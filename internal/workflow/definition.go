// Package workflow loads and validates the JSON workflow definitions the
// DAG engine executes (spec §4.B).
package workflow

// Retry configures a node's per-attempt retry policy (spec §3 Node).
type Retry struct {
	MaxAttempts int `json:"max_attempts"`
	BackoffMS   int `json:"backoff_ms"`
}

// Node is one step of a workflow DAG. NextNodes is an ordered list of node
// ids; the engine treats an empty list as a branch terminator (spec §4.D
// edge policy).
type Node struct {
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config"`
	NextNodes []string       `json:"next_nodes"`
	Retry     Retry          `json:"retry"`
	TimeoutMS int            `json:"timeout_ms,omitempty"`
}

// Definition is a workflow graph loaded from JSON and immutable after
// load (spec §3 Workflow Definition). Nodes reference each other only by
// id, never by in-memory pointer, so the whole graph round-trips through
// JSON without cycles in the Go value graph itself (spec §9 "cyclic object
// graphs -> ids").
type Definition struct {
	WorkflowID string          `json:"workflow_id"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	StartNode  string          `json:"start_node"`
	Nodes      map[string]Node `json:"nodes"`
	Defaults   map[string]any  `json:"defaults,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}
