package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Loader reads workflow definitions from {dir}/{id}.json, validates them,
// and caches the result per id (spec §4.B).
type Loader struct {
	dir string
	log zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Definition
}

// NewLoader returns a Loader rooted at dir.
func NewLoader(dir string, log zerolog.Logger) *Loader {
	return &Loader{
		dir:   dir,
		log:   log.With().Str("component", "workflow.Loader").Logger(),
		cache: make(map[string]*Definition),
	}
}

// Load returns the cached definition for id, parsing and validating the
// backing file on first access.
func (l *Loader) Load(id string) (*Definition, error) {
	l.mu.RLock()
	if def, ok := l.cache[id]; ok {
		l.mu.RUnlock()
		return def, nil
	}
	l.mu.RUnlock()

	def, err := l.readAndValidate(id)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[id] = def
	l.mu.Unlock()
	return def, nil
}

// Reload drops id from the cache so the next Load re-reads its file.
func (l *Loader) Reload(id string) {
	l.mu.Lock()
	delete(l.cache, id)
	l.mu.Unlock()
}

func (l *Loader) readAndValidate(id string) (*Definition, error) {
	path := filepath.Join(l.dir, id+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
		}
		return nil, err
	}

	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if err := validateSchema(&def); err != nil {
		return nil, err
	}
	if err := l.validateStructure(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// validateSchema checks the required top-level fields and that every node
// carries the fields the engine needs (spec §4.B (a)-(b)).
func validateSchema(def *Definition) error {
	if def.WorkflowID == "" || def.StartNode == "" || len(def.Nodes) == 0 {
		return fmt.Errorf("%w: workflow_id, start_node and nodes are required", ErrSchemaInvalid)
	}
	for id, n := range def.Nodes {
		if n.Type == "" || n.Name == "" {
			return fmt.Errorf("%w: node %s missing type or name", ErrSchemaInvalid, id)
		}
		if n.Retry.MaxAttempts < 0 {
			return fmt.Errorf("%w: node %s has negative max_attempts", ErrSchemaInvalid, id)
		}
	}
	return nil
}

// validateStructure checks start-node membership, next-node resolution,
// and reachability, then warns (never fails) on cycles (spec §4.B (c)-(f),
// Open Question decision in DESIGN.md).
func (l *Loader) validateStructure(def *Definition) error {
	if _, ok := def.Nodes[def.StartNode]; !ok {
		return fmt.Errorf("%w: start_node %q not in nodes", ErrStructureInvalid, def.StartNode)
	}
	for id, n := range def.Nodes {
		for _, next := range n.NextNodes {
			if _, ok := def.Nodes[next]; !ok {
				return fmt.Errorf("%w: node %s references unknown next_node %q", ErrStructureInvalid, id, next)
			}
		}
	}

	reachable, hasCycle := reachabilityAndCycle(def)
	if len(reachable) != len(def.Nodes) {
		for id := range def.Nodes {
			if !reachable[id] {
				return fmt.Errorf("%w: node %s is unreachable from %s", ErrStructureInvalid, id, def.StartNode)
			}
		}
	}
	if hasCycle {
		l.log.Warn().Str("workflow_id", def.WorkflowID).Msg("workflow graph contains a cycle; allowed only if node logic terminates")
	}
	return nil
}

// reachabilityAndCycle performs one DFS from StartNode, returning the set
// of reachable node ids and whether a back-edge (cycle) was seen.
func reachabilityAndCycle(def *Definition) (map[string]bool, bool) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	hasCycle := false

	var dfs func(id string)
	dfs = func(id string) {
		visited[id] = true
		onStack[id] = true
		for _, next := range def.Nodes[id].NextNodes {
			if onStack[next] {
				hasCycle = true
				continue
			}
			if !visited[next] {
				dfs(next)
			}
		}
		onStack[id] = false
	}
	dfs(def.StartNode)
	return visited, hasCycle
}
