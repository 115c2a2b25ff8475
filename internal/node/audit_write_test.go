package node

import (
	"context"
	"os"
	"testing"

	"github.com/priceguard/sentinel/internal/audit"
)

func TestAuditWriteNodeProducesReadableLog(t *testing.T) {
	dir := t.TempDir()
	n := &AuditWriteNode{OutputRoot: dir}

	records := []audit.Record{
		{ProductID: "p1", Platform: "hwahae", Status: audit.StatusSuccess, Match: true},
		{ProductID: "p2", Platform: "hwahae", Status: audit.StatusFailed, Match: false},
	}
	nctx := &Context{JobID: "job-1", WorkflowID: "wf-1", Platform: "hwahae", State: map[string]any{"audit_records": records}}

	res := n.Execute(context.Background(), nil, nctx)
	if !res.Success {
		t.Fatalf("Execute failed: %+v", res.Err)
	}

	path := nctx.State["audit_log_path"].(string)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}

	log, err := audit.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !log.Complete {
		t.Fatal("expected a complete log")
	}
	if len(log.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(log.Records))
	}
	if log.Footer.Summary.Total != 2 || log.Footer.Summary.Success != 1 || log.Footer.Summary.Failed != 1 {
		t.Fatalf("Summary = %+v", log.Footer.Summary)
	}
}
