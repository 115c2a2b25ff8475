package node

import (
	"context"
	"time"

	"github.com/priceguard/sentinel/internal/audit"
)

// AuditWriteNode appends the job's accumulated audit.Record slice to a
// fresh streaming log, one file per job (spec §4.C "audit_write", §4.H).
type AuditWriteNode struct {
	OutputRoot string
}

func (n *AuditWriteNode) Validate(input map[string]any) ValidationResult { return OK() }

func (n *AuditWriteNode) Execute(ctx context.Context, input map[string]any, nctx *Context) Result {
	records, _ := nctx.State["audit_records"].([]audit.Record)

	startedAt := time.Now()
	path := audit.PathFor(n.OutputRoot, nctx.Platform, nctx.JobID, startedAt)

	w := audit.NewWriter()
	header := audit.Header{
		JobID:      nctx.JobID,
		WorkflowID: nctx.WorkflowID,
		Platform:   nctx.Platform,
		StartedAt:  startedAt,
	}
	if err := w.Initialize(path, header); err != nil {
		return Failure("AuditWriteError", err.Error())
	}

	for _, rec := range records {
		if err := w.Append(rec); err != nil {
			_ = w.Cleanup()
			return Failure("AuditWriteError", err.Error())
		}
	}

	if err := w.Finalize(time.Now()); err != nil {
		return Failure("AuditWriteError", err.Error())
	}

	nctx.State["audit_log_path"] = path
	return Success(map[string]any{"audit_log_path": path})
}

func (n *AuditWriteNode) Rollback(ctx context.Context, input map[string]any, nctx *Context) {}
