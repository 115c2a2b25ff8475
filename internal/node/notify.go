package node

import (
	"context"
	"fmt"

	"github.com/priceguard/sentinel/internal/audit"
)

// Notifier is the out-of-core notification channel contract (spec §1
// "notification channels specified only by their contract"). Real
// channels (Slack, email, webhook) implement it elsewhere; NotifyNode
// ships a no-op default so workflows validate and run without one wired.
type Notifier interface {
	Notify(ctx context.Context, platform, jobID, message string) error
}

// NoopNotifier discards every message. It is the in-core default so a
// workflow referencing a "notify" node runs correctly even when no real
// channel has been configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, platform, jobID, message string) error { return nil }

// NotifyNode calls the configured Notifier with a summary drawn from the
// audit records accumulated so far (spec §4.C "notify").
type NotifyNode struct {
	Notifier Notifier
}

func (n *NotifyNode) Validate(input map[string]any) ValidationResult { return OK() }

func (n *NotifyNode) Execute(ctx context.Context, input map[string]any, nctx *Context) Result {
	notifier := n.Notifier
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	records, _ := nctx.State["audit_records"].([]audit.Record)
	message, _ := input["message"].(string)
	if message == "" {
		message = fmt.Sprintf("%s: validated %d items", nctx.Platform, len(records))
	}

	if err := notifier.Notify(ctx, nctx.Platform, nctx.JobID, message); err != nil {
		return Failure("NotifyError", err.Error())
	}
	return Success(map[string]any{"notified": true})
}

func (n *NotifyNode) Rollback(ctx context.Context, input map[string]any, nctx *Context) {}
