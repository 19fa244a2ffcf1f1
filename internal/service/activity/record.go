package activity

import (
	"context"
	"fmt"

	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

// Record writes entry for a mutation that has already committed, so it never
// fails or crashes the caller. Errors and panics from l are logged and
// counted on m.ActivityLogFailures.
func Record(ctx context.Context, l Logger, entry Entry, m *metrics.Metrics, log *logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			recordFailure(ctx, fmt.Errorf("panic: %v", r), entry, m, log)
		}
	}()
	if l == nil {
		return
	}
	if err := l.Log(ctx, entry); err != nil {
		recordFailure(ctx, err, entry, m, log)
	}
}

func recordFailure(ctx context.Context, err error, entry Entry, m *metrics.Metrics, log *logger.Logger) {
	if m != nil {
		m.ActivityLogFailures.Inc()
	}
	if log == nil {
		return
	}
	log.WithRequestID(ctx).Warn(err, "failed to write activity log",
		"action", string(entry.Action),
		"entity_id", entry.EntityID.String(),
	)
}
