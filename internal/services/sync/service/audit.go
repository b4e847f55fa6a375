package service

import (
	"context"
	"time"

	"ordercast/internal/platform/logger"
	"ordercast/internal/platform/store"
)

const auditTable = "sync_runs"

// AuditDDL creates the columnar run log. MergeTree ordered by start time
// keeps the recent-runs scan cheap
const AuditDDL = `
CREATE TABLE IF NOT EXISTS sync_runs (
	run_id     String,
	status     LowCardinality(String),
	processed  Int32,
	duration_ms Int64,
	started_at DateTime64(3, 'UTC')
) ENGINE = MergeTree()
ORDER BY (started_at)
`

// RunRow is one audit record per sync cycle
type RunRow struct {
	RunID     string
	Status    string
	Processed int
	Duration  time.Duration
	StartedAt time.Time
}

// Audit writes per-run records to ClickHouse. A nil Audit (or one with a
// nil seam) is a no-op so the cycle never depends on the columnar store
type Audit struct {
	CH  store.Clickhouse
	log logger.Logger
}

// NewAudit constructs an audit writer over the ClickHouse seam
func NewAudit(ch store.Clickhouse) *Audit {
	return &Audit{CH: ch, log: *logger.Named("sync.audit")}
}

// EnsureSchema creates the run log table when missing
func (a *Audit) EnsureSchema(ctx context.Context) error {
	if a == nil || a.CH == nil {
		return nil
	}
	rows, err := a.CH.Query(ctx, AuditDDL)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// Record appends one run row, best effort. Failures are logged and
// swallowed; auditing never fails a cycle
func (a *Audit) Record(ctx context.Context, row RunRow) {
	if a == nil || a.CH == nil {
		return
	}
	data := [][]any{{
		row.RunID,
		row.Status,
		int32(row.Processed),
		row.Duration.Milliseconds(),
		row.StartedAt,
	}}
	if err := a.CH.Insert(ctx, auditTable, data); err != nil {
		a.log.Warn().Err(err).Str("run_id", row.RunID).Msg("audit insert failed")
	}
}
