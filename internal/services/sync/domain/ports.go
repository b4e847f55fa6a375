package domain

import (
	"context"
	"time"
)

// OrchestratorPort runs sync cycles
type OrchestratorPort interface {
	Run(ctx context.Context, in SyncInput) (SyncSummary, error)
	State() State
}

// ReaderPort serves persisted documents
type ReaderPort interface {
	GetByCustomer(ctx context.Context, customerID int64) (Document, error)
	ListRecent(ctx context.Context, limit int) ([]Document, error)
	ListUpdatedBetween(ctx context.Context, since, until time.Time, limit int) ([]Document, error)
}
