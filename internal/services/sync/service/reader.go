package service

import (
	"context"
	"time"

	"ordercast/internal/modkit/repokit"
	"ordercast/internal/services/sync/domain"
	"ordercast/internal/services/sync/repo"
)

// Reader serves persisted documents. Reads go straight through the
// bound repo; no transaction is needed for single statements
type Reader struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
}

// NewReader constructs the document reader
func NewReader(db repokit.TxRunner, binder repokit.Binder[repo.Storage]) *Reader {
	if db == nil {
		panic("sync.Reader requires a non nil TxRunner")
	}
	if binder == nil {
		panic("sync.Reader requires a non nil Repo binder")
	}
	return &Reader{DB: db, Binder: binder}
}

// GetByCustomer implements domain.ReaderPort
func (r *Reader) GetByCustomer(ctx context.Context, customerID int64) (domain.Document, error) {
	return r.Binder.Bind(r.DB).GetByCustomer(ctx, customerID)
}

// ListRecent implements domain.ReaderPort
func (r *Reader) ListRecent(ctx context.Context, limit int) ([]domain.Document, error) {
	return r.Binder.Bind(r.DB).ListRecent(ctx, limit)
}

// ListUpdatedBetween implements domain.ReaderPort
func (r *Reader) ListUpdatedBetween(ctx context.Context, since, until time.Time, limit int) ([]domain.Document, error) {
	return r.Binder.Bind(r.DB).ListUpdatedBetween(ctx, since, until, limit)
}
