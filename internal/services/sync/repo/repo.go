// Package repo provides the categorized orders repository implementation
package repo

import (
	"context"
	"encoding/json"
	"time"

	"ordercast/internal/modkit/repokit"
	perr "ordercast/internal/platform/errors"
	"ordercast/internal/platform/store"
	"ordercast/internal/services/sync/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the categorized orders repository
type Storage interface {
	Upsert(ctx context.Context, doc domain.Document) (domain.Document, error)
	GetByCustomer(ctx context.Context, customerID int64) (domain.Document, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Document, error)
	ListUpdatedBetween(ctx context.Context, since, until time.Time, limit int) ([]domain.Document, error)
}

// Schema is the categorized_orders DDL; the updated_at index backs the
// list-recent and list-by-range reads
const Schema = `
CREATE TABLE IF NOT EXISTS categorized_orders (
	customer_id  BIGINT PRIMARY KEY,
	customer     JSONB NOT NULL,
	orders       JSONB NOT NULL,
	predictions  JSONB NOT NULL,
	spend_totals JSONB NOT NULL,
	filters      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_categorized_orders_updated_at
	ON categorized_orders (updated_at);
`

// EnsureSchema creates the table and index when missing
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return err
}

const docColumns = `customer_id, customer, orders, predictions, spend_totals, filters, created_at, updated_at`

// Upsert inserts or replaces the one live document for a customer.
// created_at is written only on first insert; every write bumps updated_at
func (s *pg) Upsert(ctx context.Context, doc domain.Document) (domain.Document, error) {
	customer, err := json.Marshal(doc.Customer)
	if err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "marshal customer %d", doc.CustomerID)
	}
	orders, err := json.Marshal(doc.Orders)
	if err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "marshal orders for customer %d", doc.CustomerID)
	}
	predictions, err := json.Marshal(doc.Predictions)
	if err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "marshal predictions for customer %d", doc.CustomerID)
	}
	spend, err := json.Marshal(doc.SpendTotals)
	if err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "marshal spend totals for customer %d", doc.CustomerID)
	}
	filters, err := json.Marshal(doc.Filters)
	if err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "marshal filters for customer %d", doc.CustomerID)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO categorized_orders
			(customer_id, customer, orders, predictions, spend_totals, filters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (customer_id) DO UPDATE SET
			customer     = EXCLUDED.customer,
			orders       = EXCLUDED.orders,
			predictions  = EXCLUDED.predictions,
			spend_totals = EXCLUDED.spend_totals,
			filters      = EXCLUDED.filters,
			updated_at   = now()
		RETURNING created_at, updated_at`,
		doc.CustomerID, customer, orders, predictions, spend, filters,
	)
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeDB, "upsert document for customer %d", doc.CustomerID)
	}
	return doc, nil
}

// GetByCustomer fetches the live document or an explicit not-found
func (s *pg) GetByCustomer(ctx context.Context, customerID int64) (domain.Document, error) {
	doc, err := store.One(ctx, s.q, scanDocument, `
		SELECT `+docColumns+`
		FROM categorized_orders
		WHERE customer_id = $1`,
		customerID,
	)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Document{}, perr.NotFoundf("no document for customer %d", customerID)
		}
		return domain.Document{}, err
	}
	return doc, nil
}

// ListRecent returns the most recently updated documents, newest first
func (s *pg) ListRecent(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	return store.Many(ctx, s.q, scanDocument, `
		SELECT `+docColumns+`
		FROM categorized_orders
		ORDER BY updated_at DESC
		LIMIT $1`,
		limit,
	)
}

// ListUpdatedBetween returns documents updated in [since, until), newest first
func (s *pg) ListUpdatedBetween(ctx context.Context, since, until time.Time, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	return store.Many(ctx, s.q, scanDocument, `
		SELECT `+docColumns+`
		FROM categorized_orders
		WHERE updated_at >= $1 AND updated_at < $2
		ORDER BY updated_at DESC
		LIMIT $3`,
		since, until, limit,
	)
}

func scanDocument(r store.Row) (domain.Document, error) {
	var (
		doc         domain.Document
		customer    []byte
		orders      []byte
		predictions []byte
		spend       []byte
		filters     []byte
	)
	if err := r.Scan(
		&doc.CustomerID, &customer, &orders, &predictions, &spend, &filters,
		&doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return domain.Document{}, err
	}
	if err := json.Unmarshal(customer, &doc.Customer); err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "unmarshal customer %d", doc.CustomerID)
	}
	if err := json.Unmarshal(orders, &doc.Orders); err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "unmarshal orders for customer %d", doc.CustomerID)
	}
	if err := json.Unmarshal(predictions, &doc.Predictions); err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "unmarshal predictions for customer %d", doc.CustomerID)
	}
	if err := json.Unmarshal(spend, &doc.SpendTotals); err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "unmarshal spend totals for customer %d", doc.CustomerID)
	}
	if err := json.Unmarshal(filters, &doc.Filters); err != nil {
		return domain.Document{}, perr.Wrapf(err, perr.ErrorCodeJSON, "unmarshal filters for customer %d", doc.CustomerID)
	}
	return doc, nil
}
