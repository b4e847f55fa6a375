// Package domain defines the types and interfaces for the sync service
package domain

import (
	"time"

	"ordercast/internal/adapters/shopify"
	"ordercast/internal/core/forecast"
)

// SyncInput is the sync entry point's parameter set
type SyncInput struct {
	// Status is the upstream financial status filter; empty means all
	Status string `json:"status" validate:"omitempty,max=32"`

	// Limit caps how many orders one cycle crawls; 0 means uncapped
	Limit int `json:"limit" validate:"omitempty,min=1"`

	// MinOrdersPerCustomer drops customers below the threshold; 0 disables
	MinOrdersPerCustomer int `json:"min_orders_per_customer" validate:"omitempty,min=1"`

	CreatedAtMin *time.Time `json:"created_at_min,omitempty"`
	CreatedAtMax *time.Time `json:"created_at_max,omitempty"`

	// CustomerIDs scopes the cycle to specific customers when present
	CustomerIDs []int64 `json:"customer_ids,omitempty" validate:"omitempty,dive,min=1"`
}

// SyncSummary reports one completed (or failed) cycle.
// ProcessedCount is -1 on total failure; partial success still lists the
// customers that made it through
type SyncSummary struct {
	ProcessedCustomerIDs []int64   `json:"processed_customer_ids"`
	ProcessedCount       int       `json:"processed_count"`
	ProcessedAt          time.Time `json:"processed_at"`
}

// AppliedFilters records the parameters that produced a document
type AppliedFilters struct {
	Status               string     `json:"status,omitempty"`
	Limit                int        `json:"limit,omitempty"`
	MinOrdersPerCustomer int        `json:"min_orders_per_customer,omitempty"`
	CreatedAtMin         *time.Time `json:"created_at_min,omitempty"`
	CreatedAtMax         *time.Time `json:"created_at_max,omitempty"`
}

// Document is the persisted aggregate, one live row per customer.
// Orders and Predictions are keyed by category name; a prediction is nil
// only in the JSON sense of a category absent from the map (insufficient
// data is an explicit Prediction value, never a missing entry)
type Document struct {
	CustomerID  int64                           `json:"customer_id"`
	Customer    shopify.Customer                `json:"customer"`
	Orders      map[string][]shopify.Order      `json:"orders"`
	Predictions map[string]*forecast.Prediction `json:"predictions"`
	SpendTotals map[string]string               `json:"spend_totals"`
	Filters     AppliedFilters                  `json:"filters"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}
