// Package aggregate groups a flat order list into per-customer, per-category
// buckets. Everything here is a pure transformation over immutable inputs;
// callers own the lifetime of the returned maps for one sync cycle
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ordercast/internal/adapters/shopify"
	"ordercast/internal/core/catalog"
	perr "ordercast/internal/platform/errors"
)

// Filters narrows which orders and customers survive aggregation
type Filters struct {
	// TargetProductIDs keeps only orders whose line items touch at least one
	// of these products; empty means no product filter
	TargetProductIDs []int64

	// MinOrdersPerCustomer drops customers whose total order count is below
	// the threshold, evaluated before the per-category split; 0 disables
	MinOrdersPerCustomer int
}

// Buckets is customer id → category name → orders, most recent first
type Buckets map[int64]map[string][]shopify.Order

// Aggregate folds orders into category buckets per customer:
// orders with no resolvable customer are dropped, the target-product filter
// runs next, then grouping, then the min-orders threshold on the total count,
// and finally each order lands in every category its line-item products map
// into. Orders with zero line items match no category and fall out naturally.
// Output orders are re-materialized: the embedded customer snapshot is
// stripped (it lives once at the document level) and each line item carries
// its resolved category tags
func Aggregate(orders []shopify.Order, membership catalog.Membership, f Filters) Buckets {
	var target map[int64]struct{}
	if len(f.TargetProductIDs) > 0 {
		target = make(map[int64]struct{}, len(f.TargetProductIDs))
		for _, id := range f.TargetProductIDs {
			target[id] = struct{}{}
		}
	}

	grouped := make(map[int64][]shopify.Order)
	for _, o := range orders {
		cid := o.CustomerRef()
		if cid == 0 {
			continue
		}
		if target != nil && !touchesTarget(o, target) {
			continue
		}
		grouped[cid] = append(grouped[cid], o)
	}

	out := make(Buckets, len(grouped))
	for cid, list := range grouped {
		if f.MinOrdersPerCustomer > 0 && len(list) < f.MinOrdersPerCustomer {
			continue
		}
		cats := make(map[string][]shopify.Order)
		for _, o := range list {
			for _, cat := range orderCategories(o, membership) {
				cats[cat] = append(cats[cat], materialize(o, membership))
			}
		}
		if len(cats) == 0 {
			continue
		}
		for cat := range cats {
			sort.Slice(cats[cat], func(i, j int) bool {
				return cats[cat][i].CreatedAt.After(cats[cat][j].CreatedAt)
			})
		}
		out[cid] = cats
	}
	return out
}

// Snapshots extracts one embedded customer snapshot per customer id from the
// raw order list, first occurrence wins
func Snapshots(orders []shopify.Order) map[int64]shopify.Customer {
	out := make(map[int64]shopify.Customer)
	for _, o := range orders {
		if o.Customer == nil || o.Customer.ID == 0 {
			continue
		}
		if _, ok := out[o.Customer.ID]; !ok {
			out[o.Customer.ID] = *o.Customer
		}
	}
	return out
}

// TimesAscending returns the order creation timestamps sorted oldest first,
// the shape the purchase predictor consumes
func TimesAscending(orders []shopify.Order) []time.Time {
	out := make([]time.Time, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.CreatedAt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SpendTotal sums order total prices as exact decimals, returning the
// canonical string form. Totals stay decimal-as-string end to end
func SpendTotal(orders []shopify.Order) (string, error) {
	sum := decimal.Zero
	for _, o := range orders {
		if o.TotalPrice == "" {
			continue
		}
		d, err := decimal.NewFromString(o.TotalPrice)
		if err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "order %d total price %q", o.ID, o.TotalPrice)
		}
		sum = sum.Add(d)
	}
	return sum.String(), nil
}

// orderCategories returns the distinct categories an order's line items map
// into, preserving first-seen ordering
func orderCategories(o shopify.Order, membership catalog.Membership) []string {
	var cats []string
	seen := map[string]struct{}{}
	for _, li := range o.LineItems {
		for _, c := range membership.Categories(li.ProductID) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cats = append(cats, c)
		}
	}
	return cats
}

func touchesTarget(o shopify.Order, target map[int64]struct{}) bool {
	for _, li := range o.LineItems {
		if _, ok := target[li.ProductID]; ok {
			return true
		}
	}
	return false
}

// materialize deep-copies an order for output: customer snapshot stripped
// (flat id retained), category tags attached to each line item
func materialize(o shopify.Order, membership catalog.Membership) shopify.Order {
	out := o
	out.CustomerID = o.CustomerRef()
	out.Customer = nil
	out.LineItems = make([]shopify.LineItem, len(o.LineItems))
	for i, li := range o.LineItems {
		cp := li
		if cats := membership.Categories(li.ProductID); len(cats) > 0 {
			cp.CategoryTags = append([]string(nil), cats...)
		}
		out.LineItems[i] = cp
	}
	return out
}
