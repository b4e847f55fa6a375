package shopify

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	perr "ordercast/internal/platform/errors"
	"ordercast/internal/platform/logger"
)

// CustomerFanoutThreshold is the largest customer id set fetched with one
// parallel customer-scoped request per customer; bigger sets fall back to a
// full crawl plus client-side filtering. Tunable via NewCrawlerWithFanout
const CustomerFanoutThreshold = 10

// Crawler drives the page client to exhaustively fetch filtered collections
type Crawler struct {
	client *Client
	log    logger.Logger
	fanout int
}

// NewCrawler wraps a client with the default fan-out threshold
func NewCrawler(c *Client) *Crawler {
	return NewCrawlerWithFanout(c, CustomerFanoutThreshold)
}

// NewCrawlerWithFanout wraps a client with an explicit fan-out threshold
func NewCrawlerWithFanout(c *Client, fanout int) *Crawler {
	if fanout <= 0 {
		fanout = CustomerFanoutThreshold
	}
	return &Crawler{client: c, log: *logger.Named("crawler"), fanout: fanout}
}

type pageFetch[T any] func(ctx context.Context, query url.Values) ([]T, string, error)

// crawl walks a paginated collection to exhaustion. The first request carries
// every filter plus the page size; once a cursor is in play each follow-up
// request carries only the cursor and page size, because the upstream binds
// the filters to the cursor and rejects a second specification of them.
// resultCap <= 0 means uncapped; a positive cap truncates the final page so
// exactly resultCap items come back
func crawl[T any](ctx context.Context, fetch pageFetch[T], filters url.Values, pageSize, resultCap int) ([]T, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	first := url.Values{}
	for k, vs := range filters {
		first[k] = append([]string(nil), vs...)
	}
	first.Set("limit", strconv.Itoa(pageSize))

	var (
		out    []T
		query  = first
		cursor string
	)
	for page := 0; ; page++ {
		if cursor != "" {
			query = url.Values{}
			query.Set(cursorParam, cursor)
			query.Set("limit", strconv.Itoa(pageSize))
		}

		items, next, err := fetch(ctx, query)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			return nil, perr.Wrapf(err, perr.CodeOf(err), "crawl page %d failed", page)
		}
		if len(items) == 0 {
			return out, nil
		}

		if resultCap > 0 && len(out)+len(items) >= resultCap {
			out = append(out, items[:resultCap-len(out)]...)
			return out, nil
		}
		out = append(out, items...)

		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

// Customers fetches all customers matching filters, up to resultCap
func (cr *Crawler) Customers(ctx context.Context, filters url.Values, pageSize, resultCap int) ([]Customer, error) {
	return crawl(ctx, cr.client.CustomersPage, filters, pageSize, resultCap)
}

// Products fetches all products matching filters, up to resultCap
func (cr *Crawler) Products(ctx context.Context, filters url.Values, pageSize, resultCap int) ([]Product, error) {
	return crawl(ctx, cr.client.ProductsPage, filters, pageSize, resultCap)
}

// Orders fetches all orders matching filters, up to resultCap
func (cr *Crawler) Orders(ctx context.Context, filters url.Values, pageSize, resultCap int) ([]Order, error) {
	return crawl(ctx, cr.client.OrdersPage, filters, pageSize, resultCap)
}

// ProductsCount proxies the upstream product count endpoint
func (cr *Crawler) ProductsCount(ctx context.Context, filters url.Values) (int, error) {
	return cr.client.ProductsCount(ctx, filters)
}

// OrdersCount proxies the upstream order count endpoint
func (cr *Crawler) OrdersCount(ctx context.Context, filters url.Values) (int, error) {
	return cr.client.OrdersCount(ctx, filters)
}

// OrdersForCustomers fetches orders for a specific customer id set. Small
// sets (at most the fan-out threshold) get one parallel customer-scoped
// request per customer; larger sets do a full crawl and filter client side,
// since a long chain of individual requests costs more than the wide scan
func (cr *Crawler) OrdersForCustomers(
	ctx context.Context,
	customerIDs []int64,
	filters url.Values,
	pageSize, resultCap int,
) ([]Order, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}
	if len(customerIDs) <= cr.fanout {
		return cr.fanoutOrders(ctx, customerIDs, filters)
	}

	cr.log.Debug().
		Int("customers", len(customerIDs)).
		Int("threshold", cr.fanout).
		Msg("customer set above fan-out threshold, full crawl with client-side filter")

	all, err := cr.Orders(ctx, filters, pageSize, resultCap)
	if err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(customerIDs))
	for _, id := range customerIDs {
		want[id] = struct{}{}
	}
	out := make([]Order, 0, len(all))
	for _, o := range all {
		if _, ok := want[o.CustomerRef()]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// fanoutOrders issues one customer-scoped request per customer in parallel
// and waits for all; the first error cancels the rest and wins
func (cr *Crawler) fanoutOrders(parent context.Context, customerIDs []int64, filters url.Values) ([]Order, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		buckets  = make([][]Order, len(customerIDs))
	)
	for i, id := range customerIDs {
		wg.Add(1)
		go func(slot int, customerID int64) {
			defer wg.Done()
			q := url.Values{}
			for k, vs := range filters {
				q[k] = append([]string(nil), vs...)
			}
			orders, err := cr.client.CustomerOrders(ctx, customerID, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = perr.Wrapf(err, perr.CodeOf(err), "customer %d orders fetch failed", customerID)
					cancel()
				}
				return
			}
			buckets[slot] = orders
		}(i, id)
	}
	wg.Wait()

	// a cancelled parent outranks whatever error the cancellation provoked
	if cerr := parent.Err(); cerr != nil {
		return nil, cerr
	}
	if firstErr != nil {
		return nil, firstErr
	}
	var out []Order
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out, nil
}
