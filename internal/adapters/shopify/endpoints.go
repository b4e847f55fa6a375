package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// fetch runs one GET, decodes the enveloped body into out, and returns the
// next-page cursor parsed from the Link header
func (c *Client) fetch(ctx context.Context, resource string, query url.Values, out any) (string, error) {
	path := c.apiPath(resource)
	resp, err := c.Do(ctx, http.MethodGet, path, query)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("shopify close body failed")
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return "", err
	}
	return NextPageCursor(resp.Header.Get("Link")), nil
}

// CustomersPage fetches one page of customers; returns items and next cursor
func (c *Client) CustomersPage(ctx context.Context, query url.Values) ([]Customer, string, error) {
	var env customersEnvelope
	cur, err := c.fetch(ctx, "customers.json", query, &env)
	if err != nil {
		return nil, "", err
	}
	return env.Customers, cur, nil
}

// OrdersPage fetches one page of orders; returns items and next cursor
func (c *Client) OrdersPage(ctx context.Context, query url.Values) ([]Order, string, error) {
	var env ordersEnvelope
	cur, err := c.fetch(ctx, "orders.json", query, &env)
	if err != nil {
		return nil, "", err
	}
	return env.Orders, cur, nil
}

// ProductsPage fetches one page of products; returns items and next cursor
func (c *Client) ProductsPage(ctx context.Context, query url.Values) ([]Product, string, error) {
	var env productsEnvelope
	cur, err := c.fetch(ctx, "products.json", query, &env)
	if err != nil {
		return nil, "", err
	}
	return env.Products, cur, nil
}

// CustomerOrders fetches orders scoped to a single customer; the endpoint
// accepts the same filters as the bulk order listing
func (c *Client) CustomerOrders(ctx context.Context, customerID int64, query url.Values) ([]Order, error) {
	var env ordersEnvelope
	resource := fmt.Sprintf("customers/%d/orders.json", customerID)
	if _, err := c.fetch(ctx, resource, query, &env); err != nil {
		return nil, err
	}
	return env.Orders, nil
}

// CustomersCount returns the total customer count for the given filters
func (c *Client) CustomersCount(ctx context.Context, query url.Values) (int, error) {
	return c.count(ctx, "customers/count.json", query)
}

// OrdersCount returns the total order count for the given filters
func (c *Client) OrdersCount(ctx context.Context, query url.Values) (int, error) {
	return c.count(ctx, "orders/count.json", query)
}

// ProductsCount returns the total product count for the given filters
func (c *Client) ProductsCount(ctx context.Context, query url.Values) (int, error) {
	return c.count(ctx, "products/count.json", query)
}

func (c *Client) count(ctx context.Context, resource string, query url.Values) (int, error) {
	var env countEnvelope
	if _, err := c.fetch(ctx, resource, query, &env); err != nil {
		return 0, err
	}
	return env.Count, nil
}
