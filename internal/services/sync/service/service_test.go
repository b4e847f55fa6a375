package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"ordercast/internal/adapters/shopify"
	"ordercast/internal/core/catalog"
	"ordercast/internal/modkit/repokit"
	perr "ordercast/internal/platform/errors"
	"ordercast/internal/platform/store"
	"ordercast/internal/services/sync/domain"
	"ordercast/internal/services/sync/repo"
)

type fakeUpstream struct {
	mu          sync.Mutex
	products    []shopify.Product
	orders      []shopify.Order
	productsErr error
	ordersErr   error
	bulkCalls   int
	scopedCalls int
	lastFilters url.Values
	gate        chan struct{}
}

func (f *fakeUpstream) Products(ctx context.Context, _ url.Values, _, _ int) ([]shopify.Product, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	return f.products, nil
}

func (f *fakeUpstream) Orders(ctx context.Context, filters url.Values, _, _ int) ([]shopify.Order, error) {
	f.mu.Lock()
	f.bulkCalls++
	f.lastFilters = filters
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return f.orders, nil
}

func (f *fakeUpstream) OrdersForCustomers(
	ctx context.Context,
	customerIDs []int64,
	filters url.Values,
	_, _ int,
) ([]shopify.Order, error) {
	f.mu.Lock()
	f.scopedCalls++
	f.lastFilters = filters
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	want := make(map[int64]struct{}, len(customerIDs))
	for _, id := range customerIDs {
		want[id] = struct{}{}
	}
	var out []shopify.Order
	for _, o := range f.orders {
		if _, ok := want[o.CustomerRef()]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeUpstream) OrdersCount(context.Context, url.Values) (int, error) {
	return len(f.orders), nil
}

type fakeStorage struct {
	mu      sync.Mutex
	docs    map[int64]domain.Document
	failFor map[int64]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{docs: map[int64]domain.Document{}, failFor: map[int64]bool{}}
}

func (f *fakeStorage) Upsert(_ context.Context, doc domain.Document) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[doc.CustomerID] {
		return domain.Document{}, perr.DBf("upsert rejected for customer %d", doc.CustomerID)
	}
	now := time.Now().UTC()
	if prev, ok := f.docs[doc.CustomerID]; ok {
		doc.CreatedAt = prev.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	f.docs[doc.CustomerID] = doc
	return doc, nil
}

func (f *fakeStorage) GetByCustomer(_ context.Context, customerID int64) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[customerID]
	if !ok {
		return domain.Document{}, perr.NotFoundf("no document for customer %d", customerID)
	}
	return doc, nil
}

func (f *fakeStorage) ListRecent(context.Context, int) ([]domain.Document, error) {
	return nil, nil
}

func (f *fakeStorage) ListUpdatedBetween(context.Context, time.Time, time.Time, int) ([]domain.Document, error) {
	return nil, nil
}

type fakeTx struct{}

func (fakeTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (fakeTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (fakeTx) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (t fakeTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	return fn(t)
}

func newService(up *fakeUpstream, st *fakeStorage) *Service {
	binder := repokit.BindFunc[repo.Storage](func(repokit.Queryer) repo.Storage { return st })
	return New(fakeTx{}, binder, up, catalog.New(), nil, Config{PageSize: 50})
}

func catalogFixture() []shopify.Product {
	return []shopify.Product{
		{ID: 101, Title: "Ethiopia Yirgacheffe", Tags: "coffee, washed"},
		{ID: 102, Title: "House Blend", Tags: "coffee, blend"},
		{ID: 103, Title: "Camp Mug", Tags: "gift"},
	}
}

func orderFixture(id, customerID, productID int64, created time.Time) shopify.Order {
	return shopify.Order{
		ID:         id,
		CustomerID: customerID,
		CreatedAt:  created,
		TotalPrice: "10.00",
		LineItems: []shopify.LineItem{
			{ID: id * 10, ProductID: productID, Quantity: 1, Price: "10.00"},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := orderFixture(1, 1, 101, base)
	first.Customer = &shopify.Customer{ID: 1, Email: "repeat@example.com"}

	up := &fakeUpstream{
		products: catalogFixture(),
		orders: []shopify.Order{
			first,
			orderFixture(2, 1, 101, base.AddDate(0, 0, 30)),
			orderFixture(3, 1, 101, base.AddDate(0, 0, 60)),
			orderFixture(4, 2, 102, base), // one order, below threshold
			orderFixture(5, 0, 101, base), // unresolvable customer
		},
	}
	st := newFakeStorage()
	svc := newService(up, st)

	sum, err := svc.Run(context.Background(), domain.SyncInput{Status: "paid", MinOrdersPerCustomer: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.ProcessedCount != 1 || len(sum.ProcessedCustomerIDs) != 1 || sum.ProcessedCustomerIDs[0] != 1 {
		t.Fatalf("expected exactly customer 1 processed, got %+v", sum)
	}
	if svc.State() != domain.StateDone {
		t.Fatalf("expected done state, got %s", svc.State())
	}

	doc, err := st.GetByCustomer(context.Background(), 1)
	if err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	orders := doc.Orders["single-origin"]
	if len(orders) != 3 {
		t.Fatalf("expected 3 single-origin orders, got %d", len(orders))
	}
	if !orders[0].CreatedAt.After(orders[2].CreatedAt) {
		t.Fatalf("orders must be newest first: %v", orders)
	}
	if orders[0].Customer != nil {
		t.Fatal("embedded customer snapshot must be stripped from stored orders")
	}
	if doc.Customer.Email != "repeat@example.com" {
		t.Fatalf("customer snapshot not attached: %+v", doc.Customer)
	}

	pred := doc.Predictions["single-origin"]
	if pred == nil || !pred.HasSufficientData {
		t.Fatalf("expected a usable prediction, got %+v", pred)
	}
	if pred.AvgIntervalDays != 30 {
		t.Fatalf("expected 30 day mean interval, got %v", pred.AvgIntervalDays)
	}
	if doc.SpendTotals["single-origin"] != "30" {
		t.Fatalf("expected spend total 30, got %q", doc.SpendTotals["single-origin"])
	}
	if doc.Filters.Status != "paid" || doc.Filters.MinOrdersPerCustomer != 2 {
		t.Fatalf("applied filters not recorded: %+v", doc.Filters)
	}

	if _, err := st.GetByCustomer(context.Background(), 2); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("customer below threshold must not be stored, got %v", err)
	}
}

func TestRun_ProductCrawlFailureAborts(t *testing.T) {
	up := &fakeUpstream{productsErr: perr.Upstreamf("products endpoint down")}
	st := newFakeStorage()
	svc := newService(up, st)

	sum, err := svc.Run(context.Background(), domain.SyncInput{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "product crawl failed") {
		t.Fatalf("error should name the failed step, got %q", err.Error())
	}
	if sum.ProcessedCount != -1 {
		t.Fatalf("total failure must report -1, got %d", sum.ProcessedCount)
	}
	if svc.State() != domain.StateFailed {
		t.Fatalf("expected failed state, got %s", svc.State())
	}
	if len(st.docs) != 0 {
		t.Fatalf("nothing should persist on prerequisite failure, got %d docs", len(st.docs))
	}
}

func TestRun_OrderCrawlFailureAborts(t *testing.T) {
	up := &fakeUpstream{products: catalogFixture(), ordersErr: perr.Upstreamf("orders endpoint down")}
	svc := newService(up, newFakeStorage())

	sum, err := svc.Run(context.Background(), domain.SyncInput{})
	if err == nil || !strings.Contains(err.Error(), "order crawl failed") {
		t.Fatalf("expected order crawl failure, got %v", err)
	}
	if sum.ProcessedCount != -1 || svc.State() != domain.StateFailed {
		t.Fatalf("expected total failure, got %+v state %s", sum, svc.State())
	}
}

func TestRun_PersistFailureSkipsCustomer(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	up := &fakeUpstream{
		products: catalogFixture(),
		orders: []shopify.Order{
			orderFixture(1, 1, 101, base),
			orderFixture(2, 2, 101, base.AddDate(0, 0, 1)),
		},
	}
	st := newFakeStorage()
	st.failFor[1] = true
	svc := newService(up, st)

	sum, err := svc.Run(context.Background(), domain.SyncInput{})
	if err != nil {
		t.Fatalf("skip-and-continue must not fail the cycle: %v", err)
	}
	if sum.ProcessedCount != 1 || sum.ProcessedCustomerIDs[0] != 2 {
		t.Fatalf("expected only customer 2 processed, got %+v", sum)
	}
	if svc.State() != domain.StateDone {
		t.Fatalf("expected done state, got %s", svc.State())
	}
}

func TestRun_SingleFlight(t *testing.T) {
	up := &fakeUpstream{products: catalogFixture(), gate: make(chan struct{})}
	svc := newService(up, newFakeStorage())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Run(context.Background(), domain.SyncInput{})
	}()

	// wait until the first run holds the flight lock
	for svc.State() != domain.StateFetchingProducts {
		time.Sleep(time.Millisecond)
	}

	sum, err := svc.Run(context.Background(), domain.SyncInput{})
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("conflict should say already running, got %q", err.Error())
	}
	if sum.ProcessedCount != -1 {
		t.Fatalf("rejected run must report -1, got %d", sum.ProcessedCount)
	}

	close(up.gate)
	<-done
}

func TestRun_CancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	up := &fakeUpstream{products: catalogFixture()}
	svc := newService(up, newFakeStorage())

	sum, err := svc.Run(ctx, domain.SyncInput{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must pass through unwrapped, got %v", err)
	}
	if sum.ProcessedCount != -1 || svc.State() != domain.StateFailed {
		t.Fatalf("expected failed cycle, got %+v state %s", sum, svc.State())
	}
}

func TestRun_ValidationRejectsBadInput(t *testing.T) {
	svc := newService(&fakeUpstream{}, newFakeStorage())

	sum, err := svc.Run(context.Background(), domain.SyncInput{Limit: -1})
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if sum.ProcessedCount != -1 {
		t.Fatalf("rejected input must report -1, got %d", sum.ProcessedCount)
	}

	min := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	max := min.AddDate(0, 0, -1)
	_, err = svc.Run(context.Background(), domain.SyncInput{CreatedAtMin: &min, CreatedAtMax: &max})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected inverted window rejection, got %v", err)
	}
}

func TestRun_CustomerIDsUseScopedFetch(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	min := base
	up := &fakeUpstream{
		products: catalogFixture(),
		orders: []shopify.Order{
			orderFixture(1, 1, 101, base),
			orderFixture(2, 9, 101, base),
		},
	}
	st := newFakeStorage()
	svc := newService(up, st)

	sum, err := svc.Run(context.Background(), domain.SyncInput{
		Status:       "paid",
		CreatedAtMin: &min,
		CustomerIDs:  []int64{1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up.scopedCalls != 1 || up.bulkCalls != 0 {
		t.Fatalf("expected one scoped fetch and no bulk crawl, got %d/%d", up.scopedCalls, up.bulkCalls)
	}
	if got := up.lastFilters.Get("financial_status"); got != "paid" {
		t.Fatalf("status filter not forwarded, got %q", got)
	}
	if got := up.lastFilters.Get("created_at_min"); got != base.Format(time.RFC3339) {
		t.Fatalf("window filter not forwarded, got %q", got)
	}
	if sum.ProcessedCount != 1 || sum.ProcessedCustomerIDs[0] != 1 {
		t.Fatalf("expected only the scoped customer, got %+v", sum)
	}
	if _, err := st.GetByCustomer(context.Background(), 9); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("out-of-scope customer must not be stored, got %v", err)
	}
}
