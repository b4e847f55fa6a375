// Package service implements the sync cycle orchestrator
package service

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ordercast/internal/adapters/shopify"
	"ordercast/internal/core/aggregate"
	"ordercast/internal/core/catalog"
	"ordercast/internal/core/forecast"
	"ordercast/internal/modkit/repokit"
	"ordercast/internal/modkit/scope"
	perr "ordercast/internal/platform/errors"
	"ordercast/internal/platform/logger"
	"ordercast/internal/services/sync/domain"
	"ordercast/internal/services/sync/repo"
)

// Upstream is the crawler surface one sync cycle needs
type Upstream interface {
	Products(ctx context.Context, filters url.Values, pageSize, resultCap int) ([]shopify.Product, error)
	Orders(ctx context.Context, filters url.Values, pageSize, resultCap int) ([]shopify.Order, error)
	OrdersForCustomers(
		ctx context.Context,
		customerIDs []int64,
		filters url.Values,
		pageSize, resultCap int,
	) ([]shopify.Order, error)
	OrdersCount(ctx context.Context, filters url.Values) (int, error)
}

// Config controls page sizing for upstream crawls
type Config struct {
	PageSize int
}

// Service wires TxRunner + Binder + Upstream into the sync cycle.
// One Service runs at most one cycle at a time; a second Run while a
// cycle is in flight gets a conflict
type Service struct {
	DB          repokit.TxRunner
	Binder      repokit.Binder[repo.Storage]
	Upstream    Upstream
	Categorizer *catalog.Categorizer
	Audit       *Audit
	Cfg         Config

	validate *validator.Validate

	mu      sync.Mutex
	running bool
	state   domain.State
}

// New constructs the sync service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[repo.Storage],
	up Upstream,
	cat *catalog.Categorizer,
	audit *Audit,
	cfg Config,
) *Service {
	if db == nil {
		panic("sync.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("sync.Service requires a non nil Repo binder")
	}
	if up == nil {
		panic("sync.Service requires a non nil Upstream")
	}
	if cat == nil {
		cat = catalog.New()
	}
	return &Service{
		DB:          db,
		Binder:      binder,
		Upstream:    up,
		Categorizer: cat,
		Audit:       audit,
		Cfg:         cfg,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// State reports where the current (or last) cycle is
func (s *Service) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes one full sync cycle. ProcessedCount is -1 when the cycle
// fails before any customer persists; a mid-persist failure skips the
// customer and the cycle continues
func (s *Service) Run(ctx context.Context, in domain.SyncInput) (domain.SyncSummary, error) {
	if !s.begin() {
		return domain.SyncSummary{ProcessedCount: -1, ProcessedAt: time.Now().UTC()},
			perr.Conflictf("sync already running")
	}
	defer s.end()

	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	ctx = scope.With(ctx, map[string]string{"run_id": runID})

	started := time.Now()
	sum, err := s.cycle(ctx, in)
	s.Audit.Record(ctx, RunRow{
		RunID:     runID,
		Status:    s.State().String(),
		Processed: sum.ProcessedCount,
		Duration:  time.Since(started),
		StartedAt: started.UTC(),
	})
	return sum, err
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.state = domain.StateIdle
	return true
}

func (s *Service) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// advance moves the state machine one legal step. Transitions here are
// driven by the fixed cycle order, so a rejected transition is a bug;
// it is logged and the target state forced to keep State() honest
func (s *Service) advance(ctx context.Context, to domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.state.Advance(to)
	if err != nil {
		logger.C(ctx).Error().Err(err).
			Str("from", s.state.String()).
			Str("to", to.String()).
			Msg("illegal sync state transition")
		next = to
	}
	s.state = next
}

func (s *Service) cycle(ctx context.Context, in domain.SyncInput) (domain.SyncSummary, error) {
	log := logger.C(ctx)

	fail := func(err error) (domain.SyncSummary, error) {
		s.advance(ctx, domain.StateFailed)
		log.Error().Err(err).Msg("sync cycle failed")
		return domain.SyncSummary{ProcessedCount: -1, ProcessedAt: time.Now().UTC()}, err
	}

	if err := s.validate.Struct(in); err != nil {
		return fail(perr.Wrapf(err, perr.ErrorCodeValidation, "invalid sync input"))
	}
	if in.CreatedAtMin != nil && in.CreatedAtMax != nil && in.CreatedAtMax.Before(*in.CreatedAtMin) {
		return fail(perr.InvalidArgf("created_at_max precedes created_at_min"))
	}

	s.advance(ctx, domain.StateFetchingProducts)
	products, err := s.Upstream.Products(ctx, nil, s.Cfg.PageSize, 0)
	if err != nil {
		return fail(crawlErr(err, "product crawl failed"))
	}
	membership := s.Categorizer.Categorize(products)
	log.Info().Int("products", len(products)).Int("categorized", len(membership)).Msg("products fetched")

	s.advance(ctx, domain.StateFetchingOrders)
	filters := orderFilters(in)
	if n, cerr := s.Upstream.OrdersCount(ctx, filters); cerr == nil {
		log.Debug().Int("upstream_orders", n).Msg("order count probe")
	}
	var orders []shopify.Order
	if len(in.CustomerIDs) > 0 {
		orders, err = s.Upstream.OrdersForCustomers(ctx, in.CustomerIDs, filters, s.Cfg.PageSize, in.Limit)
	} else {
		orders, err = s.Upstream.Orders(ctx, filters, s.Cfg.PageSize, in.Limit)
	}
	if err != nil {
		return fail(crawlErr(err, "order crawl failed"))
	}
	log.Info().Int("orders", len(orders)).Msg("orders fetched")

	s.advance(ctx, domain.StateAggregating)
	buckets := aggregate.Aggregate(orders, membership, aggregate.Filters{
		TargetProductIDs:     nil,
		MinOrdersPerCustomer: in.MinOrdersPerCustomer,
	})
	snapshots := aggregate.Snapshots(orders)

	s.advance(ctx, domain.StatePredicting)
	applied := domain.AppliedFilters{
		Status:               in.Status,
		Limit:                in.Limit,
		MinOrdersPerCustomer: in.MinOrdersPerCustomer,
		CreatedAtMin:         in.CreatedAtMin,
		CreatedAtMax:         in.CreatedAtMax,
	}
	docs := make([]domain.Document, 0, len(buckets))
	for customerID, byCategory := range buckets {
		doc := domain.Document{
			CustomerID:  customerID,
			Customer:    snapshots[customerID],
			Orders:      byCategory,
			Predictions: make(map[string]*forecast.Prediction, len(byCategory)),
			SpendTotals: make(map[string]string, len(byCategory)),
			Filters:     applied,
		}
		for category, catOrders := range byCategory {
			pred := forecast.Predict(aggregate.TimesAscending(catOrders))
			doc.Predictions[category] = &pred
			total, terr := aggregate.SpendTotal(catOrders)
			if terr != nil {
				log.Warn().Err(terr).
					Int64("customer", customerID).
					Str("category", category).
					Msg("spend total unparseable, recording zero")
				total = "0"
			}
			doc.SpendTotals[category] = total
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CustomerID < docs[j].CustomerID })

	s.advance(ctx, domain.StatePersisting)
	processed := make([]int64, 0, len(docs))
	for _, doc := range docs {
		err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
			_, uerr := s.Binder.Bind(q).Upsert(ctx, doc)
			return uerr
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fail(err)
			}
			log.Warn().Err(err).Int64("customer", doc.CustomerID).Msg("persist failed, skipping customer")
			continue
		}
		processed = append(processed, doc.CustomerID)
	}

	s.advance(ctx, domain.StateDone)
	sum := domain.SyncSummary{
		ProcessedCustomerIDs: processed,
		ProcessedCount:       len(processed),
		ProcessedAt:          time.Now().UTC(),
	}
	log.Info().Int("processed", sum.ProcessedCount).Msg("sync cycle done")
	return sum, nil
}

// crawlErr passes cancellation through untouched so callers can tell an
// aborted cycle from a hard upstream failure
func crawlErr(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return perr.Wrapf(err, perr.CodeOf(err), "%s", msg)
}

// orderFilters translates the sync input into upstream query params
func orderFilters(in domain.SyncInput) url.Values {
	v := url.Values{}
	if in.Status != "" {
		v.Set("financial_status", in.Status)
	}
	if in.CreatedAtMin != nil {
		v.Set("created_at_min", in.CreatedAtMin.UTC().Format(time.RFC3339))
	}
	if in.CreatedAtMax != nil {
		v.Set("created_at_max", in.CreatedAtMax.UTC().Format(time.RFC3339))
	}
	return v
}
