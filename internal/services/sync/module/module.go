// Package module wires the sync service into the API using modkit
package module

import (
	"context"
	"net/http"

	"ordercast/internal/adapters/shopify"
	"ordercast/internal/core/catalog"
	modkit "ordercast/internal/modkit"
	"ordercast/internal/modkit/httpkit"
	"ordercast/internal/modkit/repokit"
	synchttp "ordercast/internal/services/sync/http"
	"ordercast/internal/services/sync/repo"
	"ordercast/internal/services/sync/service"
)

// Ports exposed by the sync module
type Ports struct {
	Orchestrator *service.Service
	Reader       *service.Reader
}

// Module implements the sync service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	ports    Ports
	register func(httpkit.Router)
}

// New constructs the sync module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("sync"),
		modkit.WithPrefix("/sync"),
	}, opts...)...)

	o := FromConfig(deps.Cfg)

	client := shopify.NewClient(shopify.Options{
		ShopDomain:  o.ShopDomain,
		AccessToken: o.AccessToken,
		APIVersion:  o.APIVersion,
		BaseURL:     o.BaseURL,
		Timeout:     o.RequestTimeout,
		MaxRetries:  o.MaxRetries,
	})
	crawler := shopify.NewCrawlerWithFanout(client, o.FanoutMax)

	// cap each persist transaction so one wedged upsert cannot stall a cycle
	tx := repokit.WithBeginHooks(deps.PG, func(ctx context.Context, q repokit.Queryer) error {
		_, err := q.Exec(ctx, "SET LOCAL statement_timeout = '30s'")
		return err
	})

	binder := repo.NewPG()
	svc := service.New(
		tx,
		binder,
		crawler,
		catalog.New(),
		service.NewAudit(deps.CH),
		service.Config{PageSize: o.PageSize},
	)
	reader := service.NewReader(deps.PG, binder)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		ports:  Ports{Orchestrator: svc, Reader: reader},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		synchttp.Register(r, svc, reader)
		if external != nil {
			external(r)
		}
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}
