package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"strings"
	"time"

	"ordercast/internal/modkit"
	"ordercast/internal/modkit/module"
	"ordercast/internal/modkit/repokit"
	"ordercast/internal/platform/config"
	"ordercast/internal/platform/logger"
	"ordercast/internal/platform/store"
	ptime "ordercast/internal/platform/time"

	syncdom "ordercast/internal/services/sync/domain"
	syncmod "ordercast/internal/services/sync/module"
	syncrepo "ordercast/internal/services/sync/repo"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "ordercast",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
		},
		CH: store.CHConfig{
			Enabled: chCfg.MayBool("ENABLED", false),
			URL:     chCfg.MayString("DBURL", ""),
			Role:    "sync",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		status    = flag.String("status", "", "financial status filter, e.g. paid")
		limit     = flag.Int("limit", 0, "max orders to crawl (0 = uncapped)")
		minOrders = flag.Int("min-orders", 0, "minimum orders per customer (0 = no threshold)")
		minStr    = flag.String("created-min", "", "inclusive RFC3339 lower bound on order creation")
		maxStr    = flag.String("created-max", "", "exclusive RFC3339 upper bound on order creation")
		custCSV   = flag.String("customers", "", "comma separated customer ids to scope the run")
	)
	flag.Parse()

	in := syncdom.SyncInput{
		Status:               *status,
		Limit:                *limit,
		MinOrdersPerCustomer: *minOrders,
	}
	if *minStr != "" {
		ts, err := time.Parse(time.RFC3339, *minStr)
		if err != nil {
			log.Fatalf("bad -created-min: %v", err)
		}
		in.CreatedAtMin = ptime.Ptr(ts)
	}
	if *maxStr != "" {
		ts, err := time.Parse(time.RFC3339, *maxStr)
		if err != nil {
			log.Fatalf("bad -created-max: %v", err)
		}
		in.CreatedAtMax = ptime.Ptr(ts)
	}
	if *custCSV != "" {
		for _, part := range strings.Split(*custCSV, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				log.Fatalf("bad -customers entry %q: %v", part, err)
			}
			in.CustomerIDs = append(in.CustomerIDs, id)
		}
	}

	repokit.MustGuard(context.Background(), st)
	if err := syncrepo.EnsureSchema(context.Background(), st.PG); err != nil {
		l.Panic().Err(err).Msg("categorized orders schema failed")
	}

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	sm := syncmod.New(deps)
	module.Register(sm.Name(), sm.Ports())

	ports := sm.Ports().(syncmod.Ports)
	sum, err := ports.Orchestrator.Run(context.Background(), in)
	if err != nil {
		l.Fatal().Err(err).Msg("sync failed")
	}
	l.Info().
		Int("processed", sum.ProcessedCount).
		Ints64("customers", sum.ProcessedCustomerIDs).
		Time("at", sum.ProcessedAt).
		Msg("sync complete")
}
