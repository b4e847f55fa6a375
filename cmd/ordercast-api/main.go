package main

import (
	"context"

	"ordercast/internal/platform/config"
	"ordercast/internal/platform/logger"
	phttp "ordercast/internal/platform/net/http"
	"ordercast/internal/platform/store"

	"ordercast/internal/services/api"
	syncrepo "ordercast/internal/services/sync/repo"
	syncsvc "ordercast/internal/services/sync/service"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*
	// bring up logging early
	l := logger.Get()

	// open the platform store (postgres + optional CH adapter)
	st, err := store.Open(
		context.Background(),
		store.Config{
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
				Role:    "api",
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := st.Guard(context.Background()); err != nil {
		l.Panic().Err(err).Msg("store not ready")
	}

	// bootstrap storage before serving
	if err := syncrepo.EnsureSchema(context.Background(), st.PG); err != nil {
		l.Panic().Err(err).Msg("categorized orders schema failed")
	}
	if err := syncsvc.NewAudit(st.CH).EnsureSchema(context.Background()); err != nil {
		l.Error().Err(err).Msg("sync run log schema failed, audit disabled")
	}

	// http server (reads CORE_API_PORT / CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			EnableProfiler: apiCfg.MayBool("PROFILER", true),
		},
	)

	// run
	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
