package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adrank-triage/internal/fetcher"
	"github.com/sells-group/adrank-triage/internal/metrics"
	"github.com/sells-group/adrank-triage/internal/monitoring"
	"github.com/sells-group/adrank-triage/internal/pipeline"
	"github.com/sells-group/adrank-triage/internal/store"
)

// appEnv holds everything the run/batch/serve/watch commands share.
type appEnv struct {
	Store    store.Store // nil when store.driver is none
	Loader   *metrics.Loader
	Alerter  *monitoring.Alerter
	Metrics  *pipeline.Metrics // nil unless a registry was supplied
	Pipeline *pipeline.Pipeline
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode, opens the store, and builds the pipeline.
// reg may be nil. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, reg prometheus.Registerer) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Store:   st,
		Loader:  metrics.NewLoader(initFetcher()),
		Alerter: monitoring.NewAlerter(cfg.Alert),
	}
	if reg != nil {
		env.Metrics = pipeline.NewMetrics(reg)
	}

	opts := []pipeline.Option{
		pipeline.WithAlerter(env.Alerter),
		pipeline.WithMetrics(env.Metrics),
	}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}
	env.Pipeline = pipeline.New(opts...)

	return env, nil
}

// initStore opens and migrates the configured run history backend. It
// returns a nil store for the none driver.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "adrank.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore opens the store for commands that only make sense with run
// history.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run history is disabled (set store.driver to sqlite or postgres)")
	}
	return st, nil
}

func initFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}
