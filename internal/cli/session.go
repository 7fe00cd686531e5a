package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/invtrack/internal/entity"
	"github.com/roach88/invtrack/internal/store"
)

// session is an open store with every table ensured.
type session struct {
	store    *store.Store
	catalog  *entity.Catalog
	registry *prometheus.Registry
	logger   *slog.Logger
	textfile string
}

// openSession loads the catalog, connects with the configured driver and
// creates missing tables.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	catalog, err := entity.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	logger := slog.Default()
	reg := prometheus.NewRegistry()
	storeOpts := []store.Option{
		store.WithLogger(logger),
		store.WithMetrics(store.NewMetrics(reg)),
		store.WithSeed(!opts.NoSeed),
	}

	var st *store.Store
	switch opts.Driver {
	case store.DriverPostgres, "pgx":
		if opts.DSN == "" {
			return nil, fmt.Errorf("--dsn is required with --driver %s", opts.Driver)
		}
		slog.Debug("opening database", "driver", store.DriverPostgres)
		st, err = store.OpenPostgres(opts.DSN, catalog, storeOpts...)
	case store.DriverSQLite, "sqlite3", "":
		slog.Debug("opening database", "driver", store.DriverSQLite, "path", opts.Database)
		st, err = store.Open(opts.Database, catalog, storeOpts...)
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.EnsureAll(ctx); err != nil {
		st.Close()
		return nil, err
	}

	return &session{store: st, catalog: catalog, registry: reg, logger: logger, textfile: opts.MetricsTextfile}, nil
}

// Close writes the metrics textfile, if configured, and closes the store.
func (s *session) Close() error {
	var metricsErr error
	if s.textfile != "" {
		if err := prometheus.WriteToTextfile(s.textfile, s.registry); err != nil {
			metricsErr = fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if err := s.store.Close(); err != nil {
		return err
	}
	return metricsErr
}

// closeSession closes s and logs any failure.
func closeSession(s *session) {
	if err := s.Close(); err != nil {
		slog.Error("error closing session", "error", err)
	}
}
