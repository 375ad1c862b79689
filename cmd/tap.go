package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/naka-gawa/tap-mssql/internal/about"
	"github.com/naka-gawa/tap-mssql/internal/batch"
	"github.com/naka-gawa/tap-mssql/internal/config"
	"github.com/naka-gawa/tap-mssql/internal/domain"
	"github.com/naka-gawa/tap-mssql/internal/gateway"
	"github.com/naka-gawa/tap-mssql/internal/singer"
	"github.com/naka-gawa/tap-mssql/internal/usecase"
)

type tapOptions struct {
	configs    []string
	discover   bool
	catalog    string
	properties string
	state      string
	about      bool
	format     string
	test       bool
	verbose    bool
	logFormat  string
}

// source is a gateway the command owns and closes.
type source interface {
	gateway.Source
	Close()
}

// openSource connects to SQL Server. Tests replace it.
var openSource = func(ctx context.Context, cfg *config.ConnectionConfig, logger *slog.Logger) (source, error) {
	g, err := gateway.NewMSSQLGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func runTap(ctx context.Context, opts *tapOptions, stdout, stderr io.Writer) error {
	if opts.about {
		return about.Write(stdout, about.New(version), opts.format)
	}
	if len(opts.configs) == 0 {
		return errors.New("--config is required unless --about is given")
	}

	logger := newLogger(opts.verbose, opts.logFormat, stderr)
	cfg, err := config.Load(opts.configs, os.Environ())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Read the input documents before connecting so a bad path fails fast.
	var catalog *domain.Catalog
	if path := catalogPath(opts); path != "" && !opts.discover {
		if catalog, err = singer.ReadCatalog(path); err != nil {
			return err
		}
	}
	state := domain.NewState()
	if opts.state != "" {
		if state, err = singer.ReadState(opts.state); err != nil {
			return err
		}
	}

	src, err := openSource(ctx, &cfg.Connection, logger)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer src.Close()

	discoverer := usecase.NewDiscoverer(src, logger, cfg.Connection.Database, cfg.HDJSONSchemaTypes)
	if opts.discover {
		catalog, err := discoverer.Discover(ctx, cfg.FilterSchemas)
		if err != nil {
			return fmt.Errorf("failed to discover streams: %w", err)
		}
		return singer.WriteDocument(stdout, catalog)
	}
	if catalog == nil {
		logger.Info("No catalog given, syncing every discovered stream")
		if catalog, err = discoverer.Discover(ctx, cfg.FilterSchemas); err != nil {
			return fmt.Errorf("failed to discover streams: %w", err)
		}
	}

	syncOpts, err := syncOptions(ctx, cfg, opts.test)
	if err != nil {
		return err
	}
	writer := singer.NewWriter(stdout)
	syncErr := usecase.NewSyncer(src, writer, logger, syncOpts).Sync(ctx, catalog, state)
	if err := writer.Flush(); err != nil && syncErr == nil {
		syncErr = err
	}
	return syncErr
}

func catalogPath(opts *tapOptions) string {
	if opts.catalog != "" {
		return opts.catalog
	}
	return opts.properties
}

func syncOptions(ctx context.Context, cfg *config.Config, test bool) (usecase.SyncOptions, error) {
	start, err := cfg.StartTime()
	if err != nil {
		return usecase.SyncOptions{}, err
	}
	opts := usecase.SyncOptions{
		StartDate:      start,
		StateFrequency: cfg.StateMessageFrequency,
		TestMode:       test,
	}
	if cfg.Batch != nil && !test {
		storage, err := batch.NewStorage(ctx, cfg.Batch.Storage.Root)
		if err != nil {
			return usecase.SyncOptions{}, fmt.Errorf("failed to open batch storage: %w", err)
		}
		opts.Batcher = batch.NewBatcher(storage, cfg.Batch)
	}
	return opts, nil
}
