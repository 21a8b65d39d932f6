package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docengine/internal/config"
	"github.com/dshills/docengine/internal/engine/snapshot"
	"github.com/dshills/docengine/internal/logging"
	"github.com/dshills/docengine/internal/server"
	"github.com/dshills/docengine/internal/storage"
	badgerstore "github.com/dshills/docengine/internal/storage/badger"
	"github.com/dshills/docengine/internal/storage/memory"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST server",
	Long: `Run the REST server.

Configuration comes from built-in defaults, then the file given with
--config (TOML or YAML), then DOCENGINE_* environment variables such as
DOCENGINE_SERVER_ADDR or DOCENGINE_STORAGE_DRIVER. Edits to the config
file change the log level without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.SetDefault(logger.Logger)

	store, err := openStore(cfg.Storage, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close storage", "error", err)
		}
	}()

	snaps, err := snapshot.NewEngine(store, snapshot.EngineConfig{
		CacheSize: cfg.Snapshot.CacheSize,
		Interval:  cfg.Snapshot.Interval,
		Logger:    logger.Logger,
	})
	if err != nil {
		return err
	}

	if cfg.Server.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	api := server.New(server.NewService(store, snaps, logger.Logger), server.Config{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger.Logger,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		w, err := config.Watch(ctx, configPath, func(next *config.Config) {
			logger.SetLevel(next.Logging.Level)
		}, config.WithWatchLogger(logger.Logger))
		if err != nil {
			logger.Warn("config file will not be watched", "path", configPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver, "version", version)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "badger":
		bc := badgerstore.DefaultConfig()
		bc.Path = cfg.Path
		bc.SyncWrites = cfg.SyncWrites
		bc.GCInterval = cfg.GCInterval.Std()
		bc.Logger = logger
		store, err := badgerstore.Open(bc)
		if err != nil {
			return nil, fmt.Errorf("open badger store at %s: %w", cfg.Path, err)
		}
		return store, nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
