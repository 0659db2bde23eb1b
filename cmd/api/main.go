package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/bankledger/internal/api"
	"github.com/punchamoorthee/bankledger/internal/config"
	"github.com/punchamoorthee/bankledger/internal/geocode"
	"github.com/punchamoorthee/bankledger/internal/service"
	"github.com/punchamoorthee/bankledger/internal/store"
	"github.com/punchamoorthee/bankledger/internal/store/memory"
	"github.com/punchamoorthee/bankledger/internal/telemetry"
)

const serviceName = "bankledger"

// backend is everything the services need from a store implementation.
type backend interface {
	service.TxManager
	service.AccountLocker
	service.Ledger
	service.AccountRepository
	service.ClientRepository
	api.Pinger
	Close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("tracing init failed", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("unable to open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	geocoder, err := geocode.New(geocode.Options{
		BaseURL:    cfg.Geocoder.URL,
		UserAgent:  cfg.Geocoder.UserAgent,
		MaxRetries: cfg.Geocoder.MaxRetries,
		Timeout:    cfg.Geocoder.Timeout,
	}, logger)
	if err != nil {
		logger.Error("invalid geocoder configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize Layers
	transfers := service.NewTransferService(db, db, db, logger)
	accounts := service.NewAccountService(db, db, logger)
	clients := service.NewClientService(db, geocoder, logger)
	handler := api.NewHandler(transfers, accounts, clients, db, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", srv.Addr), slog.String("driver", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("tracer shutdown", slog.Any("error", err))
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return memory.New(cfg.LockTimeout), nil
	}

	s, err := store.NewStore(ctx, cfg.DBSource, store.PoolOptions{
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
