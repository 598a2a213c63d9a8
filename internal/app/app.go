package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/httpserver"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/history"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	serviceName       = "storefront"
	cartSweepInterval = time.Minute
)

// Run поднимает BFF и блокируется до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return Serve(ctx, cfg, lis)
}

// Serve — Run на готовом listener.
func Serve(ctx context.Context, cfg Config, lis net.Listener) error {
	logger := log.WithField("component", "app")
	build := version.Get()
	logger.WithField("build", build.String()).Info("starting storefront")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: build.Version,
		SampleRatio:    cfg.TraceSampleRatio,
		Insecure:       cfg.OTLPInsecure,
	}, logger.WithField("layer", "tracing"))
	if err != nil {
		_ = lis.Close()
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	healthHandler := health.NewHandler(build.Version)
	deps, err := NewDependencies(ctx, cfg, healthHandler, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	registerer := prometheus.DefaultRegisterer
	cartMetrics := metrics.NewCartMetrics(registerer)

	orchestrator := checkout.NewOrchestrator(deps.Orders, deps.Payments, deps.Pricing,
		checkout.WithLogger(logger.WithField("layer", "checkout")),
		checkout.WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(registerer)),
		checkout.WithPublisher(deps.Publisher),
		checkout.WithCallTimeout(cfg.CallTimeout),
	)

	cartLogger := logger.WithField("layer", "cart")
	carts := httpserver.NewCarts(func(ctx context.Context, identity domain.Identity) *cart.Store {
		return cart.NewStore(ctx, identity, deps.CartStorage,
			cart.WithLogger(cartLogger),
			cart.WithMetrics(cartMetrics),
		)
	}, cfg.CartIdleTTL)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go carts.Run(sweepCtx, cartSweepInterval)

	srv, err := httpserver.New(httpserver.Deps{
		Catalog:  deps.Catalog,
		Auth:     deps.Identity,
		Carts:    carts,
		Checkout: checkout.NewSessions(orchestrator),
		History:  history.NewQuery(deps.Orders, logger.WithField("layer", "history"), cfg.HistoryTimeout),
		Pricing:  deps.Pricing,
		Health:   healthHandler,
		Metrics:  promhttp.Handler(),
		Logger:   logger.WithField("layer", "http"),
	})
	if err != nil {
		_ = lis.Close()
		return err
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("http server listening")
		errCh <- httpServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested, stopping http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful shutdown timed out")
		}
		stopSweep()
		if err := carts.Close(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to flush carts")
		}
		return ctx.Err()
	case err := <-errCh:
		stopSweep()
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = carts.Close(flushCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
