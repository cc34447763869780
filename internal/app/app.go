package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/auth"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Run поднимает API заказов и сервер метрик и блокируется до отмены ctx.
// При штатной остановке возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := log.WithField("component", "app")
	logger.WithFields(version.Info().Fields()).WithFields(log.Fields{
		"storage":      cfg.StorageDriver,
		"auth_enabled": cfg.AuthEnabled,
	}).Info("starting orderdesk API")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	handler, err := buildAPIHandler(cfg, deps, m)
	if err != nil {
		return err
	}

	healthHandler := health.NewHandler(version.Info().Version)
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen api: %w", err)
	}
	metricsLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen metrics: %w", err)
	}

	apiSrv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	metricsSrv := newMetricsServer(registry, healthHandler)

	if err := serve(ctx, cfg.ShutdownTimeout, logger, []servedListener{
		{name: "api", srv: apiSrv, lis: apiLis},
		{name: "metrics", srv: metricsSrv, lis: metricsLis},
	}); err != nil {
		return err
	}
	return ctx.Err()
}

// buildAPIHandler собирает сервис заказов, при необходимости gate, и роутер.
func buildAPIHandler(cfg Config, deps *runtimeDependencies, m *metrics.Metrics) (http.Handler, error) {
	serviceOpts := []orders.Option{
		orders.WithLogger(log.WithField("layer", "service")),
		orders.WithMetrics(m),
	}
	routerOpts := []httpapi.Option{
		httpapi.WithLogger(log.WithField("layer", "http")),
		httpapi.WithMetrics(m),
	}

	if cfg.AuthEnabled {
		gate, err := auth.NewGate(deps.users, auth.Config{
			Secret:     []byte(cfg.JWTSecret),
			Issuer:     cfg.JWTIssuer,
			TokenTTL:   cfg.TokenTTL,
			BcryptCost: cfg.BcryptCost,
		}, auth.WithMetrics(m), auth.WithLogger(log.WithField("layer", "auth")))
		if err != nil {
			return nil, fmt.Errorf("init auth gate: %w", err)
		}
		serviceOpts = append(serviceOpts, orders.WithIdentityRequired())
		routerOpts = append(routerOpts, httpapi.WithAuthenticator(gate))
	}

	svc := orders.NewService(deps.orders, serviceOpts...)
	return httpapi.NewRouter(svc, routerOpts...), nil
}

func newMetricsServer(gatherer prometheus.Gatherer, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	healthHandler.Mount(mux)
	return &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
}

type servedListener struct {
	name string
	srv  *http.Server
	lis  net.Listener
}

// serve обслуживает все listeners до отмены ctx или первой ошибки и затем
// останавливает серверы с ограничением timeout.
func serve(ctx context.Context, timeout time.Duration, logger *log.Entry, servers []servedListener) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range servers {
		g.Go(func() error {
			logger.WithFields(log.Fields{"server": s.name, "addr": s.lis.Addr().String()}).Info("listening")
			if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s server: %w", s.name, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
