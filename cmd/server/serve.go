package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shiva/moveops/internal/handler"
	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/repository"
	"github.com/shiva/moveops/internal/service"
	"github.com/shiva/moveops/internal/tasks"
	"github.com/shiva/moveops/internal/tracking"
	"github.com/shiva/moveops/pkg/cache"
	"github.com/shiva/moveops/pkg/db"
	"github.com/shiva/moveops/pkg/logger"
	"github.com/shiva/moveops/pkg/maps"
	"github.com/shiva/moveops/pkg/payments"
)

func runServer(ctx context.Context, in *infra) error {
	cfg, log := in.cfg, in.log

	// ── Metrics ─────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink, err := metrics.NewPromSink(reg)
	if err != nil {
		return err
	}
	if err := cache.RegisterPoolMetrics(reg, in.redis); err != nil {
		return err
	}

	// ── Storage ─────────────────────────────────────────
	jobRepo := repository.NewJobRepository(in.pool)
	invoiceRepo := repository.NewInvoiceRepository(in.pool)
	paymentRepo := repository.NewPaymentRepository(in.pool)
	locationRepo := repository.NewLocationRepository(in.pool, in.redis, cfg.MQTT.LocationTTL)
	geocodeCache := repository.NewGeocodeCache(in.redis, cfg.Maps.CacheTTL)

	// ── Providers ───────────────────────────────────────
	geocoder := service.NewCachedGeocoder(maps.NewClient(cfg.Maps), geocodeCache, logger.New("maps"))
	stripe := payments.NewStripe(cfg.Stripe, logger.New("stripe"))

	taskClient := tasks.NewClient(in.redis)
	defer taskClient.Close()
	notifier := tasks.NewNotifier(taskClient, cfg.Worker, logger.New("notifier"))

	// ── Realtime (optional) ─────────────────────────────
	var publisher service.StatusPublisher
	var broker *tracking.Broker
	if cfg.MQTT.Enabled {
		broker, err = tracking.Connect(cfg.MQTT, logger.New("mqtt"))
		if err != nil {
			return err
		}
		defer broker.Close()
		publisher = tracking.NewStatusPublisher(broker)
	}

	// ── Services ────────────────────────────────────────
	pricingSvc := service.NewPricingService(service.DefaultPricingConfig())

	jobCfg := service.DefaultJobConfig()
	jobCfg.DepositAmount = cfg.Payments.DepositAmount
	jobSvc := service.NewJobService(jobRepo, geocoder, pricingSvc, notifier, publisher, sink, logger.New("jobs"), jobCfg)

	paymentSvc := service.NewPaymentService(jobRepo, invoiceRepo, paymentRepo, stripe, sink, logger.New("payments"),
		service.PaymentConfig{
			Currency:  cfg.Payments.Currency,
			MinAmount: cfg.Payments.MinAmount,
			MaxAmount: cfg.Payments.MaxAmount,
		})
	webhookSvc := service.NewWebhookService(paymentRepo, stripe, publisher, sink, logger.New("webhooks"))
	invoiceSvc := service.NewInvoiceService(invoiceRepo, jobRepo, notifier, cfg.App.FrontendURL, logger.New("invoices"))
	trackingSvc := service.NewTrackingService(jobRepo, locationRepo, sink, logger.New("tracking"))

	if broker != nil {
		sub := tracking.NewLocationSubscriber(broker, trackingSvc, cfg.MQTT.Timeout, logger.New("mqtt"))
		if err := sub.Start(); err != nil {
			return err
		}
	}

	// ── HTTP ────────────────────────────────────────────
	httpLog := logger.New("http")
	router := handler.NewRouter(handler.Routes{
		Jobs:     handler.NewJobHandler(jobSvc, trackingSvc, httpLog),
		Payments: handler.NewPaymentHandler(paymentSvc, webhookSvc, httpLog),
		Invoices: handler.NewInvoiceHandler(invoiceSvc, httpLog),
		Pricing:  handler.NewPricingHandler(pricingSvc, httpLog),
		Health:   healthHandler(in.pool, in.redis),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, cfg.App.CORSOrigin, httpLog, sink)

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── Graceful shutdown ───────────────────────────────
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
