package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/api"
	"github.com/bisttrading/platform/internal/execution"
	"github.com/bisttrading/platform/internal/execution/events"
	"github.com/bisttrading/platform/internal/execution/risk"
	"github.com/bisttrading/platform/internal/execution/tracker"
	"github.com/bisttrading/platform/internal/execution/venue"
	"github.com/bisttrading/platform/internal/execution/venue/algolab"
	"github.com/bisttrading/platform/internal/infrastructure/config"
	"github.com/bisttrading/platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("platform exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	notifier := events.NewNotifier(events.Config{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		EnqueueWait: cfg.Notifier.EnqueueWait,
	}, log.Named("notifier"))
	defer notifier.Close()

	var kafkaSink *events.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink = events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, log.Named("kafka"))
		defer kafkaSink.Close()
		notifier.Subscribe(kafkaSink.Handle)
	}

	trk := tracker.New(tracker.Config{
		SweepInterval: cfg.Tracker.SweepInterval,
		StaleAfter:    cfg.Tracker.StaleAfter,
	}, notifier, log.Named("tracker"))

	gate := risk.NewGate(risk.LimitsFromConfig(cfg.Risk), risk.NewRedisProvider(redisClient, log.Named("risk")), log.Named("risk"))

	venueClient := algolab.New(algolab.Config{
		BaseURL:   cfg.Venue.BaseURL,
		APIKey:    cfg.Venue.APIKey,
		APISecret: cfg.Venue.APISecret,
	}, log.Named("algolab"))

	breaker := venue.NewCircuitBreaker(venue.BreakerConfig{
		Name:                   "algolab",
		WindowSize:             cfg.Resilience.WindowSize,
		MinimumCalls:           cfg.Resilience.MinimumCalls,
		FailureRateThreshold:   cfg.Resilience.FailureRateThreshold,
		SlowCallRateThreshold:  cfg.Resilience.SlowCallRateThreshold,
		SlowCallDuration:       cfg.Resilience.SlowCallDuration,
		OpenStateWait:          cfg.Resilience.OpenStateWait,
		HalfOpenPermittedCalls: cfg.Resilience.HalfOpenPermittedCalls,
	}, log.Named("breaker"))

	gateway := venue.NewGateway(venueClient, breaker, venue.RetryConfig{
		MaxAttempts:       cfg.Resilience.MaxAttempts,
		InitialBackoff:    cfg.Resilience.InitialBackoff,
		BackoffMultiplier: cfg.Resilience.BackoffMultiplier,
		MaxBackoff:        cfg.Resilience.MaxBackoff,
	}, cfg.Venue.CallTimeout, log.Named("gateway"))

	service := execution.NewService(gate, gateway, trk, log.Named("execution"))

	stream := algolab.NewStream(algolab.StreamConfig{
		URL:          cfg.Venue.StreamURL,
		APIKey:       cfg.Venue.APIKey,
		PingInterval: cfg.Venue.PingInterval,
	}, service.HandleVenueUpdate, log.Named("stream"))
	service.AddRunner(stream.Run)

	service.Start(ctx)
	defer service.Stop()

	ready := func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return redisClient.Ping(pingCtx).Err() == nil
	}

	server := api.NewServer(service, ready, log.Named("api"))
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
