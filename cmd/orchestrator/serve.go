package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/api"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/config"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/kafka"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/orchestrator"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/outbox"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/watchdog"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("gateway", cfg.Gateway.Mode).Msg("Main: init...")

	// Инициализация базы данных
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	gw, producer, err := newGateway(cfg, db)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	// Горутина для обработки аутбокса
	if cfg.Gateway.Mode == config.GatewayOutbox {
		dispatcher := outbox.NewDispatcher(db, producer, cfg.Orchestrator.OutboxInterval)
		go dispatcher.Start(ctx)
	}

	rearmer := orchestrator.NewRearmer(db, gw)
	sched, closeScheduler, err := newScheduler(ctx, cfg, rearmer.Rearm)
	if err != nil {
		return err
	}
	defer closeScheduler()

	var svcOpts []orchestrator.Option
	if cfg.Minio.Endpoint != "" {
		archiver, err := newArchiver(ctx, cfg)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, orchestrator.WithArchiver(archiver))
	}

	svc := orchestrator.New(db, gw, sched, orchestrator.Config{
		Cooldown:        cfg.Orchestrator.Cooldown,
		CallbackBaseURL: cfg.HTTP.PublicURL,
	}, svcOpts...)

	// Результаты алгоритмов из кафки, если она настроена
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ResultTopic)
		if err != nil {
			log.Warn().Err(err).Msg("Result topic unavailable, accepting results over HTTP only")
		} else {
			defer consumer.Close()
			consumer.StartListening(ctx, func(ctx context.Context, msg models.ResultMessage) error {
				_, err := svc.ProcessResult(ctx, msg.CameraID, msg.Results)
				return err
			})
		}
	}

	// Горутина для возврата зависших алгоритмов
	go watchdog.New(db, rearmer, cfg.Orchestrator.WatchInterval, cfg.Orchestrator.StaleAfter).Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewHandlers(db, svc, cfg.Orchestrator.StreamingBase).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting orchestrator API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
