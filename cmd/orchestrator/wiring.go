package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/config"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/database"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/kafka"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/outbox"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/s3"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/scheduler"
)

func openDatabase(cfg *config.Config) (*database.Database, error) {
	db, err := database.New(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return db, nil
}

// newGateway builds the worker gateway for the configured mode. The returned
// producer is nil in http mode and must be closed by the caller otherwise.
func newGateway(cfg *config.Config, db *database.Database) (gateway.Gateway, *kafka.Producer, error) {
	switch cfg.Gateway.Mode {
	case config.GatewayKafka:
		producer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic)
		if err != nil {
			return nil, nil, err
		}
		return kafka.NewGateway(producer), producer, nil

	case config.GatewayOutbox:
		producer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic)
		if err != nil {
			return nil, nil, err
		}
		return outbox.NewGateway(db), producer, nil

	default:
		client := &http.Client{Timeout: cfg.Gateway.Timeout}
		return gateway.NewHTTPClient(cfg.Gateway.Endpoint, client), nil, nil
	}
}

// newScheduler prefers the shared Redis queue so that pending rearms survive
// a restart. Without redis.addr rearms live in process timers.
func newScheduler(ctx context.Context, cfg *config.Config, handler scheduler.Handler) (scheduler.Scheduler, func(), error) {
	if cfg.Redis.Addr == "" {
		timer := scheduler.NewTimer(ctx, handler)
		return timer, func() { timer.Close() }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	queue := scheduler.NewRedis(client, cfg.Redis.Key, cfg.Redis.Poll, handler)
	go queue.Run(ctx)

	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis rearm queue")
	return queue, func() { client.Close() }, nil
}

func newArchiver(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	client, err := s3.NewMinioClient(s3.Options{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		Secure:    cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucketExists(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
