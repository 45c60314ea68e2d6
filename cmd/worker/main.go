package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/events"
	"github.com/Domenick1991/coursebot/internal/kafka"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// The worker drains the booking event topic into the events table.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	log := logger.New(cfg.Log)
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is not set, nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, pool); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	sink := events.NewSink(repository.NewEventRepository(pool), log)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic)
	defer consumer.Close()

	log.WithFields(logrus.Fields{
		"topic": cfg.Kafka.BookingEventsTopic,
		"group": cfg.Kafka.GroupID,
	}).Info("event sink started")
	if err := consumer.Consume(ctx, sink.Handle); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("consumer stopped")
		return
	}
	log.Info("event sink stopped")
}
