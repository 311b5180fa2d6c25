package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/order-engine/internal/config"
	"github.com/example/order-engine/internal/infrastructure/kafka"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/projection"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	log.WithFields(logrus.Fields{
		"kafka": cfg.KafkaBrokers,
		"topic": cfg.KafkaTopic,
	}).Info("starting projector")

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer db.Close()

	readStore := store.NewPostgresReadStore(db)
	projector := projection.NewProjector(readStore)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "projector")
	defer consumer.Close()

	go func() {
		log.Info("starting event consumer")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("consumer stopped")
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
}
