package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/order-engine/internal/config"
	"github.com/example/order-engine/internal/email"
	"github.com/example/order-engine/internal/infrastructure/kafka"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/notification"
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
		"smtp":  cfg.SMTPHost + ":" + cfg.SMTPPort,
	}).Info("starting notifier")

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer db.Close()

	readStore := store.NewPostgresReadStore(db)
	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, readStore, log)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "email-notifier")
	defer consumer.Close()

	go func() {
		log.Info("starting event consumer")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
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
