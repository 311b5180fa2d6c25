package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/example/order-engine/internal/api"
	"github.com/example/order-engine/internal/auth"
	"github.com/example/order-engine/internal/command"
	"github.com/example/order-engine/internal/config"
	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/inventory"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/domain/ordernumber"
	"github.com/example/order-engine/internal/domain/payment"
	"github.com/example/order-engine/internal/domain/product"
	"github.com/example/order-engine/internal/infrastructure/kafka"
	"github.com/example/order-engine/internal/infrastructure/redisstock"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/metrics"
	"github.com/example/order-engine/internal/projection"
	"github.com/example/order-engine/internal/query"
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
		"kafka":       cfg.KafkaBrokers,
		"topic":       cfg.KafkaTopic,
		"event_store": cfg.EventStoreBackend,
		"addr":        cfg.HTTPAddr,
	}).Info("starting order engine API")

	m, shutdownMetrics, err := metrics.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.WithError(err).Fatal("init metrics")
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics shutdown")
		}
	}()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	// Event store backend and matching read store / order number sequence.
	var (
		eventStore store.EventStoreInterface
		readStore  store.ReadStoreInterface
		numbers    ordernumber.Generator
	)
	switch cfg.EventStoreBackend {
	case "postgres":
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("connect postgres")
		}
		defer db.Close()
		eventStore = store.NewPostgresEventStore(db, producer)
		readStore = store.NewPostgresReadStore(db)
		numbers = ordernumber.NewPostgresSequence(db, cfg.OrderNumberPrefix)
		log.Info("using PostgreSQL event store")
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.WithError(err).Fatal("load aws config")
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		eventStore = store.NewDynamoEventStore(client, cfg.DynamoTable, cfg.DynamoTable+"-snapshots", producer)
		readStore = store.NewReadStore()
		numbers = ordernumber.NewMemorySequence(cfg.OrderNumberPrefix)
		log.Info("using DynamoDB event store")
	case "memory":
		eventStore = store.NewEventStore(producer)
		readStore = store.NewReadStore()
		numbers = ordernumber.NewMemorySequence(cfg.OrderNumberPrefix)
		log.Warn("using in-memory event store, data is not persisted")
	default:
		log.Fatalf("unknown event store backend %q", cfg.EventStoreBackend)
	}

	// Domain services
	productSvc := product.NewService(eventStore)
	cartSvc := cart.NewService(eventStore)
	orderSvc := order.NewService(eventStore, numbers, order.Policy{
		ShippingFlatFee:       cfg.ShippingFlatFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ReturnWindow:          cfg.ReturnWindow,
	})
	inventorySvc := inventory.NewService(eventStore)

	if cfg.RedisAddr != "" {
		redisClient := rd.NewClient(&rd.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer redisClient.Close()
		inventorySvc.WithGuard(redisstock.NewGuard(redisClient))
		log.WithField("addr", cfg.RedisAddr).Info("redis stock guard enabled")
	}

	var settlement payment.Settlement
	if cfg.SettlementURL != "" {
		settlement = payment.NewHTTPSettlement(cfg.SettlementURL, cfg.SettlementAPIKey)
	} else {
		settlement = payment.AutoApprove{}
		log.Warn("no settlement provider configured, auto-approving payments")
	}
	payments := payment.NewManager(orderSvc, settlement, cfg.MerchantAccount, cfg.PaymentSessionTTL, cfg.SettlementTimeout)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessExpiry)

	queryHandler := query.NewHandler(readStore)
	cmdHandler := command.NewHandler(productSvc, cartSvc, orderSvc, inventorySvc, payments, queryHandler, m)

	// Rebuild read models from the event store, then keep them current
	// through the Kafka consumer.
	projector := projection.NewProjector(readStore)
	replayEvents(eventStore, readStore, projector, log)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "api-projector")
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting projection consumer")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("projection consumer stopped")
			}
		}
	}()

	// Expired payment sessions are swept in the background; the sweep
	// cancels the order and restores its stock.
	reaper := payment.NewReaper(cfg.ReaperInterval, cmdHandler.ReapExpiredPayments)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	handlers := api.NewHandlers(cmdHandler, queryHandler, log)
	router := api.NewRouter(handlers, jwtService, m, log)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	wg.Wait()
}

// replayEvents rebuilds read models from the full event history. The read
// store is dropped first: counter projections (stock, sales, user stats)
// are deltas, so replaying on top of state persisted by a previous run
// would double-apply them.
func replayEvents(eventStore store.EventStoreInterface, readStore store.ReadStoreInterface, projector *projection.Projector, log *logrus.Logger) {
	readStore.Reset()

	events := eventStore.GetAllEvents()
	log.WithField("count", len(events)).Info("replaying events")

	ctx := context.Background()
	for _, event := range events {
		data, _ := event.MarshalJSON()
		if err := projector.HandleEvent(ctx, []byte(event.AggregateID), data); err != nil {
			log.WithError(err).WithField("event_id", event.ID).Warn("replay event")
		}
	}
	log.Info("event replay completed")
}
