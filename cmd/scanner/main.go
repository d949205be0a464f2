package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/vol-analytics-engine/config"
	"github.com/rzzdr/vol-analytics-engine/internal/analytics"
	"github.com/rzzdr/vol-analytics-engine/internal/kafka"
	"github.com/rzzdr/vol-analytics-engine/internal/scanner"
	"github.com/rzzdr/vol-analytics-engine/internal/store"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	defer logger.Sync()
	log := logger.GetLogger("scanner.main")
	log.Info("Starting Volatility Scanner Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	pricer := analytics.NewBlackScholesEngine()
	estimator := analytics.NewVolatilityEstimator(cfg.Analytics.PeriodsPerYear)
	detector := analytics.NewMispricingDetector(analytics.DetectorConfig{
		Threshold: cfg.Analytics.MispricingThreshold,
	})
	history := store.NewPriceHistoryStore(cfg.Analytics.HistoryRetention)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topics.VolSignals,
	})
	if err != nil {
		log.Fatalf("Failed to create signal producer: %v", err)
	}

	scan := scanner.NewScanner(
		scanner.Config{RiskFreeRate: cfg.Analytics.RiskFreeRate},
		pricer, estimator, detector, history, producer, recorder,
	)

	quoteConsumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topics.OptionQuotes,
		GroupID:  cfg.Kafka.GroupID + "-scanner",
		MinBytes: cfg.Kafka.MinBytes,
		MaxBytes: cfg.Kafka.MaxBytes,
	})
	if err != nil {
		log.Fatalf("Failed to create quote consumer: %v", err)
	}

	historyConsumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topics.PriceHistory,
		GroupID:  cfg.Kafka.GroupID + "-scanner",
		MinBytes: cfg.Kafka.MinBytes,
		MaxBytes: cfg.Kafka.MaxBytes,
	})
	if err != nil {
		log.Fatalf("Failed to create history consumer: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return historyConsumer.Run(gctx, scan.HandlePriceUpdate)
	})
	g.Go(func() error {
		return quoteConsumer.Run(gctx, scan.HandleQuote)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-gctx.Done():
	}
	cancel()

	if err := g.Wait(); err != nil {
		log.Errorf("Consumer error: %v", err)
	}

	if err := quoteConsumer.Close(); err != nil {
		log.Errorf("Quote consumer shutdown error: %v", err)
	}
	if err := historyConsumer.Close(); err != nil {
		log.Errorf("History consumer shutdown error: %v", err)
	}
	if err := producer.Close(); err != nil {
		log.Errorf("Producer shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}
