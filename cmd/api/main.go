package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rzzdr/vol-analytics-engine/config"
	"github.com/rzzdr/vol-analytics-engine/internal/analytics"
	"github.com/rzzdr/vol-analytics-engine/internal/kafka"
	"github.com/rzzdr/vol-analytics-engine/internal/store"
	"github.com/rzzdr/vol-analytics-engine/internal/stream"
	"github.com/rzzdr/vol-analytics-engine/pkg/api"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

var (
	noKafka = flag.Bool("no-kafka", false, "Run without the Kafka feeds (HTTP only)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	defer logger.Sync()
	log := logger.GetLogger("api.main")
	log.Info("Starting Volatility Analytics API Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	pricer := analytics.NewBlackScholesEngine()
	simulator := analytics.NewMonteCarloEngine(analytics.MonteCarloConfig{
		RecommendedPaths: cfg.Analytics.RecommendedPaths,
		BatchSize:        cfg.Analytics.SimulationBatchSize,
		Workers:          cfg.Analytics.SimulationWorkers,
	})
	estimator := analytics.NewVolatilityEstimator(cfg.Analytics.PeriodsPerYear)
	detector := analytics.NewMispricingDetector(analytics.DetectorConfig{
		Threshold: cfg.Analytics.MispricingThreshold,
	})
	smile := analytics.NewSmileBuilder()
	chains := analytics.NewChainAnalyzer(pricer, smile)
	history := store.NewPriceHistoryStore(cfg.Analytics.HistoryRetention)

	hub := stream.NewHub()
	go hub.Run(ctx)

	handlers := api.CreateHandlers(api.HandlersConfig{
		Pricer:       pricer,
		Simulator:    simulator,
		Estimator:    estimator,
		Detector:     detector,
		Smile:        smile,
		Chains:       chains,
		History:      history,
		Hub:          hub,
		Recorder:     recorder,
		DefaultRate:  cfg.Analytics.RiskFreeRate,
		DefaultPaths: cfg.Analytics.PathCount,
		DefaultSeed:  cfg.Analytics.Seed,
	})

	apiServer := api.NewServer(
		api.Config{
			Host:           cfg.API.Host,
			Port:           cfg.API.Port,
			ReadTimeout:    cfg.API.ReadTimeout,
			WriteTimeout:   cfg.API.WriteTimeout,
			Environment:    cfg.App.Environment,
			MetricsEnabled: cfg.Metrics.Enabled,
		},
		handlers,
		hub,
		recorder,
	)

	var consumers []*kafka.Consumer
	if !*noKafka {
		// Published signals fan out to stream subscribers.
		signalConsumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topics.VolSignals,
			GroupID:  cfg.Kafka.GroupID + "-api",
			MinBytes: cfg.Kafka.MinBytes,
			MaxBytes: cfg.Kafka.MaxBytes,
		})
		if err != nil {
			log.Fatalf("Failed to create signal consumer: %v", err)
		}
		consumers = append(consumers, signalConsumer)
		go func() {
			err := signalConsumer.Run(ctx, func(ctx context.Context, key, value []byte) error {
				var event models.SignalEvent
				if err := json.Unmarshal(value, &event); err != nil {
					return err
				}
				hub.BroadcastSignal(event.UnderlyingSymbol, event.Signal)
				return nil
			})
			if err != nil {
				log.Errorf("Signal consumer stopped: %v", err)
			}
		}()

		// The price-history feed keeps the store current for HV lookups.
		historyConsumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topics.PriceHistory,
			GroupID:  cfg.Kafka.GroupID + "-api",
			MinBytes: cfg.Kafka.MinBytes,
			MaxBytes: cfg.Kafka.MaxBytes,
		})
		if err != nil {
			log.Fatalf("Failed to create history consumer: %v", err)
		}
		consumers = append(consumers, historyConsumer)
		go func() {
			err := historyConsumer.Run(ctx, func(ctx context.Context, key, value []byte) error {
				var update models.PriceUpdate
				if err := json.Unmarshal(value, &update); err != nil {
					return err
				}
				history.Append(update.Symbol, update.Point())
				return nil
			})
			if err != nil {
				log.Errorf("History consumer stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Errorf("API server error: %v", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}
	for _, c := range consumers {
		if err := c.Close(); err != nil {
			log.Errorf("Consumer shutdown error: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
