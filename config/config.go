package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config for the whole application
type Config struct {
	App       AppConfig
	API       APIConfig
	Analytics AnalyticsConfig
	Kafka     KafkaConfig
	Metrics   MetricsConfig
}

// General application configuration
type AppConfig struct {
	Name        string
	Environment string
	LogLevel    string
}

// Configuration for the API server
type APIConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Configuration for the analytics core. These are the only knobs the
// engines see; the core never reads the environment itself.
type AnalyticsConfig struct {
	RiskFreeRate        float64
	PathCount           int
	RecommendedPaths    int
	SimulationBatchSize int
	SimulationWorkers   int
	MispricingThreshold float64
	PeriodsPerYear      int
	HistoryRetention    int
	// Seed pins the Monte Carlo RNG for reproducible runs; 0 means
	// draw a fresh seed per simulation.
	Seed int64
}

// Configuration for Kafka
type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	Topics   KafkaTopicsConfig
	MinBytes int
	MaxBytes int
}

// Kafka topics configuration
type KafkaTopicsConfig struct {
	OptionQuotes string
	PriceHistory string
	VolSignals   string
}

// Configuration for metrics exposure on the API server
type MetricsConfig struct {
	Enabled bool
}

// Loads the configuration from a file and environment variables
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus environment cover
		// every knob.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("VOLENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "vol-analytics-engine")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.log_level", "info")

	// API defaults
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.read_timeout", "10s")
	viper.SetDefault("api.write_timeout", "10s")
	viper.SetDefault("api.shutdown_timeout", "30s")

	// Analytics defaults
	viper.SetDefault("analytics.risk_free_rate", 0.05)
	viper.SetDefault("analytics.path_count", 25000)
	viper.SetDefault("analytics.recommended_paths", 25000)
	viper.SetDefault("analytics.simulation_batch_size", 4096)
	viper.SetDefault("analytics.simulation_workers", 4)
	viper.SetDefault("analytics.mispricing_threshold", 0.05)
	viper.SetDefault("analytics.periods_per_year", 252)
	viper.SetDefault("analytics.history_retention", 504)
	viper.SetDefault("analytics.seed", 0)

	// Kafka defaults
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "vol-analytics")
	viper.SetDefault("kafka.topics.option_quotes", "market.options.quotes")
	viper.SetDefault("kafka.topics.price_history", "market.prices.history")
	viper.SetDefault("kafka.topics.vol_signals", "analytics.vol.signals")
	viper.SetDefault("kafka.min_bytes", 10e3)
	viper.SetDefault("kafka.max_bytes", 10e6)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
}

func GetConfigPath() string {
	configPath := os.Getenv("VOLENGINE_CONFIG_PATH")
	if configPath != "" {
		return configPath
	}

	return "./config/config.yaml"
}
