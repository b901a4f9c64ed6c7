package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML configuration file
const FileEnv = "PAPER_TRADER_CONFIG"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Market    MarketConfig    `yaml:"market"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"events_topic"`
	OrdersTopic string   `yaml:"orders_topic"`
	GroupID     string   `yaml:"group_id"`
}

// RedisConfig holds the quote cache configuration
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// MarketConfig describes the reference exchange session
type MarketConfig struct {
	Timezone string `yaml:"timezone"`
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
}

// QuotesConfig holds credentials and endpoints for the Alpaca market-data API
type QuotesConfig struct {
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	DataURL   string        `yaml:"data_url"`
	Feed      string        `yaml:"feed"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PortfolioConfig holds portfolio defaults
type PortfolioConfig struct {
	StartingCash     string        `yaml:"starting_cash"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// LoggingConfig configures the application logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Host:         "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "papertrader",
			SSLMode:  "disable",
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			EventsTopic: "paper-trader-events",
			OrdersTopic: "paper-trader-orders",
			GroupID:     "paper-trader",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			QuoteTTL: 30 * time.Second,
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Quotes: QuotesConfig{
			Feed:    "iex",
			Timeout: 10 * time.Second,
		},
		Portfolio: PortfolioConfig{
			StartingCash:     "1000",
			SnapshotInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// PAPER_TRADER_CONFIG if set, then environment variables. A .env file in
// the working directory is loaded into the environment first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides overrides fields whose environment variables are set
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")

	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	setString(&cfg.Kafka.EventsTopic, "KAFKA_EVENTS_TOPIC")
	setString(&cfg.Kafka.OrdersTopic, "KAFKA_ORDERS_TOPIC")
	setString(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.Market.Timezone, "MARKET_TIMEZONE")
	setString(&cfg.Market.Open, "MARKET_OPEN")
	setString(&cfg.Market.Close, "MARKET_CLOSE")

	setString(&cfg.Quotes.APIKey, "ALPACA_API_KEY")
	setString(&cfg.Quotes.APISecret, "ALPACA_API_SECRET")
	// Standard Alpaca SDK names take precedence
	setString(&cfg.Quotes.APIKey, "APCA_API_KEY_ID")
	setString(&cfg.Quotes.APISecret, "APCA_API_SECRET_KEY")
	setString(&cfg.Quotes.DataURL, "ALPACA_DATA_URL")
	setString(&cfg.Quotes.Feed, "ALPACA_FEED")

	setString(&cfg.Portfolio.StartingCash, "STARTING_CASH")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	var errs []error
	errs = append(errs,
		setBool(&cfg.Kafka.Enabled, "KAFKA_ENABLED"),
		setBool(&cfg.Redis.Enabled, "REDIS_ENABLED"),
		setInt(&cfg.Redis.DB, "REDIS_DB"),
		setDuration(&cfg.Redis.QuoteTTL, "QUOTE_CACHE_TTL"),
		setDuration(&cfg.Quotes.Timeout, "QUOTE_TIMEOUT"),
		setDuration(&cfg.Portfolio.SnapshotInterval, "SNAPSHOT_INTERVAL"),
		setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT"),
		setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT"),
	)
	return errors.Join(errs...)
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	cash, err := decimal.NewFromString(c.Portfolio.StartingCash)
	if err != nil {
		return fmt.Errorf("invalid starting cash %q: %w", c.Portfolio.StartingCash, err)
	}
	if cash.IsNegative() {
		return fmt.Errorf("starting cash %s must not be negative", c.Portfolio.StartingCash)
	}
	if c.Portfolio.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", c.Portfolio.SnapshotInterval)
	}
	if c.Quotes.Timeout <= 0 {
		return fmt.Errorf("quote timeout must be positive, got %s", c.Quotes.Timeout)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka is enabled but no brokers are configured")
	}
	return nil
}

// StartingCashAmount returns the configured starting cash. Call after Validate.
func (p *PortfolioConfig) StartingCashAmount() decimal.Decimal {
	cash, err := decimal.NewFromString(p.StartingCash)
	if err != nil {
		return decimal.Zero
	}
	return cash
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func setString(field *string, key string) {
	if value := os.Getenv(key); value != "" {
		*field = value
	}
}

func setBool(field *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = b
	return nil
}

func setInt(field *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = n
	return nil
}

func setDuration(field *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
