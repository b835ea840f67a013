package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		TradeRateLimit  struct {
			RPS   float64 `yaml:"rps" default:"2"`
			Burst int     `yaml:"burst" default:"5"`
		} `yaml:"trade_rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		// CollectTopic ships aggregated warn/error digests to Kafka when set.
		CollectTopic    string        `yaml:"collect_topic"`
		CollectLevel    string        `yaml:"collect_level" default:"error"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	} `yaml:"log"`
	Bot struct {
		Interval       time.Duration  `yaml:"interval" default:"300s"`
		Window         time.Duration  `yaml:"window" default:"24h"`
		LockTimeout    time.Duration  `yaml:"lock_timeout" default:"30s"`
		SubmitTimeout  time.Duration  `yaml:"submit_timeout" default:"10s"`
		RetryBackoff   time.Duration  `yaml:"retry_backoff" default:"1s"`
		ReconcileGrace time.Duration  `yaml:"reconcile_grace" default:"10m"`
		Concurrency    int            `yaml:"concurrency" default:"4"`
		Autostart      bool           `yaml:"autostart"`
		AccountEquity  float64        `yaml:"account_equity"`
		CycleLease     bool           `yaml:"cycle_lease"`
		Defaults       SymbolDefaults `yaml:"defaults"`
		ActiveSince    time.Duration  `yaml:"active_since" default:"24h"`
	} `yaml:"bot"`
	ConfigSource struct {
		Type string `yaml:"type" default:"file"`
		Path string `yaml:"path" default:"config/symbols.yaml"`
	} `yaml:"config_source"`
	Storage struct {
		Type string `yaml:"type" default:"memory"`
	} `yaml:"storage"`
	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		PoolSize    int           `yaml:"pool_size" default:"10"`
		Prefix      string        `yaml:"prefix" default:"sentitrade"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	} `yaml:"redis"`
	Postgres struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"5432"`
		Database string `yaml:"database" default:"sentitrade"`
		User     string `yaml:"user" default:"sentitrade"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode" default:"disable"`
		MaxConns int    `yaml:"max_conns" default:"10"`
		Migrate  bool   `yaml:"migrate" default:"true"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled           bool     `yaml:"enabled"`
		Brokers           []string `yaml:"brokers"`
		ObservationsTopic string   `yaml:"observations_topic" default:"sentiment.observations"`
		TradesTopic       string   `yaml:"trades_topic" default:"trading.trades"`
		RequiredAcks      int      `yaml:"required_acks" default:"-1"`
		Compression       string   `yaml:"compression" default:"snappy"`
		Producer          struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"sentitrade"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"sentiment.observations.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Finnhub struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         int           `yaml:"max_rps" default:"10"`
		MaxTickAge     time.Duration `yaml:"max_tick_age" default:"1m"`
	} `yaml:"finnhub"`
	Prices struct {
		TTL time.Duration `yaml:"ttl" default:"15m"`
	} `yaml:"prices"`
	Broker struct {
		Type      string        `yaml:"type" default:"paper"`
		BaseURL   string        `yaml:"base_url" default:"https://paper-api.alpaca.markets"`
		KeyID     string        `yaml:"key_id"`
		Secret    string        `yaml:"secret"`
		RateLimit float64       `yaml:"rate_limit" default:"3"`
		Burst     int           `yaml:"burst" default:"5"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"broker"`
}

// SymbolDefaults apply to every symbol that does not override them.
type SymbolDefaults struct {
	Weights            map[string]float64 `yaml:"weights" default:"{\"twitter\":0.4,\"reddit\":0.3,\"news\":0.3}"`
	SentimentThreshold float64            `yaml:"sentiment_threshold" default:"0.6"`
	MaxPositionSize    float64            `yaml:"max_position_size" default:"10000"`
}

var knownSources = map[string]bool{"twitter": true, "reddit": true, "news": true}

// Load reads and parses a YAML configuration file, filling unset fields
// from their defaults, then validates it.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads an optional .env file, reads the YAML config, applies
// environment overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"ENVIRONMENT":           &c.Environment,
		"LOG_LEVEL":             &c.Log.Level,
		"STORAGE":               &c.Storage.Type,
		"CONFIG_SOURCE":         &c.ConfigSource.Type,
		"SYMBOLS_FILE":          &c.ConfigSource.Path,
		"FINNHUB_API_KEY":       &c.Finnhub.APIKey,
		"BROKER":                &c.Broker.Type,
		"ALPACA_BASE_URL":       &c.Broker.BaseURL,
		"ALPACA_API_KEY_ID":     &c.Broker.KeyID,
		"ALPACA_API_SECRET_KEY": &c.Broker.Secret,
		"POSTGRES_HOST":         &c.Postgres.Host,
		"POSTGRES_PASSWORD":     &c.Postgres.Password,
		"REDIS_HOST":            &c.Redis.Host,
		"REDIS_PASSWORD":        &c.Redis.Password,
		"CLICKHOUSE_HOST":       &c.ClickHouse.Host,
		"CLICKHOUSE_PASSWORD":   &c.ClickHouse.Password,
	}
	for k, dst := range str {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = splitList(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("BOT_AUTOSTART"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOT_AUTOSTART: %w", err)
		}
		c.Bot.Autostart = b
	}
	if v := os.Getenv("BOT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BOT_INTERVAL: %w", err)
		}
		c.Bot.Interval = d
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Type {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.type must be 'memory' or 'postgres', got '%s'", c.Storage.Type)
	}
	switch c.ConfigSource.Type {
	case "file":
		if c.ConfigSource.Path == "" {
			return fmt.Errorf("config_source.path is required for the file source")
		}
	case "postgres":
		if c.Storage.Type != "postgres" {
			return fmt.Errorf("config_source.type 'postgres' needs storage.type 'postgres'")
		}
	default:
		return fmt.Errorf("config_source.type must be 'file' or 'postgres', got '%s'", c.ConfigSource.Type)
	}
	if c.Bot.Interval <= 0 {
		return fmt.Errorf("bot.interval must be positive")
	}
	if c.Bot.Window <= 0 {
		return fmt.Errorf("bot.window must be positive")
	}
	if c.Bot.LockTimeout <= 0 || c.Bot.SubmitTimeout <= 0 {
		return fmt.Errorf("bot.lock_timeout and bot.submit_timeout must be positive")
	}
	if c.Bot.Concurrency <= 0 {
		return fmt.Errorf("bot.concurrency must be positive")
	}
	if c.Bot.AccountEquity < 0 {
		return fmt.Errorf("bot.account_equity cannot be negative")
	}
	if err := c.Bot.Defaults.Validate(); err != nil {
		return fmt.Errorf("bot.defaults: %w", err)
	}
	switch c.Broker.Type {
	case "paper":
	case "alpaca":
		if c.Broker.KeyID == "" || c.Broker.Secret == "" {
			return fmt.Errorf("broker.key_id and broker.secret are required for alpaca")
		}
	default:
		return fmt.Errorf("broker.type must be 'paper' or 'alpaca', got '%s'", c.Broker.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Log.CollectTopic != "" && !c.Kafka.Enabled {
		return fmt.Errorf("log.collect_topic needs kafka enabled")
	}
	if c.Log.CollectLevel != "warn" && c.Log.CollectLevel != "error" {
		return fmt.Errorf("log.collect_level must be 'warn' or 'error', got '%s'", c.Log.CollectLevel)
	}
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required")
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty")
		}
	}
	return nil
}

// Validate checks weight, threshold and cap ranges.
func (d SymbolDefaults) Validate() error {
	for name, w := range d.Weights {
		if !knownSources[name] {
			return fmt.Errorf("unknown source %q in weights", name)
		}
		if math.IsNaN(w) || w < 0 || w > 1 {
			return fmt.Errorf("weight %s=%v outside [0,1]", name, w)
		}
	}
	if math.IsNaN(d.SentimentThreshold) || d.SentimentThreshold <= 0 || d.SentimentThreshold > 1 {
		return fmt.Errorf("sentiment_threshold %v outside (0,1]", d.SentimentThreshold)
	}
	if math.IsNaN(d.MaxPositionSize) || d.MaxPositionSize < 0 {
		return fmt.Errorf("max_position_size cannot be negative")
	}
	return nil
}
