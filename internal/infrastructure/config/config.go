// Package config loads and validates the platform configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig represents the ops HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// VenueConfig represents the broker (AlgoLab) connection configuration
type VenueConfig struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	StreamURL    string        `mapstructure:"stream_url" yaml:"stream_url" json:"stream_url"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	APISecret    string        `mapstructure:"api_secret" yaml:"api_secret" json:"api_secret"`
	CallTimeout  time.Duration `mapstructure:"call_timeout" yaml:"call_timeout" json:"call_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval" json:"ping_interval"`
}

// ResilienceConfig represents circuit breaker and retry policy configuration
// for outbound venue calls.
type ResilienceConfig struct {
	WindowSize             int           `mapstructure:"window_size" yaml:"window_size" json:"window_size"`
	MinimumCalls           int           `mapstructure:"minimum_calls" yaml:"minimum_calls" json:"minimum_calls"`
	FailureRateThreshold   float64       `mapstructure:"failure_rate_threshold" yaml:"failure_rate_threshold" json:"failure_rate_threshold"`
	SlowCallRateThreshold  float64       `mapstructure:"slow_call_rate_threshold" yaml:"slow_call_rate_threshold" json:"slow_call_rate_threshold"`
	SlowCallDuration       time.Duration `mapstructure:"slow_call_duration" yaml:"slow_call_duration" json:"slow_call_duration"`
	OpenStateWait          time.Duration `mapstructure:"open_state_wait" yaml:"open_state_wait" json:"open_state_wait"`
	HalfOpenPermittedCalls int           `mapstructure:"half_open_permitted_calls" yaml:"half_open_permitted_calls" json:"half_open_permitted_calls"`
	MaxAttempts            int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff         time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" json:"initial_backoff"`
	BackoffMultiplier      float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxBackoff             time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
}

// RiskConfig represents pre-trade risk limits.
type RiskConfig struct {
	MaxOrderValue      float64 `mapstructure:"max_order_value" yaml:"max_order_value" json:"max_order_value"`
	MaxPositionSize    float64 `mapstructure:"max_position_size" yaml:"max_position_size" json:"max_position_size"`
	MaxDailyLoss       float64 `mapstructure:"max_daily_loss" yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxLeverage        float64 `mapstructure:"max_leverage" yaml:"max_leverage" json:"max_leverage"`
	ConcentrationLimit float64 `mapstructure:"concentration_limit" yaml:"concentration_limit" json:"concentration_limit"`
}

// TrackerConfig represents order lifecycle tracking configuration.
type TrackerConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" json:"sweep_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after" yaml:"stale_after" json:"stale_after"`
}

// NotifierConfig represents event dispatch configuration.
type NotifierConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
	EnqueueWait time.Duration `mapstructure:"enqueue_wait" yaml:"enqueue_wait" json:"enqueue_wait"`
}

// Config represents the application configuration
type Config struct {
	LogLevel   string           `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Venue      VenueConfig      `mapstructure:"venue" yaml:"venue" json:"venue"`
	Resilience ResilienceConfig `mapstructure:"resilience" yaml:"resilience" json:"resilience"`
	Risk       RiskConfig       `mapstructure:"risk" yaml:"risk" json:"risk"`
	Tracker    TrackerConfig    `mapstructure:"tracker" yaml:"tracker" json:"tracker"`
	Notifier   NotifierConfig   `mapstructure:"notifier" yaml:"notifier" json:"notifier"`
	Redis      struct {
		Address  string `mapstructure:"address" yaml:"address" json:"address"`
		Password string `mapstructure:"password" yaml:"password" json:"password"`
		DB       int    `mapstructure:"db" yaml:"db" json:"db"`
	} `mapstructure:"redis" yaml:"redis" json:"redis"`
	Kafka struct {
		Brokers    []string `mapstructure:"brokers" yaml:"brokers" json:"brokers"`
		OrderTopic string   `mapstructure:"order_topic" yaml:"order_topic" json:"order_topic"`
	} `mapstructure:"kafka" yaml:"kafka" json:"kafka"`
}

// Load reads configuration from the optional file path, environment
// variables (BIST_ prefix) and built-in defaults, in that order of
// precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("venue.base_url", "https://www.algolab.com.tr/api")
	v.SetDefault("venue.stream_url", "wss://www.algolab.com.tr/api/ws")
	v.SetDefault("venue.call_timeout", 30*time.Second)
	v.SetDefault("venue.ping_interval", 30*time.Second)

	v.SetDefault("resilience.window_size", 100)
	v.SetDefault("resilience.minimum_calls", 10)
	v.SetDefault("resilience.failure_rate_threshold", 0.5)
	v.SetDefault("resilience.slow_call_rate_threshold", 0.5)
	v.SetDefault("resilience.slow_call_duration", 10*time.Second)
	v.SetDefault("resilience.open_state_wait", 30*time.Second)
	v.SetDefault("resilience.half_open_permitted_calls", 3)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff", 2*time.Second)
	v.SetDefault("resilience.backoff_multiplier", 2.0)
	v.SetDefault("resilience.max_backoff", 60*time.Second)

	v.SetDefault("risk.max_order_value", 20000.0)
	v.SetDefault("risk.max_position_size", 100000.0)
	v.SetDefault("risk.max_daily_loss", 50000.0)
	v.SetDefault("risk.max_leverage", 3.0)
	v.SetDefault("risk.concentration_limit", 0.1)

	v.SetDefault("tracker.sweep_interval", 5*time.Minute)
	v.SetDefault("tracker.stale_after", time.Hour)

	v.SetDefault("notifier.workers", 4)
	v.SetDefault("notifier.queue_size", 1024)
	v.SetDefault("notifier.enqueue_wait", 100*time.Millisecond)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.order_topic", "orders.events")
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Resilience.WindowSize <= 0 {
		return fmt.Errorf("resilience.window_size must be positive, got %d", c.Resilience.WindowSize)
	}
	if c.Resilience.MinimumCalls <= 0 || c.Resilience.MinimumCalls > c.Resilience.WindowSize {
		return fmt.Errorf("resilience.minimum_calls must be in (0, window_size], got %d", c.Resilience.MinimumCalls)
	}
	if c.Resilience.FailureRateThreshold <= 0 || c.Resilience.FailureRateThreshold > 1 {
		return fmt.Errorf("resilience.failure_rate_threshold must be in (0, 1], got %f", c.Resilience.FailureRateThreshold)
	}
	if c.Resilience.MaxAttempts <= 0 {
		return fmt.Errorf("resilience.max_attempts must be positive, got %d", c.Resilience.MaxAttempts)
	}
	if c.Risk.ConcentrationLimit <= 0 || c.Risk.ConcentrationLimit > 1 {
		return fmt.Errorf("risk.concentration_limit must be in (0, 1], got %f", c.Risk.ConcentrationLimit)
	}
	if c.Notifier.Workers <= 0 {
		return fmt.Errorf("notifier.workers must be positive, got %d", c.Notifier.Workers)
	}
	if c.Tracker.SweepInterval <= 0 || c.Tracker.StaleAfter <= 0 {
		return fmt.Errorf("tracker sweep_interval and stale_after must be positive")
	}
	return nil
}
