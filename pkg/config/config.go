package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine     EngineConfig     `yaml:"engine"`
	Rules      RulesConfig      `yaml:"rules"`
	Categories []CategoryConfig `yaml:"categories"`
	Kafka      struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Queue    struct {
			Enabled    bool          `yaml:"enabled"`
			Workers    int           `yaml:"workers"`
			RetryLimit int           `yaml:"retry_limit"`
			RetryDelay time.Duration `yaml:"retry_delay"`
		} `yaml:"queue"`
	} `yaml:"redis"`
}

// EngineConfig holds the core generation and calibration constants.
type EngineConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	AutoStart     bool          `yaml:"auto_start"`
	MaxMultiplier float64       `yaml:"max_multiplier"`
	LearningRate  float64       `yaml:"learning_rate"`
	WeightStep    float64       `yaml:"weight_step"`
	WeightFloor   float64       `yaml:"weight_floor"`
	Seed          int64         `yaml:"seed"` // 0 seeds from the clock
	Detection     struct {
		Hourly       bool `yaml:"hourly"`
		Quarterly    bool `yaml:"quarterly"`
		MinuteParity bool `yaml:"minute_parity"`
	} `yaml:"detection"`
}

// RuleConfig is the YAML form of one rule entry.
type RuleConfig struct {
	Bias       float64            `yaml:"bias"`
	Volatility float64            `yaml:"volatility"`
	Weights    map[string]float64 `yaml:"weights"`
}

// RulesConfig supplies a default entry plus per-bucket overrides. The full
// table is expanded from these at startup, one entry per reachable phase.
type RulesConfig struct {
	Default   RuleConfig            `yaml:"default"`
	Hourly    map[string]RuleConfig `yaml:"hourly"`    // keys "0".."23"
	Quarterly map[string]RuleConfig `yaml:"quarterly"` // keys "0".."3"
	Parity    map[string]RuleConfig `yaml:"parity"`    // keys "even", "odd"
}

// CategoryConfig is the YAML form of one category band.
type CategoryConfig struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Color string  `yaml:"color"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ENGINE_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Engine.Seed = seed
		}
	}

	return c, nil
}

// Validate checks structural validity of the configuration. Semantic
// validation of rule entries and category bands (coverage, overlap) lives in
// the engine builders, which own those invariants.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive")
	}
	if c.Engine.MaxMultiplier <= 1.0 {
		return fmt.Errorf("engine.max_multiplier must be greater than 1.0")
	}
	if c.Engine.LearningRate <= 0 || c.Engine.LearningRate > 1 {
		return fmt.Errorf("engine.learning_rate must be in (0, 1], got %v", c.Engine.LearningRate)
	}
	if c.Engine.WeightFloor <= 0 {
		return fmt.Errorf("engine.weight_floor must be positive")
	}
	if c.Engine.WeightStep <= 0 {
		return fmt.Errorf("engine.weight_step must be positive")
	}
	if !c.Engine.Detection.Hourly && !c.Engine.Detection.Quarterly && !c.Engine.Detection.MinuteParity {
		return fmt.Errorf("engine.detection: at least one granularity must be enabled")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("categories cannot be empty")
	}
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category name is required")
		}
		if cat.Max <= cat.Min {
			return fmt.Errorf("category %q: max must exceed min", cat.Name)
		}
	}
	if c.Rules.Default.Volatility < 0 {
		return fmt.Errorf("rules.default.volatility must be non-negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Redis.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("redis.queue requires redis to be enabled")
	}
	return nil
}
