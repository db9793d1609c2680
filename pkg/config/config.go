package config

import (
	"fmt"
	"os"
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
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level          string `yaml:"level"`
		Format         string `yaml:"format"`
		Output         string `yaml:"output"`
		AggregateTopic string `yaml:"aggregate_topic"`
	} `yaml:"logging"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		OutcomesTopic string   `yaml:"outcomes_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Scoring struct {
		MinScore         int           `yaml:"min_score"`
		MaxScore         int           `yaml:"max_score"`
		LowRiskCutoff    float64       `yaml:"low_risk_cutoff"`
		MediumRiskCutoff float64       `yaml:"medium_risk_cutoff"`
		CacheTTL         time.Duration `yaml:"cache_ttl"`
	} `yaml:"scoring"`
	Model struct {
		Eta0             float64 `yaml:"eta0"`
		Alpha            float64 `yaml:"alpha"`
		Epochs           int     `yaml:"epochs"`
		Seed             int64   `yaml:"seed"`
		RetrainThreshold int     `yaml:"retrain_threshold"`
		BootstrapSize    int     `yaml:"bootstrap_size"`
	} `yaml:"model"`
	Simulation struct {
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst float64 `yaml:"rate_limit_burst"`
	} `yaml:"simulation"`
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

	c.applyDefaults()

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("OUTCOMES_TOPIC"); v != "" {
		c.Kafka.OutcomesTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Scoring.MinScore == 0 && c.Scoring.MaxScore == 0 {
		c.Scoring.MinScore = 300
		c.Scoring.MaxScore = 900
	}
	if c.Scoring.LowRiskCutoff == 0 {
		c.Scoring.LowRiskCutoff = 0.65
	}
	if c.Scoring.MediumRiskCutoff == 0 {
		c.Scoring.MediumRiskCutoff = 0.45
	}
	if c.Scoring.CacheTTL == 0 {
		c.Scoring.CacheTTL = 15 * time.Minute
	}
	if c.Model.Eta0 == 0 {
		c.Model.Eta0 = 0.01
	}
	if c.Model.Alpha == 0 {
		c.Model.Alpha = 0.0001
	}
	if c.Model.Epochs == 0 {
		c.Model.Epochs = 50
	}
	if c.Model.Seed == 0 {
		c.Model.Seed = 42
	}
	if c.Model.RetrainThreshold == 0 {
		c.Model.RetrainThreshold = 25
	}
	if c.Model.BootstrapSize == 0 {
		c.Model.BootstrapSize = 100
	}
	if c.Simulation.RateLimitRPS == 0 {
		c.Simulation.RateLimitRPS = 5
	}
	if c.Simulation.RateLimitBurst == 0 {
		c.Simulation.RateLimitBurst = 10
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Scoring.MinScore >= c.Scoring.MaxScore {
		return fmt.Errorf("scoring.min_score must be below scoring.max_score, got %d >= %d",
			c.Scoring.MinScore, c.Scoring.MaxScore)
	}
	if c.Scoring.MediumRiskCutoff >= c.Scoring.LowRiskCutoff {
		return fmt.Errorf("scoring.medium_risk_cutoff must be below scoring.low_risk_cutoff")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.OutcomesTopic == "" {
		return fmt.Errorf("kafka.outcomes_topic is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	return nil
}
