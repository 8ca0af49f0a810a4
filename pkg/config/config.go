package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/siqueiraa/FraudFlow/pkg/risk"
)

// Named type to allow reuse and clearer code
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	SchemaRegistry string   `yaml:"schemaRegistry"`
	UseAvro        bool     `yaml:"useAvro"`
	GroupID        string   `yaml:"groupID"`
}

type RiskConfig struct {
	AmountThreshold   float64  `yaml:"amountThreshold"`
	HighRiskCountries []string `yaml:"highRiskCountries"`
}

// Policy builds the evaluator policy described by this section.
func (r RiskConfig) Policy() risk.Policy {
	return risk.NewPolicy(r.AmountThreshold, r.HighRiskCountries)
}

// StageConfig tunes one batch stage.
type StageConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Workers   int           `yaml:"workers"`
	BatchSize int           `yaml:"batchSize"`
	BatchWait time.Duration `yaml:"batchWait"`
}

type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
}

type AppConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`

	Stream struct {
		Name          string `yaml:"name"`
		EnrichedTopic string `yaml:"enrichedTopic"`
	} `yaml:"stream"`

	Notification struct {
		Target string `yaml:"target"`
	} `yaml:"notification"`

	Risk RiskConfig `yaml:"risk"`

	Transform StageConfig `yaml:"transform"`

	Alerts struct {
		StageConfig `yaml:",inline"`
		// Source is "enriched" (trust is_high_risk) or "raw" (re-score).
		Source string `yaml:"source"`
	} `yaml:"alerts"`

	Server struct {
		Addr         string `yaml:"addr"`
		MaxBodyBytes int64  `yaml:"maxBodyBytes"`
	} `yaml:"server"`

	State struct {
		Path string `yaml:"path"`
	} `yaml:"state"`

	Archive struct {
		S3 S3Config `yaml:"s3"`
	} `yaml:"archive"`

	Emitter struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"emitter"`
}

const (
	SourceEnriched = "enriched"
	SourceRaw      = "raw"
)

// Defaults returns the configuration used before the file and environment
// are applied.
func Defaults() AppConfig {
	var cfg AppConfig
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.GroupID = "fraudflow"
	cfg.Stream.Name = "transactions"
	cfg.Stream.EnrichedTopic = "transactions-enriched"
	cfg.Notification.Target = "fraud-alerts"
	cfg.Risk.AmountThreshold = risk.DefaultPolicy().AmountThreshold
	cfg.Risk.HighRiskCountries = append([]string(nil), risk.DefaultCountries...)
	cfg.Transform = StageConfig{Enabled: true, Workers: 8, BatchSize: 500, BatchWait: time.Second}
	cfg.Alerts.StageConfig = StageConfig{Enabled: true, Workers: 8, BatchSize: 100, BatchWait: time.Second}
	cfg.Alerts.Source = SourceEnriched
	cfg.Server.Addr = ":8080"
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.State.Path = "/tmp/fraudflow/state"
	cfg.Emitter.Interval = time.Second
	return cfg
}

// Load reads and parses a YAML config file into an AppConfig struct.
// It will terminate the program if the file is invalid.
func Load(path string) AppConfig {
	cfg, err := LoadFile(path)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// LoadFile applies defaults, then the YAML file at path (skipped when path
// is empty), then environment overrides, and validates the result.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides the recognized options from the environment.
func applyEnv(cfg *AppConfig, getenv func(string) string) error {
	if v := getenv("STREAM_NAME"); v != "" {
		cfg.Stream.Name = v
	}
	if v := getenv("NOTIFICATION_TARGET"); v != "" {
		cfg.Notification.Target = v
	}
	if v := getenv("AMOUNT_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AMOUNT_THRESHOLD: %w", err)
		}
		cfg.Risk.AmountThreshold = f
	}
	if v := getenv("HIGH_RISK_COUNTRIES"); v != "" {
		cfg.Risk.HighRiskCountries = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first setting that cannot work.
func (c *AppConfig) Validate() error {
	switch {
	case c.Stream.Name == "":
		return errors.New("stream.name is required")
	case c.Transform.Enabled && c.Stream.EnrichedTopic == "":
		return errors.New("stream.enrichedTopic is required when transform is enabled")
	case c.Alerts.Source != SourceEnriched && c.Alerts.Source != SourceRaw:
		return fmt.Errorf("alerts.source must be %q or %q, got %q", SourceEnriched, SourceRaw, c.Alerts.Source)
	case c.Risk.AmountThreshold < 0:
		return fmt.Errorf("risk.amountThreshold must not be negative, got %v", c.Risk.AmountThreshold)
	case (c.Transform.Enabled || c.Alerts.Enabled) && len(c.Kafka.Brokers) == 0:
		return errors.New("kafka.brokers is required")
	case c.Kafka.UseAvro && c.Kafka.SchemaRegistry == "":
		return errors.New("kafka.schemaRegistry is required when useAvro is set")
	case c.Archive.S3.Enabled && c.Archive.S3.Bucket == "":
		return errors.New("archive.s3.bucket is required when the archive is enabled")
	}
	return nil
}

// AlertTopic is the topic the alert stage consumes.
func (c *AppConfig) AlertTopic() string {
	if c.Alerts.Source == SourceRaw {
		return c.Stream.Name
	}
	return c.Stream.EnrichedTopic
}
