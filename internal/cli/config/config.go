package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"tosts/internal/common/mq"
	"tosts/internal/common/storage"
	"tosts/internal/harness/spec"
	"tosts/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath   = "tosts.yaml"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultEventsClient = "tosts"
	DefaultEventsDial   = 5 * time.Second
	DefaultMinIOPrefix  = "tosts"
)

// HarnessConfig holds execution settings.
type HarnessConfig struct {
	Parallelism      int           `yaml:"parallelism"`
	GeneratorTimeout time.Duration `yaml:"generatorTimeout"`
	ReferenceTimeout time.Duration `yaml:"referenceTimeout"`
	StdoutMaxBytes   int64         `yaml:"stdoutMaxBytes"`
	ArtifactDir      string        `yaml:"artifactDir"`
}

// EventsConfig holds the Kafka event sink settings. Empty brokers disable it.
type EventsConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
}

// Enabled reports whether events should be published.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0 && e.Topic != ""
}

// Config holds tosts configuration.
type Config struct {
	Logger  logger.Config       `yaml:"logger"`
	Harness HarnessConfig       `yaml:"harness"`
	Events  EventsConfig        `yaml:"events"`
	MinIO   storage.MinIOConfig `yaml:"minio"`
}

// Load reads a YAML config file. A missing file is an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file failed: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadOptional behaves like Load but falls back to defaults when the file does not exist.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		cfg = Config{}
		applyDefaults(&cfg)
		return cfg, nil
	}
	return cfg, err
}

func applyDefaults(cfg *Config) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = DefaultLogLevel
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = DefaultLogFormat
	}
	if cfg.Harness.GeneratorTimeout == 0 {
		cfg.Harness.GeneratorTimeout = spec.DefaultGeneratorTimeLimit
	}
	if cfg.Harness.ReferenceTimeout == 0 {
		cfg.Harness.ReferenceTimeout = spec.DefaultReferenceTimeLimit
	}
	if cfg.Events.DialTimeout == 0 {
		cfg.Events.DialTimeout = DefaultEventsDial
	}
	if cfg.Events.ClientID == "" {
		cfg.Events.ClientID = DefaultEventsClient
	}
	if cfg.MinIO.Prefix == "" {
		cfg.MinIO.Prefix = DefaultMinIOPrefix
	}
}

// ToMQConfig converts the events section to producer settings.
func (e EventsConfig) ToMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      e.Brokers,
		ClientID:     e.ClientID,
		BatchSize:    e.BatchSize,
		BatchTimeout: e.BatchTimeout,
		DialTimeout:  e.DialTimeout,
		WriteTimeout: e.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(e.RequiredAcks),
		Compression:  parseCompression(e.Compression),
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
