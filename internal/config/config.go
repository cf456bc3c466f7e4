package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/datalog/internal/datalog"
	pebblestore "github.com/rzbill/datalog/internal/storage/pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Datalog   DatalogConfig   `json:"datalog" yaml:"datalog"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// DatalogConfig sizes every log. Changing WindowSize for an existing data
// directory is not supported.
type DatalogConfig struct {
	WindowSize    uint64 `json:"windowSize" yaml:"windowSize"`
	MaxRecordSize int    `json:"maxRecordSize" yaml:"maxRecordSize"`
	// LegacyPolicy is discard or migrate.
	LegacyPolicy string `json:"legacyPolicy" yaml:"legacyPolicy"`
}

// StorageConfig selects the key-value substrate.
type StorageConfig struct {
	// Backend is pebble, redis or memory.
	Backend string `json:"backend" yaml:"backend"`
	// DataDir holds the Pebble database. Empty means DefaultDataDir().
	DataDir         string `json:"dataDir" yaml:"dataDir"`
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// SlowCommitMs is the Pebble commit latency logged as slow.
	SlowCommitMs int         `json:"slowCommitMs" yaml:"slowCommitMs"`
	Redis        RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// AuthConfig maps bearer tokens to the account they act for.
type AuthConfig struct {
	Tokens map[string]string `json:"tokens" yaml:"tokens"`
	// Insecure accepts the account named by the caller without a token.
	// Only for local development.
	Insecure bool `json:"insecure" yaml:"insecure"`
}

// ArchiveConfig enables uploading evicted records to S3 when S3Bucket is set.
type ArchiveConfig struct {
	S3Bucket     string `json:"s3Bucket" yaml:"s3Bucket"`
	S3Prefix     string `json:"s3Prefix" yaml:"s3Prefix"`
	S3Region     string `json:"s3Region" yaml:"s3Region"`
	S3Endpoint   string `json:"s3Endpoint" yaml:"s3Endpoint"`
	UsePathStyle bool   `json:"usePathStyle" yaml:"usePathStyle"`
	QueueSize    int    `json:"queueSize" yaml:"queueSize"`
}

// TelemetryConfig enables OTLP trace export when OTLPEndpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string  `json:"otlpEndpoint" yaml:"otlpEndpoint"`
	Insecure     bool    `json:"insecure" yaml:"insecure"`
	ServiceName  string  `json:"serviceName" yaml:"serviceName"`
	SampleRatio  float64 `json:"sampleRatio" yaml:"sampleRatio"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Datalog: DatalogConfig{
			WindowSize:    datalog.DefaultWindowSize,
			MaxRecordSize: datalog.DefaultMaxRecordSize,
			LegacyPolicy:  "discard",
		},
		Storage: StorageConfig{
			Backend:         "pebble",
			Fsync:           "always",
			FsyncIntervalMs: 5,
			SlowCommitMs:    100,
			Redis:           RedisConfig{Prefix: "datalog:"},
		},
		Archive:   ArchiveConfig{S3Prefix: "datalog", QueueSize: 1024},
		Telemetry: TelemetryConfig{ServiceName: "datalog", SampleRatio: 1},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Datalog.WindowSize < 2 {
		errs = append(errs, fmt.Errorf("datalog.windowSize must be >= 2, got %d", c.Datalog.WindowSize))
	}
	if c.Datalog.MaxRecordSize < 0 {
		errs = append(errs, fmt.Errorf("datalog.maxRecordSize must be >= 0, got %d", c.Datalog.MaxRecordSize))
	}
	if _, err := datalog.ParseLegacyPolicy(c.Datalog.LegacyPolicy); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "pebble":
		if _, err := pebblestore.ParseFsyncMode(c.Storage.Fsync); err != nil {
			errs = append(errs, err)
		}
	case "memory":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be pebble|redis|memory, got %q", c.Storage.Backend))
	}
	if c.Archive.S3Bucket != "" && c.Archive.QueueSize <= 0 {
		errs = append(errs, errors.New("archive.queueSize must be > 0"))
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampleRatio must be within [0,1], got %v", r))
	}
	return errors.Join(errs...)
}
