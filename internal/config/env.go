package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays DATALOG_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DATALOG_WINDOW_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Datalog.WindowSize = n
		}
	}
	if v := os.Getenv("DATALOG_MAX_RECORD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Datalog.MaxRecordSize = n
		}
	}
	if v := os.Getenv("DATALOG_LEGACY_POLICY"); v != "" {
		cfg.Datalog.LegacyPolicy = v
	}
	if v := os.Getenv("DATALOG_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("DATALOG_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("DATALOG_FSYNC"); v != "" {
		cfg.Storage.Fsync = v
	}
	if v := os.Getenv("DATALOG_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("DATALOG_REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := os.Getenv("DATALOG_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Redis.DB = n
		}
	}
	// DATALOG_AUTH_TOKENS=token1=alice,token2=bob
	if v := os.Getenv("DATALOG_AUTH_TOKENS"); v != "" {
		cfg.Auth.Tokens = map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			tok, acct, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && tok != "" && acct != "" {
				cfg.Auth.Tokens[tok] = acct
			}
		}
	}
	if v := os.Getenv("DATALOG_AUTH_INSECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Insecure = b
		}
	}
	if v := os.Getenv("DATALOG_ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
	}
	if v := os.Getenv("DATALOG_ARCHIVE_S3_PREFIX"); v != "" {
		cfg.Archive.S3Prefix = v
	}
	if v := os.Getenv("DATALOG_ARCHIVE_S3_REGION"); v != "" {
		cfg.Archive.S3Region = v
	}
	if v := os.Getenv("DATALOG_ARCHIVE_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3Endpoint = v
	}
	if v := os.Getenv("DATALOG_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("DATALOG_TRACE_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Telemetry.SampleRatio = f
		}
	}
	if v := os.Getenv("DATALOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DATALOG_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
