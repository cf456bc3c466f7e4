package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config declares a logger: level, format and outputs plus optional
// redaction and sampling.
type Config struct {
	Level      string         `json:"level" yaml:"level"`
	Format     string         `json:"format" yaml:"format"`
	Outputs    []OutputConfig `json:"outputs" yaml:"outputs"`
	ShowCaller bool           `json:"showCaller" yaml:"showCaller"`
	// RedactKeys replaces the values of these field keys with [REDACTED].
	RedactKeys []string        `json:"redactKeys" yaml:"redactKeys"`
	Sampling   *SamplingConfig `json:"sampling" yaml:"sampling"`
}

// OutputConfig selects an output. Type is console|stderr|stdout|file|null.
type OutputConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

// SamplingConfig keeps the first Initial entries per message, then every
// Thereafter-th.
type SamplingConfig struct {
	Initial    int `json:"initial" yaml:"initial"`
	Thereafter int `json:"thereafter" yaml:"thereafter"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{ShowCaller: cfg.ShowCaller}
	case "json":
		formatter = &JSONFormatter{ShowCaller: cfg.ShowCaller}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	for _, oc := range cfg.Outputs {
		out, err := buildOutput(oc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOutput(out))
	}
	if len(cfg.Outputs) == 0 {
		opts = append(opts, WithOutput(NewConsoleOutput()))
	}

	l := NewLogger(opts...).(*BaseLogger)
	h := newBridgeHandler(l).withRedactions(cfg.RedactKeys)
	if cfg.Sampling != nil {
		h = h.withSampler(cfg.Sampling.Initial, cfg.Sampling.Thereafter)
	}
	l.slogLogger = slog.New(h)
	return l, nil
}

func buildOutput(oc OutputConfig) (Output, error) {
	switch strings.ToLower(oc.Type) {
	case "", "console", "stderr":
		return NewConsoleOutput(), nil
	case "stdout":
		return &ConsoleOutput{}, nil
	case "file":
		if oc.Path == "" {
			return nil, fmt.Errorf("file output requires a path")
		}
		return NewFileOutput(oc.Path)
	case "null":
		return NullOutput{}, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", oc.Type)
	}
}
